// Package config loads runtime configuration for the diarysync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Optional .env file selected with -e or -env-file. Variables already set
//     in the process environment win over the file.
//  4. Environment variables (see the env tags on Config and client.RemoteConfig).
//  5. Command-line flags, which override everything else.
//
// Supported flags
//
//	-d string   path to the journal database
//	-r string   remote kind (notion, grpc, s3, couchdb)
//	-l string   log level (debug, info, warn, error)
//	-a string   address of the local HTTP API; empty disables it
//	-v          print build information and exit
//
// # JSON schema
//
// Durations use timex.Duration, so they may be strings like "30s" or integer
// nanoseconds. Keys missing from the file keep their previous value:
//
//	{
//	  "db_path": "diary.db",
//	  "log_level": "info",
//	  "pull_schedule": "@every 1m",
//	  "timeout": "30s",
//	  "remote": {
//	    "kind": "notion",
//	    "notion": {"database_id": "...", "schema": {"title_property": "Title"}}
//	  }
//	}
//
// The passphrase is read from DIARY_PASSPHRASE only.
package config
