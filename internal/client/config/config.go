package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrijs2005/diarysync/internal/client/client"
)

// Config holds runtime settings for the diarysync client.
type Config struct {
	DBPath string `env:"DIARY_DB"`

	// Passphrase enables at-rest encryption of entry content. Never read from
	// JSON or flags.
	Passphrase string `env:"DIARY_PASSPHRASE"`

	LogLevel  string `env:"DIARY_LOG_LEVEL"`
	LogFormat string `env:"DIARY_LOG_FORMAT"`

	// HTTPAddr enables the local HTTP API when set.
	HTTPAddr string `env:"DIARY_HTTP_ADDR"`

	// PullSchedule is a cron spec for the periodic pull and drain. Empty
	// disables it.
	PullSchedule string `env:"DIARY_PULL_SCHEDULE"`

	REPL bool `env:"DIARY_REPL"`

	MaxAttempts int           `env:"DIARY_MAX_ATTEMPTS"`
	Timeout     time.Duration `env:"DIARY_TIMEOUT"`

	Remote client.RemoteConfig

	ShowVersion bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DBPath = "diary.db"
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.PullSchedule = "@every 1m"
	c.REPL = true
	c.MaxAttempts = 3
	c.Timeout = 30 * time.Second
	c.Remote.Kind = client.KindNotion
	c.Remote.Notion.Schema = client.DefaultNotionSchema()
	c.Remote.S3.Region = "us-east-1"
	c.Remote.CouchDB.Database = "journal"
}

// LoadConfig builds a Config from defaults, the JSON file, the .env file,
// the environment and finally args, which should not include the program
// name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	cfg.Remote.Timeout = cfg.Timeout
	return cfg, nil
}

var logFormats = []string{"text", "json"}

// Validate reports every missing or malformed setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.DBPath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if !slices.Contains(logFormats, c.LogFormat) {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if c.PullSchedule != "" {
		if _, err := cron.ParseStandard(c.PullSchedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid pull schedule: %w", err))
		}
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, errors.New("max attempts must be at least 1"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}

	errs = append(errs, validateRemote(c.Remote)...)
	return errors.Join(errs...)
}

func validateRemote(r client.RemoteConfig) []error {
	var errs []error
	required := func(v, name string) {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s remote: %s is required", r.Kind, name))
		}
	}

	switch r.Kind {
	case client.KindNotion:
		required(r.Notion.Token, "token")
		if r.Notion.DatabaseID == "" && r.Notion.ParentPage == "" {
			errs = append(errs, errors.New("notion remote: database_id or parent_page is required"))
		}
	case client.KindGRPC:
		required(r.GRPC.Address, "address")
	case client.KindS3:
		required(r.S3.Bucket, "bucket")
		required(r.S3.Region, "region")
		if (r.S3.AccessKey == "") != (r.S3.SecretKey == "") {
			errs = append(errs, errors.New("s3 remote: access_key and secret_key must be set together"))
		}
	case client.KindCouchDB:
		required(r.CouchDB.URL, "url")
		required(r.CouchDB.Database, "database")
	default:
		errs = append(errs, fmt.Errorf("unknown remote %q, expected one of %v", r.Kind, client.Kinds))
	}
	return errs
}
