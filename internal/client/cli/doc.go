// Package cli runs the diarysync client: it opens the local journal, builds
// the configured remote and the sync worker, and serves the REPL, the
// optional HTTP API and the periodic pull until the context ends.
//
// The REPL accepts the commands listed by "help". Push outcomes are printed
// as they arrive:
//
//	[synced] 6f1c...
//	[failed] 6f1c...: remote rejected entry: ...
package cli
