package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/diarysync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// The arguments are filtered with flagx.FilterArgs first, so -c and -e,
// which are handled by the earlier layers, do not trip the parser.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-d", "-r", "-l", "-a", "-v"})

	fs := flag.NewFlagSet("diarysync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "path to the journal database")
	fs.StringVar(&cfg.Remote.Kind, "r", cfg.Remote.Kind, "remote kind")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "address of the local HTTP API")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "print build information and exit")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	return nil
}
