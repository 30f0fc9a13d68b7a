package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/diarysync/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
//	-a string        gRPC bind address (e.g. ":50051")
//	-d string        PostgreSQL DSN
//	-s string        JWT HMAC secret key
//	-t duration      token validity, 0 for no expiry
//	-l string        log level
//	-v               print build information and exit
//	-issue-token     print an access token for the user and exit
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-t", "-l", "-v", "-issue-token", "--issue-token"})

	fs := flag.NewFlagSet("diarysync-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.GRPCAddr, "a", cfg.GRPCAddr, "address and port to run server")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
	fs.DurationVar(&cfg.TokenTTL, "t", cfg.TokenTTL, "access token validity")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "print build information and exit")
	fs.StringVar(&cfg.IssueToken, "issue-token", "", "print an access token for this user and exit")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	return nil
}
