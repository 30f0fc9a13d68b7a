package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/diarysync/internal/buildinfo"
	"github.com/dmitrijs2005/diarysync/internal/logging"
	"github.com/dmitrijs2005/diarysync/internal/server"
	"github.com/dmitrijs2005/diarysync/internal/server/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		return err
	}
	if cfg.ShowVersion {
		buildinfo.PrintBuildData(os.Stdout)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	if cfg.IssueToken != "" {
		tok, err := server.IssueToken(cfg, cfg.IssueToken)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	buildinfo.PrintBuildData(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Run(ctx)
}
