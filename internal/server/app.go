// Package server wires the journal server: PostgreSQL storage, the records
// service and the gRPC endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/diarysync/internal/logging"
	"github.com/dmitrijs2005/diarysync/internal/server/auth"
	"github.com/dmitrijs2005/diarysync/internal/server/config"
	"github.com/dmitrijs2005/diarysync/internal/server/migrations"
	"github.com/dmitrijs2005/diarysync/internal/server/records"

	gs "github.com/dmitrijs2005/diarysync/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	grpc   *gs.GRPCServer
}

// NewApp opens the database, applies migrations and builds the server.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return newApp(c, db, logger), nil
}

func newApp(c *config.Config, db *sql.DB, logger logging.Logger) *App {
	rs := records.NewService(records.NewPostgresRepository(db), logger)
	return &App{
		config: c,
		logger: logger.With("module", "app"),
		db:     db,
		grpc:   gs.NewGRPCServer(c.GRPCAddr, logger, rs, c.SecretKey),
	}
}

// Run serves until ctx is cancelled or the gRPC server fails.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...")
	if app.config.UsesDevSecret() {
		app.logger.Warn(ctx, "tokens are signed with the development secret key")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.grpc.Run(gctx)
	})

	err := g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return err
}

func (app *App) Close() error {
	return app.db.Close()
}

// IssueToken signs an access token for userID with the configured secret
// and validity.
func IssueToken(c *config.Config, userID string) (string, error) {
	return auth.GenerateToken(userID, []byte(c.SecretKey), c.TokenTTL)
}
