// Package logging is the structured logger every diarysync component takes.
// SlogLogger adapts log/slog to it.
package logging

import "context"

// Logger is context-aware. args are key/value pairs:
//
//	log.Info(ctx, "entry pushed", "id", id, "remote_id", remoteID)
type Logger interface {
	// Debug is for per-attempt detail such as retries and skipped records.
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	// Warn is for conditions the caller recovers from, like a dropped event.
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a logger that adds args to every record, typically
	// With("module", name).
	With(args ...any) Logger
}
