// Package metadata stores small key/value facts about the local journal:
// the encryption salt, the passphrase check value and the pull cursor.
package metadata

import (
	"context"
	"time"
)

const (
	KeySalt       = "salt"
	KeyCheck      = "passphrase_check"
	KeyPullCursor = "pull_cursor"
)

type Repository interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// PullCursor returns the zero time when no pull has completed yet.
	PullCursor(ctx context.Context) (time.Time, error)
	SetPullCursor(ctx context.Context, t time.Time) error
}
