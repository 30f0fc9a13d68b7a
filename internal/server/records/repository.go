// Package records stores journal records pushed by clients, one row per
// (user, local id).
package records

import (
	"context"
	"time"
)

// Record is one stored journal entry as the server sees it.
type Record struct {
	UserID   string
	RemoteID string
	LocalID  string
	Title    string
	Content  string
	Date     time.Time

	// ModifiedAt is set by the server on every write.
	ModifiedAt time.Time
}

// Cursor is a position in the listing order (modified_at, local_id). A zero
// LocalID means strictly after ModifiedAt; a zero cursor means the start.
type Cursor struct {
	ModifiedAt time.Time
	LocalID    string
}

type Repository interface {
	// Upsert inserts r or updates the row with the same user and local id.
	// It returns the stored remote id, which never changes once assigned.
	Upsert(ctx context.Context, r *Record) (string, error)

	// List returns the user's records after the cursor, oldest first and
	// ties broken by local id. A zero limit means no limit.
	List(ctx context.Context, userID string, after Cursor, limit int) ([]*Record, error)
}
