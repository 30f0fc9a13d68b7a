package entries

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/diarysync/internal/client/models"
)

var (
	ErrNotFound   = errors.New("entry not found")
	ErrStaleWrite = errors.New("stale write rejected")
)

// Repository describes the Entry Store operations used by the reconciler
// and the journal service.
type Repository interface {
	// Put upserts by id. It returns ErrStaleWrite when the stored entry has a
	// newer LastSyncedAt.
	Put(ctx context.Context, e *models.Entry) error

	// Get returns ErrNotFound if the id was never written.
	Get(ctx context.Context, id string) (*models.Entry, error)

	// List returns all entries, newest first. The order is stable.
	List(ctx context.Context) ([]*models.Entry, error)

	// ListByState returns entries in the given sync state, oldest first.
	ListByState(ctx context.Context, state models.SyncState) ([]*models.Entry, error)

	// Delete removes an entry. Deleting a missing id returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// Cipher seals entry content before it touches disk.
type Cipher interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}
