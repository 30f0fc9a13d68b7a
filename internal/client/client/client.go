package client

import (
	"context"

	"github.com/dmitrijs2005/diarysync/internal/client/models"
)

// Remote is the contract every sync backend implements. Errors returned from
// Push and Pull carry one of ErrValidation, ErrUnauthorized or ErrTransport.
type Remote interface {
	// Push creates the remote record for e, or updates it when e.RemoteID is
	// set, and returns the remote id.
	Push(ctx context.Context, e *models.Entry) (string, error)

	// Pull returns records modified after f.Since, newest date first.
	Pull(ctx context.Context, f models.PullFilter) ([]models.RemoteRecord, error)

	Close() error
}

// Verifier is implemented by remotes that can check credentials and schema
// without writing anything.
type Verifier interface {
	Verify(ctx context.Context) error
}

// Provisioner is implemented by remotes that can create their own storage,
// such as a Notion database under a parent page. It returns the id of the
// created container.
type Provisioner interface {
	Provision(ctx context.Context, parent string) (string, error)
}
