package client

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error kinds reported by every Remote. Match them with errors.Is.
var (
	// ErrValidation means the remote rejected the field content or the
	// mapping could not be applied. Not retried.
	ErrValidation = errors.New("validation error")

	// ErrUnauthorized means the credentials are invalid or lack access. Not
	// retried, and always surfaced to the user.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTransport covers connectivity, timeouts and server-side failures.
	// Retried up to the budget.
	ErrTransport = errors.New("transport error")
)

// Local database errors.
var (
	ErrPassphraseRequired  = errors.New("journal is encrypted, passphrase required")
	ErrWrongPassphrase     = errors.New("wrong passphrase")
	ErrJournalNotEncrypted = errors.New("journal already holds unencrypted entries")
)

// RemoteError ties an error kind to the operation and the underlying cause.
type RemoteError struct {
	Kind error
	Op   string
	Err  error
}

func (e *RemoteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewValidationError(op string, err error) error {
	return &RemoteError{Kind: ErrValidation, Op: op, Err: err}
}

func NewAuthError(op string, err error) error {
	return &RemoteError{Kind: ErrUnauthorized, Op: op, Err: err}
}

func NewTransportError(op string, err error) error {
	return &RemoteError{Kind: ErrTransport, Op: op, Err: err}
}

// Classify returns err unchanged when it already carries a kind. Deadlines
// and network errors become transport errors. Everything else stays
// unclassified and is treated as a terminal failure.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsKind(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTransportError(op, err)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return NewTransportError(op, err)
	}
	return err
}

// IsKind reports whether err already carries one of the error kinds.
func IsKind(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrTransport)
}

// IsRetriable reports whether a push that failed with err may be attempted
// again.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrTransport)
}
