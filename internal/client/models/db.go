// Package models defines the client-side journal types shared by the store,
// the sync reconciler, the remote adapters and the presentation surfaces.
package models

import "time"

// SyncState tracks where an entry is in its push lifecycle.
type SyncState string

const (
	SyncStatePending SyncState = "pending"
	SyncStateSynced  SyncState = "synced"
	SyncStateFailed  SyncState = "failed"
)

// TitleLayout formats the default title of an entry from its creation time.
const TitleLayout = "2006-01-02 15:04"

// Entry is a single journal record, written locally first and pushed to the
// configured remote afterwards.
type Entry struct {
	// ID is assigned once on submit and never reused.
	ID string `json:"id"`

	Title   string `json:"title"`
	Content string `json:"content"`

	// CreatedAt is the local creation time in UTC. Immutable.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the time of the last local edit in UTC.
	UpdatedAt time.Time `json:"updated_at"`

	// RemoteID is set by the first successful push and never cleared locally.
	RemoteID string `json:"remote_id,omitempty"`

	// LastSyncedAt is the fencing token: it only moves forward.
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`

	SyncState SyncState `json:"sync_state"`

	// LastError holds the message of the last terminal push failure.
	LastError string `json:"last_error,omitempty"`
}

// Clone returns a deep copy.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	if e.LastSyncedAt != nil {
		ts := *e.LastSyncedAt
		c.LastSyncedAt = &ts
	}
	return &c
}

// SyncedAt returns LastSyncedAt or the zero time.
func (e *Entry) SyncedAt() time.Time {
	if e.LastSyncedAt == nil {
		return time.Time{}
	}
	return *e.LastSyncedAt
}

func DefaultTitle(t time.Time) string {
	return t.Format(TitleLayout)
}

// RemoteRecord is what a remote adapter reports for one stored entry.
type RemoteRecord struct {
	RemoteID string
	// LocalID is the cross-reference field holding the local entry id.
	LocalID    string
	Title      string
	Content    string
	Date       time.Time
	ModifiedAt time.Time
}

// PullFilter narrows a pull. Zero Since means everything; zero Limit means
// the adapter default.
type PullFilter struct {
	Since time.Time
	Limit int
}

type PullResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

type OutcomeStatus string

const (
	OutcomeSynced OutcomeStatus = "synced"
	OutcomeFailed OutcomeStatus = "failed"
)

// Outcome is the terminal result of one push attempt, as shown to the user.
type Outcome struct {
	ID      string        `json:"id"`
	Status  OutcomeStatus `json:"outcome"`
	Message string        `json:"message,omitempty"`
	At      time.Time     `json:"at"`
}
