package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/diarysync/internal/client/models"
	"github.com/dmitrijs2005/diarysync/internal/dbx"
)

const entryColumns = `id, title, content, created_at, updated_at, remote_id, last_synced_at, sync_state, last_error`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db     dbx.DBTX
	cipher Cipher
}

type Option func(*SQLiteRepository)

// WithCipher encrypts content at rest.
func WithCipher(c Cipher) Option {
	return func(r *SQLiteRepository) { r.cipher = c }
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX, opts ...Option) *SQLiteRepository {
	r := &SQLiteRepository{db: db}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *SQLiteRepository) Put(ctx context.Context, e *models.Entry) error {
	query := `INSERT INTO entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			updated_at = excluded.updated_at,
			remote_id = CASE WHEN excluded.remote_id = '' THEN entries.remote_id ELSE excluded.remote_id END,
			last_synced_at = excluded.last_synced_at,
			sync_state = excluded.sync_state,
			last_error = excluded.last_error
		WHERE entries.last_synced_at IS NULL
			OR (excluded.last_synced_at IS NOT NULL AND excluded.last_synced_at >= entries.last_synced_at)
	`
	content, err := r.seal(e.Content)
	if err != nil {
		return err
	}

	var synced sql.NullInt64
	if e.LastSyncedAt != nil {
		synced = sql.NullInt64{Int64: e.LastSyncedAt.UnixNano(), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query,
		e.ID, e.Title, content, toNanos(e.CreatedAt), toNanos(e.UpdatedAt),
		e.RemoteID, synced, string(e.SyncState), e.LastError)
	if err != nil {
		return fmt.Errorf("failed to upsert entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrStaleWrite
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Entry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)

	e, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry %s: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Entry, error) {
	return r.query(ctx, `SELECT `+entryColumns+` FROM entries ORDER BY created_at DESC, id DESC`)
}

func (r *SQLiteRepository) ListByState(ctx context.Context, state models.SyncState) ([]*models.Entry, error) {
	return r.query(ctx, `SELECT `+entryColumns+` FROM entries WHERE sync_state = ? ORDER BY created_at, id`, string(state))
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []*models.Entry
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scan(s scanner) (*models.Entry, error) {
	var (
		e                models.Entry
		content          []byte
		created, updated int64
		synced           sql.NullInt64
		state            string
	)
	if err := s.Scan(&e.ID, &e.Title, &content, &created, &updated, &e.RemoteID, &synced, &state, &e.LastError); err != nil {
		return nil, err
	}

	plain, err := r.open(content)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	e.Content = plain
	e.CreatedAt = fromNanos(created)
	e.UpdatedAt = fromNanos(updated)
	if synced.Valid {
		ts := time.Unix(0, synced.Int64).UTC()
		e.LastSyncedAt = &ts
	}
	e.SyncState = models.SyncState(state)
	return &e, nil
}

func (r *SQLiteRepository) seal(content string) ([]byte, error) {
	if r.cipher == nil {
		return []byte(content), nil
	}
	b, err := r.cipher.Seal([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("failed to seal content: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) open(content []byte) (string, error) {
	if r.cipher == nil {
		return string(content), nil
	}
	b, err := r.cipher.Open(content)
	if err != nil {
		return "", fmt.Errorf("failed to open content: %w", err)
	}
	return string(b), nil
}

// Timestamps are stored as unix nanoseconds; 0 stands for the zero time.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
