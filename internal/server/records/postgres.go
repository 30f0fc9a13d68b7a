package records

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/dmitrijs2005/diarysync/internal/dbx"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, rec *Record) (string, error) {
	query := `
		INSERT INTO records (user_id, local_id, remote_id, title, content, date, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, local_id)
		DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			date = EXCLUDED.date,
			modified_at = EXCLUDED.modified_at
		RETURNING remote_id;
	`
	var remoteID string
	err := r.db.QueryRowContext(ctx, query,
		rec.UserID, rec.LocalID, rec.RemoteID, rec.Title, rec.Content, nullTime(rec.Date), rec.ModifiedAt,
	).Scan(&remoteID)
	if err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	return remoteID, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID string, after Cursor, limit int) ([]*Record, error) {
	q := sq.Select("remote_id", "local_id", "title", "content", "date", "modified_at").
		From("records").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("modified_at", "local_id").
		PlaceholderFormat(sq.Dollar)
	switch {
	case after.LocalID != "":
		q = q.Where(sq.Or{
			sq.Gt{"modified_at": after.ModifiedAt},
			sq.And{sq.Eq{"modified_at": after.ModifiedAt}, sq.Gt{"local_id": after.LocalID}},
		})
	case !after.ModifiedAt.IsZero():
		q = q.Where(sq.Gt{"modified_at": after.ModifiedAt})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		item := Record{UserID: userID}
		var date sql.NullTime
		if err := rows.Scan(&item.RemoteID, &item.LocalID, &item.Title, &item.Content, &date, &item.ModifiedAt); err != nil {
			return nil, err
		}
		if date.Valid {
			item.Date = date.Time.UTC()
		}
		item.ModifiedAt = item.ModifiedAt.UTC()
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
