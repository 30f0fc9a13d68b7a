package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/diarysync/internal/client/models"
	"github.com/dmitrijs2005/diarysync/internal/client/repositories/entries"
)

type pullAction int

const (
	pullSkipped pullAction = iota
	pullCreated
	pullUpdated
)

// Pull fetches remote records and applies them locally. A record whose
// local id is unknown creates a synced entry. A known entry takes the remote
// version only when the record was modified strictly after the entry's
// LastSyncedAt, and not before a pending local edit.
func (s *Syncer) Pull(ctx context.Context, f models.PullFilter) (models.PullResult, error) {
	var res models.PullResult

	recs, err := s.remote.Pull(ctx, f)
	if err != nil {
		return res, err
	}

	for _, r := range recs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		act, err := s.apply(ctx, r)
		if err != nil {
			return res, fmt.Errorf("apply %s: %w", r.RemoteID, err)
		}
		switch act {
		case pullCreated:
			res.Created++
		case pullUpdated:
			res.Updated++
		default:
			res.Skipped++
		}
	}

	s.log.Info(ctx, "pull finished", "records", len(recs), "created", res.Created, "updated", res.Updated, "skipped", res.Skipped)
	return res, nil
}

func (s *Syncer) apply(ctx context.Context, r models.RemoteRecord) (pullAction, error) {
	id := r.LocalID
	if id == "" {
		id = r.RemoteID
	}
	if id == "" {
		s.log.Warn(ctx, "remote record without any id skipped")
		return pullSkipped, nil
	}

	modified := r.ModifiedAt.UTC()
	if modified.IsZero() {
		modified = s.now().UTC()
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	local, err := s.store.Get(ctx, id)
	if errors.Is(err, entries.ErrNotFound) {
		return s.create(ctx, id, r, modified)
	}
	if err != nil {
		return pullSkipped, err
	}

	// Ties favor local.
	if !modified.After(local.SyncedAt()) {
		return pullSkipped, nil
	}
	if local.SyncState == models.SyncStatePending && local.UpdatedAt.After(modified) {
		return pullSkipped, nil
	}
	// The in-flight push is about to overwrite the remote record anyway.
	pushing, dropped := s.dequeueUnlessPushing(id)
	if pushing {
		return pullSkipped, nil
	}
	if dropped {
		s.log.Info(ctx, "queued push dropped, remote is newer", "id", id)
	}

	next := local.Clone()
	next.Title = r.Title
	next.Content = r.Content
	if r.RemoteID != "" {
		next.RemoteID = r.RemoteID
	}
	next.UpdatedAt = modified
	next.LastSyncedAt = &modified
	next.SyncState = models.SyncStateSynced
	next.LastError = ""

	return s.put(ctx, next, pullUpdated)
}

func (s *Syncer) create(ctx context.Context, id string, r models.RemoteRecord, modified time.Time) (pullAction, error) {
	created := r.Date.UTC()
	if created.IsZero() {
		created = modified
	}
	title := r.Title
	if title == "" {
		title = models.DefaultTitle(created)
	}
	e := &models.Entry{
		ID:           id,
		Title:        title,
		Content:      r.Content,
		CreatedAt:    created,
		UpdatedAt:    modified,
		RemoteID:     r.RemoteID,
		LastSyncedAt: &modified,
		SyncState:    models.SyncStateSynced,
	}
	return s.put(ctx, e, pullCreated)
}

func (s *Syncer) put(ctx context.Context, e *models.Entry, act pullAction) (pullAction, error) {
	err := s.store.Put(ctx, e)
	if errors.Is(err, entries.ErrStaleWrite) {
		return pullSkipped, nil
	}
	if err != nil {
		return pullSkipped, err
	}
	return act, nil
}
