package syncer

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/diarysync/internal/client/client"
	"github.com/dmitrijs2005/diarysync/internal/client/models"
	"github.com/dmitrijs2005/diarysync/internal/client/repositories/entries"
	"github.com/sethvargo/go-retry"
)

// Run drains the queue every time something is enqueued, until ctx ends.
func (s *Syncer) Run(ctx context.Context) error {
	s.log.Info(ctx, "sync worker started")
	defer s.log.Info(ctx, "sync worker stopped")

	for {
		if err := s.Drain(ctx); err != nil && ctx.Err() == nil {
			s.log.Error(ctx, "drain failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		}
	}
}

// Drain pushes queued entries one at a time, in queue order, until the queue
// is empty. It returns early only when ctx ends; the entry being pushed at
// that moment goes back to the head of the queue.
func (s *Syncer) Drain(ctx context.Context) error {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		it := s.pop()
		if it == nil {
			return nil
		}
		if err := s.process(ctx, it); err != nil {
			return err
		}
	}
}

// pop takes the head of the queue and marks it pushing.
func (s *Syncer) pop() *item {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, it := range s.queue {
		id := it.entry.ID
		if s.pushing[id] {
			continue
		}
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
		delete(s.queued, id)
		s.pushing[id] = true
		return it
	}
	return nil
}

// requeue puts an interrupted item back at the head of the queue, unless a
// newer payload for the same id arrived meanwhile.
func (s *Syncer) requeue(it *item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := it.entry.ID
	delete(s.pushing, id)
	if _, ok := s.queued[id]; ok {
		return
	}
	s.queue = append([]*item{it}, s.queue...)
	s.queued[id] = it
}

func (s *Syncer) process(ctx context.Context, it *item) error {
	e := it.entry
	log := s.log.With("id", e.ID)

	// A payload queued while an earlier push was in flight does not know
	// the remote id yet.
	if e.RemoteID == "" {
		if cur, err := s.store.Get(ctx, e.ID); err == nil {
			e.RemoteID = cur.RemoteID
		}
	}

	remoteID, err := s.push(ctx, e)
	if err != nil && ctx.Err() != nil {
		s.requeue(it)
		log.Debug(ctx, "push interrupted, entry requeued")
		return ctx.Err()
	}

	// The push result is recorded even if ctx ends from here on.
	ctx = context.WithoutCancel(ctx)

	unlock := s.locks.Lock(e.ID)
	defer unlock()

	cur, gerr := s.store.Get(ctx, e.ID)
	if errors.Is(gerr, entries.ErrNotFound) {
		s.finish(e.ID)
		log.Info(ctx, "entry deleted during push, result discarded", "push_error", err)
		return nil
	}
	if gerr != nil {
		s.finish(e.ID)
		log.Error(ctx, "reload after push failed", "error", gerr)
		return nil
	}

	again := s.finish(e.ID)

	if err != nil {
		cur.SyncState = models.SyncStateFailed
		if again {
			cur.SyncState = models.SyncStatePending
		}
		cur.LastError = err.Error()
		s.write(ctx, cur)
		log.Warn(ctx, "push failed", "error", err, "retriable", client.IsRetriable(err))
		s.emit(ctx, models.Outcome{ID: e.ID, Status: models.OutcomeFailed, Message: err.Error(), At: s.now().UTC()})
		return nil
	}

	// A pulled remote timestamp may run ahead of the local clock; the fence
	// never moves backwards or the write is rejected as stale.
	now := s.now().UTC()
	fence := now
	if prev := cur.SyncedAt(); prev.After(fence) {
		fence = prev
	}
	cur.RemoteID = remoteID
	cur.LastSyncedAt = &fence
	cur.LastError = ""
	cur.SyncState = models.SyncStateSynced
	if again {
		cur.SyncState = models.SyncStatePending
	}
	s.write(ctx, cur)
	log.Info(ctx, "entry pushed", "remote_id", remoteID)
	s.emit(ctx, models.Outcome{ID: e.ID, Status: models.OutcomeSynced, At: now})
	return nil
}

// finish clears the pushing mark and reports whether a newer payload for
// the id is already queued.
func (s *Syncer) finish(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pushing, id)
	_, ok := s.queued[id]
	return ok
}

func (s *Syncer) write(ctx context.Context, e *models.Entry) {
	err := s.store.Put(ctx, e)
	switch {
	case errors.Is(err, entries.ErrStaleWrite):
		s.log.Warn(ctx, "stale write skipped", "id", e.ID)
	case err != nil:
		s.log.Error(ctx, "store write failed", "id", e.ID, "error", err)
	}
}

// push calls the remote, retrying transport errors with capped exponential
// backoff until maxAttempts calls have been made.
func (s *Syncer) push(ctx context.Context, e *models.Entry) (string, error) {
	b := retry.NewExponential(s.baseDelay)
	b = retry.WithCappedDuration(s.maxDelay, b)
	b = retry.WithMaxRetries(uint64(s.maxAttempts-1), b)

	var (
		remoteID string
		attempt  int
	)
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		id, err := s.remote.Push(ctx, e)
		if err == nil {
			remoteID = id
			return nil
		}
		err = client.Classify("push", err)
		if client.IsRetriable(err) && ctx.Err() == nil {
			s.log.Debug(ctx, "push attempt failed", "id", e.ID, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	return remoteID, err
}
