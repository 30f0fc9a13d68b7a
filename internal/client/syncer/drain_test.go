package syncer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/diarysync/internal/client/client"
	"github.com/dmitrijs2005/diarysync/internal/client/models"
	"github.com/dmitrijs2005/diarysync/internal/client/repositories/entries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrain_PushSucceeds(t *testing.T) {
	f := newFixture(t)
	f.remote.remoteIDs["e1"] = "r1"
	events, stop := f.s.Subscribe()
	defer stop()

	f.save(t, newEntry("e1", "hello"))
	require.NoError(t, f.s.Drain(context.Background()))

	got := f.get(t, "e1")
	assert.Equal(t, models.SyncStateSynced, got.SyncState)
	assert.Equal(t, "r1", got.RemoteID)
	require.NotNil(t, got.LastSyncedAt)
	assert.True(t, base.Equal(*got.LastSyncedAt))
	assert.Empty(t, got.LastError)

	assert.Equal(t, []models.Outcome{{ID: "e1", Status: models.OutcomeSynced, At: base}}, collect(events))
	assert.Empty(t, f.s.Pending())
}

func TestDrain_AuthErrorFailsOnceWithoutRetry(t *testing.T) {
	f := newFixture(t)
	f.remote.always = client.NewAuthError("push", errors.New("token revoked"))
	events, stop := f.s.Subscribe()
	defer stop()

	f.save(t, newEntry("e1", "hello"))
	require.NoError(t, f.s.Drain(context.Background()))

	got := f.get(t, "e1")
	assert.Equal(t, models.SyncStateFailed, got.SyncState)
	assert.Contains(t, got.LastError, "token revoked")
	assert.Nil(t, got.LastSyncedAt)

	evs := collect(events)
	require.Len(t, evs, 1)
	assert.Equal(t, models.OutcomeFailed, evs[0].Status)
	assert.Contains(t, evs[0].Message, "unauthorized")
	assert.Len(t, f.remote.Calls(), 1)
}

func TestDrain_ValidationErrorFailsImmediately(t *testing.T) {
	f := newFixture(t)
	f.remote.always = client.NewValidationError("push", errors.New("Date is not a property"))

	f.save(t, newEntry("e1", "hello"))
	require.NoError(t, f.s.Drain(context.Background()))

	assert.Equal(t, models.SyncStateFailed, f.get(t, "e1").SyncState)
	assert.Len(t, f.remote.Calls(), 1)
}

func TestDrain_UnclassifiedErrorIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.remote.always = errors.New("something odd")

	f.save(t, newEntry("e1", "hello"))
	require.NoError(t, f.s.Drain(context.Background()))

	assert.Equal(t, models.SyncStateFailed, f.get(t, "e1").SyncState)
	assert.Len(t, f.remote.Calls(), 1)
}

func TestDrain_TransportErrorExhaustsBudget(t *testing.T) {
	f := newFixture(t)
	f.remote.always = client.NewTransportError("push", errors.New("connection refused"))
	events, stop := f.s.Subscribe()
	defer stop()

	f.save(t, newEntry("e1", "hello"))
	require.NoError(t, f.s.Drain(context.Background()))

	assert.Len(t, f.remote.Calls(), 3)
	got := f.get(t, "e1")
	assert.Equal(t, models.SyncStateFailed, got.SyncState)
	assert.Contains(t, got.LastError, "connection refused")

	evs := collect(events)
	require.Len(t, evs, 1)
	assert.Equal(t, models.OutcomeFailed, evs[0].Status)
}

func TestDrain_TransportErrorRecovers(t *testing.T) {
	f := newFixture(t)
	terr := client.NewTransportError("push", errors.New("timeout"))
	f.remote.results = []error{terr, terr}
	events, stop := f.s.Subscribe()
	defer stop()

	f.save(t, newEntry("e1", "hello"))
	require.NoError(t, f.s.Drain(context.Background()))

	assert.Len(t, f.remote.Calls(), 3)
	assert.Equal(t, models.SyncStateSynced, f.get(t, "e1").SyncState)

	evs := collect(events)
	require.Len(t, evs, 1)
	assert.Equal(t, models.OutcomeSynced, evs[0].Status)
}

func TestDrain_DeadlineIsRetried(t *testing.T) {
	f := newFixture(t, WithMaxAttempts(2))
	f.remote.always = fmt.Errorf("post: %w", context.DeadlineExceeded)

	f.save(t, newEntry("e1", "hello"))
	require.NoError(t, f.s.Drain(context.Background()))

	assert.Len(t, f.remote.Calls(), 2)
}

func TestEnqueue_DuplicateSuppression(t *testing.T) {
	f := newFixture(t)

	first := newEntry("a", "v1")
	f.save(t, first)
	f.save(t, newEntry("b", "b1"))
	second := newEntry("a", "v2")
	f.save(t, second)

	assert.Equal(t, []string{"a", "b"}, f.s.Pending())
	require.NoError(t, f.s.Drain(context.Background()))

	calls := f.remote.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "a", calls[0].ID)
	assert.Equal(t, "v2", calls[0].Content)
	assert.Equal(t, "b", calls[1].ID)
}

func TestEnqueue_WhilePushingQueuesBehind(t *testing.T) {
	f := newFixture(t)
	f.remote.gate = make(chan struct{})
	f.remote.started = make(chan string, 4)

	f.save(t, newEntry("a", "v1"))

	done := make(chan error, 1)
	go func() { done <- f.s.Drain(context.Background()) }()
	require.Equal(t, "a", <-f.remote.started)

	assert.Equal(t, []string{"a"}, f.s.InFlight())
	f.save(t, newEntry("a", "v2"))
	assert.Equal(t, []string{"a"}, f.s.Pending())

	close(f.remote.gate)
	require.NoError(t, <-done)

	calls := f.remote.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "v1", calls[0].Content)
	assert.Equal(t, "v2", calls[1].Content)
	assert.Equal(t, "r-a", calls[1].RemoteID)
	assert.Equal(t, 1, f.remote.maxPerID)

	got := f.get(t, "a")
	assert.Equal(t, models.SyncStateSynced, got.SyncState)
	assert.Equal(t, "v2", got.Content)
}

func TestRun_NoConcurrentPushesForSameID(t *testing.T) {
	f := newFixture(t)
	f.remote.delay = 200 * time.Microsecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan struct{})
	go func() {
		_ = f.s.Run(ctx)
		close(runDone)
	}()

	ids := []string{"a", "b", "c", "d", "e"}
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(int64(w)))
			for i := 0; i < 50; i++ {
				id := ids[rnd.Intn(len(ids))]
				f.s.Enqueue(newEntry(id, fmt.Sprintf("w%d-%d", w, i)))
				if rnd.Intn(4) == 0 {
					time.Sleep(time.Duration(rnd.Intn(300)) * time.Microsecond)
				}
			}
		}(w)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return len(f.s.Pending()) == 0 && len(f.s.InFlight()) == 0
	}, 10*time.Second, 5*time.Millisecond)

	cancel()
	<-runDone

	f.remote.mu.Lock()
	defer f.remote.mu.Unlock()
	assert.Equal(t, 1, f.remote.maxPerID)
	assert.LessOrEqual(t, len(f.remote.calls), 400)
	assert.NotEmpty(t, f.remote.calls)
}

func TestCancel_QueuedEntry(t *testing.T) {
	f := newFixture(t)
	events, stop := f.s.Subscribe()
	defer stop()

	f.save(t, newEntry("e1", "hello"))
	require.NoError(t, f.s.Cancel(context.Background(), "e1"))

	got := f.get(t, "e1")
	assert.Equal(t, models.SyncStateFailed, got.SyncState)
	assert.Equal(t, CancelledMessage, got.LastError)

	evs := collect(events)
	require.Len(t, evs, 1)
	assert.Equal(t, models.Outcome{ID: "e1", Status: models.OutcomeFailed, Message: CancelledMessage, At: base}, evs[0])

	require.NoError(t, f.s.Drain(context.Background()))
	assert.Empty(t, f.remote.Calls())

	assert.ErrorIs(t, f.s.Cancel(context.Background(), "e1"), ErrNotQueued)
}

func TestCancel_InFlightIsNotCancellable(t *testing.T) {
	f := newFixture(t)
	f.remote.gate = make(chan struct{})
	f.remote.started = make(chan string, 1)

	f.save(t, newEntry("e1", "hello"))
	done := make(chan error, 1)
	go func() { done <- f.s.Drain(context.Background()) }()
	<-f.remote.started

	assert.ErrorIs(t, f.s.Cancel(context.Background(), "e1"), ErrNotQueued)

	close(f.remote.gate)
	require.NoError(t, <-done)
	assert.Equal(t, models.SyncStateSynced, f.get(t, "e1").SyncState)
}

func TestDelete_DuringPushDiscardsResult(t *testing.T) {
	f := newFixture(t)
	f.remote.gate = make(chan struct{})
	f.remote.started = make(chan string, 1)
	events, stop := f.s.Subscribe()
	defer stop()

	f.save(t, newEntry("e1", "hello"))
	done := make(chan error, 1)
	go func() { done <- f.s.Drain(context.Background()) }()
	<-f.remote.started

	require.NoError(t, f.s.Delete(context.Background(), "e1"))
	close(f.remote.gate)
	require.NoError(t, <-done)

	_, err := f.store.Get(context.Background(), "e1")
	assert.ErrorIs(t, err, entries.ErrNotFound)
	assert.Empty(t, collect(events))
}

func TestDrain_ContextCancelRequeues(t *testing.T) {
	f := newFixture(t)
	f.remote.gate = make(chan struct{})
	f.remote.started = make(chan string, 1)
	events, stop := f.s.Subscribe()
	defer stop()

	f.save(t, newEntry("e1", "hello"))
	f.save(t, newEntry("e2", "world"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.s.Drain(ctx) }()
	<-f.remote.started
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []string{"e1", "e2"}, f.s.Pending())
	assert.Empty(t, f.s.InFlight())
	assert.Empty(t, collect(events))
	assert.Equal(t, models.SyncStatePending, f.get(t, "e1").SyncState)
}

func TestSubscribe_SlowSubscriberDoesNotBlock(t *testing.T) {
	f := newFixture(t, WithEventBuffer(1))
	slow, stopSlow := f.s.Subscribe()
	fast, stopFast := f.s.Subscribe()
	defer stopFast()

	var got []models.Outcome
	var mu sync.Mutex
	go func() {
		for o := range fast {
			mu.Lock()
			got = append(got, o)
			mu.Unlock()
		}
	}()

	for _, id := range []string{"a", "b", "c"} {
		f.save(t, newEntry(id, id))
	}
	require.NoError(t, f.s.Drain(context.Background()))

	assert.Len(t, collect(slow), 1)
	stopSlow()
	stopSlow()
	_, open := <-slow
	assert.False(t, open)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 1
	}, time.Second, time.Millisecond)
}

func TestRecover_QueuesPendingOldestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	older := newEntry("old", "x")
	older.CreatedAt = base.Add(-time.Hour)
	require.NoError(t, f.store.Put(ctx, older))
	require.NoError(t, f.store.Put(ctx, newEntry("new", "y")))
	synced := newEntry("done", "z")
	synced.SyncState = models.SyncStateSynced
	require.NoError(t, f.store.Put(ctx, synced))

	n, err := f.s.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"old", "new"}, f.s.Pending())
}

func TestUpdate_RequeuesAndKeepsFence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.save(t, newEntry("e1", "v1"))
	require.NoError(t, f.s.Drain(ctx))

	f.clock.Set(base.Add(time.Minute))
	e, err := f.s.Update(ctx, "e1", func(e *models.Entry) error {
		e.Content = "v2"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatePending, e.SyncState)
	assert.Equal(t, []string{"e1"}, f.s.Pending())

	got := f.get(t, "e1")
	assert.Equal(t, "v2", got.Content)
	assert.Equal(t, "r-e1", got.RemoteID)

	require.NoError(t, f.s.Drain(ctx))
	calls := f.remote.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "r-e1", calls[1].RemoteID)

	boom := errors.New("nope")
	_, err = f.s.Update(ctx, "e1", func(*models.Entry) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, f.s.Pending())
}

func TestDrain_FenceNeverMovesBehindPulledRemoteTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	events, stop := f.s.Subscribe()
	defer stop()

	// The remote clock runs an hour ahead of ours.
	ahead := base.Add(time.Hour)
	f.remote.records = []models.RemoteRecord{{RemoteID: "r-e1", LocalID: "e1", Content: "remote", Date: base, ModifiedAt: ahead}}
	_, err := f.s.Pull(ctx, models.PullFilter{})
	require.NoError(t, err)

	f.clock.Set(base.Add(time.Minute))
	_, err = f.s.Update(ctx, "e1", func(e *models.Entry) error {
		e.Content = "edit"
		e.UpdatedAt = base.Add(time.Minute)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, f.s.Drain(ctx))

	got := f.get(t, "e1")
	assert.Equal(t, "edit", got.Content)
	assert.Equal(t, models.SyncStateSynced, got.SyncState)
	require.NotNil(t, got.LastSyncedAt)
	assert.True(t, ahead.Equal(*got.LastSyncedAt))
	assert.Empty(t, f.s.Pending())

	out := collect(events)
	require.Len(t, out, 1)
	assert.Equal(t, models.OutcomeSynced, out[0].Status)
}
