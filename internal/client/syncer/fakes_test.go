package syncer

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/diarysync/internal/client/migrations"
	"github.com/dmitrijs2005/diarysync/internal/client/models"
	"github.com/dmitrijs2005/diarysync/internal/client/repositories/entries"
	"github.com/dmitrijs2005/diarysync/internal/logging"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

var base = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// fakeRemote records push calls. Errors in results are returned by
// successive calls, then always is returned. A non-nil gate makes Push wait
// until the gate is closed or ctx ends.
type fakeRemote struct {
	mu        sync.Mutex
	calls     []models.Entry
	results   []error
	always    error
	remoteIDs map[string]string
	gate      chan struct{}
	started   chan string
	delay     time.Duration

	inflight map[string]int
	maxPerID int

	records []models.RemoteRecord
	pullErr error
	pulls   []models.PullFilter
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{inflight: map[string]int{}, remoteIDs: map[string]string{}}
}

func (f *fakeRemote) Push(ctx context.Context, e *models.Entry) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, *e.Clone())
	f.inflight[e.ID]++
	f.maxPerID = max(f.maxPerID, f.inflight[e.ID])
	err := f.always
	if len(f.results) > 0 {
		err, f.results = f.results[0], f.results[1:]
	}
	gate, started, delay := f.gate, f.started, f.delay
	rid, ok := f.remoteIDs[e.ID]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight[e.ID]--
		f.mu.Unlock()
	}()

	if started != nil {
		started <- e.ID
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return "", err
	}
	if !ok {
		rid = "r-" + e.ID
	}
	return rid, nil
}

func (f *fakeRemote) Pull(ctx context.Context, pf models.PullFilter) ([]models.RemoteRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls = append(f.pulls, pf)
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	return append([]models.RemoteRecord(nil), f.records...), nil
}

func (f *fakeRemote) Close() error { return nil }

func (f *fakeRemote) Calls() []models.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Entry(nil), f.calls...)
}

func newStore(t *testing.T) *entries.SQLiteRepository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))
	return entries.NewSQLiteRepository(db)
}

type fixture struct {
	store  *entries.SQLiteRepository
	remote *fakeRemote
	clock  *testClock
	s      *Syncer
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:  newStore(t),
		remote: newFakeRemote(),
		clock:  &testClock{t: base},
	}
	opts = append([]Option{
		WithBackoff(time.Millisecond, 2*time.Millisecond),
		WithClock(f.clock.Now),
	}, opts...)
	f.s = New(f.store, f.remote, logging.Discard(), opts...)
	return f
}

func newEntry(id, content string) *models.Entry {
	return &models.Entry{
		ID:        id,
		Title:     "title " + id,
		Content:   content,
		CreatedAt: base,
		UpdatedAt: base,
		SyncState: models.SyncStatePending,
	}
}

func (f *fixture) save(t *testing.T, e *models.Entry) {
	t.Helper()
	require.NoError(t, f.s.Save(context.Background(), e))
}

func (f *fixture) get(t *testing.T, id string) *models.Entry {
	t.Helper()
	e, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return e
}

// collect returns every outcome already delivered on ch.
func collect(ch <-chan models.Outcome) []models.Outcome {
	var out []models.Outcome
	for {
		select {
		case o := <-ch:
			out = append(out, o)
		default:
			return out
		}
	}
}
