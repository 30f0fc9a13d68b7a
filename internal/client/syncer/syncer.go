package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/diarysync/internal/client/client"
	"github.com/dmitrijs2005/diarysync/internal/client/models"
	"github.com/dmitrijs2005/diarysync/internal/client/repositories/entries"
	"github.com/dmitrijs2005/diarysync/internal/logging"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 10 * time.Second
	DefaultEventBuffer = 64

	// CancelledMessage is stored as LastError of an entry whose queued push
	// was cancelled.
	CancelledMessage = "sync cancelled"
)

var ErrNotQueued = errors.New("entry is not queued")

type item struct {
	entry *models.Entry
}

// Syncer owns the push queue and reconciles pulled records.
type Syncer struct {
	store  entries.Repository
	remote client.Remote
	log    logging.Logger
	now    func() time.Time

	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	eventBuffer int

	// mu guards queue, queued and pushing.
	mu      sync.Mutex
	queue   []*item
	queued  map[string]*item
	pushing map[string]bool
	wake    chan struct{}

	// drainMu keeps a single worker.
	drainMu sync.Mutex

	locks *keyedMutex

	subMu   sync.Mutex
	subs    map[int]chan models.Outcome
	nextSub int
}

type Option func(*Syncer)

// WithMaxAttempts sets the number of push attempts for transport failures,
// the first one included.
func WithMaxAttempts(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithBackoff(base, limit time.Duration) Option {
	return func(s *Syncer) {
		if base > 0 {
			s.baseDelay = base
		}
		if limit > 0 {
			s.maxDelay = limit
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

func WithEventBuffer(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.eventBuffer = n
		}
	}
}

func New(store entries.Repository, remote client.Remote, logger logging.Logger, opts ...Option) *Syncer {
	s := &Syncer{
		store:       store,
		remote:      remote,
		log:         logger.With("module", "syncer"),
		now:         time.Now,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		maxDelay:    DefaultMaxDelay,
		eventBuffer: DefaultEventBuffer,
		queued:      map[string]*item{},
		pushing:     map[string]bool{},
		wake:        make(chan struct{}, 1),
		locks:       newKeyedMutex(),
		subs:        map[int]chan models.Outcome{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enqueue schedules e for a push. If e.ID is already waiting, its payload is
// replaced and it keeps its queue position. If e.ID is being pushed right
// now, e goes to the back of the queue and is pushed after the current push
// ends.
func (s *Syncer) Enqueue(e *models.Entry) {
	s.mu.Lock()
	if it, ok := s.queued[e.ID]; ok {
		it.entry = e.Clone()
	} else {
		it := &item{entry: e.Clone()}
		s.queue = append(s.queue, it)
		s.queued[e.ID] = it
	}
	s.mu.Unlock()

	s.notify()
}

func (s *Syncer) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Save writes e as pending and queues it.
func (s *Syncer) Save(ctx context.Context, e *models.Entry) error {
	unlock := s.locks.Lock(e.ID)
	defer unlock()

	e.SyncState = models.SyncStatePending
	if err := s.store.Put(ctx, e); err != nil {
		return err
	}
	s.Enqueue(e)
	return nil
}

// Update applies fn to the stored entry under its lock, marks it pending,
// writes it back and queues it. An error from fn aborts without writing.
func (s *Syncer) Update(ctx context.Context, id string, fn func(e *models.Entry) error) (*models.Entry, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(e); err != nil {
		return nil, err
	}
	e.SyncState = models.SyncStatePending
	e.LastError = ""
	if err := s.store.Put(ctx, e); err != nil {
		return nil, err
	}
	s.Enqueue(e)
	return e, nil
}

// Delete removes the entry locally and drops any queued push. A push that is
// already in flight completes, but its result is discarded.
func (s *Syncer) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	s.dequeue(id)
	return s.store.Delete(ctx, id)
}

// Cancel removes a queued id that is not being pushed. The stored entry is
// marked failed so it can be retried later, and one failed outcome is
// emitted.
func (s *Syncer) Cancel(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if !s.dequeue(id) {
		return ErrNotQueued
	}

	e, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	e.SyncState = models.SyncStateFailed
	e.LastError = CancelledMessage
	if err := s.store.Put(ctx, e); err != nil && !errors.Is(err, entries.ErrStaleWrite) {
		return fmt.Errorf("mark cancelled: %w", err)
	}

	s.log.Info(ctx, "push cancelled", "id", id)
	s.emit(ctx, models.Outcome{ID: id, Status: models.OutcomeFailed, Message: CancelledMessage, At: s.now().UTC()})
	return nil
}

// dequeue drops a waiting id from the queue and reports whether it was there.
func (s *Syncer) dequeue(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dequeueLocked(id)
}

func (s *Syncer) dequeueLocked(id string) bool {
	it, ok := s.queued[id]
	if !ok {
		return false
	}
	delete(s.queued, id)
	for i, q := range s.queue {
		if q == it {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	return true
}

// Pending returns the waiting ids in push order.
func (s *Syncer) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.queue))
	for _, it := range s.queue {
		ids = append(ids, it.entry.ID)
	}
	return ids
}

// InFlight returns the id being pushed, if any.
func (s *Syncer) InFlight() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.pushing))
	for id := range s.pushing {
		ids = append(ids, id)
	}
	return ids
}

// dequeueUnlessPushing drops a queued payload for id unless a push for id is
// in flight. Both checks happen under one lock so pop cannot claim the item
// in between.
func (s *Syncer) dequeueUnlessPushing(id string) (pushing, dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pushing[id] {
		return true, false
	}
	return false, s.dequeueLocked(id)
}

// Recover queues every stored pending entry, oldest first. It is meant for
// startup, after a crash or a shutdown with a non-empty queue.
func (s *Syncer) Recover(ctx context.Context) (int, error) {
	pending, err := s.store.ListByState(ctx, models.SyncStatePending)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}
	for _, e := range pending {
		s.Enqueue(e)
	}
	if len(pending) > 0 {
		s.log.Info(ctx, "recovered pending entries", "count", len(pending))
	}
	return len(pending), nil
}
