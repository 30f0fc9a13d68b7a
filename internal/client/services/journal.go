package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/diarysync/internal/client/client"
	"github.com/dmitrijs2005/diarysync/internal/client/models"
	"github.com/dmitrijs2005/diarysync/internal/client/repositories/entries"
	"github.com/dmitrijs2005/diarysync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/diarysync/internal/client/syncer"
	"github.com/dmitrijs2005/diarysync/internal/logging"
)

// pullOverlap is subtracted from the pull cursor so records written during
// the previous pull, or stamped by a remote clock running slightly behind
// ours, are read again. Applying a record twice is a no-op.
const pullOverlap = time.Minute

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFailed    = errors.New("entry has not failed")
	ErrNotQueued    = syncer.ErrNotQueued
	ErrNotFound     = entries.ErrNotFound
	ErrNotSupported = errors.New("not supported by the configured remote")
)

type SubmitInput struct {
	Title   string `json:"title" validate:"max=200"`
	Content string `json:"content" validate:"required,max=100000"`
}

type EditInput struct {
	Title   *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Content string  `json:"content" validate:"required,max=100000"`
}

type QueueStatus struct {
	Queued   []string `json:"queued"`
	InFlight []string `json:"in_flight"`
}

// JournalService is what the presentation surfaces use. None of its methods
// talk to the remote except PullChanges, SyncNow, Verify and Provision.
type JournalService interface {
	Submit(ctx context.Context, in SubmitInput) (*models.Entry, error)
	Edit(ctx context.Context, id string, in EditInput) (*models.Entry, error)
	Retry(ctx context.Context, id string) (*models.Entry, error)
	Cancel(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Entry, error)
	Get(ctx context.Context, id string) (*models.Entry, error)
	PullChanges(ctx context.Context) (models.PullResult, error)
	SyncNow(ctx context.Context) error
	Status() QueueStatus
	Events() (<-chan models.Outcome, func())
	Verify(ctx context.Context) error
	Provision(ctx context.Context, parent string) (string, error)
}

type journalService struct {
	syncer   *syncer.Syncer
	store    entries.Repository
	meta     metadata.Repository
	remote   client.Remote
	validate *validator.Validate
	log      logging.Logger
	now      func() time.Time
}

type Option func(*journalService)

func WithClock(now func() time.Time) Option {
	return func(s *journalService) { s.now = now }
}

func NewJournalService(s *syncer.Syncer, store entries.Repository, meta metadata.Repository, remote client.Remote, logger logging.Logger, opts ...Option) JournalService {
	js := &journalService{
		syncer:   s,
		store:    store,
		meta:     meta,
		remote:   remote,
		validate: validator.New(),
		log:      logger.With("module", "journal"),
		now:      time.Now,
	}
	for _, o := range opts {
		o(js)
	}
	return js
}

func (s *journalService) Submit(ctx context.Context, in SubmitInput) (*models.Entry, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if err := s.check(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	e := &models.Entry{
		ID:        uuid.NewString(),
		Title:     in.Title,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
		SyncState: models.SyncStatePending,
	}
	if e.Title == "" {
		e.Title = models.DefaultTitle(now)
	}

	if err := s.syncer.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("error saving entry: %w", err)
	}
	s.log.Info(ctx, "entry submitted", "id", e.ID)
	return e, nil
}

func (s *journalService) Edit(ctx context.Context, id string, in EditInput) (*models.Entry, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		in.Title = &t
	}
	if err := s.check(in); err != nil {
		return nil, err
	}

	e, err := s.syncer.Update(ctx, id, func(e *models.Entry) error {
		e.Content = in.Content
		if in.Title != nil {
			e.Title = *in.Title
		}
		e.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error editing entry: %w", err)
	}
	return e, nil
}

func (s *journalService) Retry(ctx context.Context, id string) (*models.Entry, error) {
	e, err := s.syncer.Update(ctx, id, func(e *models.Entry) error {
		if e.SyncState != models.SyncStateFailed {
			return ErrNotFailed
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error retrying entry: %w", err)
	}
	s.log.Info(ctx, "entry requeued", "id", id)
	return e, nil
}

func (s *journalService) Cancel(ctx context.Context, id string) error {
	if err := s.syncer.Cancel(ctx, id); err != nil {
		return fmt.Errorf("error cancelling push: %w", err)
	}
	return nil
}

func (s *journalService) Delete(ctx context.Context, id string) error {
	if err := s.syncer.Delete(ctx, id); err != nil {
		return fmt.Errorf("error deleting entry: %w", err)
	}
	return nil
}

func (s *journalService) List(ctx context.Context) ([]*models.Entry, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing entries: %w", err)
	}
	return list, nil
}

func (s *journalService) Get(ctx context.Context, id string) (*models.Entry, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error retrieving entry: %w", err)
	}
	return e, nil
}

// PullChanges pulls everything modified since the last successful pull and
// moves the cursor forward.
func (s *journalService) PullChanges(ctx context.Context) (models.PullResult, error) {
	started := s.now().UTC()

	cursor, err := s.meta.PullCursor(ctx)
	if err != nil {
		return models.PullResult{}, fmt.Errorf("error reading pull cursor: %w", err)
	}
	since := cursor
	if !since.IsZero() {
		since = since.Add(-pullOverlap)
	}

	res, err := s.syncer.Pull(ctx, models.PullFilter{Since: since})
	if err != nil {
		return res, err
	}
	if err := s.meta.SetPullCursor(ctx, started); err != nil {
		return res, fmt.Errorf("error saving pull cursor: %w", err)
	}
	return res, nil
}

func (s *journalService) SyncNow(ctx context.Context) error {
	return s.syncer.Drain(ctx)
}

func (s *journalService) Status() QueueStatus {
	return QueueStatus{Queued: s.syncer.Pending(), InFlight: s.syncer.InFlight()}
}

func (s *journalService) Events() (<-chan models.Outcome, func()) {
	return s.syncer.Subscribe()
}

func (s *journalService) Verify(ctx context.Context) error {
	v, ok := s.remote.(client.Verifier)
	if !ok {
		return ErrNotSupported
	}
	return v.Verify(ctx)
}

func (s *journalService) Provision(ctx context.Context, parent string) (string, error) {
	p, ok := s.remote.(client.Provisioner)
	if !ok {
		return "", ErrNotSupported
	}
	id, err := p.Provision(ctx, parent)
	if err != nil {
		return "", err
	}
	s.log.Info(ctx, "remote provisioned", "id", id)
	return id, nil
}

func (s *journalService) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, strings.ToLower(fe.Field())+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s is longer than %s characters", strings.ToLower(fe.Field()), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s fails %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, ", "))
}
