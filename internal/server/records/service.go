package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/diarysync/internal/logging"
)

const maxListLimit = 1000

var ErrInvalid = errors.New("invalid record")

type PutInput struct {
	LocalID string    `validate:"required,max=200"`
	Title   string    `validate:"max=200"`
	Content string    `validate:"required,max=100000"`
	Date    time.Time `validate:"-"`
}

type Service struct {
	repo     Repository
	validate *validator.Validate
	log      logging.Logger
	now      func() time.Time
}

func NewService(repo Repository, logger logging.Logger) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
		log:      logger.With("module", "records"),
		now:      time.Now,
	}
}

// Put stores the record for userID and returns it with its remote id and
// the server modification time. The remote id is keyed by the local id, so
// pushing the same entry again updates it in place.
func (s *Service) Put(ctx context.Context, userID string, in PutInput) (*Record, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, invalid(err)
	}

	rec := &Record{
		UserID:   userID,
		RemoteID: uuid.NewString(),
		LocalID:  in.LocalID,
		Title:    in.Title,
		Content:  in.Content,
		Date:     in.Date.UTC(),
		// PostgreSQL keeps microseconds.
		ModifiedAt: s.now().UTC().Truncate(time.Microsecond),
	}

	remoteID, err := s.repo.Upsert(ctx, rec)
	if err != nil {
		return nil, err
	}
	rec.RemoteID = remoteID

	s.log.Debug(ctx, "record stored", "user", userID, "local_id", rec.LocalID, "remote_id", remoteID)
	return rec, nil
}

// List returns one page of records after the cursor, oldest first, and
// whether more follow. Limits above 1000, and zero, are capped at 1000.
func (s *Service) List(ctx context.Context, userID string, after Cursor, limit int) ([]*Record, bool, error) {
	if limit < 0 {
		return nil, false, fmt.Errorf("%w: negative limit", ErrInvalid)
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	recs, err := s.repo.List(ctx, userID, after, limit+1)
	if err != nil {
		return nil, false, err
	}
	if len(recs) > limit {
		return recs[:limit], true, nil
	}
	return recs, false, nil
}

func invalid(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, ", "))
}
