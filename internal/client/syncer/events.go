package syncer

import (
	"context"

	"github.com/dmitrijs2005/diarysync/internal/client/models"
)

// Subscribe returns a channel of push outcomes and a function that ends the
// subscription and closes the channel. A subscriber that falls behind by
// more than the buffer loses events rather than blocking the worker.
func (s *Syncer) Subscribe() (<-chan models.Outcome, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan models.Outcome, s.eventBuffer)
	s.subs[id] = ch

	var once bool
	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if once {
			return
		}
		once = true
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Syncer) emit(ctx context.Context, o models.Outcome) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for id, ch := range s.subs {
		select {
		case ch <- o:
		default:
			s.log.Warn(ctx, "event dropped, subscriber is full", "subscriber", id, "id", o.ID, "outcome", o.Status)
		}
	}
}
