// Package httpapi exposes the journal service over a small local HTTP API,
// with a WebSocket stream of push outcomes.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/diarysync/internal/client/services"
	"github.com/dmitrijs2005/diarysync/internal/logging"
)

const (
	shutdownTimeout = 5 * time.Second
	maxBodyBytes    = 1 << 20
)

type Server struct {
	addr     string
	journal  services.JournalService
	log      logging.Logger
	upgrader websocket.Upgrader

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewServer(addr string, journal services.JournalService, logger logging.Logger) *Server {
	return &Server{
		addr:    addr,
		journal: journal,
		log:     logger.With("module", "httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		writeWait:  10 * time.Second,
		pongWait:   60 * time.Second,
		pingPeriod: 54 * time.Second,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/entries", s.listEntries).Methods(http.MethodGet)
	api.HandleFunc("/entries", s.submitEntry).Methods(http.MethodPost)
	api.HandleFunc("/entries/{id}", s.getEntry).Methods(http.MethodGet)
	api.HandleFunc("/entries/{id}", s.editEntry).Methods(http.MethodPut)
	api.HandleFunc("/entries/{id}", s.deleteEntry).Methods(http.MethodDelete)
	api.HandleFunc("/entries/{id}/retry", s.retryEntry).Methods(http.MethodPost)
	api.HandleFunc("/queue", s.queueStatus).Methods(http.MethodGet)
	api.HandleFunc("/queue/{id}", s.cancelPush).Methods(http.MethodDelete)
	api.HandleFunc("/sync", s.syncNow).Methods(http.MethodPost)
	api.HandleFunc("/pull", s.pull).Methods(http.MethodPost)
	api.HandleFunc("/events", s.events).Methods(http.MethodGet)

	return r
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "http api listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info(ctx, "http api stopped")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug(r.Context(), "http request", "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
	})
}
