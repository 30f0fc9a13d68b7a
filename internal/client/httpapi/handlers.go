package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/diarysync/internal/client/services"
)

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	list, err := s.journal.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) submitEntry(w http.ResponseWriter, r *http.Request) {
	var in services.SubmitInput
	if !decode(w, r, &in) {
		return
	}
	e, err := s.journal.Submit(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.journal.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) editEntry(w http.ResponseWriter, r *http.Request) {
	var in services.EditInput
	if !decode(w, r, &in) {
		return
	}
	e, err := s.journal.Edit(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.journal.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) retryEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.journal.Retry(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, e)
}

func (s *Server) queueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.journal.Status())
}

func (s *Server) cancelPush(w http.ResponseWriter, r *http.Request) {
	if err := s.journal.Cancel(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) syncNow(w http.ResponseWriter, r *http.Request) {
	if err := s.journal.SyncNow(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.journal.Status())
}

func (s *Server) pull(w http.ResponseWriter, r *http.Request) {
	res, err := s.journal.PullChanges(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request payload"})
		return false
	}
	return true
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotFailed), errors.Is(err, services.ErrNotQueued):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
