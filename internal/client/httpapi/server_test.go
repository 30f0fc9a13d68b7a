package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/diarysync/internal/client/models"
	"github.com/dmitrijs2005/diarysync/internal/client/services"
	"github.com/dmitrijs2005/diarysync/internal/logging"
)

type fakeJournal struct {
	services.JournalService

	entries   map[string]*models.Entry
	submitted []services.SubmitInput
	edits     []services.EditInput
	syncs     int
	pullRes   models.PullResult
	err       error
	events    chan models.Outcome
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{
		entries: map[string]*models.Entry{
			"a": {ID: "a", Title: "first", Content: "hello", SyncState: models.SyncStateFailed},
		},
		events: make(chan models.Outcome, 1),
	}
}

func (f *fakeJournal) Submit(ctx context.Context, in services.SubmitInput) (*models.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.submitted = append(f.submitted, in)
	return &models.Entry{ID: "new", Title: in.Title, Content: in.Content, SyncState: models.SyncStatePending}, nil
}

func (f *fakeJournal) Edit(ctx context.Context, id string, in services.EditInput) (*models.Entry, error) {
	e, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	f.edits = append(f.edits, in)
	e.Content = in.Content
	return e, nil
}

func (f *fakeJournal) Get(ctx context.Context, id string) (*models.Entry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, fmt.Errorf("error retrieving entry: %w", services.ErrNotFound)
	}
	return e, nil
}

func (f *fakeJournal) List(ctx context.Context) ([]*models.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*models.Entry{f.entries["a"]}, nil
}

func (f *fakeJournal) Retry(ctx context.Context, id string) (*models.Entry, error) {
	e, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.SyncState != models.SyncStateFailed {
		return nil, services.ErrNotFailed
	}
	e.SyncState = models.SyncStatePending
	return e, nil
}

func (f *fakeJournal) Cancel(ctx context.Context, id string) error {
	if id != "a" {
		return fmt.Errorf("error cancelling push: %w", services.ErrNotQueued)
	}
	return nil
}

func (f *fakeJournal) Delete(ctx context.Context, id string) error {
	if _, err := f.Get(ctx, id); err != nil {
		return err
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeJournal) SyncNow(ctx context.Context) error {
	f.syncs++
	return f.err
}

func (f *fakeJournal) PullChanges(ctx context.Context) (models.PullResult, error) {
	return f.pullRes, f.err
}

func (f *fakeJournal) Status() services.QueueStatus {
	return services.QueueStatus{Queued: []string{"a"}, InFlight: []string{}}
}

func (f *fakeJournal) Events() (<-chan models.Outcome, func()) {
	return f.events, func() {}
}

func newTestServer(t *testing.T, j *fakeJournal) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer("", j, logging.Discard()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestEntriesRoutes(t *testing.T) {
	j := newFakeJournal()
	srv := newTestServer(t, j)
	base := srv.URL + "/api/v1"

	resp, body := do(t, http.MethodGet, base+"/entries", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var list []models.Entry
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "first", list[0].Title)

	resp, body = do(t, http.MethodPost, base+"/entries", `{"title":"t","content":"c"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, string(body), `"sync_state":"pending"`)
	assert.Equal(t, []services.SubmitInput{{Title: "t", Content: "c"}}, j.submitted)

	resp, _ = do(t, http.MethodGet, base+"/entries/a", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, http.MethodPut, base+"/entries/a", `{"content":"edited"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"content":"edited"`)

	resp, _ = do(t, http.MethodPost, base+"/entries/a/retry", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, body = do(t, http.MethodPost, base+"/entries/a/retry", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.JSONEq(t, `{"error":"entry has not failed"}`, string(body))

	resp, _ = do(t, http.MethodDelete, base+"/entries/a", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, http.MethodGet, base+"/entries/a", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "not found")
}

func TestQueueAndSyncRoutes(t *testing.T) {
	j := newFakeJournal()
	j.pullRes = models.PullResult{Created: 2, Skipped: 1}
	srv := newTestServer(t, j)
	base := srv.URL + "/api/v1"

	resp, body := do(t, http.MethodGet, base+"/queue", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"queued":["a"],"in_flight":[]}`, string(body))

	resp, _ = do(t, http.MethodDelete, base+"/queue/a", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, base+"/queue/zzz", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, base+"/sync", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, j.syncs)

	resp, body = do(t, http.MethodPost, base+"/pull", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"created":2,"updated":0,"skipped":1}`, string(body))
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		method string
		path   string
		body   string
		status int
		want   string
	}{
		{name: "bad json", method: http.MethodPost, path: "/entries", body: `{`, status: http.StatusBadRequest, want: "invalid request payload"},
		{name: "unknown field", method: http.MethodPost, path: "/entries", body: `{"text":"x"}`, status: http.StatusBadRequest, want: "invalid request payload"},
		{name: "validation", err: fmt.Errorf("%w: content is required", services.ErrInvalidInput), method: http.MethodPost, path: "/entries", body: `{}`, status: http.StatusBadRequest, want: "content is required"},
		{name: "internal", err: fmt.Errorf("disk on fire"), method: http.MethodGet, path: "/entries", status: http.StatusInternalServerError, want: "Internal Server Error"},
		{name: "wrong method", method: http.MethodPatch, path: "/entries", status: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := newFakeJournal()
			j.err = tt.err
			srv := newTestServer(t, j)

			resp, body := do(t, tt.method, srv.URL+"/api/v1"+tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.want != "" {
				assert.Contains(t, string(body), tt.want)
				assert.NotContains(t, string(body), "disk on fire")
			}
		})
	}
}

func TestEventsStream(t *testing.T) {
	j := newFakeJournal()
	srv := newTestServer(t, j)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	j.events <- models.Outcome{ID: "a", Status: models.OutcomeFailed, Message: "remote rejected entry", At: at}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var got models.Outcome
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, models.OutcomeFailed, got.Status)
	assert.Equal(t, "remote rejected entry", got.Message)
	assert.True(t, at.Equal(got.At))
}

func TestEventsStream_Ping(t *testing.T) {
	j := newFakeJournal()
	s := NewServer("", j, logging.Discard())
	s.pingPeriod = 10 * time.Millisecond
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(5 * time.Second):
		t.Fatal("no ping received")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", newFakeJournal(), logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
