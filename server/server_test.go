package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/hndaily/store"
)

type recordingRunner struct {
	mu     sync.Mutex
	dates  []string
	err    error
	ran    chan struct{}
	resetN int
}

func (r *recordingRunner) RunOnce(_ context.Context, date string) error {
	r.mu.Lock()
	r.dates = append(r.dates, date)
	r.mu.Unlock()
	if r.ran != nil {
		close(r.ran)
	}
	return r.err
}

func (r *recordingRunner) RetryFailed(context.Context, string) (int, error) {
	return r.resetN, r.err
}

func (r *recordingRunner) lastDate() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.dates) == 0 {
		return ""
	}
	return r.dates[len(r.dates)-1]
}

type stubSnapshots struct {
	snap *store.Snapshot
	err  error
}

func (s *stubSnapshots) GetSnapshot(context.Context, string) (*store.Snapshot, error) {
	return s.snap, s.err
}

func fixedClock() time.Time {
	return time.Date(2025, 1, 16, 3, 0, 0, 0, time.UTC)
}

func newTestServer(runner *recordingRunner, snapshots *stubSnapshots) *httptest.Server {
	s := New(runner, snapshots, ":0", WithClock(fixedClock))
	return httptest.NewServer(s.Router())
}

func TestBanner(t *testing.T) {
	srv := newTestServer(&recordingRunner{}, &stubSnapshots{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTriggerAsync(t *testing.T) {
	runner := &recordingRunner{ran: make(chan struct{})}
	srv := newTestServer(runner, &stubSnapshots{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/trigger-export", "application/json", strings.NewReader(`{"date": "2025-01-10"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("background trigger never ran")
	}
	assert.Equal(t, "2025-01-10", runner.lastDate())
}

func TestTriggerSyncDefaultsToPreviousDay(t *testing.T) {
	runner := &recordingRunner{}
	srv := newTestServer(runner, &stubSnapshots{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/trigger-export-sync", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2025-01-15", runner.lastDate())
}

func TestTriggerSyncReportsFailure(t *testing.T) {
	runner := &recordingRunner{err: errors.New("database unavailable")}
	srv := newTestServer(runner, &stubSnapshots{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/trigger-export-sync", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "database unavailable")
}

func TestTriggerRejectsBadDate(t *testing.T) {
	runner := &recordingRunner{}
	srv := newTestServer(runner, &stubSnapshots{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/trigger-export-sync", "application/json", strings.NewReader(`{"date": "15/01/2025"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, runner.lastDate())
}

func TestTaskStatus(t *testing.T) {
	snapshots := &stubSnapshots{snap: &store.Snapshot{
		Task:   store.Task{Date: "2025-01-15", Status: store.TaskProcessing, TotalArticles: 12},
		Counts: store.Counts{Pending: 2, Completed: 10},
	}}
	srv := newTestServer(&recordingRunner{}, snapshots)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/task-status?date=2025-01-15")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Status string         `json:"status"`
		Counts map[string]int `json:"counts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, store.TaskProcessing, body.Status)
	assert.Equal(t, 10, body.Counts["completed"])
}

func TestTaskStatusUnknownDate(t *testing.T) {
	snapshots := &stubSnapshots{err: store.ErrTaskNotFound}
	srv := newTestServer(&recordingRunner{}, snapshots)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/task-status?date=1999-01-01")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRetryFailedEndpoint(t *testing.T) {
	runner := &recordingRunner{resetN: 3}
	srv := newTestServer(runner, &stubSnapshots{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/retry-failed-tasks", "application/json", strings.NewReader(`{"date": "2025-01-15"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(3), body["reset"])
}

func TestUnknownPath(t *testing.T) {
	srv := newTestServer(&recordingRunner{}, &stubSnapshots{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&recordingRunner{}, &stubSnapshots{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
