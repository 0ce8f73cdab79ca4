package publish

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/hndaily/fetch"
)

// fakeGitHub serves the contents API for a single repo, recording PUTs.
type fakeGitHub struct {
	existing map[string]bool
	puts     []string
	bodies   map[string]string
	status   int
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{existing: map[string]bool{}, bodies: map[string]string{}}
}

func (f *fakeGitHub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if f.existing[r.URL.Path] {
				w.Write([]byte(`{"sha": "abc123"}`))
				return
			}
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			if f.status != 0 {
				w.WriteHeader(f.status)
				return
			}
			var payload struct {
				Content string `json:"content"`
				Branch  string `json:"branch"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			decoded, err := base64.StdEncoding.DecodeString(payload.Content)
			require.NoError(t, err)

			f.existing[r.URL.Path] = true
			f.puts = append(f.puts, r.URL.Path)
			f.bodies[r.URL.Path] = string(decoded)
			w.WriteHeader(http.StatusCreated)
		}
	}
}

func newTestGitHubSink(t *testing.T, gh *fakeGitHub) *GitHubSink {
	srv := httptest.NewServer(gh.handler(t))
	t.Cleanup(srv.Close)
	return NewGitHubSink(fetch.NewFetcher(), "tok", "owner/blog", "main",
		WithGitHubBaseURL(srv.URL))
}

func TestGitHubSinkCreatesBaseName(t *testing.T) {
	gh := newFakeGitHub()
	sink := newTestGitHubSink(t, gh)

	digest := RenderDigest("2025-01-15", sampleStories())
	require.NoError(t, sink.Publish(context.Background(), digest))

	require.Len(t, gh.puts, 1)
	assert.Equal(t, "/repos/owner/blog/contents/_posts/2025-01-15-daily.md", gh.puts[0])
	assert.Equal(t, digest.Markdown, gh.bodies[gh.puts[0]])
}

func TestGitHubSinkVersioningMonotonic(t *testing.T) {
	gh := newFakeGitHub()
	sink := newTestGitHubSink(t, gh)

	// Same date published three times: base name, then -v2, then -v3.
	for i := 0; i < 3; i++ {
		digest := RenderDigest("2025-01-15", sampleStories())
		require.NoError(t, sink.Publish(context.Background(), digest))
	}

	assert.Equal(t, []string{
		"/repos/owner/blog/contents/_posts/2025-01-15-daily.md",
		"/repos/owner/blog/contents/_posts/2025-01-15-daily-v2.md",
		"/repos/owner/blog/contents/_posts/2025-01-15-daily-v3.md",
	}, gh.puts)
}

func TestGitHubSinkVersionCap(t *testing.T) {
	gh := newFakeGitHub()
	sink := newTestGitHubSink(t, gh)

	gh.existing["/repos/owner/blog/contents/_posts/2025-01-15-daily.md"] = true
	for n := 2; n <= 10; n++ {
		gh.existing[fmt.Sprintf("/repos/owner/blog/contents/_posts/2025-01-15-daily-v%d.md", n)] = true
	}

	err := sink.Publish(context.Background(), RenderDigest("2025-01-15", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no free file name")
}

func TestGitHubSinkPropagatesCommitFailure(t *testing.T) {
	gh := newFakeGitHub()
	gh.status = http.StatusUnprocessableEntity
	sink := newTestGitHubSink(t, gh)

	err := sink.Publish(context.Background(), RenderDigest("2025-01-15", nil))
	require.Error(t, err)
}

func TestGitHubSinkSendsAuth(t *testing.T) {
	var sawAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	sink := NewGitHubSink(fetch.NewFetcher(), "secret-token", "owner/blog", "main",
		WithGitHubBaseURL(srv.URL))
	require.NoError(t, sink.Publish(context.Background(), RenderDigest("2025-01-15", nil)))
	assert.Equal(t, "Bearer secret-token", sawAuth)
}
