package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider routes requests to a test server while keeping the
// OpenAI-compatible body and response format.
type stubProvider struct {
	name string
	url  string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) BuildURL() string { return s.url }

func (s *stubProvider) SetHeaders(req *http.Request, settings Settings) {
	if settings.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+settings.APIKey)
	}
}

func (s *stubProvider) BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error) {
	return json.Marshal(map[string]any{
		"model":    model,
		"messages": messages,
	})
}

func (s *stubProvider) ParseResponse(body []byte) (*Response, error) {
	var resp struct {
		Content string `json:"content"`
		Model   string `json:"model"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &Response{Content: resp.Content, Model: resp.Model}, nil
}

// fastRetry keeps test backoffs in the millisecond range.
func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        10 * time.Millisecond,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	name := fmt.Sprintf("stub-%s", t.Name())
	RegisterProvider(&stubProvider{name: name, url: srv.URL})

	client, err := NewClient(name, Settings{APIKey: "test-key", Model: "test-model"}, NewGate(),
		WithRetryConfig(fastRetry()))
	require.NoError(t, err)
	return client, srv
}

func TestChatCompletionSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		json.NewEncoder(w).Encode(map[string]string{"content": "你好", "model": "test-model"})
	})

	resp, err := client.ChatCompletion(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "你好", resp.Content)
	assert.NotEmpty(t, resp.RequestID)
}

func TestChatCompletionRequiresMessages(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := client.ChatCompletion(context.Background(), Request{})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}

func TestChatCompletionRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"content": "ok"})
	})

	resp, err := client.ChatCompletion(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int32(3), calls.Load())
}

func TestChatCompletionRateLimitExhausted(t *testing.T) {
	// Rate-limit retries wait at least the provider minimum delay, so use
	// a client whose retry count keeps the test short.
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	name := fmt.Sprintf("stub-%s", t.Name())
	RegisterProvider(&stubProvider{name: name, url: srv.URL})
	client, err := NewClient(name, Settings{Model: "m"}, NewGate(),
		WithRetryConfig(RetryConfig{MaxAttempts: 1, BackoffBase: time.Millisecond, BackoffMultiplier: 2, MaxBackoff: time.Millisecond}))
	require.NoError(t, err)

	_, err = client.ChatCompletion(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "x"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimitExhausted)
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatCompletionFatalNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.ChatCompletion(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "x"}},
	})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatCompletionExpectJSONArray(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"content": "```json\n[{\"index\":0},{\"index\":1}]\n```",
		})
	})

	resp, err := client.ChatCompletion(context.Background(), Request{
		Messages:        []Message{{Role: "user", Content: "x"}},
		ExpectJSONArray: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Array, 2)

	var first struct {
		Index int `json:"index"`
	}
	require.NoError(t, json.Unmarshal(resp.Array[0], &first))
	assert.Equal(t, 0, first.Index)
}

func TestChatCompletionExpectJSONArrayParseFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"content": "not an array at all"})
	})

	_, err := client.ChatCompletion(context.Background(), Request{
		Messages:        []Message{{Role: "user", Content: "x"}},
		ExpectJSONArray: true,
	})
	require.Error(t, err)
	require.True(t, IsParse(err))

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "not an array at all", pe.Raw)
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient("no-such-provider", Settings{}, NewGate())
	require.Error(t, err)
}
