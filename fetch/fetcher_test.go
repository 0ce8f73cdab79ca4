package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFetcher() *Fetcher {
	return NewFetcher(WithUserAgent("hndaily-test/1.0"))
}

func TestDoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "hndaily-test/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	result, err := testFetcher().Do(context.Background(), Request{
		Method:     http.MethodGet,
		URL:        srv.URL,
		ExpectJSON: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.Status)

	var payload struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, result.Decode(&payload))
	assert.True(t, payload.OK)
}

func TestDoRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	result, err := testFetcher().Do(context.Background(), Request{
		Method:         http.MethodGet,
		URL:            srv.URL,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	_, err := testFetcher().Do(context.Background(), Request{
		Method:         http.MethodGet,
		URL:            srv.URL,
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDoNoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testFetcher().Do(context.Background(), Request{
		Method:         http.MethodGet,
		URL:            srv.URL,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
	})
	require.Error(t, err)
	assert.Equal(t, KindHTTP4xx, KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoRetryExhaustionKeepsLastStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testFetcher().Do(context.Background(), Request{
		Method:         http.MethodGet,
		URL:            srv.URL,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
	})
	require.Error(t, err)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, KindRateLimit, failure.Kind)
	assert.Equal(t, http.StatusTooManyRequests, failure.Status)
}

func TestDoTimeoutIsDistinctFromNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := testFetcher().Do(context.Background(), Request{
		Method:  http.MethodGet,
		URL:     srv.URL,
		Timeout: 20 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestDoNetworkFailure(t *testing.T) {
	// Reserved port with nothing listening.
	_, err := testFetcher().Do(context.Background(), Request{
		Method: http.MethodGet,
		URL:    "http://127.0.0.1:1/never",
	})
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestDoExpectJSONParseFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	_, err := testFetcher().Do(context.Background(), Request{
		Method:     http.MethodGet,
		URL:        srv.URL,
		ExpectJSON: true,
	})
	require.Error(t, err)
	assert.Equal(t, KindParse, KindOf(err))
}
