// Package fetch provides a time-bounded HTTP fetcher with typed failure
// classification and exponential retry. All outbound HTTP in hndaily goes
// through this package so that transport errors are categorized uniformly.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxResponseSize limits response bodies to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// FailureKind categorizes a fetch failure.
type FailureKind string

const (
	KindTimeout   FailureKind = "timeout"
	KindNetwork   FailureKind = "network"
	KindHTTP4xx   FailureKind = "http4xx"
	KindHTTP5xx   FailureKind = "http5xx"
	KindRateLimit FailureKind = "rate-limit"
	KindParse     FailureKind = "parse"
)

// Failure is the typed error returned by Do. Status is the last-seen HTTP
// status, or zero when the request never reached the server.
type Failure struct {
	Kind   FailureKind
	Status int
	Err    error
}

func (f *Failure) Error() string {
	if f.Status > 0 {
		return fmt.Sprintf("fetch %s (status %d): %v", f.Kind, f.Status, f.Err)
	}
	return fmt.Sprintf("fetch %s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// KindOf returns the failure kind of err, or "" if err is not a *Failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// Request describes one budgeted HTTP call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte

	// Timeout is the per-call deadline covering all retries.
	Timeout time.Duration

	// MaxRetries bounds attempts after the first one.
	MaxRetries int

	// RetryBaseDelay is the initial backoff, doubled on each retry.
	RetryBaseDelay time.Duration

	// ExpectJSON enforces a JSON content type and a well-formed body.
	ExpectJSON bool
}

// Result holds a successful response.
type Result struct {
	Status int
	Body   []byte
}

// Decode unmarshals the response body into v.
func (r *Result) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Failure{Kind: KindParse, Status: r.Status, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Fetcher issues budgeted HTTP requests. The zero value is not usable;
// construct with NewFetcher.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithUserAgent sets the User-Agent header for all requests.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher with the given options.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: "hndaily/1.0",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Do executes the request with retry. On failure the returned error is
// always a *Failure carrying the category and last-seen status.
//
// Retry policy: network errors, HTTP 5xx, and HTTP 429 are retried with
// jitter-free doubling starting at RetryBaseDelay. Other 4xx never retry.
// The per-call deadline covers all attempts; exceeding it is reported as
// a timeout, distinct from other network errors.
func (f *Fetcher) Do(ctx context.Context, req Request) (*Result, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	attempts := req.MaxRetries + 1
	delay := req.RetryBaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastFailure *Failure
	for attempt := 1; attempt <= attempts; attempt++ {
		result, failure := f.doOnce(ctx, req)
		if failure == nil {
			return result, nil
		}
		lastFailure = failure

		if !retryable(failure.Kind) || attempt == attempts {
			break
		}

		f.logger.Debug("Request failed, retrying",
			"url", req.URL,
			"attempt", attempt,
			"kind", string(failure.Kind),
			"backoff", delay)

		select {
		case <-ctx.Done():
			return nil, timeoutFailure(ctx, lastFailure)
		case <-time.After(delay):
		}
		delay *= 2
	}

	if ctx.Err() != nil {
		return nil, timeoutFailure(ctx, lastFailure)
	}
	return nil, lastFailure
}

// retryable reports whether a failure kind is worth another attempt.
func retryable(kind FailureKind) bool {
	return kind == KindNetwork || kind == KindHTTP5xx || kind == KindRateLimit
}

// timeoutFailure maps context expiry onto the timeout category, keeping the
// last transport failure as the cause when one exists.
func timeoutFailure(ctx context.Context, last *Failure) *Failure {
	cause := ctx.Err()
	status := 0
	if last != nil {
		status = last.Status
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		return &Failure{Kind: KindTimeout, Status: status, Err: cause}
	}
	return &Failure{Kind: KindNetwork, Status: status, Err: cause}
}

// doOnce executes a single attempt.
func (f *Fetcher) doOnce(ctx context.Context, req Request) (*Result, *Failure) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &Failure{Kind: KindNetwork, Err: fmt.Errorf("create request: %w", err)}
	}

	httpReq.Header.Set("User-Agent", f.userAgent)
	if len(req.Body) > 0 && req.Headers["Content-Type"] == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, timeoutFailure(ctx, nil)
		}
		return nil, &Failure{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if ctx.Err() != nil {
			return nil, timeoutFailure(ctx, nil)
		}
		return nil, &Failure{Kind: KindNetwork, Status: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}

	if failure := classifyStatus(resp.StatusCode, respBody); failure != nil {
		return nil, failure
	}

	if req.ExpectJSON {
		contentType := resp.Header.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "json") {
			return nil, &Failure{Kind: KindParse, Status: resp.StatusCode,
				Err: fmt.Errorf("expected JSON, got content type %q", contentType)}
		}
		if !json.Valid(respBody) {
			return nil, &Failure{Kind: KindParse, Status: resp.StatusCode,
				Err: errors.New("response body is not valid JSON")}
		}
	}

	return &Result{Status: resp.StatusCode, Body: respBody}, nil
}

// classifyStatus maps non-2xx statuses onto failure categories.
func classifyStatus(status int, body []byte) *Failure {
	if status >= 200 && status < 300 {
		return nil
	}

	detail := string(body)
	if len(detail) > 200 {
		detail = detail[:200] + "..."
	}
	err := fmt.Errorf("HTTP %d: %s", status, detail)

	switch {
	case status == http.StatusTooManyRequests:
		return &Failure{Kind: KindRateLimit, Status: status, Err: err}
	case status >= 500:
		return &Failure{Kind: KindHTTP5xx, Status: status, Err: err}
	default:
		return &Failure{Kind: KindHTTP4xx, Status: status, Err: err}
	}
}
