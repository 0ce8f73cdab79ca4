// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/c360studio/hndaily/llm"
)

var (
	// StoriesProcessed counts per-article pipeline outcomes.
	StoriesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hndaily_stories_processed_total",
		Help: "Articles finished by the batch executor, by outcome.",
	}, []string{"outcome"})

	// LLMCalls counts chat completions by provider and outcome.
	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hndaily_llm_calls_total",
		Help: "Chat-completion calls, by provider and outcome.",
	}, []string{"provider", "outcome"})

	// PublishAttempts counts fan-out deliveries by outcome.
	PublishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hndaily_publish_attempts_total",
		Help: "Digest publish attempts, by outcome.",
	}, []string{"outcome"})

	// TriggerDuration observes wall-clock time per trigger invocation.
	TriggerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hndaily_trigger_duration_seconds",
		Help:    "Duration of one trigger invocation.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// chatClient matches the consumers' chat-completion interfaces.
type chatClient interface {
	ChatCompletion(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// InstrumentedChat decorates a chat client with call counting.
type InstrumentedChat struct {
	provider string
	next     chatClient
}

// InstrumentChat wraps a chat client so every call lands in LLMCalls.
func InstrumentChat(provider string, next chatClient) *InstrumentedChat {
	return &InstrumentedChat{provider: provider, next: next}
}

func (c *InstrumentedChat) ChatCompletion(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := c.next.ChatCompletion(ctx, req)
	outcome := "success"
	if err != nil {
		outcome = "error"
		if llm.IsRateLimit(err) {
			outcome = "rate_limited"
		}
	}
	LLMCalls.WithLabelValues(c.provider, outcome).Inc()
	return resp, err
}
