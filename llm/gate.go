package llm

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Per-provider in-flight caps. Zhipu enforces the strictest account-level
// concurrency limit of the three.
const (
	defaultMaxInFlight = 5
	zhipuMaxInFlight   = 2
)

// Per-provider minimum delay before retrying after a 429.
const (
	defaultMinRetryDelay = 1 * time.Second
	zhipuMinRetryDelay   = 2 * time.Second
)

// Gate bounds in-flight requests per provider and supplies the provider's
// minimum retry delay for rate-limited calls. Gates are process-local:
// separate invocations each construct their own, so provider rate limits
// are additionally respected by the retry-on-429 policy.
type Gate struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

// NewGate creates an empty gate. Semaphores are created lazily per provider.
func NewGate() *Gate {
	return &Gate{sems: make(map[string]*semaphore.Weighted)}
}

// Acquire blocks until a permit for the provider is available or ctx is
// done. On cancellation no permit is held.
func (g *Gate) Acquire(ctx context.Context, provider string) error {
	return g.sem(provider).Acquire(ctx, 1)
}

// Release returns a permit for the provider.
func (g *Gate) Release(provider string) {
	g.sem(provider).Release(1)
}

// MinRetryDelay returns the minimum backoff before retrying a rate-limited
// call to the provider.
func (g *Gate) MinRetryDelay(provider string) time.Duration {
	if provider == "zhipu" {
		return zhipuMinRetryDelay
	}
	return defaultMinRetryDelay
}

func (g *Gate) sem(provider string) *semaphore.Weighted {
	g.mu.Lock()
	defer g.mu.Unlock()

	sem, ok := g.sems[provider]
	if !ok {
		capacity := int64(defaultMaxInFlight)
		if provider == "zhipu" {
			capacity = zhipuMaxInFlight
		}
		sem = semaphore.NewWeighted(capacity)
		g.sems[provider] = sem
	}
	return sem
}
