// Package task drives the daily digest job: each trigger reads the day's
// state, advances it by exactly one phase, and returns. Repeated triggers
// carry a day from candidate fetch through batched processing to the
// published digest, and two concurrent triggers for the same date are safe
// because every advance goes through the store's atomic claims and
// compare-and-set transitions.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/hndaily/extract"
	"github.com/c360studio/hndaily/hackernews"
	"github.com/c360studio/hndaily/metrics"
	"github.com/c360studio/hndaily/publish"
	"github.com/c360studio/hndaily/store"
)

// ErrPublishFailed marks a hard publisher failure. The task stays in its
// aggregating phase so the next trigger retries publication; it must not
// be marked failed.
var ErrPublishFailed = errors.New("publish failed")

// TaskStore is the slice of store.Store the runner uses.
type TaskStore interface {
	GetOrCreateTask(ctx context.Context, date string) (*store.Task, error)
	GetSnapshot(ctx context.Context, date string) (*store.Snapshot, error)
	InsertArticles(ctx context.Context, date string, stories []hackernews.Story) error
	ClaimPendingBatch(ctx context.Context, date string, n int) ([]store.Article, error)
	CompleteArticle(ctx context.Context, date string, storyID int64, fields store.CompletedFields) error
	FailArticle(ctx context.Context, date string, storyID int64, message string) error
	RetryFailed(ctx context.Context, date string) (int, error)
	TransitionTask(ctx context.Context, date, from, to string) (bool, error)
	GetCompletedOrdered(ctx context.Context, date string) ([]store.Article, error)
	FailTask(ctx context.Context, date, message string) error
}

// Source provides the day's candidates and per-story comments.
type Source interface {
	FetchDailyCandidates(ctx context.Context, date string) ([]hackernews.Story, error)
	TopComments(ctx context.Context, storyID int64) ([]hackernews.Comment, error)
}

// Extractor pulls article content for one URL.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) extract.Result
}

// Summarizer covers the per-story LLM operations.
type Summarizer interface {
	TranslateTitle(ctx context.Context, title string) (string, error)
	SummarizeArticle(ctx context.Context, content, fallbackDescription string) (string, error)
	SummarizeComments(ctx context.Context, comments []hackernews.Comment) (string, error)
}

// Classifier screens the candidate list before insertion.
type Classifier interface {
	Apply(ctx context.Context, stories []hackernews.Story) []hackernews.Story
}

// Digester delivers a rendered digest to the configured sinks.
type Digester interface {
	Publish(ctx context.Context, digest publish.Digest) error
}

const (
	defaultBatchDeadline = 4 * time.Minute
	defaultConcurrency   = 5
)

// Runner is the per-trigger state machine.
type Runner struct {
	store      TaskStore
	source     Source
	extractor  Extractor
	summarizer Summarizer
	classifier Classifier
	digester   Digester

	batchSize     int
	batchDeadline time.Duration
	concurrency   int
	logger        *slog.Logger
	now           func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithBatchDeadline bounds one batch's wall clock.
func WithBatchDeadline(d time.Duration) Option {
	return func(r *Runner) { r.batchDeadline = d }
}

// WithConcurrency bounds the per-batch pipeline fan-out.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithClock overrides the wall clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner wires the state machine.
func NewRunner(st TaskStore, source Source, extractor Extractor, summarizer Summarizer,
	classifier Classifier, digester Digester, batchSize int, opts ...Option) *Runner {
	if batchSize < 1 {
		batchSize = 1
	}
	r := &Runner{
		store:         st,
		source:        source,
		extractor:     extractor,
		summarizer:    summarizer,
		classifier:    classifier,
		digester:      digester,
		batchSize:     batchSize,
		batchDeadline: defaultBatchDeadline,
		concurrency:   defaultConcurrency,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TargetDate is the UTC calendar date of the previous day: a digest always
// covers a fully elapsed day.
func TargetDate(now time.Time) string {
	return now.UTC().AddDate(0, 0, -1).Format("2006-01-02")
}

// RunOnce advances the date's task by one phase. An empty date targets the
// previous UTC day. Errors other than hard publish failures move the task
// to failed.
func (r *Runner) RunOnce(ctx context.Context, date string) error {
	if date == "" {
		date = TargetDate(r.now())
	}
	started := r.now()
	defer func() {
		metrics.TriggerDuration.Observe(r.now().Sub(started).Seconds())
	}()

	task, err := r.store.GetOrCreateTask(ctx, date)
	if err != nil {
		return err
	}

	r.logger.Info("Trigger", "date", date, "status", task.Status)

	switch task.Status {
	case store.TaskInit:
		err = r.fetchList(ctx, date)
	case store.TaskListFetched, store.TaskProcessing:
		err = r.advance(ctx, date, task.Status)
	case store.TaskAggregating:
		err = r.aggregate(ctx, date)
	case store.TaskPublished, store.TaskFailed:
		r.logger.Info("Task is terminal, nothing to do", "date", date, "status", task.Status)
		return nil
	default:
		err = fmt.Errorf("unknown task status %q", task.Status)
	}

	if err != nil && !errors.Is(err, ErrPublishFailed) {
		if failErr := r.store.FailTask(ctx, date, err.Error()); failErr != nil {
			r.logger.Error("Could not record task failure", "date", date, "error", failErr)
		}
	}
	return err
}

// RetryFailed resets the date's failed (and deadline-stranded) articles to
// pending and moves the task back into processing.
func (r *Runner) RetryFailed(ctx context.Context, date string) (int, error) {
	n, err := r.store.RetryFailed(ctx, date)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		// A published day never reopens; failed or aggregating days resume.
		for _, from := range []string{store.TaskFailed, store.TaskAggregating} {
			if ok, err := r.store.TransitionTask(ctx, date, from, store.TaskProcessing); err != nil {
				return n, err
			} else if ok {
				break
			}
		}
		r.logger.Info("Reset articles for retry", "date", date, "count", n)
	}
	return n, nil
}

// fetchList resolves the candidate set, screens it, and seeds the day's
// article rows.
func (r *Runner) fetchList(ctx context.Context, date string) error {
	stories, err := r.source.FetchDailyCandidates(ctx, date)
	if err != nil {
		return fmt.Errorf("fetching candidates for %s: %w", date, err)
	}

	stories = r.classifier.Apply(ctx, stories)

	if err := r.store.InsertArticles(ctx, date, stories); err != nil {
		return err
	}
	if _, err := r.store.TransitionTask(ctx, date, store.TaskInit, store.TaskListFetched); err != nil {
		return err
	}

	r.logger.Info("Candidate list stored", "date", date, "stories", len(stories))
	return nil
}

// advance either runs one batch or, when nothing is left to process, moves
// the day into aggregation.
func (r *Runner) advance(ctx context.Context, date, status string) error {
	snap, err := r.store.GetSnapshot(ctx, date)
	if err != nil {
		return err
	}

	if snap.Counts.Pending+snap.Counts.Processing == 0 {
		ok, err := r.store.TransitionTask(ctx, date, status, store.TaskAggregating)
		if err != nil {
			return err
		}
		if !ok {
			// Another invocation advanced the task first.
			return nil
		}
		return r.aggregate(ctx, date)
	}

	if status == store.TaskListFetched {
		// Best effort; losing this CAS just means another trigger moved it.
		if _, err := r.store.TransitionTask(ctx, date, store.TaskListFetched, store.TaskProcessing); err != nil {
			return err
		}
	}
	return r.runBatch(ctx, date)
}

// aggregate renders the digest from completed articles and fans it out.
func (r *Runner) aggregate(ctx context.Context, date string) error {
	articles, err := r.store.GetCompletedOrdered(ctx, date)
	if err != nil {
		return err
	}

	digest := publish.RenderDigest(date, publish.FromArticles(articles))

	if err := r.digester.Publish(ctx, digest); err != nil {
		metrics.PublishAttempts.WithLabelValues("failure").Inc()
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	metrics.PublishAttempts.WithLabelValues("success").Inc()

	if _, err := r.store.TransitionTask(ctx, date, store.TaskAggregating, store.TaskPublished); err != nil {
		return err
	}

	r.logger.Info("Digest published", "date", date, "stories", len(digest.Stories))
	return nil
}
