// Package store is the single owner of persistent state: one task row per
// day plus one article row per story. Every phase transition goes through
// a compare-and-set so concurrent triggers for the same date cannot
// double-advance or double-claim.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/c360studio/hndaily/hackernews"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Task statuses.
const (
	TaskInit        = "init"
	TaskListFetched = "listFetched"
	TaskProcessing  = "processing"
	TaskAggregating = "aggregating"
	TaskPublished   = "published"
	TaskFailed      = "failed"
)

// Article statuses.
const (
	ArticlePending    = "pending"
	ArticleProcessing = "processing"
	ArticleCompleted  = "completed"
	ArticleFailed     = "failed"
)

// ErrTaskNotFound is returned when a date has no task row yet.
var ErrTaskNotFound = errors.New("task not found")

// Task is one per-day job record.
type Task struct {
	Date          string         `db:"date"`
	Status        string         `db:"status"`
	TotalArticles int            `db:"total_articles"`
	PublishedAt   sql.NullTime   `db:"published_at"`
	ErrorMessage  sql.NullString `db:"error_message"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// Article is one per-story processing record within a day.
type Article struct {
	Date           string         `db:"date"`
	StoryID        int64          `db:"story_id"`
	Rank           int            `db:"rank"`
	Status         string         `db:"status"`
	Title          string         `db:"title"`
	TitleChinese   sql.NullString `db:"title_chinese"`
	Content        sql.NullString `db:"content"`
	ContentChinese sql.NullString `db:"content_chinese"`
	CommentSummary sql.NullString `db:"comment_summary"`
	URL            string         `db:"url"`
	Author         string         `db:"author"`
	Score          int            `db:"score"`
	PostedAt       int64          `db:"posted_at"`
	RetryCount     int            `db:"retry_count"`
	ErrorMessage   sql.NullString `db:"error_message"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// CompletedFields carries the pipeline outputs written on completion.
type CompletedFields struct {
	TitleChinese   string
	Content        string
	ContentChinese string
	CommentSummary string
}

// Counts groups the day's articles by status.
type Counts struct {
	Pending    int `db:"pending"`
	Processing int `db:"processing"`
	Completed  int `db:"completed"`
	Failed     int `db:"failed"`
}

// Snapshot is a point-in-time view of one day's state.
type Snapshot struct {
	Task   Task
	Counts Counts
}

// Store wraps the database handle.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// New wraps an already-open connection. Used directly by tests; production
// callers go through Open.
func New(db *sqlx.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Open connects to PostgreSQL and applies pending migrations.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	return New(db, logger), nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetOrCreateTask returns the task row for date, creating it in 'init' if
// this is the first trigger of the day.
func (s *Store) GetOrCreateTask(ctx context.Context, date string) (*Task, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_tasks (date, status)
		VALUES ($1, 'init')
		ON CONFLICT (date) DO NOTHING`, date)
	if err != nil {
		return nil, fmt.Errorf("creating task for %s: %w", date, err)
	}
	return s.GetTask(ctx, date)
}

// GetTask returns the task row for date, or ErrTaskNotFound.
func (s *Store) GetTask(ctx context.Context, date string) (*Task, error) {
	var task Task
	err := s.db.GetContext(ctx, &task,
		`SELECT * FROM daily_tasks WHERE date = $1`, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, date)
	}
	if err != nil {
		return nil, fmt.Errorf("loading task for %s: %w", date, err)
	}
	return &task, nil
}

// ListStories returns the day's articles with the given status, rank order.
func (s *Store) ListStories(ctx context.Context, date, status string) ([]Article, error) {
	var articles []Article
	err := s.db.SelectContext(ctx, &articles, `
		SELECT * FROM articles
		WHERE date = $1 AND status = $2
		ORDER BY rank ASC`, date, status)
	if err != nil {
		return nil, fmt.Errorf("listing %s articles for %s: %w", status, date, err)
	}
	return articles, nil
}

// InsertArticles writes the day's candidate list as pending rows with ranks
// 1..n, and records the total on the task row. All writes happen in one
// transaction so a crash can never leave a partial list.
func (s *Store) InsertArticles(ctx context.Context, date string, stories []hackernews.Story) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	for i, story := range stories {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO articles (date, story_id, rank, status, title, url, author, score, posted_at)
			VALUES ($1, $2, $3, 'pending', $4, $5, $6, $7, $8)`,
			date, story.ID, i+1, story.Title, story.CanonicalURL(), story.Author, story.Score, story.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting article %d for %s: %w", story.ID, date, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE daily_tasks SET total_articles = $2, updated_at = now()
		WHERE date = $1`, date, len(stories))
	if err != nil {
		return fmt.Errorf("recording article total for %s: %w", date, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing article insert for %s: %w", date, err)
	}
	return nil
}

// ClaimPendingBatch atomically moves up to n pending rows (lowest rank
// first) to processing and returns them. SKIP LOCKED keeps two concurrent
// triggers from claiming the same rows.
func (s *Store) ClaimPendingBatch(ctx context.Context, date string, n int) ([]Article, error) {
	var claimed []Article
	err := s.db.SelectContext(ctx, &claimed, `
		UPDATE articles SET status = 'processing', updated_at = now()
		WHERE (date, story_id) IN (
			SELECT date, story_id FROM articles
			WHERE date = $1 AND status = 'pending'
			ORDER BY rank ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`, date, n)
	if err != nil {
		return nil, fmt.Errorf("claiming batch for %s: %w", date, err)
	}
	// RETURNING order is unspecified; restore rank order for the caller.
	sortByRank(claimed)
	return claimed, nil
}

// CompleteArticle records the pipeline outputs and marks the row completed.
// Only a processing row transitions; a row already terminal is left alone,
// so re-application is a no-op.
func (s *Store) CompleteArticle(ctx context.Context, date string, storyID int64, fields CompletedFields) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE articles
		SET status = 'completed',
		    title_chinese = $3,
		    content = $4,
		    content_chinese = $5,
		    comment_summary = NULLIF($6, ''),
		    error_message = NULL,
		    updated_at = now()
		WHERE date = $1 AND story_id = $2 AND status = 'processing'`,
		date, storyID, fields.TitleChinese, fields.Content, fields.ContentChinese, fields.CommentSummary)
	if err != nil {
		return fmt.Errorf("completing article %d for %s: %w", storyID, date, err)
	}
	return nil
}

// FailArticle marks the row failed with the error message and bumps the
// retry counter. Like CompleteArticle, it only moves a processing row, so
// a terminal status can never be overwritten.
func (s *Store) FailArticle(ctx context.Context, date string, storyID int64, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE articles
		SET status = 'failed',
		    error_message = $3,
		    retry_count = retry_count + 1,
		    updated_at = now()
		WHERE date = $1 AND story_id = $2 AND status = 'processing'`,
		date, storyID, message)
	if err != nil {
		return fmt.Errorf("failing article %d for %s: %w", storyID, date, err)
	}
	return nil
}

// RetryFailed resets the day's failed rows to pending, and also reclaims
// rows stuck in processing by a deadline-expired batch. Returns the number
// of rows reset.
func (s *Store) RetryFailed(ctx context.Context, date string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE articles
		SET status = 'pending',
		    retry_count = retry_count + 1,
		    updated_at = now()
		WHERE date = $1 AND status IN ('failed', 'processing')`, date)
	if err != nil {
		return 0, fmt.Errorf("resetting failed articles for %s: %w", date, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting reset articles for %s: %w", date, err)
	}
	return int(n), nil
}

// TransitionTask compare-and-sets the task status. Returns true iff the
// transition applied; a false return means another invocation got there
// first (or the task is in a different state).
func (s *Store) TransitionTask(ctx context.Context, date, from, to string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE daily_tasks
		SET status = $3,
		    published_at = CASE WHEN $3 = 'published' THEN now() ELSE published_at END,
		    updated_at = now()
		WHERE date = $1 AND status = $2`, date, from, to)
	if err != nil {
		return false, fmt.Errorf("transitioning task %s %s->%s: %w", date, from, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking transition of task %s: %w", date, err)
	}
	return n == 1, nil
}

// FailTask marks the task failed with the message unless already published.
func (s *Store) FailTask(ctx context.Context, date, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE daily_tasks
		SET status = 'failed', error_message = $2, updated_at = now()
		WHERE date = $1 AND status <> 'published'`, date, message)
	if err != nil {
		return fmt.Errorf("failing task %s: %w", date, err)
	}
	return nil
}

// GetSnapshot returns the task row plus per-status article counts.
func (s *Store) GetSnapshot(ctx context.Context, date string) (*Snapshot, error) {
	task, err := s.GetTask(ctx, date)
	if err != nil {
		return nil, err
	}

	var counts Counts
	err = s.db.GetContext(ctx, &counts, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending')    AS pending,
			COUNT(*) FILTER (WHERE status = 'processing') AS processing,
			COUNT(*) FILTER (WHERE status = 'completed')  AS completed,
			COUNT(*) FILTER (WHERE status = 'failed')     AS failed
		FROM articles WHERE date = $1`, date)
	if err != nil {
		return nil, fmt.Errorf("counting articles for %s: %w", date, err)
	}

	return &Snapshot{Task: *task, Counts: counts}, nil
}

// GetCompletedOrdered returns the day's completed articles in rank order.
// Failed articles are deliberately absent: they are omitted from the digest
// without blocking it.
func (s *Store) GetCompletedOrdered(ctx context.Context, date string) ([]Article, error) {
	return s.ListStories(ctx, date, ArticleCompleted)
}

func sortByRank(articles []Article) {
	sort.Slice(articles, func(i, j int) bool {
		return articles[i].Rank < articles[j].Rank
	})
}
