package publish

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/c360studio/hndaily/fetch"
)

const (
	githubAPIBase   = "https://api.github.com"
	postsDir        = "_posts"
	maxVersionProbe = 10
	githubTimeout   = 30 * time.Second
)

// GitHubSink commits the digest to a Jekyll repository via the contents
// API. It is the hard publisher: any failure propagates and keeps the task
// in its aggregating phase for the next trigger.
type GitHubSink struct {
	fetcher *fetch.Fetcher
	token   string
	repo    string
	branch  string
	baseURL string
	logger  *slog.Logger
}

// GitHubOption configures a GitHubSink.
type GitHubOption func(*GitHubSink)

// WithGitHubBaseURL overrides the API base URL. Used by tests.
func WithGitHubBaseURL(u string) GitHubOption {
	return func(s *GitHubSink) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithGitHubLogger sets the sink's logger.
func WithGitHubLogger(l *slog.Logger) GitHubOption {
	return func(s *GitHubSink) { s.logger = l }
}

// NewGitHubSink creates the Git publisher. repo is "owner/name".
func NewGitHubSink(fetcher *fetch.Fetcher, token, repo, branch string, opts ...GitHubOption) *GitHubSink {
	s := &GitHubSink{
		fetcher: fetcher,
		token:   token,
		repo:    repo,
		branch:  branch,
		baseURL: githubAPIBase,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GitHubSink) Name() string { return "github" }

// Publish creates the digest file under _posts/. If the base name is
// already taken, the smallest free -vN suffix (N >= 2) is used instead, so
// re-publishing a date never overwrites an earlier artifact.
func (s *GitHubSink) Publish(ctx context.Context, digest Digest) error {
	fileName, err := s.freeFileName(ctx, digest.FileName)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{
		"message": fmt.Sprintf("Add HackerNews daily digest for %s", digest.Date),
		"content": base64.StdEncoding.EncodeToString([]byte(digest.Markdown)),
		"branch":  s.branch,
	})
	if err != nil {
		return fmt.Errorf("encoding commit payload: %w", err)
	}

	result, err := s.fetcher.Do(ctx, fetch.Request{
		Method:     http.MethodPut,
		URL:        s.contentsURL(fileName),
		Headers:    s.headers(),
		Body:       body,
		Timeout:    githubTimeout,
		MaxRetries: 2,
	})
	if err != nil {
		return fmt.Errorf("committing %s: %w", fileName, err)
	}
	if result.Status != http.StatusCreated && result.Status != http.StatusOK {
		return fmt.Errorf("committing %s: unexpected status %d", fileName, result.Status)
	}

	s.logger.Info("Committed digest", "repo", s.repo, "path", postsDir+"/"+fileName)
	return nil
}

// freeFileName probes _posts/ for the first unoccupied name: the base
// name, then -v2 through -v10.
func (s *GitHubSink) freeFileName(ctx context.Context, base string) (string, error) {
	stem := strings.TrimSuffix(base, ".md")
	for n := 1; n <= maxVersionProbe; n++ {
		name := base
		if n > 1 {
			name = fmt.Sprintf("%s-v%d.md", stem, n)
		}

		exists, err := s.fileExists(ctx, name)
		if err != nil {
			return "", err
		}
		if !exists {
			return name, nil
		}
	}
	return "", fmt.Errorf("no free file name for %s after %d versions", base, maxVersionProbe)
}

func (s *GitHubSink) fileExists(ctx context.Context, fileName string) (bool, error) {
	_, err := s.fetcher.Do(ctx, fetch.Request{
		Method:  http.MethodGet,
		URL:     s.contentsURL(fileName) + "?ref=" + s.branch,
		Headers: s.headers(),
		Timeout: githubTimeout,
	})
	if err == nil {
		return true, nil
	}

	var failure *fetch.Failure
	if errors.As(err, &failure) && failure.Status == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("probing %s: %w", fileName, err)
}

func (s *GitHubSink) contentsURL(fileName string) string {
	return fmt.Sprintf("%s/repos/%s/contents/%s/%s", s.baseURL, s.repo, postsDir, fileName)
}

func (s *GitHubSink) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + s.token,
		"Accept":        "application/vnd.github+json",
	}
}
