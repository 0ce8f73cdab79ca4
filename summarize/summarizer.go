// Package summarize turns English stories into Chinese digest material:
// title translation, article summaries, and comment-thread digests, all
// backed by the LLM client.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/c360studio/hndaily/hackernews"
	"github.com/c360studio/hndaily/llm"
)

// Placeholder returned when a story has no extractable content at all.
const Placeholder = "暂无内容摘要。"

// Summary length bounds; the configured target is clamped into this range.
const (
	minSummaryLength = 100
	maxSummaryLength = 500
)

// minCommentCount is the threshold below which a thread is not worth a
// digest. Returning no digest here is expected, not a failure.
const minCommentCount = 3

// commentCharCap bounds the comment text handed to the model.
const commentCharCap = 5000

// defaultConcurrency bounds in-flight items for the batched operations.
const defaultConcurrency = 5

// ChatClient is the slice of llm.Client the summarizer needs.
type ChatClient interface {
	ChatCompletion(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Summarizer implements the translation and summarization operations.
type Summarizer struct {
	client      ChatClient
	logger      *slog.Logger
	maxLen      int
	commentLen  int
	concurrency int
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Summarizer) { s.logger = logger }
}

// WithConcurrency overrides the batched-operation concurrency limit.
func WithConcurrency(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewSummarizer creates a Summarizer. maxLen and commentLen are the target
// lengths, in characters, for article summaries and comment digests.
func NewSummarizer(client ChatClient, maxLen, commentLen int, opts ...Option) *Summarizer {
	if maxLen < minSummaryLength {
		maxLen = minSummaryLength
	}
	if maxLen > maxSummaryLength {
		maxLen = maxSummaryLength
	}
	if commentLen <= 0 {
		commentLen = 300
	}

	s := &Summarizer{
		client:      client,
		logger:      slog.Default(),
		maxLen:      maxLen,
		commentLen:  commentLen,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TranslateTitle translates a story title to Chinese. Titles that are
// already predominantly Chinese pass through unchanged. On any failure the
// original title is returned alongside the error so the story still
// publishes; callers treat the error as a warning.
func (s *Summarizer) TranslateTitle(ctx context.Context, title string) (string, error) {
	if title == "" || isPredominantlyChinese(title) {
		return title, nil
	}

	resp, err := s.client.ChatCompletion(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: translateSystemPrompt},
			{Role: "user", Content: translateUserPrompt(title)},
		},
		Temperature: floatPtr(0.2),
	})
	if err != nil {
		s.logger.Warn("Title translation failed, keeping original",
			"title", title, "error", err)
		return title, fmt.Errorf("translate title: %w", err)
	}

	translated := strings.TrimSpace(llm.StripCodeFences(resp.Content))
	if translated == "" {
		return title, nil
	}
	return translated, nil
}

// SummarizeArticle produces a Chinese summary of the article. Source text
// preference: content, then the fallback description; with neither, the
// fixed placeholder is returned without an LLM call. An LLM failure after
// retries is returned as an error; it is the pipeline's hard-failure case.
func (s *Summarizer) SummarizeArticle(ctx context.Context, content, fallbackDescription string) (string, error) {
	source := strings.TrimSpace(content)
	if source == "" {
		source = strings.TrimSpace(fallbackDescription)
	}
	if source == "" {
		return Placeholder, nil
	}

	// Short sources still go through the model for condensation and
	// translation; the prompt carries them as-is.
	resp, err := s.client.ChatCompletion(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: summarizeSystemPrompt},
			{Role: "user", Content: summarizeUserPrompt(source, s.maxLen)},
		},
		Temperature: floatPtr(0.3),
	})
	if err != nil {
		return "", fmt.Errorf("summarize article: %w", err)
	}

	return strings.TrimSpace(llm.StripCodeFences(resp.Content)), nil
}

// SummarizeComments produces a Chinese digest of a comment thread. Threads
// with fewer than three non-empty comments yield "" with no error; that is
// the expected thin-thread outcome, not a failure.
func (s *Summarizer) SummarizeComments(ctx context.Context, comments []hackernews.Comment) (string, error) {
	var bodies []string
	for _, c := range comments {
		if strings.TrimSpace(c.Text) != "" {
			bodies = append(bodies, c.Text)
		}
	}
	if len(bodies) < minCommentCount {
		return "", nil
	}

	var sb strings.Builder
	for _, body := range bodies {
		if sb.Len()+len(body) > commentCharCap {
			remaining := commentCharCap - sb.Len()
			if remaining <= 0 {
				break
			}
			sb.WriteString(truncate(body, remaining))
			break
		}
		sb.WriteString(body)
		sb.WriteString("\n---\n")
	}

	resp, err := s.client.ChatCompletion(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: commentsSystemPrompt},
			{Role: "user", Content: commentsUserPrompt(sb.String(), s.commentLen)},
		},
		Temperature: floatPtr(0.3),
	})
	if err != nil {
		return "", fmt.Errorf("summarize comments: %w", err)
	}

	return strings.TrimSpace(llm.StripCodeFences(resp.Content)), nil
}

// isPredominantlyChinese reports whether more than half of the
// non-whitespace characters are CJK ideographs or CJK punctuation.
func isPredominantlyChinese(s string) bool {
	total := 0
	chinese := 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.Is(unicode.Han, r) || isCJKPunct(r) {
			chinese++
		}
	}
	return total > 0 && chinese*2 > total
}

// isCJKPunct covers CJK symbols/punctuation and full-width forms.
func isCJKPunct(r rune) bool {
	return (r >= 0x3000 && r <= 0x303F) || (r >= 0xFF00 && r <= 0xFFEF)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func floatPtr(f float64) *float64 {
	return &f
}
