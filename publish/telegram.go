package publish

import (
	"context"
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
	telegramAPIBase = "https://api.telegram.org"
	// telegramMessageCap is Telegram's hard per-message limit.
	telegramMessageCap = 4096
	telegramTimeout    = 15 * time.Second
)

// TelegramSink posts one message per story to a channel. It formats from
// the structured story data rather than re-parsing the Markdown. All
// failures are soft: a bad story is logged and the rest still go out.
type TelegramSink struct {
	fetcher    *fetch.Fetcher
	botToken   string
	channelID  string
	batchSize  int
	batchDelay time.Duration
	baseURL    string
	logger     *slog.Logger
}

// TelegramOption configures a TelegramSink.
type TelegramOption func(*TelegramSink)

// WithTelegramBaseURL overrides the API base URL. Used by tests.
func WithTelegramBaseURL(u string) TelegramOption {
	return func(s *TelegramSink) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithTelegramBatchDelay sets the pause between message batches.
func WithTelegramBatchDelay(d time.Duration) TelegramOption {
	return func(s *TelegramSink) { s.batchDelay = d }
}

// WithTelegramLogger sets the sink's logger.
func WithTelegramLogger(l *slog.Logger) TelegramOption {
	return func(s *TelegramSink) { s.logger = l }
}

// NewTelegramSink creates the chat publisher.
func NewTelegramSink(fetcher *fetch.Fetcher, botToken, channelID string, batchSize int, opts ...TelegramOption) *TelegramSink {
	if batchSize < 1 {
		batchSize = 1
	}
	s := &TelegramSink{
		fetcher:    fetcher,
		botToken:   botToken,
		channelID:  channelID,
		batchSize:  batchSize,
		batchDelay: time.Second,
		baseURL:    telegramAPIBase,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TelegramSink) Name() string { return "telegram" }

// Publish sends every story, pausing batchDelay after each batchSize
// messages to stay under the channel rate limit.
func (s *TelegramSink) Publish(ctx context.Context, digest Digest) error {
	var errs []error
	for i, story := range digest.Stories {
		if i > 0 && i%s.batchSize == 0 {
			select {
			case <-time.After(s.batchDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := s.sendMessage(ctx, formatStoryMessage(story)); err != nil {
			s.logger.Warn("Telegram message failed, continuing",
				"story_id", story.StoryID, "error", err)
			errs = append(errs, fmt.Errorf("story %d: %w", story.StoryID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *TelegramSink) sendMessage(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": s.channelID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	result, err := s.fetcher.Do(ctx, fetch.Request{
		Method:     http.MethodPost,
		URL:        fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken),
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
		Timeout:    telegramTimeout,
		MaxRetries: 1,
	})
	if err != nil {
		return err
	}
	if result.Status != http.StatusOK {
		return fmt.Errorf("sendMessage status %d", result.Status)
	}
	return nil
}

// formatStoryMessage renders one story for chat, truncated to the
// platform cap.
func formatStoryMessage(story ProcessedStory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s\n%s\n\n", story.Rank, story.TitleChinese, story.TitleEnglish)
	fmt.Fprintf(&b, "⭐ %d | %s\n\n", story.Score, story.URL)
	if story.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", story.Description)
	}
	if story.CommentSummary != "" {
		fmt.Fprintf(&b, "💬 %s\n\n", story.CommentSummary)
	}
	fmt.Fprintf(&b, "https://news.ycombinator.com/item?id=%d", story.StoryID)

	text := b.String()
	if len(text) <= telegramMessageCap {
		return text
	}
	runes := []rune(text)
	if len(runes) > telegramMessageCap {
		runes = runes[:telegramMessageCap]
	}
	return string(runes)
}
