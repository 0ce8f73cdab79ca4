// Package contentfilter optionally screens story titles through the LLM,
// dropping ones classified SENSITIVE. The filter fails open: any error
// returns the input list unchanged so a flaky classifier can never empty
// the digest.
package contentfilter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360studio/hndaily/hackernews"
	"github.com/c360studio/hndaily/llm"
)

// classifyTimeout is the strict per-call deadline; the classifier is a
// nice-to-have and must not eat the invocation budget.
const classifyTimeout = 15 * time.Second

// Classification tokens the model must use.
const (
	classSafe      = "SAFE"
	classSensitive = "SENSITIVE"
)

// ChatClient is the slice of llm.Client the filter needs.
type ChatClient interface {
	ChatCompletion(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Filter classifies stories by title.
type Filter struct {
	client      ChatClient
	enabled     bool
	sensitivity string
	logger      *slog.Logger
}

// NewFilter creates a Filter. A disabled filter passes everything through
// without LLM calls.
func NewFilter(client ChatClient, enabled bool, sensitivity string, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{
		client:      client,
		enabled:     enabled,
		sensitivity: sensitivity,
		logger:      logger,
	}
}

// Apply returns the stories that classified SAFE, preserving input order.
// Disabled, empty input, or any failure returns the input slice as-is.
func (f *Filter) Apply(ctx context.Context, stories []hackernews.Story) []hackernews.Story {
	if !f.enabled || len(stories) == 0 {
		return stories
	}

	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	verdicts, err := f.classify(ctx, stories)
	if err != nil {
		f.logger.Warn("Content filter failed open, passing all stories",
			"stories", len(stories), "error", err)
		return stories
	}

	kept := make([]hackernews.Story, 0, len(stories))
	for i, story := range stories {
		if verdicts[i] {
			kept = append(kept, story)
		} else {
			f.logger.Info("Story filtered as sensitive",
				"story_id", story.ID, "title", story.Title)
		}
	}
	return kept
}

// classification is one element of the model's JSON-array reply.
type classification struct {
	Index          int    `json:"index"`
	Classification string `json:"classification"`
}

// classify runs one batch prompt and returns keep/drop per input index.
// Any schema deviation is an error; the caller fails open.
func (f *Filter) classify(ctx context.Context, stories []hackernews.Story) ([]bool, error) {
	var list strings.Builder
	for i, story := range stories {
		fmt.Fprintf(&list, "%d. %s\n", i, story.Title)
	}

	resp, err := f.client.ChatCompletion(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: classifierSystemPrompt(f.sensitivity)},
			{Role: "user", Content: classifierUserPrompt(list.String(), len(stories))},
		},
		Temperature:     floatPtr(0),
		ExpectJSONArray: true,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Array) != len(stories) {
		return nil, fmt.Errorf("classifier returned %d entries for %d stories",
			len(resp.Array), len(stories))
	}

	verdicts := make([]bool, len(stories))
	seen := make([]bool, len(stories))
	for _, raw := range resp.Array {
		var c classification
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("malformed classifier entry: %w", err)
		}
		if c.Index < 0 || c.Index >= len(stories) || seen[c.Index] {
			return nil, fmt.Errorf("classifier index %d out of range or duplicated", c.Index)
		}
		switch c.Classification {
		case classSafe:
			verdicts[c.Index] = true
		case classSensitive:
			verdicts[c.Index] = false
		default:
			return nil, fmt.Errorf("unknown classification token %q", c.Classification)
		}
		seen[c.Index] = true
	}
	return verdicts, nil
}

func floatPtr(f float64) *float64 {
	return &f
}
