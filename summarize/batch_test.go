package summarize

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/hndaily/hackernews"
	"github.com/c360studio/hndaily/llm"
)

func TestTranslateTitlesPositionalMapping(t *testing.T) {
	chat := &mockChat{respond: fmtTokenResponse("译")}
	s := NewSummarizer(chat, 300, 300)

	titles := []string{"alpha", "", "gamma", "delta"}
	out := s.TranslateTitles(context.Background(), titles)

	require.Len(t, out, len(titles))
	assert.Contains(t, out[0], "alpha")
	assert.Empty(t, out[1])
	assert.Contains(t, out[2], "gamma")
	assert.Contains(t, out[3], "delta")
	assert.Equal(t, 3, chat.callCount())
}

func TestSummarizeArticlesPositionalMapping(t *testing.T) {
	// Twenty inputs with empties at 4, 12, 19: the output buffer must keep
	// every result at its original index with sentinels in the gaps.
	chat := &mockChat{respond: fmtTokenResponse("摘")}
	s := NewSummarizer(chat, 300, 300)

	items := make([]ArticleInput, 20)
	empty := map[int]bool{4: true, 12: true, 19: true}
	for i := range items {
		if !empty[i] {
			items[i] = ArticleInput{Content: fmt.Sprintf("token-%02d", i)}
		}
	}

	out := s.SummarizeArticles(context.Background(), items)

	require.Len(t, out, 20)
	for i := range out {
		if empty[i] {
			assert.Empty(t, out[i], "position %d should be sentinel", i)
			continue
		}
		// Crude anti-bleed check: each summary references its own input
		// token and no other.
		require.NotEmpty(t, out[i], "position %d", i)
		assert.Contains(t, out[i], fmt.Sprintf("token-%02d", i))
		for j := range items {
			if j != i && !empty[j] {
				assert.NotContains(t, out[i], fmt.Sprintf("token-%02d ", j))
			}
		}
	}
	assert.Equal(t, 17, chat.callCount())
}

func TestSummarizeArticlesPerItemFailureContinues(t *testing.T) {
	chat := &mockChat{respond: func(req llm.Request) (*llm.Response, error) {
		prompt := req.Messages[len(req.Messages)-1].Content
		if strings.Contains(prompt, "poison") {
			return nil, llm.ErrRateLimitExhausted
		}
		return &llm.Response{Content: "ok"}, nil
	}}
	s := NewSummarizer(chat, 300, 300)

	out := s.SummarizeArticles(context.Background(), []ArticleInput{
		{Content: "good one"},
		{Content: "poison"},
		{Content: "good two"},
	})

	require.Len(t, out, 3)
	assert.Equal(t, "ok", out[0])
	assert.Empty(t, out[1])
	assert.Equal(t, "ok", out[2])
}

func TestSummarizeArticlesConcurrencyBounded(t *testing.T) {
	chat := &mockChat{respond: func(llm.Request) (*llm.Response, error) {
		time.Sleep(10 * time.Millisecond)
		return &llm.Response{Content: "ok"}, nil
	}}
	s := NewSummarizer(chat, 300, 300, WithConcurrency(3))

	items := make([]ArticleInput, 12)
	for i := range items {
		items[i] = ArticleInput{Content: "body"}
	}
	s.SummarizeArticles(context.Background(), items)

	assert.LessOrEqual(t, chat.peak, 3)
	assert.Equal(t, 12, chat.callCount())
}

func TestSummarizeCommentBatchesPositionalMapping(t *testing.T) {
	chat := &mockChat{respond: fixedResponse("要点")}
	s := NewSummarizer(chat, 300, 300)

	thread := []hackernews.Comment{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	batches := [][]hackernews.Comment{
		thread,
		nil, // no comments fetched
		{{Text: "too"}, {Text: "thin"}},
		thread,
	}

	out := s.SummarizeCommentBatches(context.Background(), batches)

	require.Len(t, out, 4)
	assert.Equal(t, "要点", out[0])
	assert.Empty(t, out[1])
	assert.Empty(t, out[2]) // thin thread maps to the sentinel
	assert.Equal(t, "要点", out[3])
}
