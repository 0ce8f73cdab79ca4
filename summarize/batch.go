package summarize

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/hndaily/hackernews"
)

// Batched operations. The contract for all three: the output has the same
// length as the input and out[i] corresponds to in[i] by position. Empty
// inputs are skipped without an LLM call and their slots hold the empty
// sentinel. Each non-empty item is a distinct chat-completion call, so no
// model can shift results between positions; the calls run concurrently,
// bounded by the summarizer's concurrency limit.
//
// Per-item failures (including rate-limit exhaustion) degrade that item to
// its single-operation fallback and the batch continues.

// ArticleInput pairs the extraction outputs for one story.
type ArticleInput struct {
	Content     string
	Description string
}

// TranslateTitles translates each title. Failed or already-Chinese titles
// keep their input value; empty slots stay empty.
func (s *Summarizer) TranslateTitles(ctx context.Context, titles []string) []string {
	out := make([]string, len(titles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, title := range titles {
		if title == "" {
			continue
		}
		g.Go(func() error {
			// TranslateTitle already degrades to the original on failure.
			translated, _ := s.TranslateTitle(gctx, title)
			out[i] = translated
			return nil
		})
	}
	g.Wait()

	return out
}

// SummarizeArticles summarizes each article. Slots whose content and
// description are both empty receive the empty sentinel; items whose LLM
// call fails after retries also degrade to the empty sentinel while the
// rest of the batch proceeds.
func (s *Summarizer) SummarizeArticles(ctx context.Context, items []ArticleInput) []string {
	out := make([]string, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, item := range items {
		if item.Content == "" && item.Description == "" {
			continue
		}
		g.Go(func() error {
			summary, err := s.SummarizeArticle(gctx, item.Content, item.Description)
			if err != nil {
				s.logger.Warn("Batched article summary failed",
					"position", i, "error", err)
				return nil
			}
			out[i] = summary
			return nil
		})
	}
	g.Wait()

	return out
}

// SummarizeCommentBatches digests each comment thread. Thin or failed
// threads yield the empty sentinel.
func (s *Summarizer) SummarizeCommentBatches(ctx context.Context, batches [][]hackernews.Comment) []string {
	out := make([]string, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, comments := range batches {
		if len(comments) == 0 {
			continue
		}
		g.Go(func() error {
			digest, err := s.SummarizeComments(gctx, comments)
			if err != nil {
				s.logger.Warn("Batched comment digest failed",
					"position", i, "error", err)
				return nil
			}
			out[i] = digest
			return nil
		})
	}
	g.Wait()

	return out
}
