package task

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/hndaily/metrics"
	"github.com/c360studio/hndaily/store"
)

// runBatch claims up to batchSize pending articles and runs the per-story
// pipeline across them. The batch carries its own wall-clock deadline:
// when it expires, finished articles have already been written and
// in-flight ones stay in processing until an explicit retry reclaims them.
func (r *Runner) runBatch(ctx context.Context, date string) error {
	ctx, cancel := context.WithTimeout(ctx, r.batchDeadline)
	defer cancel()

	claimed, err := r.store.ClaimPendingBatch(ctx, date, r.batchSize)
	if err != nil {
		return err
	}
	if len(claimed) == 0 {
		return nil
	}

	r.logger.Info("Processing batch", "date", date, "claimed", len(claimed))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, article := range claimed {
		g.Go(func() error {
			r.processArticle(gctx, date, article)
			return nil
		})
	}
	return g.Wait()
}

// processArticle runs extract, translate, summarize, and the comment
// digest for one claimed article, then records the terminal status. Only a
// summary failure after retries is fatal to the article; every other step
// degrades.
func (r *Runner) processArticle(ctx context.Context, date string, article store.Article) {
	content := r.extractor.Extract(ctx, article.URL)

	titleChinese, err := r.summarizer.TranslateTitle(ctx, article.Title)
	if err != nil {
		// Fallback to the English title; the story still publishes.
		r.logger.Warn("Title translation fell back",
			"date", date, "story_id", article.StoryID, "error", err)
	}

	summary, err := r.summarizer.SummarizeArticle(ctx, content.FullContent, content.Description)
	if err != nil {
		r.failArticle(ctx, date, article.StoryID, fmt.Sprintf("summarize: %v", err))
		return
	}

	commentSummary := r.digestComments(ctx, date, article.StoryID)

	err = r.store.CompleteArticle(ctx, date, article.StoryID, store.CompletedFields{
		TitleChinese:   titleChinese,
		Content:        content.FullContent,
		ContentChinese: summary,
		CommentSummary: commentSummary,
	})
	if err != nil {
		r.logger.Error("Could not record completed article",
			"date", date, "story_id", article.StoryID, "error", err)
		return
	}
	metrics.StoriesProcessed.WithLabelValues("completed").Inc()
}

// digestComments is fully soft: any failure yields no comment section.
func (r *Runner) digestComments(ctx context.Context, date string, storyID int64) string {
	comments, err := r.source.TopComments(ctx, storyID)
	if err != nil {
		r.logger.Warn("Comment fetch failed",
			"date", date, "story_id", storyID, "error", err)
		return ""
	}

	digest, err := r.summarizer.SummarizeComments(ctx, comments)
	if err != nil {
		r.logger.Warn("Comment digest failed",
			"date", date, "story_id", storyID, "error", err)
		return ""
	}
	return digest
}

func (r *Runner) failArticle(ctx context.Context, date string, storyID int64, message string) {
	if err := r.store.FailArticle(ctx, date, storyID, message); err != nil {
		r.logger.Error("Could not record failed article",
			"date", date, "story_id", storyID, "error", err)
		return
	}
	metrics.StoriesProcessed.WithLabelValues("failed").Inc()
	r.logger.Warn("Article failed", "date", date, "story_id", storyID, "reason", message)
}
