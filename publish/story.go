// Package publish renders the day's completed articles into the canonical
// Markdown digest and fans it out to the configured sinks.
package publish

import (
	"time"

	"github.com/c360studio/hndaily/store"
)

// ProcessedStory is the aggregation view of one completed article. Ranks
// are re-numbered over survivors so the published digest is always
// contiguous even when some articles failed.
type ProcessedStory struct {
	Rank           int
	StoryID        int64
	TitleChinese   string
	TitleEnglish   string
	Score          int
	URL            string
	Time           string
	Timestamp      int64
	Description    string
	CommentSummary string
}

// FromArticles maps completed articles (already in rank order) to
// ProcessedStory values with ranks 1..k.
func FromArticles(articles []store.Article) []ProcessedStory {
	stories := make([]ProcessedStory, 0, len(articles))
	for _, a := range articles {
		stories = append(stories, ProcessedStory{
			Rank:           len(stories) + 1,
			StoryID:        a.StoryID,
			TitleChinese:   a.TitleChinese.String,
			TitleEnglish:   a.Title,
			Score:          a.Score,
			URL:            a.URL,
			Time:           time.Unix(a.PostedAt, 0).UTC().Format("2006-01-02 15:04:05") + " UTC",
			Timestamp:      a.PostedAt,
			Description:    a.ContentChinese.String,
			CommentSummary: a.CommentSummary.String,
		})
	}
	return stories
}
