package publish

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/hndaily/store"
)

func sampleStories() []ProcessedStory {
	return []ProcessedStory{
		{
			Rank:         1,
			StoryID:      2,
			TitleChinese: "标题B",
			TitleEnglish: "B",
			Score:        20,
			URL:          "https://b",
			Time:         "2025-01-15 08:00:00 UTC",
			Description:  "摘要B",
		},
		{
			Rank:         2,
			StoryID:      1,
			TitleChinese: "标题A",
			TitleEnglish: "A",
			Score:        10,
			URL:          "https://a",
			Time:         "2025-01-15 09:00:00 UTC",
			Description:  "摘要A",
		},
	}
}

func TestRenderDigestLayout(t *testing.T) {
	digest := RenderDigest("2025-01-15", sampleStories())

	assert.Equal(t, "2025-01-15-daily.md", digest.FileName)

	md := digest.Markdown
	assert.True(t, strings.HasPrefix(md, "---\nlayout: post\ntitle: HackerNews Daily - 2025-01-15\ndate: 2025-01-15\n---\n"))

	// Score-descending order decided the ranks upstream; the renderer just
	// emits them in sequence.
	first := strings.Index(md, "## 1. 标题B")
	second := strings.Index(md, "## 2. 标题A")
	require.Greater(t, first, 0)
	assert.Greater(t, second, first)

	assert.Contains(t, md, "**发布时间**: 2025-01-15 08:00:00 UTC")
	assert.Contains(t, md, "**链接**: [https://b](https://b)")
	assert.Contains(t, md, "**描述**:\n\n摘要B\n")
	assert.Contains(t, md, "*[HackerNews](https://news.ycombinator.com/item?id=2)*")

	// No comment digests, so the section is absent entirely.
	assert.NotContains(t, md, "评论要点")
	assert.Equal(t, 2, strings.Count(md, "## "))
}

func TestRenderDigestCommentSection(t *testing.T) {
	stories := sampleStories()
	stories[0].CommentSummary = "讨论要点"

	md := RenderDigest("2025-01-15", stories).Markdown

	assert.Contains(t, md, "**评论要点**:\n\n讨论要点\n")
	assert.Equal(t, 1, strings.Count(md, "评论要点"))
}

func TestRenderDigestDeterministic(t *testing.T) {
	a := RenderDigest("2025-01-15", sampleStories())
	b := RenderDigest("2025-01-15", sampleStories())
	assert.Equal(t, a.Markdown, b.Markdown)
}

func TestRenderDigestEmptyDay(t *testing.T) {
	digest := RenderDigest("2025-01-15", nil)
	assert.Contains(t, digest.Markdown, "title: HackerNews Daily - 2025-01-15")
	assert.NotContains(t, digest.Markdown, "## ")
}

func TestFromArticlesRenumbersSurvivors(t *testing.T) {
	// Original ranks 1, 3, 7: rank 3 and 7 survived a day where other
	// positions failed. Published ranks must still be 1..3.
	articles := []store.Article{
		{StoryID: 10, Rank: 1, Title: "A", TitleChinese: sql.NullString{String: "甲", Valid: true}, URL: "https://a", Score: 5, PostedAt: 1736928000},
		{StoryID: 30, Rank: 3, Title: "C", TitleChinese: sql.NullString{String: "丙", Valid: true}, URL: "https://c", Score: 4, PostedAt: 1736931600},
		{StoryID: 70, Rank: 7, Title: "G", TitleChinese: sql.NullString{String: "庚", Valid: true}, URL: "https://g", Score: 3, PostedAt: 1736935200},
	}

	stories := FromArticles(articles)

	require.Len(t, stories, 3)
	for i, story := range stories {
		assert.Equal(t, i+1, story.Rank)
	}
	assert.Equal(t, int64(30), stories[1].StoryID)
	assert.Equal(t, "丙", stories[1].TitleChinese)
	assert.Equal(t, "2025-01-15 08:00:00 UTC", stories[0].Time)
}
