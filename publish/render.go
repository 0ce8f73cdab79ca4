package publish

import (
	"fmt"
	"strings"
)

// Digest is the rendered output artifact for one day.
type Digest struct {
	Date     string
	FileName string
	Markdown string
	Stories  []ProcessedStory
}

// RenderDigest produces the canonical Markdown for a date. The output is
// byte-deterministic for a given story list.
func RenderDigest(date string, stories []ProcessedStory) Digest {
	var b strings.Builder

	b.WriteString("---\n")
	b.WriteString("layout: post\n")
	fmt.Fprintf(&b, "title: HackerNews Daily - %s\n", date)
	fmt.Fprintf(&b, "date: %s\n", date)
	b.WriteString("---\n\n")

	for _, story := range stories {
		fmt.Fprintf(&b, "## %d. %s\n\n", story.Rank, story.TitleChinese)
		fmt.Fprintf(&b, "%s\n\n", story.TitleEnglish)
		fmt.Fprintf(&b, "**发布时间**: %s\n\n", story.Time)
		fmt.Fprintf(&b, "**链接**: [%s](%s)\n\n", story.URL, story.URL)
		fmt.Fprintf(&b, "**描述**:\n\n%s\n\n", story.Description)
		if story.CommentSummary != "" {
			fmt.Fprintf(&b, "**评论要点**:\n\n%s\n\n", story.CommentSummary)
		}
		fmt.Fprintf(&b, "*[HackerNews](https://news.ycombinator.com/item?id=%d)*\n\n", story.StoryID)
		b.WriteString("---\n\n")
	}

	return Digest{
		Date:     date,
		FileName: date + "-daily.md",
		Markdown: b.String(),
		Stories:  stories,
	}
}
