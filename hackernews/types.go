package hackernews

import "fmt"

// Story is the canonical story record produced by the source adapter.
type Story struct {
	// ID is the HN item id, globally unique and stable.
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Score     int    `json:"score"`
	CreatedAt int64  `json:"created_at"` // unix seconds
	Author    string `json:"author"`
}

// CanonicalURL returns the story URL, or a synthetic hn-item URL for
// stories without one (Ask HN, etc.).
func (s Story) CanonicalURL() string {
	if s.URL != "" {
		return s.URL
	}
	return fmt.Sprintf("hn-item://%d", s.ID)
}

// DiscussionURL returns the HN comment page for the story.
func (s Story) DiscussionURL() string {
	return fmt.Sprintf("https://news.ycombinator.com/item?id=%d", s.ID)
}

// Comment is a transient top-level comment on a story. Comments are
// fetched fresh inside the batch that processes their story and never
// persisted.
type Comment struct {
	StoryID   int64
	Author    string
	Text      string
	CreatedAt int64
}
