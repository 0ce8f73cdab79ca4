// Package hackernews pulls the day's candidate stories and their top
// comments from the HackerNews Firebase and Algolia APIs.
package hackernews

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/c360studio/hndaily/fetch"
)

// API endpoints. Overridable for tests.
const (
	defaultBestStoriesURL = "https://hacker-news.firebaseio.com/v0/beststories.json"
	defaultAlgoliaBaseURL = "https://hn.algolia.com/api/v1"
)

// detailBatchSize is the Algolia search page size when resolving story
// details by id. The API maximum is 100 ids per request.
const detailBatchSize = 100

// maxDetailPages caps detail resolution so a pathological best list cannot
// blow the invocation's subrequest budget.
const maxDetailPages = 10

// topCommentLimit is the number of top-level comments fetched per story.
const topCommentLimit = 10

// Client fetches stories and comments. Construct with NewClient.
type Client struct {
	fetcher *fetch.Fetcher
	logger  *slog.Logger

	bestStoriesURL string
	algoliaBaseURL string

	storyLimit      int
	timeWindowHours int
}

// Option configures a Client.
type Option func(*Client)

// WithBestStoriesURL overrides the best-stories endpoint.
func WithBestStoriesURL(u string) Option {
	return func(c *Client) { c.bestStoriesURL = u }
}

// WithAlgoliaBaseURL overrides the Algolia API base URL.
func WithAlgoliaBaseURL(u string) Option {
	return func(c *Client) { c.algoliaBaseURL = u }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a HackerNews client. storyLimit truncates the day's
// candidate set; timeWindowHours is the candidate window ending at day end.
func NewClient(fetcher *fetch.Fetcher, storyLimit, timeWindowHours int, opts ...Option) *Client {
	c := &Client{
		fetcher:         fetcher,
		logger:          slog.Default(),
		bestStoriesURL:  defaultBestStoriesURL,
		algoliaBaseURL:  defaultAlgoliaBaseURL,
		storyLimit:      storyLimit,
		timeWindowHours: timeWindowHours,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchDailyCandidates returns the candidate stories for the UTC day given
// as YYYY-MM-DD, ordered by score descending (createdAt descending as the
// tiebreak) and truncated to the story limit. Detail batches that fail are
// logged and skipped; an empty day returns an empty slice, not an error.
func (c *Client) FetchDailyCandidates(ctx context.Context, date string) ([]Story, error) {
	dayEnd, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	dayEnd = dayEnd.AddDate(0, 0, 1)
	windowStart := dayEnd.Add(-time.Duration(c.timeWindowHours) * time.Hour)

	ids, err := c.fetchBestIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch best story ids: %w", err)
	}

	var stories []Story
	pages := 0
	for start := 0; start < len(ids) && pages < maxDetailPages; start += detailBatchSize {
		end := min(start+detailBatchSize, len(ids))
		pages++

		batch, err := c.fetchDetails(ctx, ids[start:end])
		if err != nil {
			// Story-scoped I/O failure: skip the batch, keep the day alive.
			c.logger.Warn("Story detail batch failed",
				"page", pages,
				"ids", fmt.Sprintf("%d..%d", ids[start], ids[end-1]),
				"error", err)
			continue
		}
		stories = append(stories, batch...)
	}

	inWindow := stories[:0]
	for _, s := range stories {
		created := time.Unix(s.CreatedAt, 0).UTC()
		if !created.Before(windowStart) && created.Before(dayEnd) {
			inWindow = append(inWindow, s)
		}
	}

	sort.SliceStable(inWindow, func(i, j int) bool {
		if inWindow[i].Score != inWindow[j].Score {
			return inWindow[i].Score > inWindow[j].Score
		}
		return inWindow[i].CreatedAt > inWindow[j].CreatedAt
	})

	if len(inWindow) > c.storyLimit {
		inWindow = inWindow[:c.storyLimit]
	}

	c.logger.Info("Fetched daily candidates",
		"date", date,
		"best_ids", len(ids),
		"in_window", len(inWindow))

	return inWindow, nil
}

// fetchBestIDs returns the curated best-story id list, order preserved.
func (c *Client) fetchBestIDs(ctx context.Context) ([]int64, error) {
	result, err := c.fetcher.Do(ctx, fetch.Request{
		Method:         http.MethodGet,
		URL:            c.bestStoriesURL,
		Timeout:        15 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Second,
		ExpectJSON:     true,
	})
	if err != nil {
		return nil, err
	}

	var ids []int64
	if err := result.Decode(&ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// algoliaSearchResponse is the subset of the Algolia search response the
// adapter consumes.
type algoliaSearchResponse struct {
	Hits []struct {
		ObjectID   string `json:"objectID"`
		Title      string `json:"title"`
		URL        string `json:"url"`
		Points     int    `json:"points"`
		CreatedAtI int64  `json:"created_at_i"`
		Author     string `json:"author"`
	} `json:"hits"`
}

// fetchDetails resolves one batch of story details by id.
func (c *Client) fetchDetails(ctx context.Context, ids []int64) ([]Story, error) {
	tags := make([]string, len(ids))
	for i, id := range ids {
		tags[i] = fmt.Sprintf("story_%d", id)
	}

	query := url.Values{}
	query.Set("tags", fmt.Sprintf("story,(%s)", strings.Join(tags, ",")))
	query.Set("hitsPerPage", strconv.Itoa(len(ids)))

	result, err := c.fetcher.Do(ctx, fetch.Request{
		Method:         http.MethodGet,
		URL:            fmt.Sprintf("%s/search?%s", c.algoliaBaseURL, query.Encode()),
		Timeout:        15 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Second,
		ExpectJSON:     true,
	})
	if err != nil {
		return nil, err
	}

	var resp algoliaSearchResponse
	if err := result.Decode(&resp); err != nil {
		return nil, err
	}

	stories := make([]Story, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		id, err := strconv.ParseInt(hit.ObjectID, 10, 64)
		if err != nil {
			c.logger.Warn("Skipping hit with malformed objectID", "object_id", hit.ObjectID)
			continue
		}
		stories = append(stories, Story{
			ID:        id,
			Title:     hit.Title,
			URL:       hit.URL,
			Score:     hit.Points,
			CreatedAt: hit.CreatedAtI,
			Author:    hit.Author,
		})
	}
	return stories, nil
}

// algoliaItemResponse is the subset of the Algolia item response used for
// comment fetching.
type algoliaItemResponse struct {
	Children []struct {
		Author     string `json:"author"`
		Text       string `json:"text"`
		CreatedAtI int64  `json:"created_at_i"`
	} `json:"children"`
}

// TopComments returns up to topCommentLimit top-level comments for the
// story, in the API's ranked order, with HTML stripped from the bodies.
func (c *Client) TopComments(ctx context.Context, storyID int64) ([]Comment, error) {
	result, err := c.fetcher.Do(ctx, fetch.Request{
		Method:         http.MethodGet,
		URL:            fmt.Sprintf("%s/items/%d", c.algoliaBaseURL, storyID),
		Timeout:        15 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Second,
		ExpectJSON:     true,
	})
	if err != nil {
		return nil, err
	}

	var resp algoliaItemResponse
	if err := result.Decode(&resp); err != nil {
		return nil, err
	}

	comments := make([]Comment, 0, topCommentLimit)
	for _, child := range resp.Children {
		text := strings.TrimSpace(stripHTML(child.Text))
		if text == "" {
			continue
		}
		comments = append(comments, Comment{
			StoryID:   storyID,
			Author:    child.Author,
			Text:      text,
			CreatedAt: child.CreatedAtI,
		})
		if len(comments) == topCommentLimit {
			break
		}
	}
	return comments, nil
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML flattens the HTML comment bodies Algolia returns into plain
// text. Paragraph breaks become newlines.
func stripHTML(s string) string {
	s = strings.ReplaceAll(s, "<p>", "\n")
	s = tagPattern.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}
