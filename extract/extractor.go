// Package extract produces article full text and meta descriptions for
// story URLs. Extraction is best-effort: a readability pass over the
// fetched HTML, then the page's meta description, then an optional
// headless-crawler service. Total failure yields an empty Result, letting
// downstream fallbacks render a placeholder.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/c360studio/hndaily/fetch"
)

// Result holds whatever extraction produced. Either field may be empty.
type Result struct {
	// FullContent is the article body as Markdown.
	FullContent string
	// Description is the page's meta description.
	Description string
}

// Empty reports whether extraction produced nothing usable.
func (r Result) Empty() bool {
	return r.FullContent == "" && r.Description == ""
}

// CrawlerConfig points at the optional headless-crawler fallback service.
type CrawlerConfig struct {
	URL   string
	Token string
}

// Extractor fetches pages and extracts readable content.
type Extractor struct {
	fetcher   *fetch.Fetcher
	converter *md.Converter
	crawler   CrawlerConfig
	guard     func(string) error
	logger    *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCrawler enables the crawler fallback.
func WithCrawler(cfg CrawlerConfig) Option {
	return func(e *Extractor) { e.crawler = cfg }
}

// WithURLGuard replaces the URL validation applied before fetching.
func WithURLGuard(guard func(string) error) Option {
	return func(e *Extractor) { e.guard = guard }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// NewExtractor creates an Extractor.
func NewExtractor(fetcher *fetch.Fetcher, opts ...Option) *Extractor {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	e := &Extractor{
		fetcher:   fetcher,
		converter: converter,
		guard:     ValidateURL,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract produces the article content for a URL. It never fails: every
// error is logged and degrades to the next fallback, ending in an empty
// Result. Synthetic hn-item URLs have no article and return empty
// immediately.
func (e *Extractor) Extract(ctx context.Context, rawURL string) Result {
	if rawURL == "" || strings.HasPrefix(rawURL, "hn-item://") {
		return Result{}
	}

	if err := e.guard(rawURL); err != nil {
		e.logger.Warn("Refusing to fetch story URL", "url", rawURL, "error", err)
		return Result{}
	}

	var result Result

	body, err := e.fetchPage(ctx, rawURL)
	if err != nil {
		e.logger.Warn("Article fetch failed", "url", rawURL, "error", err)
	} else {
		result.FullContent = e.readableContent(body, rawURL)
		result.Description = metaDescription(body)
	}

	if result.FullContent == "" && e.crawler.URL != "" {
		if markdown, err := e.crawl(ctx, rawURL); err != nil {
			// Soft failure: the crawler is an optional enhancement.
			e.logger.Warn("Crawler fallback failed", "url", rawURL, "error", err)
		} else {
			result.FullContent = markdown
		}
	}

	return result
}

// fetchPage retrieves the raw HTML.
func (e *Extractor) fetchPage(ctx context.Context, rawURL string) ([]byte, error) {
	result, err := e.fetcher.Do(ctx, fetch.Request{
		Method:         http.MethodGet,
		URL:            rawURL,
		Timeout:        20 * time.Second,
		MaxRetries:     1,
		RetryBaseDelay: time.Second,
	})
	if err != nil {
		return nil, err
	}
	return result.Body, nil
}

// readableContent runs a readability pass and converts the extracted body
// to Markdown. Returns "" when the page has no extractable article.
func (e *Extractor) readableContent(body []byte, rawURL string) string {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		e.logger.Debug("Readability extraction failed", "url", rawURL, "error", err)
		return ""
	}
	if strings.TrimSpace(article.TextContent) == "" {
		return ""
	}

	markdown, err := e.converter.ConvertString(article.Content)
	if err != nil {
		e.logger.Debug("Markdown conversion failed", "url", rawURL, "error", err)
		// The plain text is still usable as content.
		return strings.TrimSpace(article.TextContent)
	}
	return strings.TrimSpace(markdown)
}

// crawlerResponse is the crawler service's reply.
type crawlerResponse struct {
	Success  bool   `json:"success"`
	Markdown string `json:"markdown"`
	Error    string `json:"error"`
}

// crawl asks the headless-crawler service to render the page.
func (e *Extractor) crawl(ctx context.Context, rawURL string) (string, error) {
	payload, err := json.Marshal(map[string]string{"url": rawURL})
	if err != nil {
		return "", err
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if e.crawler.Token != "" {
		headers["Authorization"] = "Bearer " + e.crawler.Token
	}

	result, err := e.fetcher.Do(ctx, fetch.Request{
		Method:         http.MethodPost,
		URL:            e.crawler.URL,
		Headers:        headers,
		Body:           payload,
		Timeout:        30 * time.Second,
		MaxRetries:     1,
		RetryBaseDelay: time.Second,
		ExpectJSON:     true,
	})
	if err != nil {
		return "", err
	}

	var resp crawlerResponse
	if err := result.Decode(&resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("crawler error: %s", resp.Error)
	}
	return strings.TrimSpace(resp.Markdown), nil
}

// metaDescription extracts the page's description meta tag, preferring the
// standard name over the OpenGraph property.
func metaDescription(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var standard, og string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var name, property, content string
			for _, attr := range n.Attr {
				switch strings.ToLower(attr.Key) {
				case "name":
					name = strings.ToLower(attr.Val)
				case "property":
					property = strings.ToLower(attr.Val)
				case "content":
					content = attr.Val
				}
			}
			if name == "description" && standard == "" {
				standard = strings.TrimSpace(content)
			}
			if property == "og:description" && og == "" {
				og = strings.TrimSpace(content)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if standard != "" {
		return standard
	}
	return og
}
