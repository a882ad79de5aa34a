package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/grumblehq/syncd/internal/types"
)

// DiscourseCollector fetches the latest topics of one Discourse forum via
// its RSS feed. Feed parsing is delegated entirely to gofeed; no HTML
// scraping happens here.
type DiscourseCollector struct {
	forumURL string
	host     string
	parser   *gofeed.Parser
}

// NewDiscourseCollector creates a collector for one forum base URL.
func NewDiscourseCollector(forumURL string) (*DiscourseCollector, error) {
	parsed, err := url.Parse(forumURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid forum URL %q", forumURL)
	}
	return &DiscourseCollector{
		forumURL: strings.TrimRight(forumURL, "/"),
		host:     parsed.Host,
		parser:   gofeed.NewParser(),
	}, nil
}

// Name implements Collector.
func (c *DiscourseCollector) Name() string {
	return "discourse:" + c.host
}

// Fetch implements Collector.
func (c *DiscourseCollector) Fetch(ctx context.Context, since time.Time) ([]*types.FeedbackItem, error) {
	feed, err := c.parser.ParseURLWithContext(c.forumURL+"/latest.rss", ctx)
	if err != nil {
		return nil, fmt.Errorf("discourse %s: %w", c.host, err)
	}

	language := ""
	if feed.Language != "" {
		// Feed language tags look like "en-US"; keep the primary subtag.
		language, _, _ = strings.Cut(feed.Language, "-")
	}

	var items []*types.FeedbackItem
	for _, entry := range feed.Items {
		publishedAt := time.Time{}
		if entry.PublishedParsed != nil {
			publishedAt = *entry.PublishedParsed
		}
		if !since.IsZero() && !publishedAt.After(since) {
			continue
		}

		sourceID := entry.GUID
		if sourceID == "" {
			sourceID = entry.Link
		}
		if sourceID == "" {
			continue
		}

		author := ""
		if entry.Author != nil {
			author = entry.Author.Name
		}

		items = append(items, &types.FeedbackItem{
			ID:          "discourse-" + stableID(c.host, sourceID),
			SourceType:  types.SourceDiscourse,
			SourceID:    sourceID,
			SourceName:  c.Name(),
			Title:       entry.Title,
			Content:     strings.TrimSpace(entry.Title + "\n\n" + entry.Description),
			Author:      author,
			PublishedAt: publishedAt,
			URL:         entry.Link,
			Language:    language,
		})
	}
	return items, nil
}
