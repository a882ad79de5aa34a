package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grumblehq/syncd/internal/types"
)

const twitterAPIBase = "https://api.twitter.com"

// TwitterCollector searches recent tweets for the configured keywords using
// the v2 recent search endpoint. All keywords share one query, so one
// collector instance covers the whole keyword list.
type TwitterCollector struct {
	keywords []string
	bearer   string
	base     string
	api      *apiClient
}

// NewTwitterCollector creates a collector for the given search keywords.
func NewTwitterCollector(keywords []string, bearer string) (*TwitterCollector, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("twitter collector needs at least one keyword")
	}
	return &TwitterCollector{
		keywords: keywords,
		bearer:   bearer,
		base:     twitterAPIBase,
		api:      newAPIClient(1),
	}, nil
}

// Name implements Collector.
func (c *TwitterCollector) Name() string {
	return "twitter:search"
}

type tweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AuthorID      string `json:"author_id"`
	CreatedAt     string `json:"created_at"`
	Lang          string `json:"lang"`
	PublicMetrics struct {
		ReplyCount int `json:"reply_count"`
		LikeCount  int `json:"like_count"`
	} `json:"public_metrics"`
}

type twitterUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Fetch implements Collector.
func (c *TwitterCollector) Fetch(ctx context.Context, since time.Time) ([]*types.FeedbackItem, error) {
	query := "(" + strings.Join(c.keywords, " OR ") + ") -is:retweet"

	params := url.Values{
		"query":        {query},
		"max_results":  {"100"},
		"tweet.fields": {"created_at,lang,public_metrics,author_id"},
		"expansions":   {"author_id"},
		"user.fields":  {"username"},
	}
	if !since.IsZero() {
		// The API rejects start_time older than seven days; clamp rather
		// than fail so a long-stale watermark still yields a sync.
		oldest := time.Now().Add(-6 * 24 * time.Hour)
		start := since
		if start.Before(oldest) {
			start = oldest
		}
		params.Set("start_time", start.UTC().Format(time.RFC3339))
	}
	endpoint := c.base + "/2/tweets/search/recent?" + params.Encode()

	body, err := c.api.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.bearer)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("twitter search: %w", err)
	}

	var response struct {
		Data     []tweet `json:"data"`
		Includes struct {
			Users []twitterUser `json:"users"`
		} `json:"includes"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("decoding tweets: %w", err)
	}

	usernames := make(map[string]string, len(response.Includes.Users))
	for _, u := range response.Includes.Users {
		usernames[u.ID] = u.Username
	}

	var items []*types.FeedbackItem
	for _, tw := range response.Data {
		publishedAt, _ := time.Parse(time.RFC3339, tw.CreatedAt)
		if !since.IsZero() && !publishedAt.After(since) {
			continue
		}
		author := usernames[tw.AuthorID]
		lang := tw.Lang
		if lang == "und" || lang == "qme" || lang == "zxx" {
			lang = ""
		}
		item := &types.FeedbackItem{
			ID:          "twitter-" + tw.ID,
			SourceType:  types.SourceTwitter,
			SourceID:    tw.ID,
			SourceName:  c.Name(),
			Content:     tw.Text,
			Author:      author,
			PublishedAt: publishedAt,
			Language:    lang,
			Replies:     tw.PublicMetrics.ReplyCount,
			Reactions:   tw.PublicMetrics.LikeCount,
		}
		if author != "" {
			item.AuthorURL = "https://twitter.com/" + author
			item.URL = fmt.Sprintf("https://twitter.com/%s/status/%s", author, tw.ID)
		} else {
			item.URL = "https://twitter.com/i/web/status/" + tw.ID
		}
		items = append(items, item)
	}
	return items, nil
}
