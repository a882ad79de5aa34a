package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grumblehq/syncd/internal/types"
)

const githubAPIBase = "https://api.github.com"

// GitHubCollector fetches issues (REST) and discussions (GraphQL) for one
// repository. Pull requests are skipped.
type GitHubCollector struct {
	owner string
	repo  string
	token string
	base  string
	api   *apiClient
}

// NewGitHubCollector creates a collector for "owner/name".
func NewGitHubCollector(repo, token string) (*GitHubCollector, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("invalid github repo %q (expected owner/name)", repo)
	}
	return &GitHubCollector{
		owner: owner,
		repo:  name,
		token: token,
		base:  githubAPIBase,
		api:   newAPIClient(5),
	}, nil
}

// Name implements Collector.
func (c *GitHubCollector) Name() string {
	return fmt.Sprintf("github:%s/%s", c.owner, c.repo)
}

// Fetch implements Collector. Issues and discussions are fetched
// independently; a failure of one half degrades to the other half's items
// rather than failing the whole source.
func (c *GitHubCollector) Fetch(ctx context.Context, since time.Time) ([]*types.FeedbackItem, error) {
	var items []*types.FeedbackItem

	issues, issuesErr := c.fetchIssues(ctx, since)
	if issuesErr != nil {
		log.Printf("[github] %s/%s: issues fetch failed: %v", c.owner, c.repo, issuesErr)
	} else {
		items = append(items, issues...)
	}

	discussions, discErr := c.fetchDiscussions(ctx, since)
	if discErr != nil {
		log.Printf("[github] %s/%s: discussions fetch failed: %v", c.owner, c.repo, discErr)
	} else {
		items = append(items, discussions...)
	}

	if issuesErr != nil && discErr != nil {
		return nil, fmt.Errorf("github %s/%s: %w", c.owner, c.repo, issuesErr)
	}
	return items, nil
}

type githubIssue struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	HTMLURL   string `json:"html_url"`
	CreatedAt string `json:"created_at"`
	Comments  int    `json:"comments"`
	User      struct {
		Login   string `json:"login"`
		HTMLURL string `json:"html_url"`
	} `json:"user"`
	Reactions struct {
		PlusOne int `json:"+1"`
	} `json:"reactions"`
	PullRequest *struct{} `json:"pull_request,omitempty"`
}

func (c *GitHubCollector) fetchIssues(ctx context.Context, since time.Time) ([]*types.FeedbackItem, error) {
	params := url.Values{
		"state":    {"all"},
		"per_page": {"100"},
		"sort":     {"updated"},
	}
	if !since.IsZero() {
		params.Set("since", since.UTC().Format(time.RFC3339))
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/issues?%s", c.base, c.owner, c.repo, params.Encode())

	body, err := c.api.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/vnd.github+json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var issues []githubIssue
	if err := json.Unmarshal(body, &issues); err != nil {
		return nil, fmt.Errorf("decoding issues: %w", err)
	}

	var items []*types.FeedbackItem
	for _, issue := range issues {
		if issue.PullRequest != nil {
			continue
		}
		publishedAt, _ := time.Parse(time.RFC3339, issue.CreatedAt)
		items = append(items, &types.FeedbackItem{
			ID:          fmt.Sprintf("github-issue-%d", issue.ID),
			SourceType:  types.SourceGitHubIssue,
			SourceID:    fmt.Sprintf("%d", issue.ID),
			SourceName:  c.Name(),
			Title:       issue.Title,
			Content:     strings.TrimSpace(issue.Title + "\n\n" + issue.Body),
			Author:      issue.User.Login,
			AuthorURL:   issue.User.HTMLURL,
			PublishedAt: publishedAt,
			URL:         issue.HTMLURL,
			Language:    "en",
			Replies:     issue.Comments,
			Reactions:   issue.Reactions.PlusOne,
		})
	}
	return items, nil
}

const discussionsQuery = `
query($owner: String!, $name: String!) {
    repository(owner: $owner, name: $name) {
        discussions(first: 50, orderBy: {field: UPDATED_AT, direction: DESC}) {
            nodes {
                id
                title
                body
                url
                createdAt
                author { login url }
                comments { totalCount }
                upvoteCount
            }
        }
    }
}`

type githubDiscussion struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	URL       string `json:"url"`
	CreatedAt string `json:"createdAt"`
	Author    *struct {
		Login string `json:"login"`
		URL   string `json:"url"`
	} `json:"author"`
	Comments struct {
		TotalCount int `json:"totalCount"`
	} `json:"comments"`
	UpvoteCount int `json:"upvoteCount"`
}

func (c *GitHubCollector) fetchDiscussions(ctx context.Context, since time.Time) ([]*types.FeedbackItem, error) {
	payload, err := json.Marshal(map[string]any{
		"query": discussionsQuery,
		"variables": map[string]string{
			"owner": c.owner,
			"name":  c.repo,
		},
	})
	if err != nil {
		return nil, err
	}

	endpoint := c.base + "/graphql"
	body, err := c.api.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var response struct {
		Data struct {
			Repository struct {
				Discussions struct {
					Nodes []githubDiscussion `json:"nodes"`
				} `json:"discussions"`
			} `json:"repository"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("decoding discussions: %w", err)
	}

	var items []*types.FeedbackItem
	for _, disc := range response.Data.Repository.Discussions.Nodes {
		publishedAt, _ := time.Parse(time.RFC3339, disc.CreatedAt)
		// The discussions API has no server-side since filter.
		if !since.IsZero() && !publishedAt.After(since) {
			continue
		}
		author, authorURL := "", ""
		if disc.Author != nil {
			author, authorURL = disc.Author.Login, disc.Author.URL
		}
		items = append(items, &types.FeedbackItem{
			ID:          "github-discussion-" + disc.ID,
			SourceType:  types.SourceGitHubDiscussion,
			SourceID:    disc.ID,
			SourceName:  c.Name(),
			Title:       disc.Title,
			Content:     strings.TrimSpace(disc.Title + "\n\n" + disc.Body),
			Author:      author,
			AuthorURL:   authorURL,
			PublishedAt: publishedAt,
			URL:         disc.URL,
			Language:    "en",
			Replies:     disc.Comments.TotalCount,
			Reactions:   disc.UpvoteCount,
		})
	}
	return items, nil
}
