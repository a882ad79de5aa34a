// Package types defines the shared data model for the sync pipeline.
package types

import (
	"fmt"
	"time"
)

// FeedbackItem represents one piece of user feedback collected from a source.
//
// Identity: ID is derived from the source and the source-side identifier
// (e.g. "github-issue-12345"), so re-fetching the same logical item always
// produces the same ID. IDs are unique within the store.
//
// Lifecycle: created on first fetch, then only mutated - content fields are
// refreshed by the merger, sentiment/category by the analyzer, translations
// by the translator, and group_id by the grouper. Items are never deleted
// except by an explicit admin purge.
type FeedbackItem struct {
	ID         string     `json:"id"`
	SourceType SourceType `json:"source_type"`
	SourceID   string     `json:"source_id"`
	// SourceName identifies the configured source instance that produced the
	// item (e.g. "github:acme/widget", "discourse:forum.acme.dev"). Watermarks
	// are keyed by this name.
	SourceName  string    `json:"source_name"`
	Title       string    `json:"title,omitempty"`
	Content     string    `json:"content"`
	Author      string    `json:"author,omitempty"`
	AuthorURL   string    `json:"author_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	URL         string    `json:"url,omitempty"`

	// Analysis artifacts. These survive re-fetch: the merger always carries
	// them forward from the baseline record.
	Sentiment           Sentiment `json:"sentiment,omitempty"`
	SentimentConfidence float64   `json:"sentiment_confidence,omitempty"`
	Category            Category  `json:"category,omitempty"`
	CategoryConfidence  float64   `json:"category_confidence,omitempty"`
	Summary             string    `json:"summary,omitempty"`
	GroupID             string    `json:"group_id,omitempty"`

	Language  string `json:"language,omitempty"`
	Replies   int    `json:"replies,omitempty"`
	Reactions int    `json:"reactions,omitempty"`
	IsReply   bool   `json:"is_reply,omitempty"`
	Analyzed  bool   `json:"analyzed"`
	Dismissed bool   `json:"dismissed,omitempty"`

	// Selected is UI-only selection state. It is never persisted.
	Selected bool `json:"-"`

	// Translations maps a target language code to the translated content
	// (or summary), TranslatedTitles likewise for titles. A non-empty
	// Translations map marks the item as translated; it is never
	// re-translated after that.
	Translations     map[string]string `json:"translations,omitempty"`
	TranslatedTitles map[string]string `json:"translated_titles,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the item has valid field values
func (i *FeedbackItem) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !i.SourceType.IsValid() {
		return fmt.Errorf("invalid source type: %s", i.SourceType)
	}
	if i.Content == "" && i.Title == "" {
		return fmt.Errorf("item %s has neither title nor content", i.ID)
	}
	if i.Sentiment != "" && !i.Sentiment.IsValid() {
		return fmt.Errorf("invalid sentiment: %s", i.Sentiment)
	}
	if i.Category != "" && !i.Category.IsValid() {
		return fmt.Errorf("invalid category: %s", i.Category)
	}
	if i.SentimentConfidence < 0 || i.SentimentConfidence > 1 {
		return fmt.Errorf("sentiment_confidence must be between 0.0 and 1.0 (got %.2f)", i.SentimentConfidence)
	}
	if i.CategoryConfidence < 0 || i.CategoryConfidence > 1 {
		return fmt.Errorf("category_confidence must be between 0.0 and 1.0 (got %.2f)", i.CategoryConfidence)
	}
	return nil
}

// Translated reports whether the item already carries translations.
// Translation is computed once and treated as permanently cached.
func (i *FeedbackItem) Translated() bool {
	return len(i.Translations) > 0
}

// SourceType identifies the kind of source an item was collected from
type SourceType string

const (
	SourceGitHubIssue      SourceType = "github-issue"
	SourceGitHubDiscussion SourceType = "github-discussion"
	SourceDiscourse        SourceType = "discourse"
	SourceTwitter          SourceType = "twitter"
)

// IsValid checks if the source type value is valid
func (s SourceType) IsValid() bool {
	switch s {
	case SourceGitHubIssue, SourceGitHubDiscussion, SourceDiscourse, SourceTwitter:
		return true
	}
	return false
}

// Sentiment is the classified tone of an item
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// IsValid checks if the sentiment value is valid
func (s Sentiment) IsValid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Category is the classified kind of feedback
type Category string

const (
	CategoryBug            Category = "bug"
	CategoryFeatureRequest Category = "feature_request"
	CategoryQuestion       Category = "question"
	CategoryPraise         Category = "praise"
	CategoryComplaint      Category = "complaint"
	CategoryOther          Category = "other"
)

// IsValid checks if the category value is valid
func (c Category) IsValid() bool {
	switch c {
	case CategoryBug, CategoryFeatureRequest, CategoryQuestion,
		CategoryPraise, CategoryComplaint, CategoryOther:
		return true
	}
	return false
}

// FeedbackGroup is a themed cluster of feedback items.
//
// Groups are created per batch during clustering and then replaced by
// canonical groups during consolidation. ItemIDs must reference existing
// items, and an item whose GroupID is set must appear in that group's
// ItemIDs.
type FeedbackGroup struct {
	ID           string             `json:"id"`
	Theme        string             `json:"theme"`
	Summary      string             `json:"summary,omitempty"`
	Sentiment    Sentiment          `json:"sentiment,omitempty"`
	Category     Category           `json:"category,omitempty"`
	ItemIDs      []string           `json:"item_ids"`
	ItemCount    int                `json:"item_count"`
	SourceCounts map[SourceType]int `json:"source_counts,omitempty"`
	Languages    []string           `json:"languages,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Validate checks if the group has valid field values
func (g *FeedbackGroup) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("group id is required")
	}
	if g.Theme == "" {
		return fmt.Errorf("group %s has no theme", g.ID)
	}
	if g.ItemCount != len(g.ItemIDs) {
		return fmt.Errorf("group %s item_count %d does not match %d item_ids", g.ID, g.ItemCount, len(g.ItemIDs))
	}
	return nil
}

// Recount recomputes ItemCount, SourceCounts, and Languages from the given
// item set. Items referenced by the group but missing from the set still
// count toward ItemCount but contribute no source/language stats.
func (g *FeedbackGroup) Recount(items map[string]*FeedbackItem) {
	g.ItemCount = len(g.ItemIDs)
	g.SourceCounts = make(map[SourceType]int)
	langs := make(map[string]bool)
	for _, id := range g.ItemIDs {
		item, ok := items[id]
		if !ok {
			continue
		}
		g.SourceCounts[item.SourceType]++
		if item.Language != "" {
			langs[item.Language] = true
		}
	}
	g.Languages = g.Languages[:0]
	for lang := range langs {
		g.Languages = append(g.Languages, lang)
	}
}

// SyncState tracks incremental sync progress.
//
// Watermarks hold, per source name, the max PublishedAt observed among the
// items attributable to that source in the final merged set - never the
// sync's wall-clock time. Absent state (first run) triggers a full,
// unbounded fetch. Written once per successful sync cycle.
type SyncState struct {
	// LastSync is the wall-clock completion time of the last successful cycle.
	LastSync time.Time `json:"last_sync"`
	// LastRunID identifies the cycle that wrote this state (for tracing).
	LastRunID  string               `json:"last_run_id,omitempty"`
	Watermarks map[string]time.Time `json:"watermarks,omitempty"`
}

// Watermark returns the stored watermark for a source name, or the zero
// time when none exists (full fetch).
func (s *SyncState) Watermark(sourceName string) time.Time {
	if s == nil || s.Watermarks == nil {
		return time.Time{}
	}
	return s.Watermarks[sourceName]
}

// SyncResult summarizes one sync cycle, including the partial-failure
// counts callers need to distinguish "nothing new" from "everything failed".
type SyncResult struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	ItemsFetched    int `json:"items_fetched"`
	NewItems        int `json:"new_items"`
	TotalItems      int `json:"total_items"`
	ItemsAnalyzed   int `json:"items_analyzed"`
	ItemsTranslated int `json:"items_translated"`
	// Groups counts canonical groups produced by this cycle's clustering;
	// 0 when clustering was skipped or consolidation failed, regardless of
	// what the store already holds.
	Groups int `json:"groups"`

	// Non-fatal failure counters. A cycle with failures still completes.
	FailedSources               []string `json:"failed_sources,omitempty"`
	ClassificationBatchFailures int      `json:"classification_batch_failures,omitempty"`
	GroupingBatchFailures       int      `json:"grouping_batch_failures,omitempty"`
	TranslationBatchFailures    int      `json:"translation_batch_failures,omitempty"`
}

// Degraded reports whether any source or batch failed during the cycle.
func (r *SyncResult) Degraded() bool {
	return len(r.FailedSources) > 0 ||
		r.ClassificationBatchFailures > 0 ||
		r.GroupingBatchFailures > 0 ||
		r.TranslationBatchFailures > 0
}
