package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/grumblehq/syncd/internal/types"
)

// GroupProposal is one batch-local group returned by a clustering call.
// Grouping within a batch is opportunistic: an item may be left ungrouped,
// and belongs to at most one group per batch.
type GroupProposal struct {
	Theme     string          `json:"theme"`
	Summary   string          `json:"summary"`
	Sentiment types.Sentiment `json:"sentiment"`
	Category  types.Category  `json:"category"`
	ItemIDs   []string        `json:"item_ids"`
}

type groupResponse struct {
	Groups []GroupProposal `json:"groups"`
}

// ConsolidatedGroup is one canonical group returned by the consolidation
// call. SourceGroupIDs lists the batch-local groups it merges; a group with
// no cross-batch match comes back as a singleton with one source ID.
type ConsolidatedGroup struct {
	Theme          string          `json:"theme"`
	Summary        string          `json:"summary"`
	Sentiment      types.Sentiment `json:"sentiment"`
	Category       types.Category  `json:"category"`
	ItemIDs        []string        `json:"item_ids"`
	SourceGroupIDs []string        `json:"source_group_ids"`
}

type consolidateResponse struct {
	MergedGroups []ConsolidatedGroup `json:"merged_groups"`
}

// ProposeGroups clusters one batch of analyzed items into themed groups in
// a single model call.
func (c *Client) ProposeGroups(ctx context.Context, items []*types.FeedbackItem) ([]GroupProposal, error) {
	if len(items) == 0 {
		return nil, nil
	}

	prompt := buildGroupPrompt(items)

	maxTokens := len(items)*60 + 1000
	if maxTokens > 8000 {
		maxTokens = 8000
	}

	responseText, err := c.complete(ctx, "group", prompt, maxTokens)
	if err != nil {
		return nil, fmt.Errorf("AI grouping failed: %w", err)
	}

	parseResult := Parse[groupResponse](responseText, "grouping response")
	if !parseResult.Success {
		return nil, fmt.Errorf("failed to parse grouping response: %s (response: %s)",
			parseResult.Error, truncate(responseText, 200))
	}

	known := make(map[string]bool, len(items))
	for _, item := range items {
		known[item.ID] = true
	}

	// Drop hallucinated item ids and enforce at-most-one-group-per-item
	// within the batch.
	claimed := make(map[string]bool)
	groups := parseResult.Data.Groups[:0]
	for _, g := range parseResult.Data.Groups {
		if g.Theme == "" {
			continue
		}
		ids := g.ItemIDs[:0]
		for _, id := range g.ItemIDs {
			if !known[id] {
				log.Printf("[WARN] group %q references unknown item ID %q", g.Theme, id)
				continue
			}
			if claimed[id] {
				continue
			}
			claimed[id] = true
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			continue
		}
		g.ItemIDs = ids
		if !g.Sentiment.IsValid() {
			g.Sentiment = types.SentimentNeutral
		}
		if !g.Category.IsValid() {
			g.Category = types.CategoryOther
		}
		groups = append(groups, g)
	}

	return groups, nil
}

// ConsolidateGroups submits all batch-local groups from one cycle to a
// single call that identifies cross-batch duplicates of the same theme and
// merges them into canonical groups.
func (c *Client) ConsolidateGroups(ctx context.Context, groups []*types.FeedbackGroup) ([]ConsolidatedGroup, error) {
	if len(groups) == 0 {
		return nil, nil
	}

	prompt := buildConsolidatePrompt(groups)

	maxTokens := len(groups)*200 + 1000
	if maxTokens > 16000 {
		maxTokens = 16000
	}

	responseText, err := c.complete(ctx, "consolidate", prompt, maxTokens)
	if err != nil {
		return nil, fmt.Errorf("AI consolidation failed: %w", err)
	}

	parseResult := Parse[consolidateResponse](responseText, "consolidation response")
	if !parseResult.Success {
		return nil, fmt.Errorf("failed to parse consolidation response: %s (response: %s)",
			parseResult.Error, truncate(responseText, 200))
	}

	known := make(map[string]bool, len(groups))
	for _, g := range groups {
		known[g.ID] = true
	}

	merged := parseResult.Data.MergedGroups[:0]
	for _, g := range parseResult.Data.MergedGroups {
		ids := g.SourceGroupIDs[:0]
		for _, id := range g.SourceGroupIDs {
			if !known[id] {
				log.Printf("[WARN] consolidated group %q references unknown source group %q", g.Theme, id)
				continue
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			continue
		}
		g.SourceGroupIDs = ids
		if !g.Sentiment.IsValid() {
			g.Sentiment = types.SentimentNeutral
		}
		if !g.Category.IsValid() {
			g.Category = types.CategoryOther
		}
		merged = append(merged, g)
	}

	return merged, nil
}

func buildGroupPrompt(items []*types.FeedbackItem) string {
	var sb strings.Builder
	sb.WriteString(`You are grouping analyzed feedback items by underlying theme.

ITEMS:
`)
	for _, item := range items {
		summary := item.Summary
		if summary == "" {
			summary = truncate(item.Content, 100)
		}
		fmt.Fprintf(&sb, "ID: %s, Sentiment: %s, Category: %s, Summary: %s\n",
			item.ID, item.Sentiment, item.Category, truncate(summary, 120))
	}

	sb.WriteString(`
TASK:
Create groups of items that describe the SAME underlying theme (the same
bug, the same requested feature, the same complaint). Grouping is
opportunistic: leave an item ungrouped when nothing else matches it, and
never put one item in more than one group.

OUTPUT FORMAT (JSON only, no markdown):
{
  "groups": [
    {
      "theme": "Descriptive title for the group",
      "summary": "One or two sentences describing the shared theme",
      "sentiment": "positive" | "neutral" | "negative",
      "category": "bug" | "feature_request" | "question" | "praise" | "complaint" | "other",
      "item_ids": ["id1", "id2"]
    }
  ]
}

IMPORTANT: Respond with ONLY raw JSON. Do NOT wrap it in markdown code fences.
`)
	return sb.String()
}

func buildConsolidatePrompt(groups []*types.FeedbackGroup) string {
	var sb strings.Builder
	sb.WriteString(`You are consolidating feedback groups produced independently from
different batches of the same data set. Groups from different batches may
describe the SAME real-world theme and must be merged.

GROUPS:
`)
	for _, g := range groups {
		fmt.Fprintf(&sb, "\nID: %s\nTheme: %s\nSummary: %s\nSentiment: %s\nCategory: %s\nItems: %s\n",
			g.ID, g.Theme, truncate(g.Summary, 200), g.Sentiment, g.Category, strings.Join(g.ItemIDs, ","))
	}

	sb.WriteString(`
TASK:
Merge groups that describe the same underlying theme into one canonical
group. A group with no match stays as a canonical group on its own. Every
input group must appear in exactly one canonical group's source_group_ids.

OUTPUT FORMAT (JSON only, no markdown):
{
  "merged_groups": [
    {
      "theme": "Canonical title",
      "summary": "Canonical summary",
      "sentiment": "positive" | "neutral" | "negative",
      "category": "bug" | "feature_request" | "question" | "praise" | "complaint" | "other",
      "item_ids": ["all item ids from the merged groups"],
      "source_group_ids": ["ids of the input groups merged into this one"]
    }
  ]
}

IMPORTANT: Respond with ONLY raw JSON. Do NOT wrap it in markdown code fences.
`)
	return sb.String()
}
