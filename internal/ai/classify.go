package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/grumblehq/syncd/internal/types"
)

// Classification is the per-item result of a batch classification call.
type Classification struct {
	ItemID              string          `json:"item_id"`
	Sentiment           types.Sentiment `json:"sentiment"`
	SentimentConfidence float64         `json:"sentiment_confidence"`
	Category            types.Category  `json:"category"`
	CategoryConfidence  float64         `json:"category_confidence"`
	Summary             string          `json:"summary"`
}

type classifyResponse struct {
	Results []Classification `json:"results"`
}

// Classify runs sentiment/category classification for one batch of items in
// a single model call. The returned map is keyed by item ID; items missing
// from the response (the model skipped or mangled them) are simply absent,
// and the caller leaves them unanalyzed for a later cycle.
func (c *Client) Classify(ctx context.Context, items []*types.FeedbackItem) (map[string]Classification, error) {
	if len(items) == 0 {
		return map[string]Classification{}, nil
	}

	prompt := buildClassifyPrompt(items)

	// Each result needs roughly 120 tokens of JSON.
	maxTokens := len(items)*150 + 200
	if maxTokens < 1000 {
		maxTokens = 1000
	}
	if maxTokens > 16000 {
		maxTokens = 16000
	}

	responseText, err := c.complete(ctx, "classify", prompt, maxTokens)
	if err != nil {
		return nil, fmt.Errorf("AI classification failed: %w", err)
	}

	parseResult := Parse[classifyResponse](responseText, "classification response")
	if !parseResult.Success {
		return nil, fmt.Errorf("failed to parse classification response: %s (response: %s)",
			parseResult.Error, truncate(responseText, 200))
	}

	results := vetClassifications(items, parseResult.Data.Results)
	if len(results) < len(items) {
		log.Printf("[WARN] classification covered %d of %d items; the rest stay unanalyzed this cycle",
			len(results), len(items))
	}
	return results, nil
}

// vetClassifications filters a parsed batch answer down to usable per-item
// results. Recovery is per item, never per batch: unknown IDs and
// out-of-range confidences drop that one result (the item stays unanalyzed
// and retries next cycle), invalid enum values are coerced to the safe
// defaults.
func vetClassifications(items []*types.FeedbackItem, parsed []Classification) map[string]Classification {
	known := make(map[string]bool, len(items))
	for _, item := range items {
		known[item.ID] = true
	}

	results := make(map[string]Classification, len(parsed))
	for i, r := range parsed {
		if !known[r.ItemID] {
			log.Printf("[WARN] classification result %d references unknown item ID %q", i, r.ItemID)
			continue
		}
		if !r.Sentiment.IsValid() {
			r.Sentiment = types.SentimentNeutral
		}
		if !r.Category.IsValid() {
			r.Category = types.CategoryOther
		}
		if r.SentimentConfidence < 0 || r.SentimentConfidence > 1 ||
			r.CategoryConfidence < 0 || r.CategoryConfidence > 1 {
			log.Printf("[WARN] classification for %s has out-of-range confidence (%.2f/%.2f), skipping",
				r.ItemID, r.SentimentConfidence, r.CategoryConfidence)
			continue
		}
		results[r.ItemID] = r
	}
	return results
}

func buildClassifyPrompt(items []*types.FeedbackItem) string {
	var sb strings.Builder
	sb.WriteString(`You are classifying user feedback items by sentiment and category.

ITEMS:
`)
	for _, item := range items {
		content := item.Content
		if content == "" {
			content = item.Title
		}
		fmt.Fprintf(&sb, "\nID: %s\nSource: %s\nContent: %s\n", item.ID, item.SourceType, truncate(content, 500))
	}

	sb.WriteString(`
TASK:
For EACH item above, determine:
- sentiment: "positive", "neutral", or "negative"
- sentiment_confidence: float 0.0-1.0
- category: "bug", "feature_request", "question", "praise", "complaint", or "other"
- category_confidence: float 0.0-1.0
- summary: one brief English sentence

OUTPUT FORMAT (JSON only, no markdown):
{
  "results": [
    {
      "item_id": "the item's ID exactly as given",
      "sentiment": "negative",
      "sentiment_confidence": 0.9,
      "category": "bug",
      "category_confidence": 0.85,
      "summary": "Brief summary"
    }
  ]
}

IMPORTANT:
1. Respond with ONLY raw JSON. Do NOT wrap it in markdown code fences.
2. Include exactly one result per item, with item_id copied verbatim.
`)
	return sb.String()
}
