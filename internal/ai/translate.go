package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/grumblehq/syncd/internal/types"
)

// Translation is the per-item result of a batch translation call:
// target-language code to translated text, with an optional parallel map
// for titles.
type Translation struct {
	ItemID       string            `json:"item_id"`
	Translations map[string]string `json:"translations"`
	Titles       map[string]string `json:"titles,omitempty"`
}

type translateResponse struct {
	Results []Translation `json:"results"`
}

// Translate produces translations for one batch of items in a single model
// call. The model is told each item's detected language and skips it among
// the targets. Batches are small: multi-language expansion inflates both
// the request and the response.
func (c *Client) Translate(ctx context.Context, items []*types.FeedbackItem, targetLangs []string) (map[string]Translation, error) {
	if len(items) == 0 || len(targetLangs) == 0 {
		return map[string]Translation{}, nil
	}

	prompt := buildTranslatePrompt(items, targetLangs)

	maxTokens := len(items)*len(targetLangs)*400 + 500
	if maxTokens > 16000 {
		maxTokens = 16000
	}

	responseText, err := c.complete(ctx, "translate", prompt, maxTokens)
	if err != nil {
		return nil, fmt.Errorf("AI translation failed: %w", err)
	}

	parseResult := Parse[translateResponse](responseText, "translation response")
	if !parseResult.Success {
		return nil, fmt.Errorf("failed to parse translation response: %s (response: %s)",
			parseResult.Error, truncate(responseText, 200))
	}

	known := make(map[string]bool, len(items))
	for _, item := range items {
		known[item.ID] = true
	}

	results := make(map[string]Translation, len(parseResult.Data.Results))
	for i, r := range parseResult.Data.Results {
		if !known[r.ItemID] {
			log.Printf("[WARN] translation result %d references unknown item ID %q", i, r.ItemID)
			continue
		}
		if len(r.Translations) == 0 {
			continue
		}
		results[r.ItemID] = r
	}

	return results, nil
}

func buildTranslatePrompt(items []*types.FeedbackItem, targetLangs []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You are translating feedback items into these target languages: %s.

ITEMS:
`, strings.Join(targetLangs, ", "))

	for _, item := range items {
		lang := item.Language
		if lang == "" {
			lang = "unknown"
		}
		text := item.Summary
		if text == "" {
			text = item.Content
		}
		fmt.Fprintf(&sb, "\nID: %s\nDetected language: %s\nText: %s\n", item.ID, lang, truncate(text, 600))
		if item.Title != "" {
			fmt.Fprintf(&sb, "Title: %s\n", truncate(item.Title, 200))
		}
	}

	sb.WriteString(`
TASK:
Translate each item's text (and title, when present) into every target
language EXCEPT the item's own detected language.

OUTPUT FORMAT (JSON only, no markdown):
{
  "results": [
    {
      "item_id": "the item's ID exactly as given",
      "translations": {"pt": "...", "es": "..."},
      "titles": {"pt": "...", "es": "..."}
    }
  ]
}

IMPORTANT:
1. Respond with ONLY raw JSON. Do NOT wrap it in markdown code fences.
2. Omit the "titles" map for items without a title.
3. Never include an item's own detected language among its translations.
`)
	return sb.String()
}
