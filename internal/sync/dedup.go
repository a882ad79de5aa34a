package sync

import "github.com/grumblehq/syncd/internal/types"

// Dedupe collapses a freshly fetched list to one item per ID, keeping the
// first occurrence in input order. Cross-source and cross-page overlap
// both produce repeated IDs; the first collector to report an item wins.
func Dedupe(items []*types.FeedbackItem) []*types.FeedbackItem {
	seen := make(map[string]bool, len(items))
	out := make([]*types.FeedbackItem, 0, len(items))
	for _, item := range items {
		if item == nil || seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	return out
}
