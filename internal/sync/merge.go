package sync

import "github.com/grumblehq/syncd/internal/types"

// MergeResult is the outcome of reconciling fresh items with the baseline.
type MergeResult struct {
	// Items is the final merged set: union of baseline and fresh, one
	// entry per ID.
	Items []*types.FeedbackItem

	// NeedsAnalysis is the subset of Items still requiring classification.
	NeedsAnalysis []*types.FeedbackItem

	// NewItems counts fresh items with no baseline match.
	NewItems int
}

// Merge reconciles deduplicated fresh items with the baseline loaded from
// the store. A fresh item that matches a baseline ID keeps its fresh
// content fields (title, content, counts may have changed upstream) but
// carries the baseline's analysis artifacts forward: sentiment, category,
// confidences, summary, group membership, analyzed, dismissed, and
// translations all survive re-fetch. Fresh items with no baseline match
// pass through unchanged. Baseline items the fetch did not touch are kept
// as-is.
//
// An item lands in NeedsAnalysis only when neither the merged record nor
// the baseline record is flagged analyzed; the baseline check guards
// against a concurrent analysis write landing between load and merge.
func Merge(fresh, baseline []*types.FeedbackItem) *MergeResult {
	base := make(map[string]*types.FeedbackItem, len(baseline))
	for _, item := range baseline {
		base[item.ID] = item
	}

	result := &MergeResult{
		Items: make([]*types.FeedbackItem, 0, len(baseline)+len(fresh)),
	}
	touched := make(map[string]bool, len(fresh))

	for _, f := range fresh {
		touched[f.ID] = true
		b, ok := base[f.ID]
		if !ok {
			result.NewItems++
			result.Items = append(result.Items, f)
			if !f.Analyzed {
				result.NeedsAnalysis = append(result.NeedsAnalysis, f)
			}
			continue
		}

		merged := *f
		merged.Sentiment = b.Sentiment
		merged.SentimentConfidence = b.SentimentConfidence
		merged.Category = b.Category
		merged.CategoryConfidence = b.CategoryConfidence
		merged.Summary = b.Summary
		merged.GroupID = b.GroupID
		merged.Analyzed = b.Analyzed
		merged.Dismissed = b.Dismissed
		merged.Translations = b.Translations
		merged.TranslatedTitles = b.TranslatedTitles
		merged.CreatedAt = b.CreatedAt
		if merged.Language == "" {
			merged.Language = b.Language
		}

		result.Items = append(result.Items, &merged)
		if !merged.Analyzed && !b.Analyzed {
			result.NeedsAnalysis = append(result.NeedsAnalysis, &merged)
		}
	}

	for _, b := range baseline {
		if !touched[b.ID] {
			result.Items = append(result.Items, b)
			if !b.Analyzed {
				result.NeedsAnalysis = append(result.NeedsAnalysis, b)
			}
		}
	}

	return result
}
