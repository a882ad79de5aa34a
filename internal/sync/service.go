// Package sync implements the sync pipeline: incremental multi-source
// fetch, dedup and merge against the store baseline, batched AI
// classification, two-phase clustering, and batched translation, with
// per-source watermarks for incremental fetch.
package sync

import (
	"context"

	"github.com/grumblehq/syncd/internal/ai"
	"github.com/grumblehq/syncd/internal/types"
)

// AIService is the analysis collaborator. It owns its own retry/backoff
// policy; the pipeline never retries an AI call itself.
type AIService interface {
	Classify(ctx context.Context, items []*types.FeedbackItem) (map[string]ai.Classification, error)
	ProposeGroups(ctx context.Context, items []*types.FeedbackItem) ([]ai.GroupProposal, error)
	ConsolidateGroups(ctx context.Context, groups []*types.FeedbackGroup) ([]ai.ConsolidatedGroup, error)
	Translate(ctx context.Context, items []*types.FeedbackItem, targetLangs []string) (map[string]ai.Translation, error)
}

// ProgressFunc receives cumulative pipeline progress after each completed
// batch: processed counts items whose batch finished (successfully or not)
// out of total.
type ProgressFunc func(stage string, processed, total int)
