package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	stdsync "sync"
	"time"

	"github.com/grumblehq/syncd/internal/ai"
	"github.com/grumblehq/syncd/internal/storage"
	"github.com/grumblehq/syncd/internal/types"
)

// grouper clusters the full analyzed item set into themed groups.
//
// Phase 1 partitions the set into batches and asks the model for
// batch-local groups in bounded waves. Phase 2 submits every batch-local
// group to one consolidation call that merges cross-batch duplicates into
// canonical groups. Consolidation is lossless: every item grouped in
// phase 1 appears in some canonical group, even when the model's merge
// answer drops it.
//
// Each cycle's canonical set fully replaces the previous cycle's groups:
// prior groups absent from the new set are deleted, and the group_id of
// every affected item is rewritten (or cleared when its group went away).
type grouper struct {
	ai        AIService
	store     storage.Store
	batchSize int
	waveWidth int
	minItems  int
}

// groupStats counts what this cycle's clustering produced. groups is 0
// whenever clustering was skipped or consolidation failed, even if the
// store still holds groups from an earlier cycle.
type groupStats struct {
	groups        int
	batchFailures int
}

func (g *grouper) run(ctx context.Context, items []*types.FeedbackItem, existing []*types.FeedbackGroup) (groupStats, error) {
	var stats groupStats

	analyzed := make([]*types.FeedbackItem, 0, len(items))
	for _, item := range items {
		if item.Analyzed && !item.Dismissed {
			analyzed = append(analyzed, item)
		}
	}
	if len(analyzed) < g.minItems {
		log.Printf("[grouper] %d analyzed items below threshold %d, skipping", len(analyzed), g.minItems)
		return stats, nil
	}

	local, failures := g.proposeLocal(ctx, analyzed)
	stats.batchFailures = failures
	if len(local) == 0 {
		log.Printf("[grouper] no batch-local groups proposed, keeping existing groups")
		return stats, nil
	}

	canonical, consolidateErr := g.consolidate(ctx, local)
	if consolidateErr != nil {
		log.Printf("[grouper] consolidation failed, keeping existing groups: %v", consolidateErr)
		stats.batchFailures++
		return stats, nil
	}

	changed, stale := g.apply(canonical, existing, items)
	stats.groups = len(canonical)

	if err := g.store.SaveGroups(ctx, canonical); err != nil {
		return stats, fmt.Errorf("saving groups: %w", err)
	}
	if len(stale) > 0 {
		if err := g.store.DeleteGroups(ctx, stale); err != nil {
			return stats, fmt.Errorf("deleting superseded groups: %w", err)
		}
	}
	if len(changed) > 0 {
		if err := g.store.SaveItems(ctx, changed); err != nil {
			return stats, fmt.Errorf("saving regrouped items: %w", err)
		}
	}

	log.Printf("[grouper] %d canonical groups (%d superseded, %d items regrouped)",
		len(canonical), len(stale), len(changed))
	return stats, nil
}

// proposeLocal runs phase 1: batch clustering in bounded waves. Failed
// batches are logged and skipped; their items simply stay ungrouped this
// cycle.
func (g *grouper) proposeLocal(ctx context.Context, analyzed []*types.FeedbackItem) ([]*types.FeedbackGroup, int) {
	batches := chunkItems(analyzed, g.batchSize)
	log.Printf("[grouper] clustering %d analyzed items in %d batches", len(analyzed), len(batches))

	var (
		mu       stdsync.Mutex
		local    []*types.FeedbackGroup
		failures int
	)

	runWaves(batches, g.waveWidth, func(batchIndex int, batch []*types.FeedbackItem) {
		proposals, err := g.ai.ProposeGroups(ctx, batch)
		if err != nil {
			batchErr := &BatchError{Stage: "group", Batch: batchIndex, Items: len(batch), Err: err}
			log.Printf("[grouper] %v", batchErr)
			mu.Lock()
			failures++
			mu.Unlock()
			return
		}

		now := time.Now()
		mu.Lock()
		for _, p := range proposals {
			if len(p.ItemIDs) == 0 {
				continue
			}
			local = append(local, &types.FeedbackGroup{
				ID:        localGroupID(batchIndex, p.Theme),
				Theme:     p.Theme,
				Summary:   p.Summary,
				Sentiment: p.Sentiment,
				Category:  p.Category,
				ItemIDs:   p.ItemIDs,
				ItemCount: len(p.ItemIDs),
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		mu.Unlock()
	})

	return local, failures
}

// consolidate runs phase 2 and enforces the losslessness invariant
// locally: canonical item IDs are the union of the merged source groups'
// IDs, and any batch-local group no canonical group claimed is promoted
// to a canonical singleton. The model's own item list is ignored - phase 1
// already vetted membership, and a consolidation answer may invent IDs
// that exist nowhere in the store.
func (g *grouper) consolidate(ctx context.Context, local []*types.FeedbackGroup) ([]*types.FeedbackGroup, error) {
	merged, err := g.ai.ConsolidateGroups(ctx, local)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*types.FeedbackGroup, len(local))
	for _, lg := range local {
		byID[lg.ID] = lg
	}

	now := time.Now()
	claimed := make(map[string]bool, len(local))
	var canonical []*types.FeedbackGroup

	for _, m := range merged {
		group := buildCanonical(m, byID, claimed, now)
		if group != nil {
			canonical = append(canonical, group)
		}
	}

	for _, lg := range local {
		if !claimed[lg.ID] {
			canonical = append(canonical, lg)
		}
	}
	return canonical, nil
}

func buildCanonical(m ai.ConsolidatedGroup, byID map[string]*types.FeedbackGroup, claimed map[string]bool, now time.Time) *types.FeedbackGroup {
	idSet := make(map[string]bool)

	// The canonical ID is the largest merged source group's ID, so a theme
	// that survives consolidation keeps a stable identifier.
	var largest *types.FeedbackGroup
	for _, sourceID := range m.SourceGroupIDs {
		src, ok := byID[sourceID]
		if !ok || claimed[sourceID] {
			continue
		}
		claimed[sourceID] = true
		for _, id := range src.ItemIDs {
			idSet[id] = true
		}
		if largest == nil || len(src.ItemIDs) > len(largest.ItemIDs) {
			largest = src
		}
	}
	if len(idSet) == 0 {
		return nil
	}

	group := &types.FeedbackGroup{
		Theme:     m.Theme,
		Summary:   m.Summary,
		Sentiment: m.Sentiment,
		Category:  m.Category,
		ItemIDs:   make([]string, 0, len(idSet)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if largest != nil {
		group.ID = largest.ID
	} else {
		group.ID = localGroupID(-1, m.Theme)
	}
	for id := range idSet {
		group.ItemIDs = append(group.ItemIDs, id)
	}
	group.ItemCount = len(group.ItemIDs)
	return group
}

// apply rewrites item group membership to match the canonical set and
// returns the items whose group_id changed plus the IDs of superseded
// prior groups.
func (g *grouper) apply(canonical, existing []*types.FeedbackGroup, items []*types.FeedbackItem) (changed []*types.FeedbackItem, stale []string) {
	byItem := make(map[string]*types.FeedbackItem, len(items))
	for _, item := range items {
		byItem[item.ID] = item
	}

	membership := make(map[string]string)
	for _, group := range canonical {
		group.Recount(byItem)
		for _, id := range group.ItemIDs {
			membership[id] = group.ID
		}
	}

	now := time.Now()
	for _, item := range items {
		want := membership[item.ID]
		if item.GroupID != want {
			item.GroupID = want
			item.UpdatedAt = now
			changed = append(changed, item)
		}
	}

	keep := make(map[string]bool, len(canonical))
	for _, group := range canonical {
		keep[group.ID] = true
	}
	for _, old := range existing {
		if !keep[old.ID] {
			stale = append(stale, old.ID)
		}
	}
	return changed, stale
}

// localGroupID derives a deterministic batch-local group identifier from
// the batch index and theme.
func localGroupID(batchIndex int, theme string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%d\x00%s", batchIndex, strings.ToLower(theme))))
	return "grp-" + hex.EncodeToString(h[:6])
}
