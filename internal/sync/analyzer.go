package sync

import (
	"context"
	"log"
	stdsync "sync"
	"time"

	"github.com/grumblehq/syncd/internal/storage"
	"github.com/grumblehq/syncd/internal/types"
)

// analyzer runs batched classification over the items needing analysis.
//
// Batches are processed in bounded waves. After each individual batch
// completes, the results are applied to the live items and just those
// items are persisted immediately - a full run may touch thousands of
// items, and partial progress must survive an interrupted process. A
// failed batch leaves its items analyzed=false for a later cycle.
type analyzer struct {
	ai        AIService
	store     storage.Store
	batchSize int
	waveWidth int
	progress  ProgressFunc
}

type analyzeStats struct {
	analyzed      int
	batchFailures int
}

func (a *analyzer) run(ctx context.Context, items []*types.FeedbackItem) (analyzeStats, error) {
	var stats analyzeStats
	if len(items) == 0 {
		return stats, nil
	}

	batches := chunkItems(items, a.batchSize)
	log.Printf("[analyzer] classifying %d items in %d batches (wave width %d)",
		len(items), len(batches), a.waveWidth)

	var (
		mu         stdsync.Mutex
		processed  int
		persistErr error
	)

	runWaves(batches, a.waveWidth, func(batchIndex int, batch []*types.FeedbackItem) {
		mu.Lock()
		aborted := persistErr != nil
		mu.Unlock()
		if aborted {
			return
		}

		results, err := a.ai.Classify(ctx, batch)
		if err != nil {
			batchErr := &BatchError{Stage: "classify", Batch: batchIndex, Items: len(batch), Err: err}
			log.Printf("[analyzer] %v (items stay unanalyzed)", batchErr)
			mu.Lock()
			stats.batchFailures++
			processed += len(batch)
			done, total := processed, len(items)
			mu.Unlock()
			a.report(done, total)
			return
		}

		now := time.Now()
		mu.Lock()
		var updated []*types.FeedbackItem
		for _, item := range batch {
			r, ok := results[item.ID]
			if !ok {
				continue
			}
			item.Sentiment = r.Sentiment
			item.SentimentConfidence = r.SentimentConfidence
			item.Category = r.Category
			item.CategoryConfidence = r.CategoryConfidence
			item.Summary = r.Summary
			item.Analyzed = true
			item.UpdatedAt = now
			updated = append(updated, item)
		}
		stats.analyzed += len(updated)
		processed += len(batch)
		done, total := processed, len(items)
		mu.Unlock()

		if len(updated) > 0 {
			if err := a.store.SaveItems(ctx, updated); err != nil {
				mu.Lock()
				if persistErr == nil {
					persistErr = err
				}
				mu.Unlock()
				return
			}
		}
		a.report(done, total)
	})

	return stats, persistErr
}

func (a *analyzer) report(processed, total int) {
	if a.progress != nil {
		a.progress("classify", processed, total)
	}
}
