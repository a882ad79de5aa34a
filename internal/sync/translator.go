package sync

import (
	"context"
	"log"
	stdsync "sync"
	"time"

	"github.com/grumblehq/syncd/internal/storage"
	"github.com/grumblehq/syncd/internal/types"
)

// translator produces translations for items that have a detected source
// language and no translations yet. An item with a non-empty translations
// map is permanently cached and never re-enters a translation batch, no
// matter how often it is re-fetched.
//
// Batches are small because multi-language expansion inflates both the
// request and the response. Batch failures are swallowed and counted;
// affected items stay untranslated and are retried on a future cycle.
type translator struct {
	ai        AIService
	store     storage.Store
	batchSize int
	waveWidth int
	languages []string
	progress  ProgressFunc
}

type translateStats struct {
	translated    int
	batchFailures int
}

func (t *translator) run(ctx context.Context, items []*types.FeedbackItem) (translateStats, error) {
	var stats translateStats
	if len(t.languages) == 0 {
		return stats, nil
	}

	pending := make([]*types.FeedbackItem, 0, len(items))
	for _, item := range items {
		if item.Language != "" && !item.Translated() && !item.Dismissed {
			pending = append(pending, item)
		}
	}
	if len(pending) == 0 {
		return stats, nil
	}

	batches := chunkItems(pending, t.batchSize)
	log.Printf("[translator] translating %d items in %d batches into %v",
		len(pending), len(batches), t.languages)

	var (
		mu         stdsync.Mutex
		processed  int
		persistErr error
	)

	runWaves(batches, t.waveWidth, func(batchIndex int, batch []*types.FeedbackItem) {
		mu.Lock()
		aborted := persistErr != nil
		mu.Unlock()
		if aborted {
			return
		}

		results, err := t.ai.Translate(ctx, batch, t.languages)
		if err != nil {
			batchErr := &BatchError{Stage: "translate", Batch: batchIndex, Items: len(batch), Err: err}
			log.Printf("[translator] %v (items stay untranslated)", batchErr)
			mu.Lock()
			stats.batchFailures++
			processed += len(batch)
			done, total := processed, len(pending)
			mu.Unlock()
			t.report(done, total)
			return
		}

		now := time.Now()
		mu.Lock()
		var updated []*types.FeedbackItem
		for _, item := range batch {
			r, ok := results[item.ID]
			if !ok || len(r.Translations) == 0 {
				continue
			}
			item.Translations = r.Translations
			if len(r.Titles) > 0 {
				item.TranslatedTitles = r.Titles
			}
			item.UpdatedAt = now
			updated = append(updated, item)
		}
		stats.translated += len(updated)
		processed += len(batch)
		done, total := processed, len(pending)
		mu.Unlock()

		if len(updated) > 0 {
			if err := t.store.SaveItems(ctx, updated); err != nil {
				mu.Lock()
				if persistErr == nil {
					persistErr = err
				}
				mu.Unlock()
				return
			}
		}
		t.report(done, total)
	})

	return stats, persistErr
}

func (t *translator) report(processed, total int) {
	if t.progress != nil {
		t.progress("translate", processed, total)
	}
}
