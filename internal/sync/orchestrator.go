package sync

import (
	"context"
	"fmt"
	"log"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/grumblehq/syncd/internal/config"
	"github.com/grumblehq/syncd/internal/sources"
	"github.com/grumblehq/syncd/internal/storage"
	"github.com/grumblehq/syncd/internal/types"
)

// State is the orchestrator's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateSyncing
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Orchestrator runs the sync pipeline end to end. One orchestrator allows
// one in-flight cycle at a time; concurrent Sync calls are rejected with
// ErrSyncInProgress, never queued. There is no cancellation of a running
// cycle beyond what the collaborators' own contexts enforce.
type Orchestrator struct {
	store      storage.Store
	ai         AIService
	collectors []sources.Collector
	cfg        *config.Config
	progress   ProgressFunc

	mu         stdsync.Mutex
	state      State
	lastResult *types.SyncResult
	lastErr    error
}

// New creates an orchestrator. The collector list is fixed per instance;
// enabled-source state is configuration, not something collectors read
// ambiently mid-cycle.
func New(store storage.Store, aiSvc AIService, collectors []sources.Collector, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		store:      store,
		ai:         aiSvc,
		collectors: collectors,
		cfg:        cfg,
		state:      StateIdle,
	}
}

// OnProgress registers a callback invoked after each completed AI batch
// with cumulative progress. Must be set before Sync.
func (o *Orchestrator) OnProgress(fn ProgressFunc) {
	o.progress = fn
}

// State returns the orchestrator's current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastResult returns the result and error of the most recently finished
// cycle, or nil when none has run.
func (o *Orchestrator) LastResult() (*types.SyncResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastResult, o.lastErr
}

// Sync runs one full cycle: fetch, dedup, merge, classify, translate,
// group, and watermark persistence. Source and AI batch failures degrade
// the cycle and are reported in the result; store failures and missing
// credentials are fatal and propagate.
func (o *Orchestrator) Sync(ctx context.Context) (*types.SyncResult, error) {
	o.mu.Lock()
	if o.state == StateSyncing {
		o.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	o.state = StateSyncing
	o.mu.Unlock()

	result, err := o.runCycle(ctx)

	o.mu.Lock()
	if err != nil {
		o.state = StateFailed
	} else {
		o.state = StateCompleted
	}
	o.lastResult = result
	o.lastErr = err
	o.mu.Unlock()

	return result, err
}

func (o *Orchestrator) runCycle(ctx context.Context) (*types.SyncResult, error) {
	result := &types.SyncResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	defer func() { result.Duration = time.Since(result.StartedAt) }()

	if err := o.cfg.ValidateCredentials(); err != nil {
		return result, err
	}

	log.Printf("[sync] run %s: starting with %d sources", result.RunID, len(o.collectors))

	// Baseline load. Store read failures are fatal.
	baseline, err := o.store.LoadItems(ctx, 0)
	if err != nil {
		return result, fmt.Errorf("loading baseline items: %w", err)
	}
	existingGroups, err := o.store.LoadGroups(ctx)
	if err != nil {
		return result, fmt.Errorf("loading groups: %w", err)
	}
	state, err := o.store.LoadSyncState(ctx)
	if err != nil {
		return result, fmt.Errorf("loading sync state: %w", err)
	}
	if state == nil {
		log.Printf("[sync] run %s: no sync state, full fetch", result.RunID)
	}

	fresh := o.fetchAll(ctx, state, result)
	result.ItemsFetched = len(fresh)

	merged := Merge(Dedupe(fresh), baseline)
	result.NewItems = merged.NewItems
	result.TotalItems = len(merged.Items)
	log.Printf("[sync] run %s: %d fetched, %d new, %d total, %d need analysis",
		result.RunID, result.ItemsFetched, result.NewItems, result.TotalItems, len(merged.NeedsAnalysis))

	// New and refreshed items are persisted before analysis so a failed
	// cycle still keeps the fetched content.
	if len(merged.Items) > 0 {
		if err := o.store.SaveItems(ctx, merged.Items); err != nil {
			return result, fmt.Errorf("saving merged items: %w", err)
		}
	}

	if len(merged.NeedsAnalysis) > 0 {
		an := &analyzer{
			ai:        o.ai,
			store:     o.store,
			batchSize: o.cfg.Analysis.ClassifyBatchSize,
			waveWidth: o.cfg.Analysis.WaveWidth,
			progress:  o.progress,
		}
		stats, err := an.run(ctx, merged.NeedsAnalysis)
		result.ItemsAnalyzed = stats.analyzed
		result.ClassificationBatchFailures = stats.batchFailures
		if err != nil {
			return result, fmt.Errorf("persisting analysis: %w", err)
		}
	}

	tr := &translator{
		ai:        o.ai,
		store:     o.store,
		batchSize: o.cfg.Analysis.TranslateBatchSize,
		waveWidth: o.cfg.Analysis.WaveWidth,
		languages: o.cfg.Languages,
		progress:  o.progress,
	}
	trStats, err := tr.run(ctx, merged.Items)
	result.ItemsTranslated = trStats.translated
	result.TranslationBatchFailures = trStats.batchFailures
	if err != nil {
		return result, fmt.Errorf("persisting translations: %w", err)
	}

	gr := &grouper{
		ai:        o.ai,
		store:     o.store,
		batchSize: o.cfg.Analysis.GroupBatchSize,
		waveWidth: o.cfg.Analysis.WaveWidth,
		minItems:  o.cfg.Analysis.MinGroupItems,
	}
	grStats, err := gr.run(ctx, merged.Items, existingGroups)
	result.Groups = grStats.groups
	result.GroupingBatchFailures = grStats.batchFailures
	if err != nil {
		return result, fmt.Errorf("persisting groups: %w", err)
	}

	newState := &types.SyncState{
		LastSync:   time.Now(),
		LastRunID:  result.RunID,
		Watermarks: watermarks(merged.Items),
	}
	if err := o.store.SaveSyncState(ctx, newState); err != nil {
		return result, fmt.Errorf("saving sync state: %w", err)
	}

	log.Printf("[sync] run %s: done in %s (analyzed %d, translated %d, groups %d, degraded=%v)",
		result.RunID, time.Since(result.StartedAt).Round(time.Millisecond),
		result.ItemsAnalyzed, result.ItemsTranslated, result.Groups, result.Degraded())
	return result, nil
}

// fetchAll invokes every collector concurrently, each bounded by its own
// stored watermark. A failing collector contributes zero items and a
// FailedSources entry; it never aborts the cycle.
func (o *Orchestrator) fetchAll(ctx context.Context, state *types.SyncState, result *types.SyncResult) []*types.FeedbackItem {
	var (
		mu    stdsync.Mutex
		wg    stdsync.WaitGroup
		fresh []*types.FeedbackItem
	)

	for _, collector := range o.collectors {
		wg.Add(1)
		go func(c sources.Collector) {
			defer wg.Done()
			since := state.Watermark(c.Name())
			items, err := c.Fetch(ctx, since)
			if err != nil {
				fetchErr := &SourceFetchError{Source: c.Name(), Err: err}
				log.Printf("[sync] %v (continuing without it)", fetchErr)
				mu.Lock()
				result.FailedSources = append(result.FailedSources, c.Name())
				mu.Unlock()
				return
			}
			log.Printf("[sync] source %s: %d items since %s", c.Name(), len(items), formatSince(since))
			mu.Lock()
			fresh = append(fresh, items...)
			mu.Unlock()
		}(collector)
	}
	wg.Wait()
	return fresh
}

// watermarks computes, per source name, the max PublishedAt among that
// source's items in the final merged set. Never the cycle's wall-clock
// time: an item published after the fetch but before "now" must not be
// skipped by the next cycle.
func watermarks(items []*types.FeedbackItem) map[string]time.Time {
	marks := make(map[string]time.Time)
	for _, item := range items {
		if item.SourceName == "" || item.PublishedAt.IsZero() {
			continue
		}
		if item.PublishedAt.After(marks[item.SourceName]) {
			marks[item.SourceName] = item.PublishedAt
		}
	}
	return marks
}

func formatSince(since time.Time) string {
	if since.IsZero() {
		return "the beginning"
	}
	return since.UTC().Format(time.RFC3339)
}
