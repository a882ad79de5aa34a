package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/grumblehq/syncd/internal/ai"
	"github.com/grumblehq/syncd/internal/types"
)

// fakeStore is an in-memory storage.Store for pipeline tests.
type fakeStore struct {
	mu     stdsync.Mutex
	items  map[string]*types.FeedbackItem
	groups map[string]*types.FeedbackGroup
	state  *types.SyncState

	saveItemCalls int
	failSaves     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:  make(map[string]*types.FeedbackItem),
		groups: make(map[string]*types.FeedbackGroup),
	}
}

func (s *fakeStore) SaveItems(_ context.Context, items []*types.FeedbackItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaves {
		return fmt.Errorf("disk full")
	}
	s.saveItemCalls++
	for _, it := range items {
		copied := *it
		s.items[it.ID] = &copied
	}
	return nil
}

func (s *fakeStore) LoadItems(_ context.Context, limit int) ([]*types.FeedbackItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.FeedbackItem, 0, len(s.items))
	for _, it := range s.items {
		copied := *it
		out = append(out, &copied)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteItems(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.items, id)
	}
	return nil
}

func (s *fakeStore) SaveGroups(_ context.Context, groups []*types.FeedbackGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range groups {
		copied := *g
		s.groups[g.ID] = &copied
	}
	return nil
}

func (s *fakeStore) LoadGroups(_ context.Context) ([]*types.FeedbackGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.FeedbackGroup, 0, len(s.groups))
	for _, g := range s.groups {
		copied := *g
		out = append(out, &copied)
	}
	return out, nil
}

func (s *fakeStore) DeleteGroups(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.groups, id)
	}
	return nil
}

func (s *fakeStore) SaveSyncState(_ context.Context, state *types.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *state
	s.state = &copied
	return nil
}

func (s *fakeStore) LoadSyncState(_ context.Context) (*types.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, nil
	}
	copied := *s.state
	return &copied, nil
}

func (s *fakeStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*types.FeedbackItem)
	s.groups = make(map[string]*types.FeedbackGroup)
	s.state = nil
	return nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) item(id string) *types.FeedbackItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

// fakeAI is a scriptable AIService. The default behavior classifies every
// item, clusters each batch into one group, consolidates everything into
// the first group, and translates into every target language.
type fakeAI struct {
	mu stdsync.Mutex

	classifyCalls    int
	groupCalls       int
	consolidateCalls int
	translateCalls   int

	failClassifyBatches map[int]bool // keyed by call order, 0-based
	failGrouping        bool
	failConsolidate     bool
	failTranslate       bool

	consolidateFn func(groups []*types.FeedbackGroup) ([]ai.ConsolidatedGroup, error)
}

func newFakeAI() *fakeAI {
	return &fakeAI{failClassifyBatches: make(map[int]bool)}
}

func (f *fakeAI) Classify(_ context.Context, items []*types.FeedbackItem) (map[string]ai.Classification, error) {
	f.mu.Lock()
	call := f.classifyCalls
	f.classifyCalls++
	fail := f.failClassifyBatches[call]
	f.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("model overloaded")
	}
	out := make(map[string]ai.Classification, len(items))
	for _, it := range items {
		out[it.ID] = ai.Classification{
			ItemID:              it.ID,
			Sentiment:           types.SentimentNegative,
			SentimentConfidence: 0.9,
			Category:            types.CategoryBug,
			CategoryConfidence:  0.8,
			Summary:             "summary of " + it.ID,
		}
	}
	return out, nil
}

func (f *fakeAI) ProposeGroups(_ context.Context, items []*types.FeedbackItem) ([]ai.GroupProposal, error) {
	f.mu.Lock()
	f.groupCalls++
	fail := f.failGrouping
	f.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("model overloaded")
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return []ai.GroupProposal{{
		Theme:     "crashes on save",
		Summary:   "users report crashes",
		Sentiment: types.SentimentNegative,
		Category:  types.CategoryBug,
		ItemIDs:   ids,
	}}, nil
}

func (f *fakeAI) ConsolidateGroups(_ context.Context, groups []*types.FeedbackGroup) ([]ai.ConsolidatedGroup, error) {
	f.mu.Lock()
	f.consolidateCalls++
	fail := f.failConsolidate
	fn := f.consolidateFn
	f.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("model overloaded")
	}
	if fn != nil {
		return fn(groups)
	}

	merged := ai.ConsolidatedGroup{
		Theme:     "crashes on save",
		Summary:   "users report crashes",
		Sentiment: types.SentimentNegative,
		Category:  types.CategoryBug,
	}
	for _, g := range groups {
		merged.SourceGroupIDs = append(merged.SourceGroupIDs, g.ID)
		merged.ItemIDs = append(merged.ItemIDs, g.ItemIDs...)
	}
	return []ai.ConsolidatedGroup{merged}, nil
}

func (f *fakeAI) Translate(_ context.Context, items []*types.FeedbackItem, targetLangs []string) (map[string]ai.Translation, error) {
	f.mu.Lock()
	f.translateCalls++
	fail := f.failTranslate
	f.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("model overloaded")
	}
	out := make(map[string]ai.Translation, len(items))
	for _, it := range items {
		tr := ai.Translation{ItemID: it.ID, Translations: make(map[string]string)}
		for _, lang := range targetLangs {
			if lang == it.Language {
				continue
			}
			tr.Translations[lang] = fmt.Sprintf("[%s] %s", lang, it.Content)
		}
		out[it.ID] = tr
	}
	return out, nil
}

// fakeCollector returns a fixed item list, optionally filtered by since.
type fakeCollector struct {
	name  string
	items []*types.FeedbackItem
	err   error

	mu        stdsync.Mutex
	lastSince time.Time
	calls     int
}

func (c *fakeCollector) Name() string { return c.name }

func (c *fakeCollector) Fetch(_ context.Context, since time.Time) ([]*types.FeedbackItem, error) {
	c.mu.Lock()
	c.lastSince = since
	c.calls++
	c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	var out []*types.FeedbackItem
	for _, it := range c.items {
		if !since.IsZero() && !it.PublishedAt.After(since) {
			continue
		}
		copied := *it
		out = append(out, &copied)
	}
	return out, nil
}
