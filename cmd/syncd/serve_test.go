package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grumblehq/syncd/internal/ai"
	"github.com/grumblehq/syncd/internal/config"
	"github.com/grumblehq/syncd/internal/sources"
	"github.com/grumblehq/syncd/internal/storage"
	syncpkg "github.com/grumblehq/syncd/internal/sync"
	"github.com/grumblehq/syncd/internal/types"
)

// staticCollector returns fixed items but refuses to work on a canceled
// context, like any real HTTP-backed collector would.
type staticCollector struct {
	items []*types.FeedbackItem
}

func (c *staticCollector) Name() string { return "static" }

func (c *staticCollector) Fetch(ctx context.Context, _ time.Time) ([]*types.FeedbackItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.items, nil
}

// noopAI classifies everything and skips grouping/translation work.
type noopAI struct{}

func (noopAI) Classify(ctx context.Context, items []*types.FeedbackItem) (map[string]ai.Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]ai.Classification, len(items))
	for _, it := range items {
		out[it.ID] = ai.Classification{
			ItemID:              it.ID,
			Sentiment:           types.SentimentNeutral,
			SentimentConfidence: 0.5,
			Category:            types.CategoryOther,
			CategoryConfidence:  0.5,
		}
	}
	return out, nil
}

func (noopAI) ProposeGroups(context.Context, []*types.FeedbackItem) ([]ai.GroupProposal, error) {
	return nil, nil
}

func (noopAI) ConsolidateGroups(context.Context, []*types.FeedbackGroup) ([]ai.ConsolidatedGroup, error) {
	return nil, nil
}

func (noopAI) Translate(context.Context, []*types.FeedbackItem, []string) (map[string]ai.Translation, error) {
	return map[string]ai.Translation{}, nil
}

func TestHandleSyncSurvivesCallerDisconnect(t *testing.T) {
	t.Setenv(config.EnvAnthropicKey, "test-key")

	testStore, err := storage.NewStore(&storage.Config{Path: ":memory:"})
	require.NoError(t, err)
	defer testStore.Close()

	collector := &staticCollector{items: []*types.FeedbackItem{{
		ID:          "github-issue-1",
		SourceType:  types.SourceGitHubIssue,
		SourceName:  "static",
		Content:     "crashes on save",
		Language:    "en",
		PublishedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}}}

	orchestrator := syncpkg.New(testStore, noopAI{}, []sources.Collector{collector}, config.Default())
	srv := &server{orchestrator: orchestrator}

	// The caller gives up before the cycle starts. The cycle must still
	// run to completion, like a scheduled one.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/sync", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	srv.handleSync(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var result types.SyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Empty(t, result.FailedSources)
	assert.Equal(t, 1, result.ItemsFetched)
	assert.Equal(t, 1, result.ItemsAnalyzed)

	items, err := testStore.LoadItems(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Analyzed)
}
