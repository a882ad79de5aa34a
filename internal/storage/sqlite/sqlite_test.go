package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grumblehq/syncd/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testItem(id string, publishedAt time.Time) *types.FeedbackItem {
	return &types.FeedbackItem{
		ID:          id,
		SourceType:  types.SourceGitHubIssue,
		SourceID:    id,
		SourceName:  "github:acme/widget",
		Title:       "title " + id,
		Content:     "content " + id,
		PublishedAt: publishedAt,
	}
}

func TestSaveAndLoadItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	items := []*types.FeedbackItem{
		testItem("a", base.Add(1*time.Hour)),
		testItem("b", base.Add(3*time.Hour)),
		testItem("c", base.Add(2*time.Hour)),
	}
	items[0].Translations = map[string]string{"pt": "conteudo a"}
	items[0].TranslatedTitles = map[string]string{"pt": "titulo a"}
	items[1].Sentiment = types.SentimentNegative
	items[1].SentimentConfidence = 0.9
	items[1].Category = types.CategoryBug
	items[1].CategoryConfidence = 0.8
	items[1].Analyzed = true

	require.NoError(t, store.SaveItems(ctx, items))

	loaded, err := store.LoadItems(ctx, 0)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	// Ordered by published_at descending
	assert.Equal(t, "b", loaded[0].ID)
	assert.Equal(t, "c", loaded[1].ID)
	assert.Equal(t, "a", loaded[2].ID)

	assert.Equal(t, types.SentimentNegative, loaded[0].Sentiment)
	assert.True(t, loaded[0].Analyzed)
	assert.Equal(t, map[string]string{"pt": "conteudo a"}, loaded[2].Translations)
	assert.Equal(t, map[string]string{"pt": "titulo a"}, loaded[2].TranslatedTitles)

	// Limit applies after ordering
	limited, err := store.LoadItems(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "b", limited[0].ID)
}

func TestSaveItemsUpsertIsLastWriteWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item := testItem("a", time.Now().UTC())
	require.NoError(t, store.SaveItems(ctx, []*types.FeedbackItem{item}))

	updated := *item
	updated.Content = "fresher content"
	updated.Analyzed = true
	updated.Sentiment = types.SentimentPositive
	require.NoError(t, store.SaveItems(ctx, []*types.FeedbackItem{&updated}))

	loaded, err := store.LoadItems(ctx, 0)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "fresher content", loaded[0].Content)
	assert.True(t, loaded[0].Analyzed)
	assert.Equal(t, types.SentimentPositive, loaded[0].Sentiment)
}

func TestSaveItemsChunking(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// More items than one write chunk
	count := writeChunkSize + 50
	items := make([]*types.FeedbackItem, count)
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := range items {
		items[i] = testItem(fmt.Sprintf("item-%04d", i), base.Add(time.Duration(i)*time.Minute))
	}

	require.NoError(t, store.SaveItems(ctx, items))

	loaded, err := store.LoadItems(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, loaded, count)
}

func TestDeleteItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.SaveItems(ctx, []*types.FeedbackItem{
		testItem("a", now), testItem("b", now), testItem("c", now),
	}))

	require.NoError(t, store.DeleteItems(ctx, []string{"a", "c"}))

	loaded, err := store.LoadItems(ctx, 0)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "b", loaded[0].ID)
}

func TestSaveAndLoadGroups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	groups := []*types.FeedbackGroup{
		{
			ID:        "group-small",
			Theme:     "Small theme",
			ItemIDs:   []string{"x"},
			ItemCount: 1,
		},
		{
			ID:           "group-big",
			Theme:        "Big theme",
			Summary:      "Lots of complaints",
			Sentiment:    types.SentimentNegative,
			Category:     types.CategoryBug,
			ItemIDs:      []string{"a", "b", "c"},
			ItemCount:    3,
			SourceCounts: map[types.SourceType]int{types.SourceGitHubIssue: 2, types.SourceTwitter: 1},
			Languages:    []string{"en", "pt"},
		},
	}
	require.NoError(t, store.SaveGroups(ctx, groups))

	loaded, err := store.LoadGroups(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	// Ordered by item count descending
	assert.Equal(t, "group-big", loaded[0].ID)
	assert.Equal(t, []string{"a", "b", "c"}, loaded[0].ItemIDs)
	assert.Equal(t, 2, loaded[0].SourceCounts[types.SourceGitHubIssue])
	assert.Equal(t, []string{"en", "pt"}, loaded[0].Languages)
}

func TestDeleteGroups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveGroups(ctx, []*types.FeedbackGroup{
		{ID: "g1", Theme: "one", ItemIDs: []string{}},
		{ID: "g2", Theme: "two", ItemIDs: []string{}},
	}))

	require.NoError(t, store.DeleteGroups(ctx, []string{"g1"}))

	loaded, err := store.LoadGroups(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "g2", loaded[0].ID)
}

func TestSyncStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Absent on first run
	state, err := store.LoadSyncState(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	in := &types.SyncState{
		LastSync:  ts,
		LastRunID: "run-123",
		Watermarks: map[string]time.Time{
			"github:acme/widget": ts.Add(-time.Hour),
			"twitter:widget":     ts.Add(-2 * time.Hour),
		},
	}
	require.NoError(t, store.SaveSyncState(ctx, in))

	out, err := store.LoadSyncState(ctx)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, out.LastSync.Equal(ts))
	assert.Equal(t, "run-123", out.LastRunID)
	assert.True(t, out.Watermarks["github:acme/widget"].Equal(ts.Add(-time.Hour)))

	// Second save overwrites
	in.LastRunID = "run-456"
	require.NoError(t, store.SaveSyncState(ctx, in))
	out, err = store.LoadSyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-456", out.LastRunID)
}

func TestClearAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveItems(ctx, []*types.FeedbackItem{testItem("a", time.Now().UTC())}))
	require.NoError(t, store.SaveGroups(ctx, []*types.FeedbackGroup{{ID: "g", Theme: "t", ItemIDs: []string{}}}))
	require.NoError(t, store.SaveSyncState(ctx, &types.SyncState{LastSync: time.Now().UTC()}))

	require.NoError(t, store.ClearAll(ctx))

	items, err := store.LoadItems(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, items)

	groups, err := store.LoadGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)

	state, err := store.LoadSyncState(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)
}
