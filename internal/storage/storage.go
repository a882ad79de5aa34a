// Package storage defines the shared store interface for items, groups,
// and sync state. The store is shared between application instances;
// per-item writes are upsert with last-write-wins, and any cross-client
// race self-heals on the next sync cycle when the merger re-reconciles.
package storage

import (
	"context"

	"github.com/grumblehq/syncd/internal/storage/sqlite"
	"github.com/grumblehq/syncd/internal/types"
)

// Store defines the interface for shared store backends
type Store interface {
	// Items. SaveItems upserts in chunks at the backend's transactional
	// limit; LoadItems returns items ordered by published_at descending
	// (limit <= 0 loads everything).
	SaveItems(ctx context.Context, items []*types.FeedbackItem) error
	LoadItems(ctx context.Context, limit int) ([]*types.FeedbackItem, error)
	DeleteItems(ctx context.Context, ids []string) error

	// Groups
	SaveGroups(ctx context.Context, groups []*types.FeedbackGroup) error
	LoadGroups(ctx context.Context) ([]*types.FeedbackGroup, error)
	DeleteGroups(ctx context.Context, ids []string) error

	// Sync state. LoadSyncState returns (nil, nil) when no state exists
	// yet - the first-run signal that triggers a full fetch.
	SaveSyncState(ctx context.Context, state *types.SyncState) error
	LoadSyncState(ctx context.Context) (*types.SyncState, error)

	// ClearAll wipes items, groups, and sync state (admin purge).
	ClearAll(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Config holds store configuration
type Config struct {
	// Path is the SQLite database file path.
	// Special value ":memory:" creates an in-memory database (useful for tests).
	Path string
}

// NewStore creates a new SQLite store backend
func NewStore(cfg *Config) (Store, error) {
	path := ""
	if cfg != nil {
		path = cfg.Path
	}
	if path == "" {
		path = ".grumble/sync.db"
	}
	return sqlite.New(path)
}
