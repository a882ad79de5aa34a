package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/grumblehq/syncd/internal/types"
)

// SaveSyncState writes the single sync state row. Called once per
// successful sync cycle.
func (s *SQLiteStore) SaveSyncState(ctx context.Context, state *types.SyncState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_state (id, payload, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}

// LoadSyncState returns the stored sync state, or (nil, nil) when none
// exists yet. Absent state means first run: full, unbounded fetch.
func (s *SQLiteStore) LoadSyncState(ctx context.Context) (*types.SyncState, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM sync_state WHERE id = 1").Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}

	var state types.SyncState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sync state: %w", err)
	}
	return &state, nil
}
