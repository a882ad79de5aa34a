package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/grumblehq/syncd/internal/types"
)

// SaveGroups upserts groups, chunked like item writes.
func (s *SQLiteStore) SaveGroups(ctx context.Context, groups []*types.FeedbackGroup) error {
	if len(groups) == 0 {
		return nil
	}

	for _, batch := range chunk(groups, writeChunkSize) {
		if err := s.saveGroupChunk(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) saveGroupChunk(ctx context.Context, groups []*types.FeedbackGroup) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO groups (
			id, theme, summary, sentiment, category,
			item_ids, item_count, source_counts, languages,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			theme = excluded.theme,
			summary = excluded.summary,
			sentiment = excluded.sentiment,
			category = excluded.category,
			item_ids = excluded.item_ids,
			item_count = excluded.item_count,
			source_counts = excluded.source_counts,
			languages = excluded.languages,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare group upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, group := range groups {
		itemIDs, err := json.Marshal(group.ItemIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal item ids for group %s: %w", group.ID, err)
		}

		sourceCounts := ""
		if len(group.SourceCounts) > 0 {
			data, err := json.Marshal(group.SourceCounts)
			if err != nil {
				return fmt.Errorf("failed to marshal source counts for group %s: %w", group.ID, err)
			}
			sourceCounts = string(data)
		}

		languages := ""
		if len(group.Languages) > 0 {
			data, err := json.Marshal(group.Languages)
			if err != nil {
				return fmt.Errorf("failed to marshal languages for group %s: %w", group.ID, err)
			}
			languages = string(data)
		}

		createdAt := group.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		_, err = stmt.ExecContext(ctx,
			group.ID, group.Theme, group.Summary,
			string(group.Sentiment), string(group.Category),
			string(itemIDs), group.ItemCount, sourceCounts, languages,
			createdAt, now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert group %s: %w", group.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group chunk: %w", err)
	}
	return nil
}

// LoadGroups returns all groups ordered by item count descending.
func (s *SQLiteStore) LoadGroups(ctx context.Context) ([]*types.FeedbackGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, theme, summary, sentiment, category,
			item_ids, item_count, source_counts, languages,
			created_at, updated_at
		FROM groups
		ORDER BY item_count DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []*types.FeedbackGroup
	for rows.Next() {
		var group types.FeedbackGroup
		var sentiment, category, itemIDs, sourceCounts, languages string

		err := rows.Scan(
			&group.ID, &group.Theme, &group.Summary, &sentiment, &category,
			&itemIDs, &group.ItemCount, &sourceCounts, &languages,
			&group.CreatedAt, &group.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}

		group.Sentiment = types.Sentiment(sentiment)
		group.Category = types.Category(category)

		if err := json.Unmarshal([]byte(itemIDs), &group.ItemIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item ids for group %s: %w", group.ID, err)
		}
		if sourceCounts != "" {
			if err := json.Unmarshal([]byte(sourceCounts), &group.SourceCounts); err != nil {
				return nil, fmt.Errorf("failed to unmarshal source counts for group %s: %w", group.ID, err)
			}
		}
		if languages != "" {
			if err := json.Unmarshal([]byte(languages), &group.Languages); err != nil {
				return nil, fmt.Errorf("failed to unmarshal languages for group %s: %w", group.ID, err)
			}
		}

		groups = append(groups, &group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return groups, nil
}

// DeleteGroups removes groups by id. Used when canonical groups supersede
// the previous cycle's groups.
func (s *SQLiteStore) DeleteGroups(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	for _, batch := range chunk(ids, writeChunkSize) {
		placeholders := strings.Repeat("?,", len(batch))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM groups WHERE id IN ("+placeholders+")", args...); err != nil {
			return fmt.Errorf("failed to delete groups: %w", err)
		}
	}
	return nil
}
