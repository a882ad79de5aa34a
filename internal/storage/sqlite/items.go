package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/grumblehq/syncd/internal/types"
)

// SaveItems upserts items in chunks of writeChunkSize, one transaction per
// chunk. Upserts are last-write-wins per item; created_at of an existing
// row is preserved. Chunked commits are deliberate: a run touching
// thousands of items must keep partial progress durable if the process is
// interrupted mid-run.
func (s *SQLiteStore) SaveItems(ctx context.Context, items []*types.FeedbackItem) error {
	if len(items) == 0 {
		return nil
	}

	for _, batch := range chunk(items, writeChunkSize) {
		if err := s.saveItemChunk(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) saveItemChunk(ctx context.Context, items []*types.FeedbackItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (
			id, source_type, source_id, source_name, title, content,
			author, author_url, published_at, url,
			sentiment, sentiment_confidence, category, category_confidence,
			summary, group_id, language, replies, reactions,
			is_reply, analyzed, dismissed, translations, translated_titles,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_type = excluded.source_type,
			source_id = excluded.source_id,
			source_name = excluded.source_name,
			title = excluded.title,
			content = excluded.content,
			author = excluded.author,
			author_url = excluded.author_url,
			published_at = excluded.published_at,
			url = excluded.url,
			sentiment = excluded.sentiment,
			sentiment_confidence = excluded.sentiment_confidence,
			category = excluded.category,
			category_confidence = excluded.category_confidence,
			summary = excluded.summary,
			group_id = excluded.group_id,
			language = excluded.language,
			replies = excluded.replies,
			reactions = excluded.reactions,
			is_reply = excluded.is_reply,
			analyzed = excluded.analyzed,
			dismissed = excluded.dismissed,
			translations = excluded.translations,
			translated_titles = excluded.translated_titles,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare item upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, item := range items {
		translations, err := marshalMap(item.Translations)
		if err != nil {
			return fmt.Errorf("failed to marshal translations for %s: %w", item.ID, err)
		}
		titles, err := marshalMap(item.TranslatedTitles)
		if err != nil {
			return fmt.Errorf("failed to marshal translated titles for %s: %w", item.ID, err)
		}

		createdAt := item.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		_, err = stmt.ExecContext(ctx,
			item.ID, string(item.SourceType), item.SourceID, item.SourceName,
			item.Title, item.Content, item.Author, item.AuthorURL,
			item.PublishedAt.UTC(), item.URL,
			string(item.Sentiment), item.SentimentConfidence,
			string(item.Category), item.CategoryConfidence,
			item.Summary, item.GroupID, item.Language,
			item.Replies, item.Reactions,
			boolToInt(item.IsReply), boolToInt(item.Analyzed), boolToInt(item.Dismissed),
			translations, titles,
			createdAt, now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert item %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit item chunk: %w", err)
	}
	return nil
}

// LoadItems returns items ordered by published_at descending. limit <= 0
// loads the full set (the merger needs the whole baseline).
func (s *SQLiteStore) LoadItems(ctx context.Context, limit int) ([]*types.FeedbackItem, error) {
	query := `
		SELECT id, source_type, source_id, source_name, title, content,
			author, author_url, published_at, url,
			sentiment, sentiment_confidence, category, category_confidence,
			summary, group_id, language, replies, reactions,
			is_reply, analyzed, dismissed, translations, translated_titles,
			created_at, updated_at
		FROM items
		ORDER BY published_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*types.FeedbackItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

// DeleteItems removes items by id, chunked like writes.
func (s *SQLiteStore) DeleteItems(ctx context.Context, ids []string) error {
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
			"DELETE FROM items WHERE id IN ("+placeholders+")", args...); err != nil {
			return fmt.Errorf("failed to delete items: %w", err)
		}
	}
	return nil
}

func scanItem(rows *sql.Rows) (*types.FeedbackItem, error) {
	var item types.FeedbackItem
	var sourceType, sentiment, category string
	var isReply, analyzed, dismissed int
	var translations, titles string

	err := rows.Scan(
		&item.ID, &sourceType, &item.SourceID, &item.SourceName,
		&item.Title, &item.Content, &item.Author, &item.AuthorURL,
		&item.PublishedAt, &item.URL,
		&sentiment, &item.SentimentConfidence,
		&category, &item.CategoryConfidence,
		&item.Summary, &item.GroupID, &item.Language,
		&item.Replies, &item.Reactions,
		&isReply, &analyzed, &dismissed,
		&translations, &titles,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}

	item.SourceType = types.SourceType(sourceType)
	item.Sentiment = types.Sentiment(sentiment)
	item.Category = types.Category(category)
	item.IsReply = isReply != 0
	item.Analyzed = analyzed != 0
	item.Dismissed = dismissed != 0

	if item.Translations, err = unmarshalMap(translations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal translations for %s: %w", item.ID, err)
	}
	if item.TranslatedTitles, err = unmarshalMap(titles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal translated titles for %s: %w", item.ID, err)
	}

	return &item, nil
}

func marshalMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalMap(data string) (map[string]string, error) {
	if data == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
