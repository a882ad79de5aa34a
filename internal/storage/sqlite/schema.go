package sqlite

const schema = `
-- Feedback items
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    source_type TEXT NOT NULL,
    source_id TEXT NOT NULL DEFAULT '',
    source_name TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    author TEXT NOT NULL DEFAULT '',
    author_url TEXT NOT NULL DEFAULT '',
    published_at DATETIME NOT NULL,
    url TEXT NOT NULL DEFAULT '',
    sentiment TEXT NOT NULL DEFAULT '',
    sentiment_confidence REAL NOT NULL DEFAULT 0,
    category TEXT NOT NULL DEFAULT '',
    category_confidence REAL NOT NULL DEFAULT 0,
    summary TEXT NOT NULL DEFAULT '',
    group_id TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL DEFAULT '',
    replies INTEGER NOT NULL DEFAULT 0,
    reactions INTEGER NOT NULL DEFAULT 0,
    is_reply INTEGER NOT NULL DEFAULT 0,
    analyzed INTEGER NOT NULL DEFAULT 0,
    dismissed INTEGER NOT NULL DEFAULT 0,
    translations TEXT NOT NULL DEFAULT '',
    translated_titles TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_items_published_at ON items(published_at);
CREATE INDEX IF NOT EXISTS idx_items_source_name ON items(source_name);
CREATE INDEX IF NOT EXISTS idx_items_analyzed ON items(analyzed);
CREATE INDEX IF NOT EXISTS idx_items_group_id ON items(group_id);

-- Feedback groups
CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    theme TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    sentiment TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    item_ids TEXT NOT NULL DEFAULT '[]',
    item_count INTEGER NOT NULL DEFAULT 0,
    source_counts TEXT NOT NULL DEFAULT '',
    languages TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Sync state (single row)
CREATE TABLE IF NOT EXISTS sync_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    payload TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
