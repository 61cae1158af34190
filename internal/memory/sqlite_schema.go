package memory

import "fmt"

// sqliteSchema keeps memories, tags and metadata in plain tables. The id is
// the public key; seq exists only to give the FTS5 external-content table an
// integer rowid.
const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS memories (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		heading    TEXT NOT NULL CHECK (length(trim(heading)) > 0),
		summary    TEXT NOT NULL CHECK (length(trim(summary)) > 0),
		embedding  BLOB NOT NULL,
		context    TEXT NOT NULL DEFAULT '',
		source     TEXT NOT NULL DEFAULT 'chat',
		importance REAL NOT NULL DEFAULT 0.5 CHECK (importance >= 0 AND importance <= 1),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at);
	CREATE INDEX IF NOT EXISTS idx_memories_source ON memories(source);
	CREATE INDEX IF NOT EXISTS idx_memories_importance ON memories(importance);

	CREATE TABLE IF NOT EXISTS memory_tags (
		memory_id  TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
		tag        TEXT NOT NULL CHECK (length(trim(tag)) > 0),
		created_at TEXT NOT NULL,
		PRIMARY KEY (memory_id, tag)
	);

	CREATE INDEX IF NOT EXISTS idx_memory_tags_tag ON memory_tags(tag);

	CREATE TABLE IF NOT EXISTS memory_metadata (
		memory_id  TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
		key        TEXT NOT NULL CHECK (length(trim(key)) > 0),
		value      TEXT NOT NULL CHECK (json_valid(value)),
		created_at TEXT NOT NULL,
		PRIMARY KEY (memory_id, key)
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
		heading,
		summary,
		context,
		content='memories',
		content_rowid='seq',
		tokenize='porter unicode61'
	);
`

// sqliteTriggers keep memories_fts in step with memories inside the writing
// transaction.
var sqliteTriggers = []string{
	`CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
		INSERT INTO memories_fts(rowid, heading, summary, context)
		VALUES (new.seq, new.heading, new.summary, new.context);
	END`,
	`CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, heading, summary, context)
		VALUES ('delete', old.seq, old.heading, old.summary, old.context);
	END`,
	`CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE OF heading, summary, context ON memories BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, heading, summary, context)
		VALUES ('delete', old.seq, old.heading, old.summary, old.context);
		INSERT INTO memories_fts(rowid, heading, summary, context)
		VALUES (new.seq, new.heading, new.summary, new.context);
	END`,
}

// sqliteMemoryColumns selects a memory row (aliased m) together with its
// sorted tags and its metadata as JSON documents.
const sqliteMemoryColumns = `
	m.id, m.heading, m.summary, m.embedding, m.context, m.source, m.importance,
	m.created_at, m.updated_at,
	(SELECT json_group_array(tag) FROM (
		SELECT tag FROM memory_tags WHERE memory_id = m.id ORDER BY tag
	)),
	(SELECT json_group_object(key, json(value)) FROM memory_metadata WHERE memory_id = m.id)`

var sqliteRankExpr = fmt.Sprintf("-%s", bm25Expr("memories_fts"))
