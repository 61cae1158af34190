package memory

import "fmt"

// postgresSchema returns the DDL for an embedding dimension. search_vector is
// generated from the weighted fields, so it can never drift from the row.
func postgresSchema(dim int) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memories (
			id            UUID PRIMARY KEY,
			heading       TEXT NOT NULL CHECK (length(btrim(heading)) > 0),
			summary       TEXT NOT NULL CHECK (length(btrim(summary)) > 0),
			embedding     vector(%d) NOT NULL,
			context       TEXT NOT NULL DEFAULT '',
			source        TEXT NOT NULL DEFAULT 'chat',
			importance    DOUBLE PRECISION NOT NULL DEFAULT 0.5 CHECK (importance >= 0 AND importance <= 1),
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL,
			search_vector tsvector GENERATED ALWAYS AS (%s) STORED
		)`, dim, tsvectorExpr()),
		`CREATE INDEX IF NOT EXISTS idx_memories_embedding ON memories USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_search_vector ON memories USING gin (search_vector)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_source ON memories (source)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_importance ON memories (importance)`,
		`CREATE TABLE IF NOT EXISTS memory_tags (
			memory_id  UUID NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
			tag        TEXT NOT NULL CHECK (length(btrim(tag)) > 0),
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (memory_id, tag)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_tags_tag ON memory_tags (tag)`,
		`CREATE TABLE IF NOT EXISTS memory_metadata (
			memory_id  UUID NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
			key        TEXT NOT NULL CHECK (length(btrim(key)) > 0),
			value      JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (memory_id, key)
		)`,
	}
}

const pgMemoryColumns = `
	m.id::text, m.heading, m.summary, m.embedding, m.context, m.source, m.importance,
	m.created_at, m.updated_at,
	ARRAY(SELECT tag FROM memory_tags WHERE memory_id = m.id ORDER BY tag),
	coalesce((SELECT jsonb_object_agg(key, value) FROM memory_metadata WHERE memory_id = m.id), '{}'::jsonb)::text`
