package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteTimeLayout has a fixed width so that lexical order of the stored
// strings equals chronological order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements the Store interface using an embedded SQLite database.
// Full-text search uses an FTS5 external-content table kept in sync by
// triggers. Vector similarity is computed in application memory, which is
// suitable for local, single-user datasets.
type SQLiteStore struct {
	db  *sql.DB
	dim int
	log *zap.Logger
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
// dbPath may be ":memory:" for a throwaway database.
func NewSQLiteStore(ctx context.Context, dbPath string, dim int, log *zap.Logger) (*SQLiteStore, error) {
	if dim <= 0 {
		return nil, validationf("embedding dimension must be positive, got %d", dim)
	}
	if log == nil {
		log = zap.NewNop()
	}

	inMemory := dbPath == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL for concurrent readers, foreign keys for cascades, and a busy
	// timeout so writers queue instead of failing with SQLITE_BUSY.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, storageErr("open database", err)
	}
	if inMemory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storageErr("ping database", err)
	}

	return &SQLiteStore{db: db, dim: dim, log: log, now: time.Now}, nil
}

// InitSchema creates the tables, the FTS5 index and its sync triggers.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return storageErr("initialize schema", err)
	}
	for _, trigger := range sqliteTriggers {
		if _, err := s.db.ExecContext(ctx, trigger); err != nil {
			return storageErr("create trigger", err)
		}
	}
	s.log.Info("sqlite schema ready", zap.Int("dimension", s.dim))
	return nil
}

func (s *SQLiteStore) Dimension() int { return s.dim }

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateMemory validates and inserts a single memory.
func (s *SQLiteStore) CreateMemory(ctx context.Context, m NewMemory) (string, error) {
	row, err := newMemoryRow(m, s.dim, s.timestamp())
	if err != nil {
		return "", err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		return insertSQLiteMemory(ctx, tx, row)
	})
	if err != nil {
		return "", err
	}
	s.log.Debug("memory created", zap.String("id", row.id))
	return row.id, nil
}

// CreateMemoryWithAttachments inserts the memory, every tag and every metadata
// entry in one transaction. Any failure rolls the whole unit back and is
// reported as ErrWriteFailed wrapping the cause.
func (s *SQLiteStore) CreateMemoryWithAttachments(ctx context.Context, m NewMemory, tags []string, metadata map[string]json.RawMessage) (string, error) {
	row, err := newMemoryRow(m, s.dim, s.timestamp())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertSQLiteMemory(ctx, tx, row); err != nil {
			return err
		}
		ts := formatTime(row.createdAt)
		for _, tag := range tags {
			if err := insertSQLiteTag(ctx, tx, row.id, tag, ts); err != nil {
				return err
			}
		}
		for _, key := range sortedKeys(metadata) {
			if err := insertSQLiteMetadata(ctx, tx, row.id, key, metadata[key], ts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Debug("memory write rolled back", zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	s.log.Debug("memory created",
		zap.String("id", row.id),
		zap.Int("tags", len(tags)),
		zap.Int("metadata", len(metadata)))
	return row.id, nil
}

// UpdateMemory applies a partial update. The FTS5 trigger re-indexes the row
// when heading, summary or context change.
func (s *SQLiteStore) UpdateMemory(ctx context.Context, id string, u MemoryUpdate) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := validateUpdate(u, s.dim); err != nil {
		return err
	}

	sets := []string{"updated_at = ?"}
	args := []any{formatTime(s.timestamp())}
	if u.Heading != nil {
		sets = append(sets, "heading = ?")
		args = append(args, strings.TrimSpace(*u.Heading))
	}
	if u.Summary != nil {
		sets = append(sets, "summary = ?")
		args = append(args, strings.TrimSpace(*u.Summary))
	}
	if u.Context != nil {
		sets = append(sets, "context = ?")
		args = append(args, *u.Context)
	}
	if u.Source != nil {
		sets = append(sets, "source = ?")
		args = append(args, strings.TrimSpace(*u.Source))
	}
	if u.Importance != nil {
		sets = append(sets, "importance = ?")
		args = append(args, *u.Importance)
	}
	if u.Embedding != nil {
		sets = append(sets, "embedding = ?")
		args = append(args, encodeVector(u.Embedding))
	}
	args = append(args, id)

	query := "UPDATE memories SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return execOne(ctx, tx, "update memory", id, query, args...)
	})
}

// DeleteMemory removes the memory; tags and metadata go with it via
// ON DELETE CASCADE and the FTS5 entry via trigger.
func (s *SQLiteStore) DeleteMemory(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return execOne(ctx, tx, "delete memory", id, `DELETE FROM memories WHERE id = ?`, id)
	})
	if err != nil {
		return err
	}
	s.log.Debug("memory deleted", zap.String("id", id))
	return nil
}

// AddTag attaches a tag and touches the memory's updated_at.
func (s *SQLiteStore) AddTag(ctx context.Context, id, tag string) error {
	if err := checkID(id); err != nil {
		return err
	}
	ts := formatTime(s.timestamp())
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := execOne(ctx, tx, "touch memory", id, `UPDATE memories SET updated_at = ? WHERE id = ?`, ts, id); err != nil {
			return err
		}
		return insertSQLiteTag(ctx, tx, id, tag, ts)
	})
}

// SetMetadata adds a metadata entry. Keys are write-once per memory.
func (s *SQLiteStore) SetMetadata(ctx context.Context, id, key string, value json.RawMessage) error {
	if err := checkID(id); err != nil {
		return err
	}
	ts := formatTime(s.timestamp())
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := execOne(ctx, tx, "touch memory", id, `UPDATE memories SET updated_at = ? WHERE id = ?`, ts, id); err != nil {
			return err
		}
		return insertSQLiteMetadata(ctx, tx, id, key, value, ts)
	})
}

// GetMemory returns the memory with its tags (ascending) and metadata.
func (s *SQLiteStore) GetMemory(ctx context.Context, id string) (*Memory, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteMemoryColumns+` FROM memories m WHERE m.id = ?`, id)
	m, err := scanSQLiteMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundf("memory %s", id)
	}
	if err != nil {
		return nil, sqliteError("get memory", err)
	}
	return m, nil
}

// Tags lists the tags of a memory in ascending order. A missing memory has no tags.
func (s *SQLiteStore) Tags(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM memory_tags WHERE memory_id = ? ORDER BY tag`, id)
	if err != nil {
		return nil, sqliteError("query tags", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, sqliteError("scan tag", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError("iterate tags", err)
	}
	return tags, nil
}

// Metadata returns the metadata of a memory. A missing memory has none.
func (s *SQLiteStore) Metadata(ctx context.Context, id string) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM memory_metadata WHERE memory_id = ?`, id)
	if err != nil {
		return nil, sqliteError("query metadata", err)
	}
	defer rows.Close()

	meta := map[string]json.RawMessage{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, sqliteError("scan metadata", err)
		}
		meta[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError("iterate metadata", err)
	}
	return meta, nil
}

// SearchSimilar filters candidates in SQL and scores them in process.
// Rows below the threshold are dropped before ordering and truncation.
func (s *SQLiteStore) SearchSimilar(ctx context.Context, q SimilarityQuery) ([]ScoredMemory, error) {
	if err := validateSimilarityQuery(q, s.dim); err != nil {
		return nil, err
	}

	where, args := sqliteFilter(q.Filter)
	query := `SELECT ` + sqliteMemoryColumns + ` FROM memories m WHERE ` + where
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqliteError("query memories", err)
	}
	defer rows.Close()

	var hits []ScoredMemory
	for rows.Next() {
		m, err := scanSQLiteMemory(rows)
		if err != nil {
			return nil, sqliteError("scan memory", err)
		}
		score := CosineSimilarity(q.Embedding, m.Embedding)
		if score < q.Threshold {
			continue
		}
		hits = append(hits, ScoredMemory{Memory: *m, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError("iterate memories", err)
	}

	sortRanked(hits)
	if len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	s.log.Debug("similarity search", zap.Int("results", len(hits)), zap.Float64("threshold", q.Threshold))
	return hits, nil
}

// SearchText matches every query term against the FTS5 index and ranks with
// column-weighted BM25.
func (s *SQLiteStore) SearchText(ctx context.Context, q TextQuery) ([]ScoredMemory, error) {
	terms, err := validateTextQuery(q)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + sqliteMemoryColumns + `, ` + sqliteRankExpr + ` AS score
		FROM memories_fts
		JOIN memories m ON m.seq = memories_fts.rowid
		WHERE memories_fts MATCH ?
		ORDER BY score DESC, m.created_at DESC, m.id ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, ftsMatchQuery(terms), q.Limit)
	if err != nil {
		return nil, sqliteError("search text", err)
	}
	defer rows.Close()

	hits := []ScoredMemory{}
	for rows.Next() {
		var score float64
		m, err := scanSQLiteMemory(rows, &score)
		if err != nil {
			return nil, sqliteError("scan memory", err)
		}
		hits = append(hits, ScoredMemory{Memory: *m, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError("iterate memories", err)
	}
	s.log.Debug("text search", zap.Strings("terms", terms), zap.Int("results", len(hits)))
	return hits, nil
}

// ListRecent returns the newest memories passing the filter first.
func (s *SQLiteStore) ListRecent(ctx context.Context, q RecentQuery) ([]Memory, error) {
	if err := validateRecentQuery(q); err != nil {
		return nil, err
	}
	where, args := sqliteFilter(q.Filter)
	args = append(args, q.Limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteMemoryColumns+` FROM memories m WHERE `+where+` ORDER BY m.created_at DESC, m.id ASC LIMIT ?`, args...)
	if err != nil {
		return nil, sqliteError("list memories", err)
	}
	defer rows.Close()

	memories := []Memory{}
	for rows.Next() {
		m, err := scanSQLiteMemory(rows)
		if err != nil {
			return nil, sqliteError("scan memory", err)
		}
		memories = append(memories, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError("iterate memories", err)
	}
	return memories, nil
}

// sqliteFilter renders f as a WHERE condition over memories m.
func sqliteFilter(f Filter) (string, []any) {
	where := []string{"m.importance >= ?"}
	args := []any{f.MinImportance}
	if f.Source != "" {
		where = append(where, "m.source = ?")
		args = append(args, f.Source)
	}
	if f.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM memory_tags t WHERE t.memory_id = m.id AND t.tag = ?)")
		args = append(args, f.Tag)
	}
	if f.CreatedAfter != nil {
		where = append(where, "m.created_at >= ?")
		args = append(args, formatTime(*f.CreatedAfter))
	}
	if f.CreatedBefore != nil {
		where = append(where, "m.created_at <= ?")
		args = append(args, formatTime(*f.CreatedBefore))
	}
	return strings.Join(where, " AND "), args
}

// Stats counts memories and tags and buckets the last seven days of writes.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT count(*) FROM memories), (SELECT count(*) FROM memory_tags)`,
	).Scan(&st.TotalMemories, &st.TotalTags)
	if err != nil {
		return nil, sqliteError("count memories", err)
	}

	since := weekStart(s.timestamp())
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(created_at, 1, 10) AS day, count(*)
		FROM memories
		WHERE created_at >= ?
		GROUP BY day
		ORDER BY day DESC`, formatTime(since))
	if err != nil {
		return nil, sqliteError("query daily counts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, sqliteError("scan daily count", err)
		}
		st.LastWeek = append(st.LastWeek, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError("iterate daily counts", err)
	}
	return &st, nil
}

func (s *SQLiteStore) timestamp() time.Time {
	return normalizeTime(s.now())
}

// withTx runs fn inside a transaction. The deferred rollback is a no-op once
// Commit has succeeded and undoes everything when fn fails or ctx is cancelled.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sqliteError("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return sqliteError("commit transaction", err)
	}
	return nil
}

func insertSQLiteMemory(ctx context.Context, tx *sql.Tx, row memoryRow) error {
	ts := formatTime(row.createdAt)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO memories (id, heading, summary, embedding, context, source, importance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.id, row.heading, row.summary, encodeVector(row.embedding),
		row.context, row.source, row.importance, ts, ts)
	if err != nil {
		return sqliteError("insert memory", err)
	}
	return nil
}

func insertSQLiteTag(ctx context.Context, tx *sql.Tx, id, tag, ts string) error {
	tag, err := normalizeTag(tag)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO memory_tags (memory_id, tag, created_at) VALUES (?, ?, ?)`, id, tag, ts)
	if err != nil {
		err = sqliteError("insert tag", err)
		if errors.Is(err, ErrConflict) {
			return conflictf("memory %s already has tag %q", id, tag)
		}
		return err
	}
	return nil
}

func insertSQLiteMetadata(ctx context.Context, tx *sql.Tx, id, key string, value json.RawMessage, ts string) error {
	key, err := validateMetadata(key, value)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO memory_metadata (memory_id, key, value, created_at) VALUES (?, ?, ?, ?)`,
		id, key, string(value), ts)
	if err != nil {
		err = sqliteError("insert metadata", err)
		if errors.Is(err, ErrConflict) {
			return conflictf("memory %s already has metadata key %q", id, key)
		}
		return err
	}
	return nil
}

// execOne runs a statement that must affect exactly the row identified by id.
func execOne(ctx context.Context, tx *sql.Tx, op, id, query string, args ...any) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return sqliteError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return sqliteError(op, err)
	}
	if n == 0 {
		return notFoundf("memory %s", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteMemory(sc rowScanner, extra ...any) (*Memory, error) {
	var (
		m                  Memory
		blob               []byte
		createdAt, updated string
		tagsJSON, metaJSON string
	)
	dest := append([]any{
		&m.ID, &m.Heading, &m.Summary, &blob, &m.Context, &m.Source, &m.Importance,
		&createdAt, &updated, &tagsJSON, &metaJSON,
	}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}

	m.Embedding = decodeVector(blob)
	var err error
	if m.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at of %s: %w", m.ID, err)
	}
	if m.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at of %s: %w", m.ID, err)
	}

	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	slices.Sort(m.Tags)
	if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &m, nil
}

// sqliteError translates a driver error into an error kind. modernc reports
// extended result codes, so constraint failures are told apart by code, with
// the message as a fallback for builds that report only the primary code.
func sqliteError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: failed to %s: %w", ErrConflict, op, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: failed to %s: %w", ErrNotFound, op, err)
		case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return fmt.Errorf("%w: failed to %s: %w", ErrValidation, op, err)
		}
		if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			msg := se.Error()
			switch {
			case strings.Contains(msg, "UNIQUE"):
				return fmt.Errorf("%w: failed to %s: %w", ErrConflict, op, err)
			case strings.Contains(msg, "FOREIGN KEY"):
				return fmt.Errorf("%w: failed to %s: %w", ErrNotFound, op, err)
			default:
				return fmt.Errorf("%w: failed to %s: %w", ErrValidation, op, err)
			}
		}
	}
	return storageErr(op, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

// weekStart is midnight UTC six days before now, so the window covers seven
// calendar days including today.
func weekStart(now time.Time) time.Time {
	day := now.UTC().Truncate(24 * time.Hour)
	return day.AddDate(0, 0, -6)
}

// parseTimestamp parses a SQLite timestamp string to time.Time.
func parseTimestamp(s string) (time.Time, error) {
	// Try various formats that SQLite might use
	formats := []string{
		sqliteTimeLayout,
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		"2006-01-02T15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", s)
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
