package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLiteStore is a Store persisted in a local SQLite database. All reads and
// similarity searches are served from an in-memory index (the collection is
// assumed to fit in memory — it is a single local collection, not a sharded
// corpus); every write goes through to SQLite in the same critical section,
// so a restart reloads exactly what was acknowledged.
type SQLiteStore struct {
	// mu serializes writes across the index and the database so each
	// document operation is atomic.
	mu sync.Mutex

	// index serves Get/Search and holds the authoritative in-memory state.
	index *MemoryStore

	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the document database,
// ~/.ragserve/documents.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("vectorstore: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ragserve")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("vectorstore: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "documents.db"), nil
}

// OpenSQLite opens (or creates) a SQLiteStore at the given path and loads the
// persisted collection into the in-memory index, preserving insertion order.
// Use ":memory:" for an ephemeral database in tests.
func OpenSQLite(path, collection string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{index: NewMemoryStore(collection), db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT    NOT NULL UNIQUE,
    text       TEXT    NOT NULL,
    embedding  TEXT    NOT NULL,  -- JSON array of float32
    metadata   TEXT    NOT NULL   -- JSON object
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("vectorstore: migrate: %w", err)
	}
	return nil
}

// load replays all persisted documents into the in-memory index, ordered by
// insertion sequence so search tie-breaking survives a restart.
func (s *SQLiteStore) load() error {
	rows, err := s.db.Query(`SELECT id, text, embedding, metadata FROM documents ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("vectorstore: load: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, text, embJSON, metaJSON string
		if err := rows.Scan(&id, &text, &embJSON, &metaJSON); err != nil {
			return fmt.Errorf("vectorstore: load scan: %w", err)
		}

		var embedding []float32
		if err := json.Unmarshal([]byte(embJSON), &embedding); err != nil {
			return fmt.Errorf("vectorstore: load embedding for %s: %w", id, err)
		}
		var metadata map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
			return fmt.Errorf("vectorstore: load metadata for %s: %w", id, err)
		}

		s.index.restore(id, Document{ID: id, Text: text, Embedding: embedding, Metadata: metadata})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("vectorstore: load rows: %w", err)
	}
	return nil
}

// Add inserts a document and persists it. The dedup contract matches
// MemoryStore.Add: duplicate ids return the existing id without touching
// either the index or the database.
func (s *SQLiteStore) Add(ctx context.Context, doc Document, allowDuplicates bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := DocumentID(doc.Text, doc.Metadata)
	if existing, _ := s.index.Get(ctx, id); existing != nil && !allowDuplicates {
		return id, nil
	}

	id, err := s.index.Add(ctx, doc, allowDuplicates)
	if err != nil {
		return "", err
	}
	if err := s.persist(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// BulkAdd inserts a batch with per-document dedup, returning only the ids
// actually inserted (duplicates are silently omitted).
func (s *SQLiteStore) BulkAdd(ctx context.Context, docs []Document, allowDuplicates bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added, err := s.index.BulkAdd(ctx, docs, allowDuplicates)
	if err != nil {
		return nil, err
	}
	for _, id := range added {
		if err := s.persist(ctx, id); err != nil {
			return nil, err
		}
	}
	return added, nil
}

// Search delegates to the in-memory index.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, limit int) ([]Result, error) {
	return s.index.Search(ctx, query, limit)
}

// Update applies a partial update and persists the result.
func (s *SQLiteStore) Update(ctx context.Context, id string, upd Update) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.index.Update(ctx, id, upd)
	if err != nil || !ok {
		return ok, err
	}
	if err := s.persist(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a document from the index and the database.
func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.index.Delete(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("vectorstore: %w: delete %s: %v", ErrStorage, id, err)
	}
	return true, nil
}

// Get delegates to the in-memory index.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Document, error) {
	return s.index.Get(ctx, id)
}

// Stats delegates to the in-memory index. Never fails.
func (s *SQLiteStore) Stats(ctx context.Context) Stats {
	return s.index.Stats(ctx)
}

// Ping verifies the database file is still reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("vectorstore: close: %w", err)
	}
	return nil
}

// persist upserts the current index state of id into SQLite. Must hold mu.
func (s *SQLiteStore) persist(ctx context.Context, id string) error {
	doc, err := s.index.Get(ctx, id)
	if err != nil || doc == nil {
		return fmt.Errorf("vectorstore: %w: persist lookup %s failed", ErrStorage, id)
	}

	embJSON, err := json.Marshal(doc.Embedding)
	if err != nil {
		return fmt.Errorf("vectorstore: %w: encode embedding: %v", ErrStorage, err)
	}
	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("vectorstore: %w: encode metadata: %v", ErrStorage, err)
	}

	const q = `
INSERT INTO documents (id, text, embedding, metadata) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET text = excluded.text,
                              embedding = excluded.embedding,
                              metadata = excluded.metadata`
	if _, err := s.db.ExecContext(ctx, q, doc.ID, doc.Text, string(embJSON), string(metaJSON)); err != nil {
		return fmt.Errorf("vectorstore: %w: persist %s: %v", ErrStorage, id, err)
	}
	return nil
}
