// Package store is the SQLite + sqlite-vec persistence layer for chunk
// embeddings. One row per chunk in a plain table, its vector in a vec0
// virtual table keyed by the same id.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/molino-labs/obsidianrag/internal/result"
)

func init() {
	sqlite_vec.Auto()
}

// ChunkRecord is one stored retrieval unit.
type ChunkRecord struct {
	ID     int64
	Source string
	Ord    int
	Text   string
	Links  string
	Meta   map[string]string
}

// DB wraps a SQLite connection with sqlite-vec loaded.
type DB struct {
	conn *sql.DB
	dims int
	mu   sync.Mutex // serialize writes
	gen  atomic.Int64
}

// Open opens or creates the database at path with vectors of the given
// dimensionality.
func Open(path string, dims int) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, result.Wrap(result.KindInternal, err, "create data dir")
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, result.Wrap(result.KindInternal, err, "open db")
	}

	var vecVersion string
	if err := conn.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		conn.Close()
		return nil, result.Wrap(result.KindDependency, err, "sqlite-vec not available")
	}

	db := &DB{conn: conn, dims: dims}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, result.Wrap(result.KindInternal, err, "migrate")
	}
	return db, nil
}

// OpenMemory opens an in-memory database for testing.
func OpenMemory(dims int) (*DB, error) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	db := &DB{conn: conn, dims: dims}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Dims returns the configured embedding dimensionality.
func (db *DB) Dims() int { return db.dims }

// Generation increments on every write. Callers holding derived indexes
// (the lexical index in particular) compare it to decide when to rebuild.
func (db *DB) Generation() int64 { return db.gen.Load() }

func (db *DB) bump() { db.gen.Add(1) }

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			ord INTEGER NOT NULL,
			text TEXT NOT NULL,
			links TEXT DEFAULT '',
			meta TEXT DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source)`,

		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_vec USING vec0(
			chunk_id INTEGER PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		)`, db.dims),
	}
	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func encodeMeta(meta map[string]string) string {
	if len(meta) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func decodeMeta(raw string) map[string]string {
	meta := map[string]string{}
	if raw != "" {
		json.Unmarshal([]byte(raw), &meta)
	}
	return meta
}

func serialize(vec []float32) ([]byte, error) {
	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return nil, result.Wrap(result.KindInternal, err, "serialize embedding")
	}
	return blob, nil
}
