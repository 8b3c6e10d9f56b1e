package store

import (
	"github.com/molino-labs/obsidianrag/internal/result"
)

// AddChunks inserts records with their embeddings in one transaction.
// records[i] pairs with embeddings[i]; a length mismatch is an error.
func (db *DB) AddChunks(records []ChunkRecord, embeddings [][]float32) error {
	if len(records) != len(embeddings) {
		return result.Internalf("records/embeddings mismatch: %d vs %d", len(records), len(embeddings))
	}
	if len(records) == 0 {
		return nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return result.Wrap(result.KindInternal, err, "begin tx")
	}
	defer tx.Rollback()

	insChunk, err := tx.Prepare(
		`INSERT INTO chunks (source, ord, text, links, meta) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return result.Wrap(result.KindInternal, err, "prepare chunk insert")
	}
	defer insChunk.Close()

	insVec, err := tx.Prepare(
		`INSERT INTO chunks_vec (chunk_id, embedding) VALUES (?, ?)`)
	if err != nil {
		return result.Wrap(result.KindInternal, err, "prepare vector insert")
	}
	defer insVec.Close()

	for i, rec := range records {
		res, err := insChunk.Exec(rec.Source, rec.Ord, rec.Text, rec.Links, encodeMeta(rec.Meta))
		if err != nil {
			return result.Wrap(result.KindInternal, err, "insert chunk %s#%d", rec.Source, rec.Ord)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return result.Wrap(result.KindInternal, err, "chunk id")
		}
		blob, err := serialize(embeddings[i])
		if err != nil {
			return err
		}
		if _, err := insVec.Exec(id, blob); err != nil {
			return result.Wrap(result.KindInternal, err, "insert vector %s#%d", rec.Source, rec.Ord)
		}
	}

	if err := tx.Commit(); err != nil {
		return result.Wrap(result.KindInternal, err, "commit")
	}
	db.bump()
	return nil
}

// DeleteBySource removes every chunk of the given sources, vectors
// first so no vector row can outlive its chunk.
func (db *DB) DeleteBySource(sources ...string) error {
	if len(sources) == 0 {
		return nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return result.Wrap(result.KindInternal, err, "begin tx")
	}
	defer tx.Rollback()

	for _, src := range sources {
		if _, err := tx.Exec(
			`DELETE FROM chunks_vec WHERE chunk_id IN (SELECT id FROM chunks WHERE source = ?)`, src); err != nil {
			return result.Wrap(result.KindInternal, err, "delete vectors for %s", src)
		}
		if _, err := tx.Exec(`DELETE FROM chunks WHERE source = ?`, src); err != nil {
			return result.Wrap(result.KindInternal, err, "delete chunks for %s", src)
		}
	}

	if err := tx.Commit(); err != nil {
		return result.Wrap(result.KindInternal, err, "commit")
	}
	db.bump()
	return nil
}

// DeleteAll empties both tables.
func (db *DB) DeleteAll() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return result.Wrap(result.KindInternal, err, "begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chunks_vec`); err != nil {
		return result.Wrap(result.KindInternal, err, "clear vectors")
	}
	if _, err := tx.Exec(`DELETE FROM chunks`); err != nil {
		return result.Wrap(result.KindInternal, err, "clear chunks")
	}
	if err := tx.Commit(); err != nil {
		return result.Wrap(result.KindInternal, err, "commit")
	}
	db.bump()
	return nil
}

// SourceCount returns how many distinct sources are indexed.
func (db *DB) SourceCount() (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(DISTINCT source) FROM chunks`).Scan(&n)
	if err != nil {
		return 0, result.Wrap(result.KindInternal, err, "count sources")
	}
	return n, nil
}

// ChunkCount returns the total number of stored chunks.
func (db *DB) ChunkCount() (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&n)
	if err != nil {
		return 0, result.Wrap(result.KindInternal, err, "count chunks")
	}
	return n, nil
}

// Sources returns the distinct source paths currently indexed.
func (db *DB) Sources() ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT source FROM chunks ORDER BY source`)
	if err != nil {
		return nil, result.Wrap(result.KindInternal, err, "list sources")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, result.Wrap(result.KindInternal, err, "scan source")
		}
		out = append(out, src)
	}
	return out, rows.Err()
}
