package store

import (
	"encoding/binary"
	"math"

	"github.com/molino-labs/obsidianrag/internal/result"
)

// Hit is one similarity search result. Score is 1 - distance/2 for
// cosine distance, so identical vectors score 1 and opposites 0.
type Hit struct {
	Chunk ChunkRecord
	Score float64
}

// overfetch factor for post-filtering: KNN happens in SQL, metadata
// filters in Go, so we pull extra candidates.
const fetchFactor = 5

// SimilaritySearch returns the k nearest chunks to vec. A non-nil
// filter must return true for a chunk to be kept.
func (db *DB) SimilaritySearch(vec []float32, k int, filter func(ChunkRecord) bool) ([]Hit, error) {
	if k <= 0 {
		k = 4
	}
	fetchK := k
	if filter != nil {
		fetchK = k * fetchFactor
	}

	blob, err := serialize(vec)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(`
		SELECT c.id, c.source, c.ord, c.text, c.links, c.meta, v.distance
		FROM chunks_vec v
		JOIN chunks c ON c.id = v.chunk_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance`,
		blob, fetchK)
	if err != nil {
		return nil, result.Wrap(result.KindInternal, err, "vector search")
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var rec ChunkRecord
		var metaRaw string
		var distance float64
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Ord, &rec.Text, &rec.Links, &metaRaw, &distance); err != nil {
			return nil, result.Wrap(result.KindInternal, err, "scan hit")
		}
		rec.Meta = decodeMeta(metaRaw)
		if filter != nil && !filter(rec) {
			continue
		}
		hits = append(hits, Hit{Chunk: rec, Score: distanceToScore(distance)})
		if len(hits) >= k {
			break
		}
	}
	return hits, rows.Err()
}

// distanceToScore maps cosine distance [0, 2] onto a [0, 1] score.
func distanceToScore(d float64) float64 {
	s := 1 - d/2
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// DumpEntry is one chunk with its stored embedding, for the all-pairs
// connection sweep.
type DumpEntry struct {
	Chunk     ChunkRecord
	Embedding []float32
}

// Dump returns every chunk with its embedding.
func (db *DB) Dump() ([]DumpEntry, error) {
	rows, err := db.conn.Query(`
		SELECT c.id, c.source, c.ord, c.text, c.links, c.meta, v.embedding
		FROM chunks c
		JOIN chunks_vec v ON v.chunk_id = c.id
		ORDER BY c.source, c.ord`)
	if err != nil {
		return nil, result.Wrap(result.KindInternal, err, "dump")
	}
	defer rows.Close()

	var out []DumpEntry
	for rows.Next() {
		var rec ChunkRecord
		var metaRaw string
		var blob []byte
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Ord, &rec.Text, &rec.Links, &metaRaw, &blob); err != nil {
			return nil, result.Wrap(result.KindInternal, err, "scan dump row")
		}
		rec.Meta = decodeMeta(metaRaw)
		out = append(out, DumpEntry{Chunk: rec, Embedding: deserializeFloat32(blob)})
	}
	return out, rows.Err()
}

func deserializeFloat32(blob []byte) []float32 {
	n := len(blob) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec
}
