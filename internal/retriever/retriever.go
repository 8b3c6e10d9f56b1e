// Package retriever runs hybrid search over the chunk store: BM25 over
// an in-memory lexical index and KNN over sqlite-vec in parallel, fused
// with weighted reciprocal-rank fusion, optionally reordered by a
// cross-encoder reranker.
package retriever

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/molino-labs/obsidianrag/internal/result"
	"github.com/molino-labs/obsidianrag/internal/store"
)

// Store is the chunk store surface the retriever needs.
type Store interface {
	SimilaritySearch(vec []float32, k int, filter func(store.ChunkRecord) bool) ([]store.Hit, error)
	Dump() ([]store.DumpEntry, error)
	Generation() int64
}

// Embedder produces query vectors.
type Embedder interface {
	GetQueryEmbedding(text string) ([]float32, error)
}

// Options tune the hybrid pipeline. Zero values take the defaults.
type Options struct {
	BM25K        int     // lexical candidates, default 10
	VectorK      int     // dense candidates, default 12
	FilteredK    int     // dense candidates under a metadata filter, default 10
	RerankTopN   int     // candidates sent to the reranker, default 6
	BM25Weight   float64 // fusion weight, default 0.4
	VectorWeight float64 // fusion weight, default 0.6
}

func (o Options) withDefaults() Options {
	if o.BM25K <= 0 {
		o.BM25K = 10
	}
	if o.VectorK <= 0 {
		o.VectorK = 12
	}
	if o.FilteredK <= 0 {
		o.FilteredK = 10
	}
	if o.RerankTopN <= 0 {
		o.RerankTopN = 6
	}
	if o.BM25Weight <= 0 {
		o.BM25Weight = 0.4
	}
	if o.VectorWeight <= 0 {
		o.VectorWeight = 0.6
	}
	return o
}

// rrfConstant dampens rank differences in reciprocal-rank fusion.
const rrfConstant = 60

// Result is one fused hit.
type Result struct {
	Chunk store.ChunkRecord
	Score float64
}

// Retriever coordinates the two retrieval legs and the reranker.
type Retriever struct {
	store    Store
	embedder Embedder
	reranker Reranker // nil disables reranking
	logger   *zap.Logger
	opts     Options

	mu       sync.Mutex
	lexical  *lexicalIndex
	chunks   map[int64]store.ChunkRecord
	builtGen int64
}

// New creates a retriever. reranker may be nil.
func New(st Store, emb Embedder, reranker Reranker, logger *zap.Logger, opts Options) *Retriever {
	return &Retriever{
		store:    st,
		embedder: emb,
		reranker: reranker,
		logger:   logger,
		opts:     opts.withDefaults(),
		builtGen: -1,
	}
}

// Search runs the hybrid pipeline and returns the top k results. When
// the embedding leg fails the lexical leg alone still answers, logged
// as degraded. filter restricts dense candidates by chunk metadata.
func (r *Retriever) Search(ctx context.Context, query string, k int, filter func(store.ChunkRecord) bool) ([]Result, error) {
	if k <= 0 {
		k = 4
	}

	var (
		lexHits   []lexicalHit
		denseHits []store.Hit
		denseErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		idx, err := r.ensureLexical()
		if err != nil {
			return err
		}
		lexHits = idx.search(query, r.opts.BM25K)
		return nil
	})
	g.Go(func() error {
		vec, err := r.embedder.GetQueryEmbedding(query)
		if err != nil {
			denseErr = result.Wrap(result.KindDependency, err, "query embedding")
			return nil
		}
		if gctx.Err() != nil {
			return gctx.Err()
		}
		denseHits, err = r.store.SimilaritySearch(vec, r.opts.VectorK, filter)
		if err != nil {
			denseErr = err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if denseErr != nil {
		if len(lexHits) == 0 {
			return nil, denseErr
		}
		r.logger.Warn("dense retrieval degraded, lexical only", zap.Error(denseErr))
	}

	fused := r.fuse(lexHits, denseHits, filter)
	fused = r.rerank(ctx, query, fused)

	if len(fused) > k {
		fused = fused[:k]
	}
	return fused, nil
}

// SearchFiltered answers a metadata-constrained query with the dense
// leg alone: the lexical index carries no metadata, so fusing it back
// in would only dilute the filtered ranking. Results keep the store
// similarity score.
func (r *Retriever) SearchFiltered(ctx context.Context, query string, k int, filter func(store.ChunkRecord) bool) ([]Result, error) {
	if k <= 0 {
		k = 4
	}
	vec, err := r.embedder.GetQueryEmbedding(query)
	if err != nil {
		return nil, result.Wrap(result.KindDependency, err, "query embedding")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	hits, err := r.store.SimilaritySearch(vec, r.opts.FilteredK, filter)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, Result{Chunk: h.Chunk, Score: h.Score})
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// ensureLexical rebuilds the BM25 index when the store generation has
// moved since the last build.
func (r *Retriever) ensureLexical() (*lexicalIndex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	gen := r.store.Generation()
	if r.lexical != nil && gen == r.builtGen {
		return r.lexical, nil
	}

	entries, err := r.store.Dump()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(entries))
	texts := make([]string, len(entries))
	chunks := make(map[int64]store.ChunkRecord, len(entries))
	for i, e := range entries {
		ids[i] = e.Chunk.ID
		texts[i] = e.Chunk.Text
		chunks[e.Chunk.ID] = e.Chunk
	}
	r.lexical = buildLexicalIndex(ids, texts)
	r.chunks = chunks
	r.builtGen = gen
	return r.lexical, nil
}

// fuse merges the two ranked lists with weighted reciprocal-rank
// fusion: each list contributes weight/(rank+constant) per chunk.
func (r *Retriever) fuse(lexHits []lexicalHit, denseHits []store.Hit, filter func(store.ChunkRecord) bool) []Result {
	scores := map[int64]float64{}
	records := map[int64]store.ChunkRecord{}

	for rank, h := range lexHits {
		rec, ok := r.lookup(h.docID)
		if !ok {
			continue
		}
		if filter != nil && !filter(rec) {
			continue
		}
		scores[h.docID] += r.opts.BM25Weight / float64(rank+1+rrfConstant)
		records[h.docID] = rec
	}
	for rank, h := range denseHits {
		scores[h.Chunk.ID] += r.opts.VectorWeight / float64(rank+1+rrfConstant)
		records[h.Chunk.ID] = h.Chunk
	}

	out := make([]Result, 0, len(scores))
	for id, s := range scores {
		out = append(out, Result{Chunk: records[id], Score: s})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	return out
}

func (r *Retriever) lookup(id int64) (store.ChunkRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.chunks[id]
	return rec, ok
}

// rerank sends the top candidates through the cross-encoder and reorders
// them by its scores. Any reranker failure keeps the fused order.
func (r *Retriever) rerank(ctx context.Context, query string, fused []Result) []Result {
	if r.reranker == nil || len(fused) < 2 {
		return fused
	}
	n := r.opts.RerankTopN
	if n > len(fused) {
		n = len(fused)
	}

	docs := make([]string, n)
	for i := 0; i < n; i++ {
		docs[i] = fused[i].Chunk.Text
	}
	scores, err := r.reranker.Score(ctx, query, docs)
	if err != nil || len(scores) != n {
		r.logger.Warn("reranker unavailable, keeping fused order", zap.Error(err))
		return fused
	}

	head := make([]Result, n)
	copy(head, fused[:n])
	for i := range head {
		head[i].Score = scores[i]
	}
	sort.SliceStable(head, func(i, j int) bool { return head[i].Score > head[j].Score })
	return append(head, fused[n:]...)
}
