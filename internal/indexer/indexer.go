// Package indexer keeps the chunk store in sync with the vault. Builds
// are incremental against the tracker state; concurrent callers of
// EnsureIndex coalesce onto one in-flight build.
package indexer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/molino-labs/obsidianrag/internal/result"
	"github.com/molino-labs/obsidianrag/internal/store"
	"github.com/molino-labs/obsidianrag/internal/tracker"
	"github.com/molino-labs/obsidianrag/internal/vault"
)

// Store is the persistence surface the indexer needs.
type Store interface {
	AddChunks(records []store.ChunkRecord, embeddings [][]float32) error
	DeleteBySource(sources ...string) error
	DeleteAll() error
	ChunkCount() (int, error)
}

// Embedder produces document vectors.
type Embedder interface {
	GetDocumentEmbedding(text string) ([]float32, error)
}

// Stats summarizes one build.
type Stats struct {
	DocsProcessed int     `json:"docs_processed"`
	DocsNew       int     `json:"docs_new"`
	DocsModified  int     `json:"docs_modified"`
	DocsDeleted   int     `json:"docs_deleted"`
	IsIncremental bool    `json:"is_incremental"`
	TimeSeconds   float64 `json:"time_seconds"`
	Success       bool    `json:"success"`
}

// Options configure chunking and parallelism.
type Options struct {
	ChunkSize    int // default 1500
	ChunkOverlap int // default 300
	Workers      int // default 4
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 1500
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = 300
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	return o
}

// Indexer builds and refreshes the index.
type Indexer struct {
	vault   *vault.Vault
	store   Store
	emb     Embedder
	tracker *tracker.Tracker
	logger  *zap.Logger
	opts    Options

	mu       sync.Mutex
	inflight *buildCall
}

type buildCall struct {
	done  chan struct{}
	stats Stats
	err   error
}

// New creates an indexer.
func New(v *vault.Vault, st Store, emb Embedder, tr *tracker.Tracker, logger *zap.Logger, opts Options) *Indexer {
	return &Indexer{
		vault:   v,
		store:   st,
		emb:     emb,
		tracker: tr,
		logger:  logger,
		opts:    opts.withDefaults(),
	}
}

// EnsureIndex brings the store up to date. force discards the tracker
// state and rebuilds everything. Concurrent callers wait for the build
// already in flight and share its outcome.
func (ix *Indexer) EnsureIndex(ctx context.Context, force bool) (Stats, error) {
	ix.mu.Lock()
	if call := ix.inflight; call != nil {
		ix.mu.Unlock()
		select {
		case <-call.done:
			return call.stats, call.err
		case <-ctx.Done():
			return Stats{}, result.Wrap(result.KindTimeout, ctx.Err(), "waiting for index build")
		}
	}
	call := &buildCall{done: make(chan struct{})}
	ix.inflight = call
	ix.mu.Unlock()

	call.stats, call.err = ix.build(ctx, force)
	close(call.done)

	ix.mu.Lock()
	ix.inflight = nil
	ix.mu.Unlock()

	return call.stats, call.err
}

func (ix *Indexer) build(ctx context.Context, force bool) (Stats, error) {
	start := time.Now()

	if err := ix.tracker.Load(); err != nil {
		return Stats{}, err
	}
	full := force || ix.tracker.ShouldRebuild() || ix.tracker.Known() == 0

	var stats Stats
	var err error
	if full {
		stats, err = ix.fullBuild(ctx)
	} else {
		stats, err = ix.incrementalBuild(ctx)
	}
	stats.TimeSeconds = time.Since(start).Seconds()
	if err != nil {
		return stats, err
	}
	stats.Success = true

	ix.logger.Info("index build finished",
		zap.Bool("incremental", stats.IsIncremental),
		zap.Int("processed", stats.DocsProcessed),
		zap.Int("new", stats.DocsNew),
		zap.Int("modified", stats.DocsModified),
		zap.Int("deleted", stats.DocsDeleted),
		zap.Float64("seconds", stats.TimeSeconds))
	return stats, nil
}

// fullBuild embeds the whole vault before touching the store, so a
// failing embedding backend leaves the previous index intact.
func (ix *Indexer) fullBuild(ctx context.Context) (Stats, error) {
	files := ix.vault.Walk()
	records, embeddings, err := ix.embedFiles(ctx, files)
	if err != nil {
		return Stats{IsIncremental: false}, err
	}

	if err := ix.store.DeleteAll(); err != nil {
		return Stats{}, err
	}
	if err := ix.store.AddChunks(records, embeddings); err != nil {
		return Stats{}, err
	}

	if err := ix.tracker.Snapshot(files); err != nil {
		return Stats{}, err
	}
	if err := ix.tracker.Persist(); err != nil {
		return Stats{}, err
	}
	return Stats{
		DocsProcessed: len(files),
		DocsNew:       len(files),
		IsIncremental: false,
	}, nil
}

func (ix *Indexer) incrementalBuild(ctx context.Context) (Stats, error) {
	files := ix.vault.Walk()
	changes, err := ix.tracker.DetectChanges(files)
	if err != nil {
		return Stats{IsIncremental: true}, err
	}
	if changes.Empty() {
		return Stats{IsIncremental: true}, nil
	}

	// Embed first: deletions only happen once replacements are ready.
	var changed []string
	for _, rel := range changes.New {
		changed = append(changed, ix.vault.Abs(rel))
	}
	for _, rel := range changes.Modified {
		changed = append(changed, ix.vault.Abs(rel))
	}
	records, embeddings, err := ix.embedFiles(ctx, changed)
	if err != nil {
		return Stats{IsIncremental: true}, err
	}

	var stale []string
	for _, rel := range changes.Deleted {
		stale = append(stale, ix.vault.Abs(rel))
	}
	for _, rel := range changes.Modified {
		stale = append(stale, ix.vault.Abs(rel))
	}
	if err := ix.store.DeleteBySource(stale...); err != nil {
		return Stats{}, err
	}
	if err := ix.store.AddChunks(records, embeddings); err != nil {
		return Stats{}, err
	}

	if err := ix.tracker.Snapshot(files); err != nil {
		return Stats{}, err
	}
	if err := ix.tracker.Persist(); err != nil {
		return Stats{}, err
	}
	return Stats{
		DocsProcessed: len(changed),
		DocsNew:       len(changes.New),
		DocsModified:  len(changes.Modified),
		DocsDeleted:   len(changes.Deleted),
		IsIncremental: true,
	}, nil
}

type embJob struct {
	path string
}

type embResult struct {
	records    []store.ChunkRecord
	embeddings [][]float32
	path       string
	err        error
}

// embedFiles loads, chunks and embeds the given files with a worker
// pool. A file whose chunks all fail to embed counts as a failure; if
// every file fails the backend is considered down.
func (ix *Indexer) embedFiles(ctx context.Context, files []string) ([]store.ChunkRecord, [][]float32, error) {
	if len(files) == 0 {
		return nil, nil, nil
	}

	jobs := make(chan embJob, len(files))
	results := make(chan embResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < ix.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					results <- embResult{path: job.path, err: ctx.Err()}
					continue
				}
				recs, vecs, err := ix.embedFile(job.path)
				results <- embResult{records: recs, embeddings: vecs, path: job.path, err: err}
			}
		}()
	}
	for _, fp := range files {
		jobs <- embJob{path: fp}
	}
	close(jobs)
	go func() {
		wg.Wait()
		close(results)
	}()

	var records []store.ChunkRecord
	var embeddings [][]float32
	failures := 0
	for res := range results {
		if res.err != nil {
			if ctx.Err() != nil {
				return nil, nil, result.Wrap(result.KindTimeout, ctx.Err(), "index build canceled")
			}
			ix.logger.Warn("embed failed", zap.String("path", ix.vault.Relative(res.path)), zap.Error(res.err))
			failures++
			continue
		}
		records = append(records, res.records...)
		embeddings = append(embeddings, res.embeddings...)
	}
	if failures == len(files) && failures > 0 {
		return nil, nil, result.Dependencyf("embedding backend unavailable: no file could be embedded")
	}
	return records, embeddings, nil
}

func (ix *Indexer) embedFile(absPath string) ([]store.ChunkRecord, [][]float32, error) {
	doc, err := ix.vault.LoadDocument(absPath)
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return nil, nil, nil
	}

	title := doc.Meta["title"]
	if title == "" {
		title = ix.vault.Relative(absPath)
	}

	chunks := ix.vault.SplitDocument(doc, ix.opts.ChunkSize, ix.opts.ChunkOverlap)
	var records []store.ChunkRecord
	var embeddings [][]float32
	failed := 0
	for _, chunk := range chunks {
		vec, err := ix.emb.GetDocumentEmbedding(title + "\n" + chunk.Text)
		if err != nil {
			failed++
			continue
		}
		records = append(records, store.ChunkRecord{
			Source: doc.Source,
			Ord:    chunk.Ord,
			Text:   chunk.Text,
			Links:  doc.Meta["links"],
			Meta:   doc.Meta,
		})
		embeddings = append(embeddings, vec)
	}
	if len(chunks) > 0 && failed == len(chunks) {
		return nil, nil, result.Dependencyf("no chunk of %s could be embedded", ix.vault.Relative(absPath))
	}
	return records, embeddings, nil
}
