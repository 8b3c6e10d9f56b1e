package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/molino-labs/obsidianrag/internal/config"
	"github.com/molino-labs/obsidianrag/internal/store"
	"github.com/molino-labs/obsidianrag/internal/tracker"
	"github.com/molino-labs/obsidianrag/internal/vault"
)

type fakeEmbedder struct {
	calls atomic.Int64
	delay time.Duration
	fail  atomic.Bool
}

func (f *fakeEmbedder) GetDocumentEmbedding(text string) ([]float32, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail.Load() {
		return nil, errors.New("backend down")
	}
	// Deterministic vector derived from the text length.
	n := float32(len(text)%7 + 1)
	return []float32{n, 1, 0, 0}, nil
}

type fixture struct {
	vault *vault.Vault
	db    *store.DB
	emb   *fakeEmbedder
	ix    *Indexer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	notes := map[string]string{
		"Go.md":           "# Go\n\nUn lenguaje con goroutines.",
		"Redes/TCP.md":    "# TCP\n\nEntrega ordenada.",
		"Redes/HTTP.md":   "# HTTP\n\nHipertexto sobre TCP.",
	}
	for rel, body := range notes {
		fp := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(fp, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	excl, err := config.NewExclusions(nil)
	if err != nil {
		t.Fatal(err)
	}
	v := vault.New(root, excl)

	db, err := store.OpenMemory(4)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	tr := tracker.New(filepath.Join(root, ".obsidianrag", "metadata.json"), root)
	emb := &fakeEmbedder{}
	ix := New(v, db, emb, tr, zap.NewNop(), Options{Workers: 2})
	return &fixture{vault: v, db: db, emb: emb, ix: ix}
}

func TestFullBuild(t *testing.T) {
	f := newFixture(t)
	stats, err := f.ix.EnsureIndex(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.IsIncremental {
		t.Error("first build should be full")
	}
	if stats.DocsProcessed != 3 || stats.DocsNew != 3 || !stats.Success {
		t.Errorf("stats = %+v", stats)
	}
	if n, _ := f.db.ChunkCount(); n != 3 {
		t.Errorf("chunks = %d", n)
	}
}

func TestIncrementalNoChanges(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ix.EnsureIndex(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	before := f.emb.calls.Load()

	stats, err := f.ix.EnsureIndex(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if !stats.IsIncremental || stats.DocsProcessed != 0 || !stats.Success {
		t.Errorf("stats = %+v", stats)
	}
	if f.emb.calls.Load() != before {
		t.Error("unchanged vault triggered embeddings")
	}
}

func TestIncrementalChanges(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ix.EnsureIndex(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	future := time.Now().Add(2 * time.Second)
	goPath := filepath.Join(f.vault.Root(), "Go.md")
	if err := os.WriteFile(goPath, []byte("# Go\n\nAhora con canales."), 0o644); err != nil {
		t.Fatal(err)
	}
	os.Chtimes(goPath, future, future)
	os.Remove(filepath.Join(f.vault.Root(), "Redes", "HTTP.md"))
	if err := os.WriteFile(filepath.Join(f.vault.Root(), "UDP.md"), []byte("# UDP\n\nDatagramas."), 0o644); err != nil {
		t.Fatal(err)
	}

	stats, err := f.ix.EnsureIndex(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if !stats.IsIncremental || stats.DocsNew != 1 || stats.DocsModified != 1 || stats.DocsDeleted != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if n, _ := f.db.ChunkCount(); n != 3 {
		t.Errorf("chunks = %d", n)
	}

	// Deleted note is gone from the store.
	srcs, _ := f.db.Sources()
	for _, s := range srcs {
		if filepath.Base(s) == "HTTP.md" {
			t.Error("deleted note still indexed")
		}
	}
}

func TestForceRebuild(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ix.EnsureIndex(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	stats, err := f.ix.EnsureIndex(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.IsIncremental || stats.DocsNew != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestFailedBuildLeavesStoreIntact(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ix.EnsureIndex(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	chunksBefore, _ := f.db.ChunkCount()

	f.emb.fail.Store(true)
	if _, err := f.ix.EnsureIndex(context.Background(), true); err == nil {
		t.Fatal("expected failure with embedding backend down")
	}
	if n, _ := f.db.ChunkCount(); n != chunksBefore {
		t.Errorf("failed rebuild mutated the store: %d -> %d", chunksBefore, n)
	}
}

func TestConcurrentBuildsCoalesce(t *testing.T) {
	f := newFixture(t)
	f.emb.delay = 30 * time.Millisecond

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ix.EnsureIndex(context.Background(), true)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Errorf("call %d: %v", i, err)
		}
	}
	// One shared build: each note embedded once, not twice.
	if got := f.emb.calls.Load(); got > 3 {
		t.Errorf("embedder called %d times for 3 notes", got)
	}
}
