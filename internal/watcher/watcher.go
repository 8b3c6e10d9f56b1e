// Package watcher keeps the index in step with the vault: file events
// are debounced and folded into one incremental reindex.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/molino-labs/obsidianrag/internal/indexer"
	"github.com/molino-labs/obsidianrag/internal/result"
	"github.com/molino-labs/obsidianrag/internal/vault"
)

// debounceDelay batches bursts of events (editors write several times
// per save) into one reindex.
const debounceDelay = 2 * time.Second

// Watcher reindexes the vault when files change.
type Watcher struct {
	vault   *vault.Vault
	indexer *indexer.Indexer
	logger  *zap.Logger

	mu      sync.Mutex
	pending int
	timer   *time.Timer
}

// New creates a watcher over one vault.
func New(v *vault.Vault, ix *indexer.Indexer, logger *zap.Logger) *Watcher {
	return &Watcher{vault: v, indexer: ix, logger: logger}
}

// Run blocks watching the vault until the context is done. Every vault
// directory is watched; directories created later are added as they
// appear.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return result.Wrap(result.KindInternal, err, "create watcher")
	}
	defer fsw.Close()

	dirs := w.watchableDirs()
	for _, d := range dirs {
		if err := fsw.Add(d); err != nil {
			w.logger.Warn("cannot watch directory", zap.String("dir", d), zap.Error(err))
		}
	}
	w.logger.Info("watching vault",
		zap.String("vault", w.vault.Root()),
		zap.Int("dirs", len(dirs)))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	excl := w.vault.Exclusions()

	// New directories need their own watch.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if excl == nil || !excl.SkipDir(filepath.Base(event.Name)) {
				if err := fsw.Add(event.Name); err != nil {
					w.logger.Warn("cannot watch directory", zap.String("dir", event.Name), zap.Error(err))
				}
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, ".md") {
		return
	}
	if excl != nil && excl.SkipFileName(filepath.Base(event.Name)) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	w.pending++
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, func() { w.flush(ctx) })
	w.mu.Unlock()
}

// flush runs one incremental reindex covering every debounced event.
// The tracker works out the actual new, modified and deleted set, so
// renames and deletes need no special casing here.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	n := w.pending
	w.pending = 0
	w.mu.Unlock()
	if n == 0 || ctx.Err() != nil {
		return
	}

	stats, err := w.indexer.EnsureIndex(ctx, false)
	if err != nil {
		w.logger.Error("reindex after change failed", zap.Error(err))
		return
	}
	w.logger.Info("reindexed after changes",
		zap.Int("events", n),
		zap.Int("new", stats.DocsNew),
		zap.Int("modified", stats.DocsModified),
		zap.Int("deleted", stats.DocsDeleted))
}

func (w *Watcher) watchableDirs() []string {
	excl := w.vault.Exclusions()
	var dirs []string
	filepath.WalkDir(w.vault.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if excl != nil && path != w.vault.Root() && excl.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs
}
