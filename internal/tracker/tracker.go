// Package tracker persists per-file fingerprints between index runs so
// rebuilds only touch what changed. State lives in a JSON file next to
// the database and is written atomically.
package tracker

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/molino-labs/obsidianrag/internal/result"
)

// Version of the on-disk state format. A mismatch forces a full rebuild.
const Version = 1

// Entry is the fingerprint of one indexed file.
type Entry struct {
	MtimeNS int64  `json:"mtime_ns"`
	Size    int64  `json:"size"`
	SHA256  string `json:"sha256"`
}

// State is the whole tracker file.
type State struct {
	Version int              `json:"version"`
	Vault   string           `json:"vault"`
	Files   map[string]Entry `json:"files"`
}

// Changes partitions the vault against the last persisted state. Paths
// are vault-relative with forward slashes.
type Changes struct {
	New      []string
	Modified []string
	Deleted  []string
}

// Empty reports whether nothing changed since the last run.
func (c Changes) Empty() bool {
	return len(c.New) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// Tracker loads and saves index state for one vault.
type Tracker struct {
	path  string
	vault string
	state State
}

// New creates a tracker persisting to path for the given vault root.
func New(path, vault string) *Tracker {
	return &Tracker{
		path:  path,
		vault: vault,
		state: State{Version: Version, Vault: vault, Files: map[string]Entry{}},
	}
}

// Load reads the persisted state. A missing file is a clean slate, a
// corrupt one is discarded with the same effect.
func (t *Tracker) Load() error {
	raw, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return result.Wrap(result.KindInternal, err, "read tracker state")
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		// Corrupt state forces a full rebuild rather than failing.
		return nil
	}
	if st.Files == nil {
		st.Files = map[string]Entry{}
	}
	t.state = st
	return nil
}

// ShouldRebuild reports whether the persisted state cannot be trusted
// for incremental work: wrong format version or a different vault.
func (t *Tracker) ShouldRebuild() bool {
	return t.state.Version != Version || (t.state.Vault != "" && t.state.Vault != t.vault)
}

// Known returns how many files the last run indexed.
func (t *Tracker) Known() int { return len(t.state.Files) }

// DetectChanges compares the current file list (absolute paths under the
// vault root) against the persisted state. Hashing is skipped when mtime
// and size both match.
func (t *Tracker) DetectChanges(files []string) (Changes, error) {
	var ch Changes
	seen := make(map[string]bool, len(files))
	for _, fp := range files {
		rel := t.relative(fp)
		seen[rel] = true
		info, err := os.Stat(fp)
		if err != nil {
			continue
		}
		prev, ok := t.state.Files[rel]
		if !ok {
			ch.New = append(ch.New, rel)
			continue
		}
		if prev.MtimeNS == info.ModTime().UnixNano() && prev.Size == info.Size() {
			continue
		}
		sum, err := hashFile(fp)
		if err != nil {
			return Changes{}, err
		}
		if sum != prev.SHA256 {
			ch.Modified = append(ch.Modified, rel)
		}
	}
	for rel := range t.state.Files {
		if !seen[rel] {
			ch.Deleted = append(ch.Deleted, rel)
		}
	}
	return ch, nil
}

// Snapshot replaces the in-memory state with fresh fingerprints for the
// given absolute paths. Call Persist afterwards.
func (t *Tracker) Snapshot(files []string) error {
	fresh := make(map[string]Entry, len(files))
	for _, fp := range files {
		info, err := os.Stat(fp)
		if err != nil {
			continue
		}
		sum, err := hashFile(fp)
		if err != nil {
			return err
		}
		fresh[t.relative(fp)] = Entry{
			MtimeNS: info.ModTime().UnixNano(),
			Size:    info.Size(),
			SHA256:  sum,
		}
	}
	t.state = State{Version: Version, Vault: t.vault, Files: fresh}
	return nil
}

// Persist writes the state atomically (temp file plus rename).
func (t *Tracker) Persist() error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return result.Wrap(result.KindInternal, err, "create tracker dir")
	}
	raw, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		return result.Wrap(result.KindInternal, err, "encode tracker state")
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return result.Wrap(result.KindInternal, err, "write tracker state")
	}
	if err := os.Rename(tmp, t.path); err != nil {
		os.Remove(tmp)
		return result.Wrap(result.KindInternal, err, "replace tracker state")
	}
	return nil
}

func (t *Tracker) relative(abs string) string {
	rel, err := filepath.Rel(t.vault, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", result.Wrap(result.KindInternal, err, "hash %s", filepath.Base(path))
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", result.Wrap(result.KindInternal, err, "hash %s", filepath.Base(path))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
