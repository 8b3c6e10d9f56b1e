package writer

import (
	"os"
	"strings"

	"github.com/molino-labs/obsidianrag/internal/note"
	"github.com/molino-labs/obsidianrag/internal/result"
)

// GetFrontmatter returns a note's front-matter in insertion order.
func (w *Writer) GetFrontmatter(name string) (*note.Meta, error) {
	abs, err := w.resolve(name, "read frontmatter")
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, result.Wrap(result.KindInternal, err, "read %s", name)
	}
	meta, _ := note.Split(string(raw))
	return meta, nil
}

// UpdateFrontmatter applies key updates to a note's front-matter. The
// created key is immutable; updated is managed and stamped here. A nil
// value deletes the key.
func (w *Writer) UpdateFrontmatter(name string, updates map[string]any) error {
	if len(updates) == 0 {
		return result.Validationf("no updates given")
	}
	for key := range updates {
		switch key {
		case note.KeyCreated:
			return result.Validationf("the created field is immutable")
		case note.KeyUpdated:
			return result.Validationf("the updated field is managed automatically")
		}
	}

	abs, err := w.resolve(name, "update frontmatter")
	if err != nil {
		return err
	}
	unlock := w.lock(abs)
	defer unlock()

	raw, err := os.ReadFile(abs)
	if err != nil {
		return result.Wrap(result.KindInternal, err, "read %s", name)
	}
	meta, body := note.Split(string(raw))
	for key, val := range updates {
		if val == nil {
			meta.Delete(key)
			continue
		}
		if key == note.KeyTags {
			meta.Set(key, note.NormalizeTags(val))
			continue
		}
		meta.Set(key, val)
	}
	meta.Set(note.KeyUpdated, w.now().Format("2006-01-02"))

	return writeAtomic(abs, note.Build(meta)+body)
}

// ManageTags adds and removes tags on a note, preserving order of the
// survivors and deduplicating additions.
func (w *Writer) ManageTags(name string, add, remove []string) ([]string, error) {
	if len(add) == 0 && len(remove) == 0 {
		return nil, result.Validationf("nothing to add or remove")
	}

	abs, err := w.resolve(name, "manage tags")
	if err != nil {
		return nil, err
	}
	unlock := w.lock(abs)
	defer unlock()

	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, result.Wrap(result.KindInternal, err, "read %s", name)
	}
	meta, body := note.Split(string(raw))

	existing, _ := meta.Get(note.KeyTags)
	tags := note.NormalizeTags(existing)

	drop := map[string]bool{}
	for _, t := range note.NormalizeTags(remove) {
		drop[t] = true
	}
	var kept []string
	for _, t := range tags {
		if !drop[t] {
			kept = append(kept, t)
		}
	}
	for _, t := range note.NormalizeTags(add) {
		if !containsTag(kept, t) {
			kept = append(kept, t)
		}
	}

	if len(kept) > 0 {
		meta.Set(note.KeyTags, kept)
	} else {
		meta.Delete(note.KeyTags)
	}
	meta.Set(note.KeyUpdated, w.now().Format("2006-01-02"))

	if err := writeAtomic(abs, note.Build(meta)+body); err != nil {
		return nil, err
	}
	return kept, nil
}

func containsTag(list []string, s string) bool {
	for _, x := range list {
		if strings.EqualFold(x, s) {
			return true
		}
	}
	return false
}
