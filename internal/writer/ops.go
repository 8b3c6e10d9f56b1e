package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/molino-labs/obsidianrag/internal/note"
	"github.com/molino-labs/obsidianrag/internal/result"
)

// trashFolder receives deleted notes instead of unlinking them.
const trashFolder = ".trash"

// Move renames a note. dst is a vault-relative path (.md optional);
// restricted folders refuse both endpoints.
func (w *Writer) Move(src, dst string, createParents bool) (string, error) {
	srcAbs, err := w.resolve(src, "move")
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(strings.ToLower(dst), ".md") {
		dst += ".md"
	}
	dstAbs, err := w.policy.CheckAccess(dst, "move")
	if err != nil {
		return "", err
	}
	if w.policy.IsRestricted(srcAbs) || w.policy.IsRestricted(dstAbs) {
		return "", result.Forbiddenf("move: restricted folder")
	}

	unlock := w.lock(srcAbs)
	defer unlock()

	if _, err := os.Stat(dstAbs); err == nil {
		return "", result.Conflictf("destination %q already exists", dst)
	}
	parent := filepath.Dir(dstAbs)
	if _, err := os.Stat(parent); os.IsNotExist(err) {
		if !createParents {
			return "", result.NotFoundf("destination folder does not exist")
		}
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return "", result.Wrap(result.KindInternal, err, "create destination folder")
		}
	}
	if err := os.Rename(srcAbs, dstAbs); err != nil {
		return "", result.Wrap(result.KindInternal, err, "move %s", src)
	}

	w.names.Invalidate(note.Stem(srcAbs))
	w.names.Invalidate(note.Stem(dstAbs))
	rel, _ := w.policy.Relative(dstAbs)
	w.logger.Info("note moved", zap.String("from", src), zap.String("to", rel))
	return rel, nil
}

// Delete moves a note into the vault trash. confirm must be true.
func (w *Writer) Delete(name string, confirm bool) error {
	if !confirm {
		return result.Validationf("delete requires confirm=true")
	}
	abs, err := w.resolve(name, "delete")
	if err != nil {
		return err
	}
	unlock := w.lock(abs)
	defer unlock()

	trashDir := filepath.Join(w.vault.Root(), trashFolder)
	if err := os.MkdirAll(trashDir, 0o755); err != nil {
		return result.Wrap(result.KindInternal, err, "create trash folder")
	}
	target := filepath.Join(trashDir, filepath.Base(abs))
	if _, err := os.Stat(target); err == nil {
		stamp := w.now().Format("20060102-150405")
		target = filepath.Join(trashDir, note.Stem(abs)+"-"+stamp+".md")
	}
	if err := os.Rename(abs, target); err != nil {
		return result.Wrap(result.KindInternal, err, "delete %s", name)
	}
	w.names.Invalidate(note.Stem(abs))
	w.logger.Info("note trashed", zap.String("path", filepath.Base(abs)))
	return nil
}

// Bulk replace bounds.
const (
	previewFiles    = 20
	maxReplacements = 100
)

// ReplaceMatch is one file touched by a replace run.
type ReplaceMatch struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// ReplaceReport summarizes a replace run.
type ReplaceReport struct {
	FilesScanned int            `json:"files_scanned"`
	FilesMatched int            `json:"files_matched"`
	Replacements int            `json:"replacements"`
	Applied      bool           `json:"applied"`
	Matches      []ReplaceMatch `json:"matches,omitempty"`
}

// SearchAndReplace substitutes a literal string across notes. With
// preview nothing is written and up to 20 matching files are listed.
// Applied runs cap at 100 replacements per call.
func (w *Writer) SearchAndReplace(find, replace, folder string, preview bool, limit int) (*ReplaceReport, error) {
	if find == "" {
		return nil, result.Validationf("empty search string")
	}
	if limit <= 0 || limit > maxReplacements {
		limit = maxReplacements
	}

	paths, err := w.vault.ListNotes(folder, true)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	report := &ReplaceReport{Applied: !preview}
	budget := limit
	for _, rel := range paths {
		report.FilesScanned++
		abs, err := w.policy.CheckAccess(rel, "replace")
		if err != nil {
			continue // forbidden files are silently skipped in bulk ops
		}
		raw, err := os.ReadFile(abs)
		if err != nil {
			continue
		}
		count := strings.Count(string(raw), find)
		if count == 0 {
			continue
		}
		report.FilesMatched++

		if preview {
			if len(report.Matches) < previewFiles {
				report.Matches = append(report.Matches, ReplaceMatch{Path: rel, Count: count})
			}
			report.Replacements += count
			continue
		}

		if budget <= 0 {
			break
		}
		n := count
		if n > budget {
			n = budget
		}
		text := strings.Replace(string(raw), find, replace, n)
		text = note.TouchUpdated(text, w.now().Format("2006-01-02"))

		unlock := w.lock(abs)
		err = writeAtomic(abs, text)
		unlock()
		if err != nil {
			return report, err
		}
		report.Matches = append(report.Matches, ReplaceMatch{Path: rel, Count: n})
		report.Replacements += n
		budget -= n
	}
	return report, nil
}

// QuickCapture appends a timestamped bullet to the inbox note, creating
// it when absent.
func (w *Writer) QuickCapture(content string, tags []string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", result.Validationf("empty capture")
	}

	rel := w.inboxPath()
	abs, err := w.policy.CheckAccess(rel, "quick capture")
	if err != nil {
		return "", err
	}
	unlock := w.lock(abs)
	defer unlock()

	now := w.now()
	line := fmt.Sprintf("- [%s] %s", now.Format("2006-01-02 15:04"), content)
	for _, tag := range note.NormalizeTags(tags) {
		line += " #" + tag
	}

	raw, err := os.ReadFile(abs)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return "", result.Wrap(result.KindInternal, err, "create inbox folder")
		}
		meta := note.MergeOnCreate(nil, "Inbox", now.Format("2006-01-02"), nil, w.defaultAgent)
		text := note.Build(meta) + "# Inbox\n\n" + line + "\n"
		if err := writeAtomic(abs, text); err != nil {
			return "", err
		}
		return rel, nil
	}
	if err != nil {
		return "", result.Wrap(result.KindInternal, err, "read inbox")
	}

	text := strings.TrimRight(string(raw), "\n") + "\n" + line + "\n"
	text = note.TouchUpdated(text, now.Format("2006-01-02"))
	if err := writeAtomic(abs, text); err != nil {
		return "", err
	}
	return rel, nil
}

// inboxPath picks 00_Inbox/Inbox.md, or Inbox.md inside the first
// root folder whose name contains "inbox".
func (w *Writer) inboxPath() string {
	entries, err := os.ReadDir(w.vault.Root())
	if err == nil {
		for _, e := range entries {
			if e.IsDir() && strings.Contains(strings.ToLower(e.Name()), "inbox") {
				return e.Name() + "/Inbox.md"
			}
		}
	}
	return "00_Inbox/Inbox.md"
}
