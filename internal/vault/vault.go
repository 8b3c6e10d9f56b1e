// Package vault reads the Markdown note tree: walking with exclusions,
// loading documents with their metadata, chunking for retrieval, and the
// name/date/folder lookups behind the navigation tools.
package vault

import (
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/molino-labs/obsidianrag/internal/config"
	"github.com/molino-labs/obsidianrag/internal/note"
	"github.com/molino-labs/obsidianrag/internal/result"
)

// Vault is a read-only view over one note tree.
type Vault struct {
	root string
	excl *config.Exclusions
}

// New creates a vault view rooted at the canonical root path.
func New(root string, excl *config.Exclusions) *Vault {
	return &Vault{root: root, excl: excl}
}

// Root returns the vault root.
func (v *Vault) Root() string { return v.root }

// Exclusions returns the active exclusion policy.
func (v *Vault) Exclusions() *config.Exclusions { return v.excl }

// Relative returns the vault-relative slash path for abs.
func (v *Vault) Relative(abs string) string {
	rel, err := filepath.Rel(v.root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// Abs joins a vault-relative path back onto the root.
func (v *Vault) Abs(rel string) string {
	return filepath.Join(v.root, filepath.FromSlash(rel))
}

// Walk returns the absolute paths of every indexable .md file, honoring
// the excluded folders and always-skipped file names. Order is the
// filesystem walk order (deterministic on a given tree).
func (v *Vault) Walk() []string {
	var files []string
	filepath.WalkDir(v.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path == v.root {
				return nil
			}
			if v.excl.SkipDir(v.Relative(path)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		if v.excl.SkipFileName(d.Name()) || v.excl.SkipPath(v.Relative(path)) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files
}

// WalkAll is like Walk but only honors the hard folder exclusions
// (.git, .obsidian and friends), not the retrieval pattern set. The
// write path and navigation tools use it so notes like Inbox.md stay
// reachable even though retrieval skips them.
func (v *Vault) WalkAll() []string {
	var files []string
	filepath.WalkDir(v.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path == v.root {
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") && name != "." {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// FindNote resolves a note name (stem, with or without .md, or a
// vault-relative path) to its absolute path. Ambiguous stems resolve to
// the shallowest match; no match is not_found.
func (v *Vault) FindNote(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", result.Validationf("empty note name")
	}

	// Direct relative path first.
	direct := v.Abs(name)
	if !strings.HasSuffix(strings.ToLower(direct), ".md") {
		direct += ".md"
	}
	if info, err := os.Stat(direct); err == nil && !info.IsDir() {
		return direct, nil
	}

	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(name), ".md"))
	var matches []string
	for _, fp := range v.WalkAll() {
		if strings.ToLower(note.Stem(fp)) == stem {
			matches = append(matches, fp)
		}
	}
	if len(matches) == 0 {
		return "", result.NotFoundf("note %q not found", name)
	}
	sort.Slice(matches, func(i, j int) bool {
		di := strings.Count(matches[i], string(filepath.Separator))
		dj := strings.Count(matches[j], string(filepath.Separator))
		if di != dj {
			return di < dj
		}
		return matches[i] < matches[j]
	})
	return matches[0], nil
}

// ListNotes returns vault-relative paths under folder (vault root when
// empty). With recurse false only direct children are listed.
func (v *Vault) ListNotes(folder string, recurse bool) ([]string, error) {
	base := v.root
	if folder != "" {
		base = v.Abs(folder)
		info, err := os.Stat(base)
		if err != nil || !info.IsDir() {
			return nil, result.NotFoundf("folder %q not found", folder)
		}
	}

	var out []string
	if recurse {
		for _, fp := range v.WalkAll() {
			if strings.HasPrefix(fp, base+string(filepath.Separator)) || base == v.root {
				out = append(out, v.Relative(fp))
			}
		}
	} else {
		entries, err := os.ReadDir(base)
		if err != nil {
			return nil, result.Wrap(result.KindInternal, err, "read folder %q", folder)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".md") {
				out = append(out, v.Relative(filepath.Join(base, e.Name())))
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// TextMatch is one hit of a literal text search.
type TextMatch struct {
	Path    string `json:"path"`
	Line    int    `json:"line,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchText scans notes for a literal substring (case-insensitive).
// With titlesOnly, only file stems are matched.
func (v *Vault) SearchText(text, folder string, titlesOnly bool, limit int) ([]TextMatch, error) {
	if strings.TrimSpace(text) == "" {
		return nil, result.Validationf("empty search text")
	}
	if limit <= 0 {
		limit = 50
	}
	needle := strings.ToLower(text)

	paths, err := v.ListNotes(folder, true)
	if err != nil {
		return nil, err
	}

	var out []TextMatch
	for _, rel := range paths {
		if len(out) >= limit {
			break
		}
		if titlesOnly {
			if strings.Contains(strings.ToLower(note.Stem(rel)), needle) {
				out = append(out, TextMatch{Path: rel})
			}
			continue
		}
		raw, err := os.ReadFile(v.Abs(rel))
		if err != nil {
			continue
		}
		for i, line := range strings.Split(string(raw), "\n") {
			if strings.Contains(strings.ToLower(line), needle) {
				out = append(out, TextMatch{Path: rel, Line: i + 1, Snippet: strings.TrimSpace(line)})
				break
			}
		}
	}
	return out, nil
}

// SearchByDate returns notes whose created front-matter date (mtime when
// absent) falls in [from, to]. Zero to means from's day only is open-ended
// to today.
func (v *Vault) SearchByDate(from, to time.Time) ([]string, error) {
	if to.IsZero() {
		to = time.Now()
	}
	if to.Before(from) {
		return nil, result.Validationf("date range end before start")
	}

	var out []string
	for _, fp := range v.WalkAll() {
		var created time.Time
		if raw, err := os.ReadFile(fp); err == nil {
			fields, _ := note.ParseFields(string(raw))
			if fields.Created != "" {
				if t, err := time.Parse("2006-01-02", fields.Created); err == nil {
					created = t
				}
			}
		}
		if created.IsZero() {
			info, err := os.Stat(fp)
			if err != nil {
				continue
			}
			created = info.ModTime()
		}
		if !created.Before(from) && !created.After(to.Add(24*time.Hour-time.Nanosecond)) {
			out = append(out, v.Relative(fp))
		}
	}
	sort.Strings(out)
	return out, nil
}

// RandomConcept picks a random indexable note, optionally under folder.
func (v *Vault) RandomConcept(folder string) (string, error) {
	candidates := v.Walk()
	if folder != "" {
		base := v.Abs(folder) + string(filepath.Separator)
		var filtered []string
		for _, fp := range candidates {
			if strings.HasPrefix(fp, base) {
				filtered = append(filtered, fp)
			}
		}
		candidates = filtered
	}
	if len(candidates) == 0 {
		return "", result.NotFoundf("no notes available")
	}
	return v.Relative(candidates[rand.Intn(len(candidates))]), nil
}

// ListTemplates returns the template note names inside the templates
// folder (stems, sorted). An empty folder name yields an empty list.
func (v *Vault) ListTemplates(templatesFolder string) ([]string, error) {
	if templatesFolder == "" {
		return nil, nil
	}
	base := v.Abs(templatesFolder)
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, result.NotFoundf("templates folder %q not found", templatesFolder)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".md") {
			out = append(out, note.Stem(e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
