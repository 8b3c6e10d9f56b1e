// Package writer is the write path over the vault: note creation with
// templates, edits, appends, moves, deletes and bulk replace. Every
// operation passes the safety policy first, takes a per-path lock, and
// lands through an atomic temp+rename.
package writer

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/molino-labs/obsidianrag/internal/cache"
	"github.com/molino-labs/obsidianrag/internal/note"
	"github.com/molino-labs/obsidianrag/internal/result"
	"github.com/molino-labs/obsidianrag/internal/safety"
	"github.com/molino-labs/obsidianrag/internal/template"
	"github.com/molino-labs/obsidianrag/internal/vault"
)

// Writer performs guarded mutations on the vault.
type Writer struct {
	policy          *safety.Policy
	vault           *vault.Vault
	names           *cache.NameCache
	logger          *zap.Logger
	templatesFolder string
	defaultAgent    string

	locks sync.Map // abs path -> *sync.Mutex
	now   func() time.Time
}

// New creates a writer. templatesFolder may be empty when the vault has
// no template directory.
func New(policy *safety.Policy, v *vault.Vault, names *cache.NameCache, templatesFolder, defaultAgent string, logger *zap.Logger) *Writer {
	return &Writer{
		policy:          policy,
		vault:           v,
		names:           names,
		logger:          logger,
		templatesFolder: templatesFolder,
		defaultAgent:    defaultAgent,
		now:             time.Now,
	}
}

// TemplatesFolder returns the configured template directory, empty when
// the vault has none.
func (w *Writer) TemplatesFolder() string { return w.templatesFolder }

func (w *Writer) lock(abs string) func() {
	mu, _ := w.locks.LoadOrStore(abs, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// resolve turns a note name into a checked absolute path, through the
// name cache.
func (w *Writer) resolve(name, op string) (string, error) {
	abs, err := w.names.Resolve(name, w.vault.FindNote)
	if err != nil {
		return "", err
	}
	return w.policy.CheckAccess(abs, op)
}

// writeAtomic writes content through a temp file in the same directory
// followed by a rename.
func writeAtomic(abs, content string) error {
	dir := filepath.Dir(abs)
	tmp, err := os.CreateTemp(dir, ".obsidianrag-*")
	if err != nil {
		return result.Wrap(result.KindInternal, err, "temp file in %s", dir)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return result.Wrap(result.KindInternal, err, "write %s", filepath.Base(abs))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return result.Wrap(result.KindInternal, err, "close %s", filepath.Base(abs))
	}
	if err := os.Rename(tmpName, abs); err != nil {
		os.Remove(tmpName)
		return result.Wrap(result.KindInternal, err, "replace %s", filepath.Base(abs))
	}
	return nil
}

// CreateOptions carry the optional create parameters.
type CreateOptions struct {
	Folder      string
	Tags        []string
	Template    string
	Agent       string
	Description string
}

// Create writes a new note and returns its vault-relative path. An
// existing note at the target is a conflict, never overwritten.
func (w *Writer) Create(title, content string, opts CreateOptions) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", result.Validationf("empty title")
	}
	filename := note.SanitizeFilename(title)
	rel := filename
	if opts.Folder != "" {
		rel = strings.Trim(filepath.ToSlash(opts.Folder), "/") + "/" + filename
	}

	abs, err := w.policy.CheckAccess(rel, "create")
	if err != nil {
		return "", err
	}
	unlock := w.lock(abs)
	defer unlock()

	if _, err := os.Stat(abs); err == nil {
		return "", result.Conflictf("note %q already exists", rel)
	}

	agent := opts.Agent
	if agent == "" {
		agent = w.defaultAgent
	}

	var text string
	if opts.Template != "" {
		text, err = w.renderTemplate(title, content, opts)
		if err != nil {
			return "", err
		}
	} else {
		text = w.renderPlain(title, content, opts.Tags, agent)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", result.Wrap(result.KindInternal, err, "create folder for %s", rel)
	}
	if err := writeAtomic(abs, text); err != nil {
		return "", err
	}
	w.names.Invalidate(title)
	w.logger.Info("note created", zap.String("path", rel))
	return rel, nil
}

// renderTemplate expands a vault template and appends the caller body
// (its own front-matter stripped) after one blank line.
func (w *Writer) renderTemplate(title, content string, opts CreateOptions) (string, error) {
	if w.templatesFolder == "" {
		return "", result.NotFoundf("vault has no templates folder")
	}
	tplRel := w.templatesFolder + "/" + strings.TrimSuffix(opts.Template, ".md") + ".md"
	tplAbs, err := w.policy.CheckAccess(tplRel, "read template")
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(tplAbs)
	if err != nil {
		return "", result.NotFoundf("template %q not found", opts.Template)
	}

	text := template.Expand(string(raw), template.Values{
		Title:       title,
		Description: opts.Description,
		Folder:      opts.Folder,
		Tags:        strings.Join(note.NormalizeTags(opts.Tags), ", "),
	}, w.now())

	if body := strings.TrimSpace(stripFrontmatter(content)); body != "" {
		text = strings.TrimRight(text, "\n") + "\n\n" + body + "\n"
	}
	return text, nil
}

// renderPlain synthesizes front-matter and prepends a title heading
// when the body does not start with one.
func (w *Writer) renderPlain(title, content string, tags []string, agent string) string {
	nowDate := w.now().Format("2006-01-02")
	extra, body := note.Split(content)
	meta := note.MergeOnCreate(extra, title, nowDate, tags, agent)

	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "#") {
		if body == "" {
			body = "# " + title
		} else {
			body = "# " + title + "\n\n" + body
		}
	}
	return note.Build(meta) + body + "\n"
}

func stripFrontmatter(content string) string {
	_, body := note.Split(content)
	return body
}

// Edit replaces a note's content. The created date survives, updated is
// stamped, and date placeholders in the new content expand.
func (w *Writer) Edit(name, content string) error {
	abs, err := w.resolve(name, "edit")
	if err != nil {
		return err
	}
	unlock := w.lock(abs)
	defer unlock()

	old, err := os.ReadFile(abs)
	if err != nil {
		return result.Wrap(result.KindInternal, err, "read %s", name)
	}
	oldMeta, _ := note.Split(string(old))
	created := oldMeta.GetString(note.KeyCreated)

	now := w.now()
	text := template.ExpandDates(content, now)

	newMeta, body := note.Split(text)
	if newMeta.Len() == 0 && oldMeta.Len() > 0 {
		// Content without front-matter keeps the existing block.
		newMeta = oldMeta.Clone()
	}
	if created != "" {
		newMeta.Set(note.KeyCreated, created)
	}
	if newMeta.Len() > 0 {
		text = note.Build(newMeta) + strings.TrimLeft(body, "\n")
	}
	text = note.TouchUpdated(text, now.Format("2006-01-02"))

	return writeAtomic(abs, text)
}

// Append adds content at the end of a note.
func (w *Writer) Append(name, content string) error {
	abs, err := w.resolve(name, "append")
	if err != nil {
		return err
	}
	unlock := w.lock(abs)
	defer unlock()

	old, err := os.ReadFile(abs)
	if err != nil {
		return result.Wrap(result.KindInternal, err, "read %s", name)
	}
	text := strings.TrimRight(string(old), "\n") + "\n\n" + strings.TrimSpace(content) + "\n"
	text = note.TouchUpdated(text, w.now().Format("2006-01-02"))
	return writeAtomic(abs, text)
}

// AppendToSection inserts content at the end of the named section:
// before the next heading of equal or shallower depth. A missing
// section is created as `## section` when createIfMissing is set.
func (w *Writer) AppendToSection(name, section, content string, createIfMissing bool) error {
	section = strings.TrimSpace(section)
	if section == "" {
		return result.Validationf("empty section name")
	}
	abs, err := w.resolve(name, "append to section")
	if err != nil {
		return err
	}
	unlock := w.lock(abs)
	defer unlock()

	old, err := os.ReadFile(abs)
	if err != nil {
		return result.Wrap(result.KindInternal, err, "read %s", name)
	}

	text, found := insertInSection(string(old), section, strings.TrimSpace(content))
	if !found {
		if !createIfMissing {
			return result.NotFoundf("section %q not found in %s", section, name)
		}
		text = strings.TrimRight(string(old), "\n") + "\n\n## " + section + "\n\n" + strings.TrimSpace(content) + "\n"
	}
	text = note.TouchUpdated(text, w.now().Format("2006-01-02"))
	return writeAtomic(abs, text)
}

// insertInSection finds the section heading and inserts content before
// the next heading of equal or shallower depth.
func insertInSection(text, section, content string) (string, bool) {
	lines := strings.Split(text, "\n")
	target := strings.ToLower(section)

	start := -1
	depth := 0
	for i, line := range lines {
		d, title := headingOf(line)
		if d > 0 && strings.ToLower(title) == target {
			start = i
			depth = d
			break
		}
	}
	if start < 0 {
		return text, false
	}

	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if d, _ := headingOf(lines[i]); d > 0 && d <= depth {
			end = i
			break
		}
	}

	// Trim trailing blank lines of the section, then re-separate.
	insert := end
	for insert > start+1 && strings.TrimSpace(lines[insert-1]) == "" {
		insert--
	}
	var out []string
	out = append(out, lines[:insert]...)
	out = append(out, "", content)
	if end < len(lines) {
		out = append(out, "")
	}
	out = append(out, lines[end:]...)
	return strings.Join(out, "\n"), true
}

func headingOf(line string) (int, string) {
	trimmed := strings.TrimLeft(line, "#")
	depth := len(line) - len(trimmed)
	if depth == 0 || depth > 6 || !strings.HasPrefix(trimmed, " ") {
		return 0, ""
	}
	return depth, strings.TrimSpace(trimmed)
}
