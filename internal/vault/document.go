package vault

import (
	"os"
	"strings"

	"github.com/molino-labs/obsidianrag/internal/note"
	"github.com/molino-labs/obsidianrag/internal/result"
)

// Document is one loaded note ready for chunking: the body with image
// captions appended, plus flattened metadata.
type Document struct {
	// Source is the absolute path, stable across runs.
	Source string
	// Content is the note body. Image captions are appended as
	// paragraphs so illustrations stay searchable.
	Content string
	// Links holds the outbound wikilink targets in order, deduplicated.
	Links []string
	// Meta carries the flattened front-matter plus source and links.
	Meta map[string]string
}

// LoadDocument reads one note and builds its Document. Empty files
// yield (nil, nil) and are skipped by callers.
func (v *Vault) LoadDocument(absPath string) (*Document, error) {
	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, result.Wrap(result.KindInternal, err, "read %s", v.Relative(absPath))
	}
	text := string(raw)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	meta, _ := note.Split(text)
	links := note.ExtractWikilinks(text)

	content := text
	for _, cap := range note.ExtractImageCaptions(text) {
		content += "\n\n" + cap
	}

	flat := meta.Flatten()
	flat["source"] = absPath
	flat["links"] = strings.Join(links, ", ")

	return &Document{
		Source:  absPath,
		Content: content,
		Links:   links,
		Meta:    flat,
	}, nil
}

// LoadAll loads every indexable note. Unreadable or empty files are
// skipped.
func (v *Vault) LoadAll() []*Document {
	var docs []*Document
	for _, fp := range v.Walk() {
		doc, err := v.LoadDocument(fp)
		if err != nil || doc == nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}
