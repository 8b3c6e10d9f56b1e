package note

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	wikilinkPattern = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagPattern      = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])#([\p{L}\p{N}_-]+)`)
	embedCaption    = regexp.MustCompile(`!\[\[[^\]|]+\|([^\]]+)\]\]`)
	imageAlt        = regexp.MustCompile(`!\[([^\]]+)\]\([^)]*\)`)
)

// ExtractWikilinks returns the outbound link targets of a document in
// order of first appearance, deduplicated. Targets are normalized:
// |alias and #anchor suffixes stripped, so [[Note#Section|texto]]
// yields "Note". Pure anchor links ([[#Section]]) and image embeds
// (![[file.png]]) are dropped.
func ExtractWikilinks(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, idx := range wikilinkPattern.FindAllStringSubmatchIndex(text, -1) {
		if idx[0] > 0 && text[idx[0]-1] == '!' {
			continue
		}
		target := NormalizeLinkTarget(text[idx[2]:idx[3]])
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, target)
	}
	return out
}

// NormalizeLinkTarget strips alias and anchor decorations from a
// wikilink target.
func NormalizeLinkTarget(target string) string {
	if i := strings.Index(target, "|"); i >= 0 {
		target = target[:i]
	}
	if i := strings.Index(target, "#"); i >= 0 {
		target = target[:i]
	}
	return strings.TrimSpace(target)
}

// ExtractTags returns inline #tags (no leading #, deduplicated, in
// order). Heading markers do not count: the # must not follow a word
// character.
func ExtractTags(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		tag := m[1]
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// ExtractImageCaptions collects captions from ![[embed|caption]] and
// alt text from ![alt](url) images. Indexing appends them to the
// document body so illustrations stay searchable.
func ExtractImageCaptions(text string) []string {
	var out []string
	for _, m := range embedCaption.FindAllStringSubmatch(text, -1) {
		if cap := strings.TrimSpace(m[1]); cap != "" {
			out = append(out, cap)
		}
	}
	for _, m := range imageAlt.FindAllStringSubmatch(text, -1) {
		if alt := strings.TrimSpace(m[1]); alt != "" {
			out = append(out, alt)
		}
	}
	return out
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeFilename makes a note title safe as a file name: path
// separators and reserved characters become '-', and the .md extension
// is guaranteed.
func SanitizeFilename(title string) string {
	name := unsafeFilenameChars.ReplaceAllString(title, "-")
	name = strings.TrimSpace(name)
	if !strings.HasSuffix(strings.ToLower(name), ".md") {
		name += ".md"
	}
	return name
}

// Stem returns the file name without directory or .md extension.
func Stem(path string) string {
	base := filepath.Base(filepath.FromSlash(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
