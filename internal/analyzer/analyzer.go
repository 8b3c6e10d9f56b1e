// Package analyzer sweeps every stored embedding pair looking for notes
// that talk about the same thing without linking to each other.
package analyzer

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/molino-labs/obsidianrag/internal/note"
	"github.com/molino-labs/obsidianrag/internal/store"
)

// Store is the surface the analyzer needs.
type Store interface {
	Dump() ([]store.DumpEntry, error)
}

// Options bound the sweep.
type Options struct {
	Threshold      float64  // minimum cosine similarity, default 0.70
	Limit          int      // max suggestions, default 10
	IncludeFolders []string // vault-relative prefixes; empty means all
	ExcludeMOCs    bool     // drop index-style notes (MOC, Home, Panel)
	MinWords       int      // skip chunks shorter than this, default 100
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 || o.Threshold >= 1 {
		o.Threshold = 0.70
	}
	if o.Limit <= 0 {
		o.Limit = 10
	}
	if o.MinWords <= 0 {
		o.MinWords = 100
	}
	return o
}

// Suggestion is one unlinked pair worth connecting.
type Suggestion struct {
	NoteA      string  `json:"note_a"`
	NoteB      string  `json:"note_b"`
	Similarity float64 `json:"similarity"`
	FolderA    string  `json:"folder_a"`
	FolderB    string  `json:"folder_b"`
	WordsA     int     `json:"words_a"`
	WordsB     int     `json:"words_b"`
	SectionA   string  `json:"section_a"`
	SectionB   string  `json:"section_b"`
	Reason     string  `json:"reason,omitempty"`
}

// mocPatterns identify index-style notes by path.
var mocPatterns = []*regexp.Regexp{
	regexp.MustCompile(`.*MOC\.md$`),
	regexp.MustCompile(`.*Home\.md$`),
	regexp.MustCompile(`.*Panel.*\.md$`),
}

// Analyzer runs the all-pairs sweep.
type Analyzer struct {
	store  Store
	logger *zap.Logger
	// Relative converts an absolute source path to a vault path.
	relative func(string) string
}

// New creates an analyzer. relative maps stored source paths onto
// vault-relative ones for the output.
func New(st Store, relative func(string) string, logger *zap.Logger) *Analyzer {
	return &Analyzer{store: st, relative: relative, logger: logger}
}

type candidate struct {
	source  string
	rel     string
	section string
	words   int
	links   string
	stem    string
	vec     []float32
}

// FindConnections returns pairs of chunks from different notes whose
// cosine similarity clears the threshold and which do not already link
// to each other. A context deadline yields the single timeout sentinel
// instead of an error so callers can show partial guidance.
func (a *Analyzer) FindConnections(ctx context.Context, opts Options) ([]Suggestion, error) {
	opts = opts.withDefaults()

	entries, err := a.store.Dump()
	if err != nil {
		return nil, err
	}
	cands := a.filter(entries, opts)
	a.logger.Debug("connection sweep", zap.Int("chunks", len(cands)))

	var out []Suggestion
	for i := 0; i < len(cands); i++ {
		if i%64 == 0 && ctx.Err() != nil {
			return []Suggestion{{Similarity: 0, Reason: "timeout"}}, nil
		}
		for j := i + 1; j < len(cands); j++ {
			ci, cj := cands[i], cands[j]
			if ci.source == cj.source {
				continue
			}
			if linked(ci, cj) {
				continue
			}
			sim := dot(ci.vec, cj.vec)
			if sim < opts.Threshold {
				continue
			}
			out = append(out, Suggestion{
				NoteA:      ci.rel,
				NoteB:      cj.rel,
				Similarity: sim,
				FolderA:    folderOf(ci.rel),
				FolderB:    folderOf(cj.rel),
				WordsA:     ci.words,
				WordsB:     cj.words,
				SectionA:   ci.section,
				SectionB:   cj.section,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// filter drops unusable chunks and L2-normalizes the survivors so the
// pair loop is a plain dot product.
func (a *Analyzer) filter(entries []store.DumpEntry, opts Options) []candidate {
	var cands []candidate
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		rel := a.relative(e.Chunk.Source)
		if opts.ExcludeMOCs && matchesMOC(rel) {
			continue
		}
		if len(opts.IncludeFolders) > 0 && !underAny(rel, opts.IncludeFolders) {
			continue
		}
		words := len(strings.Fields(e.Chunk.Text))
		if words < opts.MinWords {
			continue
		}
		vec := normalize(e.Embedding)
		if vec == nil {
			continue
		}
		cands = append(cands, candidate{
			source:  e.Chunk.Source,
			rel:     rel,
			section: firstHeading(e.Chunk.Text),
			words:   words,
			links:   strings.ToLower(e.Chunk.Links),
			stem:    strings.ToLower(note.Stem(rel)),
			vec:     vec,
		})
	}
	return cands
}

// linked reports whether either chunk's note already links to the other.
func linked(a, b candidate) bool {
	return containsLink(a.links, b.stem) || containsLink(b.links, a.stem)
}

func containsLink(links, stem string) bool {
	if links == "" || stem == "" {
		return false
	}
	for _, l := range strings.Split(links, ",") {
		if strings.ToLower(note.Stem(strings.TrimSpace(l))) == stem {
			return true
		}
	}
	return false
}

var headingLine = regexp.MustCompile(`(?m)^#{1,6} +(.+)$`)

// firstHeading returns the first heading of the chunk, or "(inicio)"
// when the chunk starts before any heading.
func firstHeading(text string) string {
	if m := headingLine.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return "(inicio)"
}

func matchesMOC(rel string) bool {
	for _, re := range mocPatterns {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}

func underAny(rel string, folders []string) bool {
	for _, f := range folders {
		f = strings.Trim(f, "/")
		if f == "" || rel == f || strings.HasPrefix(rel, f+"/") {
			return true
		}
	}
	return false
}

func folderOf(rel string) string {
	idx := strings.LastIndex(rel, "/")
	if idx < 0 {
		return ""
	}
	return rel[:idx]
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return nil
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
