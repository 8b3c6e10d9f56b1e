// Package suggester recommends a destination folder for new content by
// voting over the folders of the most similar indexed notes, with a
// keyword fallback when retrieval is unavailable.
package suggester

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/molino-labs/obsidianrag/internal/note"
	"github.com/molino-labs/obsidianrag/internal/retriever"
	"github.com/molino-labs/obsidianrag/internal/store"
)

// Searcher is the retrieval surface the suggester needs.
type Searcher interface {
	Search(ctx context.Context, query string, k int, filter func(store.ChunkRecord) bool) ([]retriever.Result, error)
}

// Candidate is one suggested destination folder.
type Candidate struct {
	Folder       string   `json:"folder"`
	Votes        int      `json:"votes"`
	Confidence   float64  `json:"confidence"`
	SimilarNotes []string `json:"similar_notes,omitempty"`
}

// Suggester votes over retrieval neighbors.
type Suggester struct {
	searcher Searcher
	relative func(string) string
	logger   *zap.Logger
}

// New creates a suggester. relative maps stored source paths onto
// vault-relative ones.
func New(s Searcher, relative func(string) string, logger *zap.Logger) *Suggester {
	return &Suggester{searcher: s, relative: relative, logger: logger}
}

// retrieveK is how many neighbors vote.
const retrieveK = 5

// maxExamples caps the similar-note stems shown per candidate.
const maxExamples = 3

// SuggestFolder returns up to limit candidate folders for content,
// best first. Root-level neighbors do not vote. When retrieval fails
// entirely a keyword heuristic answers instead, logged as degraded.
func (s *Suggester) SuggestFolder(ctx context.Context, content string, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 3
	}

	results, err := s.searcher.Search(ctx, content, retrieveK, nil)
	if err != nil {
		s.logger.Warn("folder suggestion degraded to keywords", zap.Error(err))
		return keywordFallback(content, limit), nil
	}

	votes := map[string]int{}
	examples := map[string][]string{}
	total := 0
	for _, res := range results {
		rel := s.relative(res.Chunk.Source)
		folder := folderOf(rel)
		if folder == "" {
			continue
		}
		votes[folder]++
		total++
		stem := note.Stem(rel)
		if len(examples[folder]) < maxExamples && !contains(examples[folder], stem) {
			examples[folder] = append(examples[folder], stem)
		}
	}
	if total == 0 {
		return keywordFallback(content, limit), nil
	}

	out := make([]Candidate, 0, len(votes))
	for folder, n := range votes {
		out = append(out, Candidate{
			Folder:       folder,
			Votes:        n,
			Confidence:   float64(n) / float64(total),
			SimilarNotes: examples[folder],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		return out[i].Folder < out[j].Folder
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// keywordHints map content keywords onto conventional vault folders.
var keywordHints = []struct {
	keywords []string
	folder   string
}{
	{[]string{"reunión", "reunion", "meeting", "acta"}, "02_Reuniones"},
	{[]string{"proyecto", "project", "entrega", "milestone"}, "01_Proyectos"},
	{[]string{"idea", "borrador", "draft"}, "03_Ideas"},
	{[]string{"recurso", "enlace", "referencia", "link"}, "04_Recursos"},
}

func keywordFallback(content string, limit int) []Candidate {
	lower := strings.ToLower(content)
	var out []Candidate
	for _, hint := range keywordHints {
		hits := 0
		for _, kw := range hint.keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > 0 {
			out = append(out, Candidate{Folder: hint.folder, Votes: hits, Confidence: 0.25})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Votes > out[j].Votes })
	if len(out) == 0 {
		out = []Candidate{{Folder: "03_Ideas", Votes: 0, Confidence: 0.1}}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func folderOf(rel string) string {
	idx := strings.LastIndex(rel, "/")
	if idx < 0 {
		return ""
	}
	return rel[:idx]
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
