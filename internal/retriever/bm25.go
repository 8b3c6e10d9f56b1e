package retriever

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// BM25 parameters, standard values.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// lexicalIndex is an in-memory BM25 index over chunk texts. It is
// rebuilt whenever the store generation moves.
type lexicalIndex struct {
	docIDs  []int64
	lengths []int
	avgLen  float64
	// term -> docIdx -> frequency
	postings map[string]map[int]int
}

func buildLexicalIndex(ids []int64, texts []string) *lexicalIndex {
	idx := &lexicalIndex{
		docIDs:   ids,
		lengths:  make([]int, len(texts)),
		postings: map[string]map[int]int{},
	}
	total := 0
	for i, text := range texts {
		terms := tokenize(text)
		idx.lengths[i] = len(terms)
		total += len(terms)
		for _, term := range terms {
			m, ok := idx.postings[term]
			if !ok {
				m = map[int]int{}
				idx.postings[term] = m
			}
			m[i]++
		}
	}
	if len(texts) > 0 {
		idx.avgLen = float64(total) / float64(len(texts))
	}
	return idx
}

type lexicalHit struct {
	docID int64
	score float64
}

// search scores the query terms against every matching document and
// returns the top k by BM25 score.
func (idx *lexicalIndex) search(query string, k int) []lexicalHit {
	terms := tokenize(query)
	if len(terms) == 0 || len(idx.docIDs) == 0 {
		return nil
	}

	n := float64(len(idx.docIDs))
	scores := map[int]float64{}
	for _, term := range terms {
		docs, ok := idx.postings[term]
		if !ok {
			continue
		}
		idf := math.Log(1 + (n-float64(len(docs))+0.5)/(float64(len(docs))+0.5))
		for docIdx, tf := range docs {
			norm := 1 - bm25B + bm25B*float64(idx.lengths[docIdx])/idx.avgLen
			scores[docIdx] += idf * float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*norm)
		}
	}

	if len(scores) == 0 {
		return nil
	}
	hits := make([]lexicalHit, 0, len(scores))
	for docIdx, s := range scores {
		hits = append(hits, lexicalHit{docID: idx.docIDs[docIdx], score: s})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].docID < hits[j].docID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// tokenize lowercases and splits on non-letter/digit runes, dropping
// single-rune fragments.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
