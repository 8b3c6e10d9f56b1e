package suggester

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/molino-labs/obsidianrag/internal/retriever"
	"github.com/molino-labs/obsidianrag/internal/store"
)

type stubSearcher struct {
	results []retriever.Result
	err     error
}

func (s *stubSearcher) Search(context.Context, string, int, func(store.ChunkRecord) bool) ([]retriever.Result, error) {
	return s.results, s.err
}

func rel(abs string) string { return strings.TrimPrefix(abs, "/vault/") }

func hit(source string) retriever.Result {
	return retriever.Result{Chunk: store.ChunkRecord{Source: source}}
}

func TestSuggestFolderVoting(t *testing.T) {
	s := New(&stubSearcher{results: []retriever.Result{
		hit("/vault/Redes/TCP.md"),
		hit("/vault/Redes/UDP.md"),
		hit("/vault/Redes/HTTP.md"),
		hit("/vault/Lenguajes/Go.md"),
		hit("/vault/raiz.md"), // root-level, no vote
	}}, rel, zap.NewNop())

	out, err := s.SuggestFolder(context.Background(), "protocolos de red", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("out = %+v", out)
	}
	top := out[0]
	if top.Folder != "Redes" || top.Votes != 3 {
		t.Errorf("top = %+v", top)
	}
	if top.Confidence != 0.75 {
		t.Errorf("confidence = %f", top.Confidence)
	}
	if len(top.SimilarNotes) != 3 || top.SimilarNotes[0] != "TCP" {
		t.Errorf("examples = %v", top.SimilarNotes)
	}
}

func TestSuggestFolderLimit(t *testing.T) {
	s := New(&stubSearcher{results: []retriever.Result{
		hit("/vault/A/x.md"),
		hit("/vault/B/y.md"),
		hit("/vault/C/z.md"),
	}}, rel, zap.NewNop())

	out, err := s.SuggestFolder(context.Background(), "contenido", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Errorf("out = %+v", out)
	}
}

func TestKeywordFallbackOnError(t *testing.T) {
	s := New(&stubSearcher{err: errors.New("index unavailable")}, rel, zap.NewNop())

	out, err := s.SuggestFolder(context.Background(), "acta de la reunión del lunes", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) == 0 || out[0].Folder != "02_Reuniones" {
		t.Errorf("out = %+v", out)
	}
}

func TestKeywordFallbackDefault(t *testing.T) {
	s := New(&stubSearcher{err: errors.New("down")}, rel, zap.NewNop())

	out, err := s.SuggestFolder(context.Background(), "texto sin palabras clave conocidas", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Folder != "03_Ideas" {
		t.Errorf("out = %+v", out)
	}
}

func TestRootOnlyNeighborsFallBack(t *testing.T) {
	s := New(&stubSearcher{results: []retriever.Result{hit("/vault/solo.md")}}, rel, zap.NewNop())

	out, err := s.SuggestFolder(context.Background(), "idea para un borrador", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) == 0 || out[0].Folder != "03_Ideas" {
		t.Errorf("out = %+v", out)
	}
}
