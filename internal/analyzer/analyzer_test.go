package analyzer

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/molino-labs/obsidianrag/internal/store"
)

type memStore struct {
	entries []store.DumpEntry
}

func (m *memStore) Dump() ([]store.DumpEntry, error) { return m.entries, nil }

func entry(source, text, links string, vec []float32) store.DumpEntry {
	return store.DumpEntry{
		Chunk:     store.ChunkRecord{Source: source, Text: text, Links: links},
		Embedding: vec,
	}
}

func rel(abs string) string { return strings.TrimPrefix(abs, "/vault/") }

const longText = "palabras suficientes para superar el umbral de longitud del analizador de conexiones entre notas distintas"

func TestFindConnections(t *testing.T) {
	st := &memStore{entries: []store.DumpEntry{
		entry("/vault/A.md", "# Tema\n\n"+longText, "", []float32{1, 0, 0}),
		entry("/vault/sub/B.md", longText, "", []float32{0.99, 0.14, 0}),
		entry("/vault/C.md", longText, "", []float32{0, 1, 0}),
	}}
	a := New(st, rel, zap.NewNop())

	out, err := a.FindConnections(context.Background(), Options{Threshold: 0.9, MinWords: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("out = %+v", out)
	}
	s := out[0]
	if s.NoteA != "A.md" || s.NoteB != "sub/B.md" {
		t.Errorf("pair = %s / %s", s.NoteA, s.NoteB)
	}
	if s.Similarity < 0.9 || s.Similarity > 1 {
		t.Errorf("similarity = %f", s.Similarity)
	}
	if s.SectionA != "Tema" || s.SectionB != "(inicio)" {
		t.Errorf("sections = %q / %q", s.SectionA, s.SectionB)
	}
	if s.FolderA != "" || s.FolderB != "sub" {
		t.Errorf("folders = %q / %q", s.FolderA, s.FolderB)
	}
}

func TestAlreadyLinkedPairsSkipped(t *testing.T) {
	st := &memStore{entries: []store.DumpEntry{
		entry("/vault/A.md", longText, "B", []float32{1, 0, 0}),
		entry("/vault/B.md", longText, "", []float32{1, 0, 0}),
	}}
	a := New(st, rel, zap.NewNop())

	out, err := a.FindConnections(context.Background(), Options{MinWords: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Errorf("linked pair suggested: %+v", out)
	}
}

func TestSameNoteChunksSkipped(t *testing.T) {
	st := &memStore{entries: []store.DumpEntry{
		entry("/vault/A.md", longText, "", []float32{1, 0, 0}),
		entry("/vault/A.md", longText+" extra", "", []float32{1, 0, 0}),
	}}
	a := New(st, rel, zap.NewNop())

	out, err := a.FindConnections(context.Background(), Options{MinWords: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Errorf("same-note pair suggested: %+v", out)
	}
}

func TestShortChunksSkipped(t *testing.T) {
	st := &memStore{entries: []store.DumpEntry{
		entry("/vault/A.md", "breve", "", []float32{1, 0, 0}),
		entry("/vault/B.md", "tambien breve", "", []float32{1, 0, 0}),
	}}
	a := New(st, rel, zap.NewNop())

	out, err := a.FindConnections(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Errorf("short chunks suggested: %+v", out)
	}
}

func TestExcludeMOCsAndFolders(t *testing.T) {
	st := &memStore{entries: []store.DumpEntry{
		entry("/vault/Mapa MOC.md", longText, "", []float32{1, 0, 0}),
		entry("/vault/Ideas/A.md", longText, "", []float32{1, 0, 0}),
		entry("/vault/Ideas/B.md", longText, "", []float32{1, 0, 0}),
		entry("/vault/Otros/C.md", longText, "", []float32{1, 0, 0}),
	}}
	a := New(st, rel, zap.NewNop())

	out, err := a.FindConnections(context.Background(), Options{
		ExcludeMOCs:    true,
		IncludeFolders: []string{"Ideas"},
		MinWords:       5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].NoteA != "Ideas/A.md" || out[0].NoteB != "Ideas/B.md" {
		t.Errorf("out = %+v", out)
	}
}

func TestLimitAndOrdering(t *testing.T) {
	st := &memStore{entries: []store.DumpEntry{
		entry("/vault/A.md", longText, "", []float32{1, 0, 0}),
		entry("/vault/B.md", longText, "", []float32{1, 0, 0}),
		entry("/vault/C.md", longText, "", []float32{0.9, 0.436, 0}),
	}}
	a := New(st, rel, zap.NewNop())

	out, err := a.FindConnections(context.Background(), Options{Threshold: 0.5, Limit: 2, MinWords: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("out = %+v", out)
	}
	if out[0].Similarity < out[1].Similarity {
		t.Error("suggestions not ordered by similarity")
	}
	// The identical pair ranks first.
	if out[0].NoteA != "A.md" || out[0].NoteB != "B.md" {
		t.Errorf("top pair = %+v", out[0])
	}
}

func TestDeadlineYieldsSentinel(t *testing.T) {
	var entries []store.DumpEntry
	for i := 0; i < 200; i++ {
		entries = append(entries, entry("/vault/N"+string(rune('A'+i%26))+".md", longText, "", []float32{1, 0, 0}))
	}
	a := New(&memStore{entries: entries}, rel, zap.NewNop())

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	out, err := a.FindConnections(ctx, Options{MinWords: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Reason != "timeout" || out[0].Similarity != 0 {
		t.Errorf("out = %+v", out)
	}
}
