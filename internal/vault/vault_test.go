package vault

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/molino-labs/obsidianrag/internal/config"
	"github.com/molino-labs/obsidianrag/internal/result"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"Conceptos/Go.md":                 "# Go\n\nUn lenguaje compilado con [[Concurrencia]].",
		"Conceptos/Redes/TCP.md":          "---\ncreated: 2024-03-10\n---\n\n# TCP\n\nProtocolo de transporte.",
		"Go.md":                           "# Go raiz\n\nNota en la raiz.",
		"Inbox.md":                        "Pendientes sueltos.",
		"00_Sistema/interno.md":           "No indexable.",
		"ZZ_Plantillas/Concepto.md":       "# {{title}}",
		"Conceptos/dibujo.excalidraw.md":  "{json}",
		"Conceptos/Mapa MOC.md":           "indice",
		".obsidian/workspace.md":          "estado del editor",
	}
	for rel, body := range files {
		fp := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(fp, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	excl, err := config.NewExclusions(nil)
	if err != nil {
		t.Fatal(err)
	}
	return New(root, excl)
}

func TestWalkHonorsExclusions(t *testing.T) {
	v := testVault(t)
	got := map[string]bool{}
	for _, fp := range v.Walk() {
		got[v.Relative(fp)] = true
	}

	for _, want := range []string{"Conceptos/Go.md", "Conceptos/Redes/TCP.md", "Go.md"} {
		if !got[want] {
			t.Errorf("Walk missing %s (got %v)", want, got)
		}
	}
	for _, skip := range []string{
		"Inbox.md", "00_Sistema/interno.md", "ZZ_Plantillas/Concepto.md",
		"Conceptos/dibujo.excalidraw.md", "Conceptos/Mapa MOC.md", ".obsidian/workspace.md",
	} {
		if got[skip] {
			t.Errorf("Walk included excluded %s", skip)
		}
	}
}

func TestWalkAllKeepsNavigableNotes(t *testing.T) {
	v := testVault(t)
	got := map[string]bool{}
	for _, fp := range v.WalkAll() {
		got[v.Relative(fp)] = true
	}
	// Pattern-excluded notes stay reachable, dot dirs do not.
	if !got["Inbox.md"] || !got["Conceptos/Mapa MOC.md"] {
		t.Errorf("WalkAll dropped navigable notes: %v", got)
	}
	if got[".obsidian/workspace.md"] {
		t.Error("WalkAll descended into .obsidian")
	}
}

func TestFindNote(t *testing.T) {
	v := testVault(t)

	t.Run("relative path", func(t *testing.T) {
		fp, err := v.FindNote("Conceptos/Redes/TCP")
		if err != nil {
			t.Fatal(err)
		}
		if v.Relative(fp) != "Conceptos/Redes/TCP.md" {
			t.Errorf("resolved %s", v.Relative(fp))
		}
	})

	t.Run("stem prefers shallowest", func(t *testing.T) {
		fp, err := v.FindNote("Go")
		if err != nil {
			t.Fatal(err)
		}
		if v.Relative(fp) != "Go.md" {
			t.Errorf("resolved %s, want root note", v.Relative(fp))
		}
	})

	t.Run("case insensitive stem", func(t *testing.T) {
		if _, err := v.FindNote("tcp.md"); err != nil {
			t.Errorf("lowercased stem failed: %v", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := v.FindNote("NoExiste")
		if !result.Is(err, result.KindNotFound) {
			t.Errorf("err = %v, want not_found", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		_, err := v.FindNote("  ")
		if !result.Is(err, result.KindValidation) {
			t.Errorf("err = %v, want validation", err)
		}
	})
}

func TestListNotes(t *testing.T) {
	v := testVault(t)

	flat, err := v.ListNotes("Conceptos", false)
	if err != nil {
		t.Fatal(err)
	}
	for _, rel := range flat {
		if filepath.ToSlash(filepath.Dir(rel)) != "Conceptos" {
			t.Errorf("non-recursive listing included %s", rel)
		}
	}

	deep, err := v.ListNotes("Conceptos", true)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, rel := range deep {
		if rel == "Conceptos/Redes/TCP.md" {
			found = true
		}
	}
	if !found {
		t.Errorf("recursive listing missing nested note: %v", deep)
	}

	if _, err := v.ListNotes("Fantasma", false); !result.Is(err, result.KindNotFound) {
		t.Errorf("missing folder err = %v", err)
	}
}

func TestSearchText(t *testing.T) {
	v := testVault(t)

	hits, err := v.SearchText("protocolo", "", false, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Path != "Conceptos/Redes/TCP.md" {
		t.Fatalf("hits = %v", hits)
	}
	if hits[0].Line == 0 || hits[0].Snippet == "" {
		t.Errorf("hit missing context: %+v", hits[0])
	}

	titles, err := v.SearchText("go", "", true, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(titles) < 2 {
		t.Errorf("title search = %v", titles)
	}
	for _, h := range titles {
		if h.Line != 0 {
			t.Errorf("title match carries a line: %+v", h)
		}
	}

	if _, err := v.SearchText("   ", "", false, 10); !result.Is(err, result.KindValidation) {
		t.Errorf("empty query err = %v", err)
	}
}

func TestSearchByDate(t *testing.T) {
	v := testVault(t)

	from, _ := time.Parse("2006-01-02", "2024-03-01")
	to, _ := time.Parse("2006-01-02", "2024-03-31")
	out, err := v.SearchByDate(from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0] != "Conceptos/Redes/TCP.md" {
		t.Errorf("out = %v", out)
	}

	if _, err := v.SearchByDate(to, from); !result.Is(err, result.KindValidation) {
		t.Errorf("inverted range err = %v", err)
	}
}

func TestRandomConcept(t *testing.T) {
	v := testVault(t)
	rel, err := v.RandomConcept("Conceptos")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.ToSlash(rel) == "" || filepath.ToSlash(rel)[:9] != "Conceptos" {
		t.Errorf("rel = %s", rel)
	}
	if _, err := v.RandomConcept("Fantasma"); !result.Is(err, result.KindNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestListTemplates(t *testing.T) {
	v := testVault(t)
	names, err := v.ListTemplates("ZZ_Plantillas")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "Concepto" {
		t.Errorf("names = %v", names)
	}

	if got, err := v.ListTemplates(""); err != nil || got != nil {
		t.Errorf("empty folder = %v, %v", got, err)
	}
}
