package note

import (
	"strings"
	"testing"
)

func TestExtractWikilinks(t *testing.T) {
	body := `Ver [[Comprensión de listas]] y [[Decoradores|los decoradores]].
También [[Generadores#Uso]] y de nuevo [[Comprensión de listas]].
Un embed ![[esquema.png|flujo]] no es un enlace saliente.`

	got := ExtractWikilinks(body)
	want := []string{"Comprensión de listas", "Decoradores", "Generadores"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("links = %v, want %v", got, want)
	}

	t.Run("empty target dropped", func(t *testing.T) {
		if links := ExtractWikilinks("[[ ]] y [[#solo-anchor]]"); len(links) != 0 {
			t.Errorf("links = %v", links)
		}
	})

	t.Run("embed adjacent to link", func(t *testing.T) {
		links := ExtractWikilinks("![[img.png]][[Nota]]")
		if len(links) != 1 || links[0] != "Nota" {
			t.Errorf("links = %v", links)
		}
	})
}

func TestNormalizeLinkTarget(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Nota", "Nota"},
		{"Nota|alias", "Nota"},
		{"Nota#Sección", "Nota"},
		{"Nota#Sección|alias", "Nota"},
		{"  Nota  ", "Nota"},
	}
	for _, tc := range cases {
		if got := NormalizeLinkTarget(tc.in); got != tc.want {
			t.Errorf("NormalizeLinkTarget(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractTags(t *testing.T) {
	body := "Intro #python y #programación-básica.\n#inicio de línea, c#sharp no cuenta, issue#42 tampoco.\nRepetido #python."
	got := ExtractTags(body)
	want := []string{"python", "programación-básica", "inicio"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("tags = %v, want %v", got, want)
	}
}

func TestExtractImageCaptions(t *testing.T) {
	body := "![[flujo.png|Diagrama de flujo]]\n![alt markdown](img/otra.png)\n![[sin-caption.png]]"
	got := ExtractImageCaptions(body)
	want := []string{"Diagrama de flujo", "alt markdown"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("captions = %v, want %v", got, want)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Comprensión de listas", "Comprensión de listas.md"},
		{"a/b\\c:d", "a-b-c-d.md"},
		{"ya.md", "ya.md"},
		{"MAYUS.MD", "MAYUS.MD"},
		{"  espacios  ", "espacios.md"},
		{`<>:"|?*`, "-------.md"},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStem(t *testing.T) {
	cases := []struct{ in, want string }{
		{"carpeta/Nota.md", "Nota"},
		{"Nota.md", "Nota"},
		{"Nota", "Nota"},
		{"a/b/c.canvas", "c"},
	}
	for _, tc := range cases {
		if got := Stem(tc.in); got != tc.want {
			t.Errorf("Stem(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
