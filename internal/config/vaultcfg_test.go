package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectAgentDir(t *testing.T) {
	t.Run("prefers .agent", func(t *testing.T) {
		root := t.TempDir()
		os.Mkdir(filepath.Join(root, ".agent"), 0o755)
		os.Mkdir(filepath.Join(root, ".agents"), 0o755)
		if got := DetectAgentDir(root); got != ".agent" {
			t.Errorf("DetectAgentDir = %q, want .agent", got)
		}
	})

	t.Run("falls back to .agents", func(t *testing.T) {
		root := t.TempDir()
		os.Mkdir(filepath.Join(root, ".agents"), 0o755)
		if got := DetectAgentDir(root); got != ".agents" {
			t.Errorf("DetectAgentDir = %q, want .agents", got)
		}
	})

	t.Run("default when absent", func(t *testing.T) {
		if got := DetectAgentDir(t.TempDir()); got != ".agent" {
			t.Errorf("DetectAgentDir = %q, want .agent", got)
		}
	})
}

func TestLoadVaultSettings(t *testing.T) {
	root := t.TempDir()
	agentDir := filepath.Join(root, ".agents")
	os.Mkdir(agentDir, 0o755)
	content := `
version: 1
templates_folder: ZZ_Plantillas
private_paths:
  - "**/Secreto/*"
excluded_folders:
  - 99_Archivo
excluded_patterns:
  - '.*Borrador\.md'
`
	if err := os.WriteFile(filepath.Join(agentDir, "vault.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	vs, err := LoadVaultSettings(root)
	if err != nil {
		t.Fatalf("LoadVaultSettings: %v", err)
	}
	if vs.TemplatesFolder != "ZZ_Plantillas" {
		t.Errorf("templates_folder = %q", vs.TemplatesFolder)
	}
	if len(vs.ExcludedFolders) != 1 || vs.ExcludedFolders[0] != "99_Archivo" {
		t.Errorf("excluded_folders = %v", vs.ExcludedFolders)
	}

	globs := vs.PrivateGlobs()
	if len(globs) != 3 {
		t.Fatalf("PrivateGlobs = %v, want defaults + 1", globs)
	}

	t.Run("missing file is zero settings", func(t *testing.T) {
		vs, err := LoadVaultSettings(t.TempDir())
		if err != nil {
			t.Fatalf("LoadVaultSettings: %v", err)
		}
		if vs.TemplatesFolder != "" || len(vs.ExcludedFolders) != 0 {
			t.Errorf("expected zero settings, got %+v", vs)
		}
	})
}

func TestExclusions(t *testing.T) {
	vs := &VaultSettings{
		ExcludedFolders:  []string{"99_Archivo"},
		ExcludedPatterns: []string{`.*Borrador\.md`},
	}
	ex, err := NewExclusions(vs)
	if err != nil {
		t.Fatalf("NewExclusions: %v", err)
	}

	t.Run("skip dirs", func(t *testing.T) {
		for _, rel := range []string{
			"00_Sistema", ".git", ".obsidianrag",
			"04_Recursos/Obsidian", "04_Recursos/Obsidian/plugins",
			"99_Archivo", "99_Archivo/viejo",
		} {
			if !ex.SkipDir(rel) {
				t.Errorf("SkipDir(%q) = false, want true", rel)
			}
		}
		for _, rel := range []string{"", ".", "02_Learning", "04_Recursos", "04_Recursos/Libros"} {
			if ex.SkipDir(rel) {
				t.Errorf("SkipDir(%q) = true, want false", rel)
			}
		}
	})

	t.Run("skip patterns", func(t *testing.T) {
		for _, rel := range []string{
			"03_MOCs/Python MOC.md", "Home.md", "00_Inbox/Inbox.md",
			"Paneles/Panel Semanal.md", "notas/tarea.agent.md",
			"copilot-instructions.md", "escritos/Borrador.md",
		} {
			if !ex.SkipPath(rel) {
				t.Errorf("SkipPath(%q) = false, want true", rel)
			}
		}
		if ex.SkipPath("02_Learning/Python/listas.md") {
			t.Error("SkipPath should not exclude a regular note")
		}
	})

	t.Run("bad pattern is an error", func(t *testing.T) {
		_, err := NewExclusions(&VaultSettings{ExcludedPatterns: []string{"("}})
		if err == nil {
			t.Fatal("expected error for invalid regexp")
		}
	})
}

func TestSkipFileName(t *testing.T) {
	ex, _ := NewExclusions(nil)
	for _, name := range []string{
		"sketch.excalidraw.md", "board.canvas", "Untitled.md", "UNTITLED 3.md",
	} {
		if !ex.SkipFileName(name) {
			t.Errorf("SkipFileName(%q) = false, want true", name)
		}
	}
	if ex.SkipFileName("listas.md") {
		t.Error("SkipFileName should keep regular notes")
	}
}

func TestTemplatesFolderDetect(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		root := t.TempDir()
		os.Mkdir(filepath.Join(root, "Mis Plantillas"), 0o755)
		vs := &VaultSettings{TemplatesFolder: "Mis Plantillas"}
		if got := TemplatesFolder(root, vs); got != "Mis Plantillas" {
			t.Errorf("TemplatesFolder = %q", got)
		}
	})

	t.Run("configured but missing", func(t *testing.T) {
		vs := &VaultSettings{TemplatesFolder: "NoExiste"}
		if got := TemplatesFolder(t.TempDir(), vs); got != "" {
			t.Errorf("TemplatesFolder = %q, want empty", got)
		}
	})

	t.Run("auto-detect by name", func(t *testing.T) {
		root := t.TempDir()
		os.Mkdir(filepath.Join(root, "02_Learning"), 0o755)
		os.Mkdir(filepath.Join(root, "ZZ_Plantillas"), 0o755)
		if got := TemplatesFolder(root, nil); got != "ZZ_Plantillas" {
			t.Errorf("TemplatesFolder = %q, want ZZ_Plantillas", got)
		}
	})

	t.Run("none", func(t *testing.T) {
		if got := TemplatesFolder(t.TempDir(), nil); got != "" {
			t.Errorf("TemplatesFolder = %q, want empty", got)
		}
	})
}
