package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.TimeoutSeconds != 180 {
		t.Errorf("timeout = %d, want 180", cfg.Search.TimeoutSeconds)
	}
	if cfg.Search.MaxResults != 20 {
		t.Errorf("max_results = %d, want 20", cfg.Search.MaxResults)
	}
	if cfg.Search.CacheTTLSeconds != 300 {
		t.Errorf("cache_ttl = %d, want 300", cfg.Search.CacheTTLSeconds)
	}
	if cfg.Index.ChunkSize != 1500 || cfg.Index.ChunkOverlap != 300 {
		t.Errorf("chunking = %d/%d, want 1500/300", cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	}
	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("provider = %q, want ollama", cfg.Embedding.Provider)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "config.toml")
	content := `
[vault]
path = "/from/file"

[search]
timeout_seconds = 60
max_results = 50
`
	if err := os.WriteFile(fname, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("OBSIDIAN_VAULT_PATH", "/from/env")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load(fname)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Vault.Path != "/from/env" {
		t.Errorf("env should beat file: vault path = %q", cfg.Vault.Path)
	}
	if cfg.Log.Level != "DEBUG" {
		t.Errorf("log level = %q, want DEBUG", cfg.Log.Level)
	}
	if cfg.Search.TimeoutSeconds != 60 {
		t.Errorf("timeout = %d, want 60", cfg.Search.TimeoutSeconds)
	}
	if cfg.Search.MaxResults != 50 {
		t.Errorf("max_results = %d, want 50", cfg.Search.MaxResults)
	}
}

func TestClampBounds(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "config.toml")
	content := `
[search]
timeout_seconds = 5
max_results = 9999
cache_ttl_seconds = 10
`
	if err := os.WriteFile(fname, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(fname)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.TimeoutSeconds != MinSearchTimeout {
		t.Errorf("timeout = %d, want clamped to %d", cfg.Search.TimeoutSeconds, MinSearchTimeout)
	}
	if cfg.Search.MaxResults != MaxMaxResults {
		t.Errorf("max_results = %d, want clamped to %d", cfg.Search.MaxResults, MaxMaxResults)
	}
	if cfg.Search.CacheTTLSeconds != MinCacheTTL {
		t.Errorf("cache_ttl = %d, want clamped to %d", cfg.Search.CacheTTLSeconds, MinCacheTTL)
	}
}

func TestVaultPathValidation(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		cfg := Default()
		if _, err := cfg.VaultPath(); err == nil {
			t.Fatal("expected error for unset vault path")
		}
	})

	t.Run("broad root rejected", func(t *testing.T) {
		cfg := Default()
		cfg.Vault.Path = "/"
		if _, err := cfg.VaultPath(); err == nil {
			t.Fatal("expected error for /")
		}
	})

	t.Run("file rejected", func(t *testing.T) {
		dir := t.TempDir()
		f := filepath.Join(dir, "note.md")
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg := Default()
		cfg.Vault.Path = f
		if _, err := cfg.VaultPath(); err == nil {
			t.Fatal("expected error for non-directory vault")
		}
	})

	t.Run("valid directory", func(t *testing.T) {
		dir := t.TempDir()
		cfg := Default()
		cfg.Vault.Path = dir
		got, err := cfg.VaultPath()
		if err != nil {
			t.Fatalf("VaultPath: %v", err)
		}
		want, _ := filepath.EvalSymlinks(dir)
		if got != want {
			t.Errorf("VaultPath = %q, want %q", got, want)
		}
	})
}

func TestGenerateRefusesOverwrite(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "config.toml")
	if err := Generate(fname); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := Generate(fname); err == nil {
		t.Fatal("expected error on second Generate")
	}
	cfg, err := Load(fname)
	if err != nil {
		t.Fatalf("generated config should parse: %v", err)
	}
	if cfg.Search.TimeoutSeconds != 180 {
		t.Errorf("generated timeout = %d, want 180", cfg.Search.TimeoutSeconds)
	}
}

func TestVaultDataPaths(t *testing.T) {
	root := "/vault"
	if got := DataDir(root); got != filepath.Join(root, ".obsidianrag") {
		t.Errorf("DataDir = %q", got)
	}
	if got := DBPath(root); got != filepath.Join(root, ".obsidianrag", "db", "index.db") {
		t.Errorf("DBPath = %q", got)
	}
	if got := TrackerPath(root); got != filepath.Join(root, ".obsidianrag", "metadata.json") {
		t.Errorf("TrackerPath = %q", got)
	}
}
