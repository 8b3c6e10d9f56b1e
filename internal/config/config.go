// Package config loads server settings (TOML + environment) and the
// per-vault settings file. Precedence, lowest to highest: built-in
// defaults, the TOML file, environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the full server configuration.
type Config struct {
	Vault     VaultSection     `toml:"vault"`
	Search    SearchSection    `toml:"search"`
	Embedding EmbeddingSection `toml:"embedding"`
	Reranker  RerankerSection  `toml:"reranker"`
	Index     IndexSection     `toml:"index"`
	Log       LogSection       `toml:"log"`
}

// VaultSection locates the vault on disk.
type VaultSection struct {
	Path string `toml:"path"`
}

// SearchSection bounds retrieval behavior.
type SearchSection struct {
	TimeoutSeconds  int `toml:"timeout_seconds"`
	MaxResults      int `toml:"max_results"`
	CacheTTLSeconds int `toml:"cache_ttl_seconds"`
}

// EmbeddingSection selects the embedding backend.
type EmbeddingSection struct {
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	BaseURL    string `toml:"base_url"`
	Dimensions int    `toml:"dimensions"`
	APIKeyEnv  string `toml:"api_key_env"`
}

// RerankerSection configures the optional cross-encoder.
type RerankerSection struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Model   string `toml:"model"`
	TopN    int    `toml:"top_n"`
}

// IndexSection tunes document chunking and embedding throughput.
type IndexSection struct {
	ChunkSize    int `toml:"chunk_size"`
	ChunkOverlap int `toml:"chunk_overlap"`
	Workers      int `toml:"workers"`
}

// LogSection sets the default log level; LOG_LEVEL overrides it.
type LogSection struct {
	Level string `toml:"level"`
}

// Bounds for clamped settings.
const (
	MinSearchTimeout = 30
	MaxSearchTimeout = 600
	MinMaxResults    = 5
	MaxMaxResults    = 100
	MinCacheTTL      = 60
	MaxCacheTTL      = 3600
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Search: SearchSection{
			TimeoutSeconds:  180,
			MaxResults:      20,
			CacheTTLSeconds: 300,
		},
		Embedding: EmbeddingSection{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		Reranker: RerankerSection{
			Enabled: false,
			Model:   "bge-reranker-v2-m3",
			TopN:    6,
		},
		Index: IndexSection{
			ChunkSize:    1500,
			ChunkOverlap: 300,
			Workers:      4,
		},
		Log: LogSection{Level: "INFO"},
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "obsidianrag", "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "obsidianrag", "config.toml")
}

// Load reads the TOML file at path (DefaultPath when empty), applies
// environment overrides and clamps bounded settings. A missing file is
// not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	fname := path
	if fname == "" {
		fname = DefaultPath()
	}
	if raw, err := os.ReadFile(fname); err == nil {
		meta, err := toml.Decode(string(raw), cfg)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", fname, err)
		}
		warnUnknownKeys(meta, fname)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", fname, err)
	}

	applyEnv(cfg)
	clamp(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OBSIDIAN_VAULT_PATH"); v != "" {
		cfg.Vault.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func clamp(cfg *Config) {
	cfg.Search.TimeoutSeconds = clampInt("search.timeout_seconds",
		cfg.Search.TimeoutSeconds, MinSearchTimeout, MaxSearchTimeout, 180)
	cfg.Search.MaxResults = clampInt("search.max_results",
		cfg.Search.MaxResults, MinMaxResults, MaxMaxResults, 20)
	cfg.Search.CacheTTLSeconds = clampInt("search.cache_ttl_seconds",
		cfg.Search.CacheTTLSeconds, MinCacheTTL, MaxCacheTTL, 300)
	if cfg.Index.ChunkSize <= 0 {
		cfg.Index.ChunkSize = 1500
	}
	if cfg.Index.ChunkOverlap < 0 || cfg.Index.ChunkOverlap >= cfg.Index.ChunkSize {
		cfg.Index.ChunkOverlap = cfg.Index.ChunkSize / 5
	}
	if cfg.Index.Workers <= 0 {
		cfg.Index.Workers = 4
	}
	if cfg.Reranker.TopN <= 0 {
		cfg.Reranker.TopN = 6
	}
}

func clampInt(name string, v, lo, hi, def int) int {
	if v == 0 {
		return def
	}
	if v < lo {
		fmt.Fprintf(os.Stderr, "obsidianrag: WARNING: %s=%d below minimum, using %d\n", name, v, lo)
		return lo
	}
	if v > hi {
		fmt.Fprintf(os.Stderr, "obsidianrag: WARNING: %s=%d above maximum, using %d\n", name, v, hi)
		return hi
	}
	return v
}

// VaultPath returns the validated vault root, or an error when unset or
// unreasonable. The path must exist and be a directory.
func (c *Config) VaultPath() (string, error) {
	path := c.Vault.Path
	if path == "" {
		return "", fmt.Errorf("no vault configured: set OBSIDIAN_VAULT_PATH or [vault] path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve vault path: %w", err)
	}
	if err := rejectBroadRoot(abs); err != nil {
		return "", err
	}
	// Resolve symlinks and re-check: a link could point the walker at /.
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		if err := rejectBroadRoot(resolved); err != nil {
			return "", err
		}
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("vault path %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("vault path %s is not a directory", abs)
	}
	return abs, nil
}

// rejectBroadRoot blocks filesystem roots and shallow system directories
// that would send the indexer walking the entire machine.
func rejectBroadRoot(abs string) error {
	dangerous := []string{"/", "/home", "/Users", "/tmp", "/var", "/etc", "/opt"}
	if runtime.GOOS == "windows" && len(abs) >= 3 {
		driveRoot := abs[:3]
		dangerous = append(dangerous, driveRoot,
			filepath.Join(driveRoot, "Users"), filepath.Join(driveRoot, "Windows"))
	}
	for _, d := range dangerous {
		if abs == d {
			return fmt.Errorf("vault path %q is too broad", abs)
		}
	}
	return nil
}

// DataDir returns the per-vault state directory.
func DataDir(vaultRoot string) string {
	return filepath.Join(vaultRoot, ".obsidianrag")
}

// DBPath returns the vector store location inside the vault.
func DBPath(vaultRoot string) string {
	return filepath.Join(DataDir(vaultRoot), "db", "index.db")
}

// TrackerPath returns the file-metadata tracker location.
func TrackerPath(vaultRoot string) string {
	return filepath.Join(DataDir(vaultRoot), "metadata.json")
}

// configSuggestions maps commonly mistyped keys to their real names.
var configSuggestions = map[string]string{
	"timeout":         "timeout_seconds",
	"search_timeout":  "timeout_seconds",
	"results":         "max_results",
	"ttl":             "cache_ttl_seconds",
	"cache_ttl":       "cache_ttl_seconds",
	"chunksize":       "chunk_size",
	"overlap":         "chunk_overlap",
	"embedding_model": "model",
	"url":             "base_url",
	"dims":            "dimensions",
	"loglevel":        "level",
}

func warnUnknownKeys(meta toml.MetaData, fname string) {
	for _, key := range meta.Undecoded() {
		keyStr := key.String()
		parts := strings.Split(keyStr, ".")
		lastPart := parts[len(parts)-1]
		if suggestion, ok := configSuggestions[lastPart]; ok {
			fmt.Fprintf(os.Stderr, "obsidianrag: WARNING: unknown key %q in %s, did you mean %q?\n",
				keyStr, fname, suggestion)
		} else {
			fmt.Fprintf(os.Stderr, "obsidianrag: WARNING: unknown key %q in %s (will be ignored)\n",
				keyStr, fname)
		}
	}
}

// Generate writes a commented config file at path, refusing to overwrite.
func Generate(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, []byte(generatedConfig), 0o644)
}

const generatedConfig = `# obsidianrag configuration.
# Environment variables OBSIDIAN_VAULT_PATH and LOG_LEVEL override this file.

[vault]
# Absolute path to the Obsidian vault served by this process.
path = ""

[search]
# Deadline for semantic search and the connection sweep (30-600).
timeout_seconds = 180
# Upper bound on returned results (5-100).
max_results = 20
# Note-name cache lifetime in seconds (60-3600).
cache_ttl_seconds = 300

[embedding]
# "ollama" or "openai".
provider = "ollama"
model = "nomic-embed-text"
base_url = "http://localhost:11434"
# Leave 0 to use the model's default dimensionality.
dimensions = 0
# Environment variable holding the API key (openai provider only).
api_key_env = "OPENAI_API_KEY"

[reranker]
# Cross-encoder reranking of fused search results. Requires a scoring
# endpoint compatible with the /rerank contract.
enabled = false
url = ""
model = "bge-reranker-v2-m3"
top_n = 6

[index]
chunk_size = 1500
chunk_overlap = 300
# Parallel embedding workers during indexing.
workers = 4

[log]
# DEBUG, INFO, WARNING, ERROR or CRITICAL.
level = "INFO"
`
