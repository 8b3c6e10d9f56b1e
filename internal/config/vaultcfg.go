package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// VaultSettings is the optional per-vault settings file at
// <vault>/<agent dir>/vault.yaml. Everything is additive over the
// built-in defaults.
type VaultSettings struct {
	Version          int      `yaml:"version"`
	TemplatesFolder  string   `yaml:"templates_folder"`
	PrivatePaths     []string `yaml:"private_paths"`
	ExcludedFolders  []string `yaml:"excluded_folders"`
	ExcludedPatterns []string `yaml:"excluded_patterns"`
}

// Agent directory candidates, probed in order.
var agentDirCandidates = []string{".agent", ".agents"}

// DetectAgentDir returns the vault's agent directory name. The first
// existing candidate wins; when neither exists, ".agent" is the default
// location for writes.
func DetectAgentDir(vaultRoot string) string {
	for _, name := range agentDirCandidates {
		if info, err := os.Stat(filepath.Join(vaultRoot, name)); err == nil && info.IsDir() {
			return name
		}
	}
	return agentDirCandidates[0]
}

// LoadVaultSettings reads vault.yaml from the agent directory. A missing
// file yields zero settings; a malformed one is an error.
func LoadVaultSettings(vaultRoot string) (*VaultSettings, error) {
	var vs VaultSettings
	path := filepath.Join(vaultRoot, DetectAgentDir(vaultRoot), "vault.yaml")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &vs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &vs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &vs, nil
}

// defaultPrivateGlobs are always part of the restricted-folder policy.
var defaultPrivateGlobs = []string{"**/Private/*", "**/Privado/*"}

// PrivateGlobs returns the restricted-folder globs, defaults included.
func (vs *VaultSettings) PrivateGlobs() []string {
	out := append([]string(nil), defaultPrivateGlobs...)
	out = append(out, vs.PrivatePaths...)
	return out
}

// defaultExcludedFolders are vault-relative prefixes skipped by retrieval
// and analysis. The agent directory (either spelling) is always excluded.
var defaultExcludedFolders = []string{
	"00_Sistema",
	"ZZ_Plantillas",
	"04_Recursos/Obsidian",
	".agent",
	".agents",
	".trash",
	".git",
	".obsidian",
	".obsidianrag",
	"node_modules",
}

// defaultExcludedPatterns are regular expressions matched against
// vault-relative paths of files otherwise eligible for indexing.
var defaultExcludedPatterns = []string{
	`.*MOC\.md`,
	`.*Home\.md`,
	`.*Inbox\.md`,
	`.*Panel.*\.md`,
	`.*\.agent\.md`,
	`copilot-instructions\.md`,
}

// skipNameFragments mark files never loaded regardless of location.
var skipNameFragments = []string{".excalidraw.md", ".canvas", "untitled"}

// Exclusions is the compiled exclusion policy used by the walker,
// retrieval and the connection analyzer.
type Exclusions struct {
	folders  []string
	patterns []*regexp.Regexp
}

// NewExclusions merges the defaults with the vault settings and compiles
// the pattern set. Invalid user patterns are an error (validation).
func NewExclusions(vs *VaultSettings) (*Exclusions, error) {
	folders := append([]string(nil), defaultExcludedFolders...)
	if vs != nil {
		folders = append(folders, vs.ExcludedFolders...)
	}
	for i, f := range folders {
		folders[i] = strings.Trim(filepath.ToSlash(f), "/")
	}
	sort.Strings(folders)

	raw := append([]string(nil), defaultExcludedPatterns...)
	if vs != nil {
		raw = append(raw, vs.ExcludedPatterns...)
	}
	patterns := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("excluded pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return &Exclusions{folders: folders, patterns: patterns}, nil
}

// SkipDir reports whether the vault-relative directory path is excluded,
// either exactly or as a descendant of an excluded folder.
func (e *Exclusions) SkipDir(rel string) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}
	for _, f := range e.folders {
		if rel == f || strings.HasPrefix(rel, f+"/") {
			return true
		}
	}
	return false
}

// SkipPath reports whether a vault-relative file path matches an excluded
// folder or pattern.
func (e *Exclusions) SkipPath(rel string) bool {
	rel = filepath.ToSlash(rel)
	if e.SkipDir(filepath.ToSlash(filepath.Dir(rel))) {
		return true
	}
	for _, re := range e.patterns {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}

// SkipFileName reports whether the bare file name is one of the always
// ignored kinds (drawings, canvases, unnamed notes).
func (e *Exclusions) SkipFileName(name string) bool {
	lower := strings.ToLower(name)
	for _, frag := range skipNameFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// Folders returns the excluded folder prefixes (for status output).
func (e *Exclusions) Folders() []string {
	return append([]string(nil), e.folders...)
}

// TemplatesFolder resolves the vault's templates directory: the
// configured name when set, otherwise the first root-level directory
// whose lowercased name contains "plantilla" or "template". Empty when
// none exists.
func TemplatesFolder(vaultRoot string, vs *VaultSettings) string {
	if vs != nil && vs.TemplatesFolder != "" {
		if info, err := os.Stat(filepath.Join(vaultRoot, vs.TemplatesFolder)); err == nil && info.IsDir() {
			return vs.TemplatesFolder
		}
		return ""
	}
	entries, err := os.ReadDir(vaultRoot)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		lower := strings.ToLower(entry.Name())
		if strings.Contains(lower, "plantilla") || strings.Contains(lower, "template") {
			return entry.Name()
		}
	}
	return ""
}
