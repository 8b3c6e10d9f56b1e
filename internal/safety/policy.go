// Package safety mediates every filesystem access: vault confinement,
// forbidden-path globs and the restricted-folder policy. All checks are
// fail-closed; an error during evaluation denies access.
package safety

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/molino-labs/obsidianrag/internal/result"
)

// ForbiddenFile is the per-vault glob list, one pattern per line,
// gitignore syntax, # comments.
const ForbiddenFile = ".forbidden_paths"

// Policy enforces path rules for one vault.
type Policy struct {
	root string

	mu        sync.RWMutex
	forbidden []compiledPattern
	private   []compiledPattern
}

type compiledPattern struct {
	raw string
	pat gitignore.Pattern
}

// NewPolicy canonicalizes the vault root, loads .forbidden_paths and
// compiles the restricted-folder globs. privateGlobs always participate
// in the forbidden set.
func NewPolicy(vaultRoot string, privateGlobs []string) (*Policy, error) {
	root, err := filepath.Abs(vaultRoot)
	if err != nil {
		return nil, result.Wrap(result.KindConfig, err, "resolve vault root")
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	p := &Policy{root: root, private: compilePatterns(privateGlobs)}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Root returns the canonical vault root.
func (p *Policy) Root() string { return p.root }

// Reload re-reads .forbidden_paths. Used at startup and by tests.
func (p *Policy) Reload() error {
	patterns, err := loadForbiddenFile(filepath.Join(p.root, ForbiddenFile))
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.forbidden = patterns
	p.mu.Unlock()
	return nil
}

func loadForbiddenFile(path string) ([]compiledPattern, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, result.Wrap(result.KindInternal, err, "open %s", ForbiddenFile)
	}
	defer f.Close()

	var raw []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raw = append(raw, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, result.Wrap(result.KindInternal, err, "read %s", ForbiddenFile)
	}
	return compilePatterns(raw), nil
}

func compilePatterns(raw []string) []compiledPattern {
	out := make([]compiledPattern, 0, len(raw))
	for _, r := range raw {
		out = append(out, compiledPattern{raw: r, pat: gitignore.ParsePattern(r, nil)})
	}
	return out
}

// Resolve canonicalizes a vault-relative (or absolute) path and verifies
// it stays inside the vault. Symlinks in the existing ancestry are
// followed so a link cannot smuggle writes outside the root.
func (p *Policy) Resolve(path string) (string, error) {
	if path == "" {
		return "", result.Validationf("empty path")
	}
	abs := filepath.FromSlash(path)
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(p.root, abs)
	}
	abs = filepath.Clean(abs)

	resolved, err := resolveExisting(abs)
	if err != nil {
		return "", result.Forbiddenf("access denied")
	}
	if !within(p.root, resolved) {
		return "", result.Forbiddenf("access denied")
	}
	return resolved, nil
}

// resolveExisting follows symlinks on the longest existing prefix of abs
// and re-appends the non-existing remainder, so paths about to be
// created are still canonicalized.
func resolveExisting(abs string) (string, error) {
	var tail []string
	cur := abs
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}

func within(root, abs string) bool {
	return abs == root || strings.HasPrefix(abs, root+string(filepath.Separator))
}

// Relative returns the vault-relative slash path for an absolute path
// already known to live inside the vault.
func (p *Policy) Relative(abs string) (string, error) {
	rel, err := filepath.Rel(p.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", result.Forbiddenf("access denied")
	}
	return filepath.ToSlash(rel), nil
}

// IsForbidden matches a path against the forbidden set and returns the
// matching pattern. Accepts relative or absolute input; absolute paths
// outside the vault are forbidden by definition.
func (p *Policy) IsForbidden(path string) (bool, string) {
	rel := filepath.ToSlash(path)
	if filepath.IsAbs(path) {
		r, err := p.Relative(path)
		if err != nil {
			return true, ""
		}
		rel = r
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if raw, ok := matchAny(p.forbidden, rel); ok {
		return true, raw
	}
	if raw, ok := matchAny(p.private, rel); ok {
		return true, raw
	}
	return false, ""
}

// IsRestricted reports whether the path falls under the restricted
// (private) folder globs. Move refuses both endpoints in these folders.
func (p *Policy) IsRestricted(path string) bool {
	rel := filepath.ToSlash(path)
	if filepath.IsAbs(path) {
		r, err := p.Relative(path)
		if err != nil {
			return true
		}
		rel = r
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := matchAny(p.private, rel)
	return ok
}

// matchAny tests the path and every ancestor directory against the
// pattern list, mirroring gitignore semantics where excluding a
// directory excludes its contents.
func matchAny(patterns []compiledPattern, rel string) (string, bool) {
	if len(patterns) == 0 {
		return "", false
	}
	segs := splitPath(rel)
	for _, cp := range patterns {
		if cp.pat.Match(segs, false) == gitignore.Exclude {
			return cp.raw, true
		}
		for i := 1; i < len(segs); i++ {
			if cp.pat.Match(segs[:i], true) == gitignore.Exclude {
				return cp.raw, true
			}
		}
	}
	return "", false
}

func splitPath(rel string) []string {
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return nil
	}
	return strings.Split(rel, "/")
}

// CheckAccess is the single entry point for reads and writes: resolve,
// confine, then apply the forbidden set. Returns the canonical absolute
// path callers must use for the actual filesystem operation.
func (p *Policy) CheckAccess(path, op string) (string, error) {
	abs, err := p.Resolve(path)
	if err != nil {
		return "", result.Wrap(result.KindForbidden, err, "%s", op)
	}
	rel, err := p.Relative(abs)
	if err != nil {
		return "", result.Wrap(result.KindForbidden, err, "%s", op)
	}
	if forbidden, _ := p.IsForbidden(rel); forbidden {
		return "", result.Forbiddenf("%s: access denied", op)
	}
	return abs, nil
}
