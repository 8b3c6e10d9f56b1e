// Package skills reads and scaffolds agent skills: one SKILL.md per
// skill directory under the vault's agent dir, plus the global rules
// note. Parsed skills are memoized until an explicit refresh.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"go.uber.org/zap"

	"github.com/molino-labs/obsidianrag/internal/cache"
	"github.com/molino-labs/obsidianrag/internal/result"
)

// File and folder layout under the agent directory.
const (
	SkillFile       = "SKILL.md"
	skillsDir       = "skills"
	globalRulesFile = "REGLAS_GLOBALES.md"
)

// Skill is one parsed skill definition.
type Skill struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tools       []string `json:"tools,omitempty"`
	Body        string   `json:"-"`
	Dir         string   `json:"-"`
}

type skillMeta struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tools       []string `yaml:"tools"`
}

// Service loads skills for one vault.
type Service struct {
	vaultRoot string
	agentDir  string
	logger    *zap.Logger
	memo      *cache.Memo[[]Skill]
	now       func() time.Time
}

// New creates a skills service. agentDir is the vault's agent directory
// name (".agent" or ".agents").
func New(vaultRoot, agentDir string, logger *zap.Logger) *Service {
	return &Service{
		vaultRoot: vaultRoot,
		agentDir:  agentDir,
		logger:    logger,
		memo:      cache.NewMemo[[]Skill](10 * time.Minute),
		now:       time.Now,
	}
}

func (s *Service) skillsRoot() string {
	return filepath.Join(s.vaultRoot, s.agentDir, skillsDir)
}

// List returns every skill, sorted by name. A vault without a skills
// directory has none.
func (s *Service) List() ([]Skill, error) {
	return s.memo.Get(s.load)
}

// Get returns one skill by name.
func (s *Service) Get(name string) (*Skill, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Name == name {
			return &all[i], nil
		}
	}
	return nil, result.NotFoundf("skill %q not found", name)
}

// GlobalRules returns the content of the global rules note, or empty
// when the vault has none.
func (s *Service) GlobalRules() (string, error) {
	raw, err := os.ReadFile(filepath.Join(s.vaultRoot, s.agentDir, globalRulesFile))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", result.Wrap(result.KindInternal, err, "read global rules")
	}
	return string(raw), nil
}

// Refresh drops the memoized skill list.
func (s *Service) Refresh() {
	s.memo.Drop()
}

func (s *Service) load() ([]Skill, error) {
	entries, err := os.ReadDir(s.skillsRoot())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, result.Wrap(result.KindInternal, err, "read skills dir")
	}

	var out []Skill
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		fp := filepath.Join(s.skillsRoot(), e.Name(), SkillFile)
		raw, err := os.ReadFile(fp)
		if err != nil {
			continue
		}
		var meta skillMeta
		body, err := frontmatter.Parse(strings.NewReader(string(raw)), &meta)
		if err != nil {
			s.logger.Warn("skill skipped, bad front-matter", zap.String("skill", e.Name()), zap.Error(err))
			continue
		}
		name := meta.Name
		if name == "" {
			name = e.Name()
		}
		out = append(out, Skill{
			Name:        name,
			Description: meta.Description,
			Tools:       meta.Tools,
			Body:        strings.TrimSpace(string(body)),
			Dir:         e.Name(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

var skillNameRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Generate scaffolds a new skill directory with its SKILL.md. Names are
// lowercase-hyphen only and existing skills are never overwritten.
func (s *Service) Generate(name, description, instructions string, tools []string) (string, error) {
	if !skillNameRe.MatchString(name) {
		return "", result.Validationf("skill name %q must be lowercase words separated by hyphens", name)
	}
	dir := filepath.Join(s.skillsRoot(), name)
	fp := filepath.Join(dir, SkillFile)
	if _, err := os.Stat(fp); err == nil {
		return "", result.Conflictf("skill %q already exists", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", result.Wrap(result.KindInternal, err, "create skill dir")
	}

	text := s.render(name, description, instructions, tools)
	if err := os.WriteFile(fp, []byte(text), 0o644); err != nil {
		return "", result.Wrap(result.KindInternal, err, "write skill")
	}
	s.Refresh()
	rel := filepath.ToSlash(filepath.Join(s.agentDir, skillsDir, name, SkillFile))
	s.logger.Info("skill generated", zap.String("skill", name))
	return rel, nil
}

func (s *Service) render(name, description, instructions string, tools []string) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "name: %s\n", name)
	fmt.Fprintf(&b, "description: %s\n", description)
	if len(tools) > 0 {
		b.WriteString("tools:\n")
		for _, tool := range tools {
			fmt.Fprintf(&b, "  - %s\n", tool)
		}
	}
	fmt.Fprintf(&b, "created: %s\n", s.now().Format("2006-01-02"))
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", name)
	if description != "" {
		b.WriteString(description + "\n\n")
	}
	b.WriteString("## Instrucciones\n\n")
	if instructions != "" {
		b.WriteString(instructions + "\n\n")
	} else {
		b.WriteString("(pendiente)\n\n")
	}
	b.WriteString("## Ejemplos\n\n(pendiente)\n")
	return b.String()
}

// SyncReport lists skill directories out of shape: Missing ones have no
// SKILL.md, Mismatched ones declare a name that differs from their
// directory.
type SyncReport struct {
	Missing    []string `json:"missing,omitempty"`
	Mismatched []string `json:"mismatched,omitempty"`
	Scaffolded []string `json:"scaffolded,omitempty"`
}

// Sync inspects the skills tree. With apply, missing SKILL.md files are
// scaffolded in place.
func (s *Service) Sync(apply bool) (*SyncReport, error) {
	report := &SyncReport{}
	entries, err := os.ReadDir(s.skillsRoot())
	if os.IsNotExist(err) {
		return report, nil
	}
	if err != nil {
		return nil, result.Wrap(result.KindInternal, err, "read skills dir")
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		fp := filepath.Join(s.skillsRoot(), e.Name(), SkillFile)
		raw, err := os.ReadFile(fp)
		if os.IsNotExist(err) {
			report.Missing = append(report.Missing, e.Name())
			if apply {
				text := s.render(e.Name(), "", "", nil)
				if err := os.WriteFile(fp, []byte(text), 0o644); err != nil {
					return nil, result.Wrap(result.KindInternal, err, "scaffold skill %s", e.Name())
				}
				report.Scaffolded = append(report.Scaffolded, e.Name())
			}
			continue
		}
		if err != nil {
			continue
		}
		var meta skillMeta
		if _, err := frontmatter.Parse(strings.NewReader(string(raw)), &meta); err != nil {
			report.Mismatched = append(report.Mismatched, e.Name())
			continue
		}
		if meta.Name != "" && meta.Name != e.Name() {
			report.Mismatched = append(report.Mismatched, e.Name())
		}
	}
	if apply && len(report.Scaffolded) > 0 {
		s.Refresh()
	}
	return report, nil
}
