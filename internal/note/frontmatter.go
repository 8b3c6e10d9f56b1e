package note

import (
	"regexp"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// Reserved front-matter keys managed by the write path.
const (
	KeyTitle   = "title"
	KeyTags    = "tags"
	KeyCreated = "created"
	KeyUpdated = "updated"
	KeyAgent   = "agente_creador"
)

// fmPattern anchors a front-matter block at byte 0: an opening ---,
// the YAML body, and a closing --- on its own line.
var fmPattern = regexp.MustCompile(`(?s)\A---\s*\n(.*?)\n---\s*\n?`)

// Split separates front-matter from body. When the leading block is
// missing, fails to parse, or is not a mapping, the whole input is the
// body and the returned Meta is empty.
func Split(text string) (*Meta, string) {
	m := fmPattern.FindStringSubmatch(text)
	if m == nil {
		return NewMeta(), text
	}
	meta, err := parseYAMLMapping(m[1])
	if err != nil {
		return NewMeta(), text
	}
	body := text[len(m[0]):]
	body = strings.TrimPrefix(body, "\n")
	return meta, body
}

// parseYAMLMapping decodes a YAML mapping preserving key order.
func parseYAMLMapping(block string) (*Meta, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return NewMeta(), nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &yaml.TypeError{Errors: []string{"front-matter is not a mapping"}}
	}
	meta := NewMeta()
	for i := 0; i+1 < len(root.Content); i += 2 {
		var key string
		if err := root.Content[i].Decode(&key); err != nil {
			return nil, err
		}
		valNode := root.Content[i+1]
		// Date-shaped scalars (created: 2024-01-15) stay literal strings;
		// decoding them as time.Time would re-emit RFC3339 on Build.
		if valNode.Kind == yaml.ScalarNode && valNode.Tag == "!!timestamp" {
			meta.Set(key, valNode.Value)
			continue
		}
		var val any
		if err := valNode.Decode(&val); err != nil {
			return nil, err
		}
		meta.Set(key, val)
	}
	return meta, nil
}

// Build emits a front-matter block: ---, block-style YAML in insertion
// order, ---, one blank line.
func Build(m *Meta) string {
	if m == nil || m.Len() == 0 {
		return "---\n---\n\n"
	}
	mapping := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range m.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: k}
		valNode := &yaml.Node{}
		if s, ok := m.vals[k].(string); ok {
			// Plain scalar with no tag: the emitter keeps dates as
			// created: 2024-06-03 instead of quoting them.
			valNode.Kind = yaml.ScalarNode
			valNode.Value = s
		} else if err := valNode.Encode(m.vals[k]); err != nil {
			valNode = &yaml.Node{Kind: yaml.ScalarNode, Value: Stringify(m.vals[k])}
		}
		mapping.Content = append(mapping.Content, keyNode, valNode)
	}

	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(mapping); err != nil {
		return "---\n---\n\n"
	}
	enc.Close()
	return "---\n" + sb.String() + "---\n\n"
}

// MergeOnCreate produces the front-matter for a new note: caller
// metadata first, then title and created overwritten unconditionally,
// tags unioned preserving first occurrence, the creating agent recorded
// only when named.
func MergeOnCreate(extra *Meta, title, nowDate string, tags []string, agent string) *Meta {
	meta := NewMeta()
	if extra != nil {
		meta = extra.Clone()
	}
	meta.Set(KeyTitle, title)
	meta.Set(KeyCreated, nowDate)

	existing, _ := meta.Get(KeyTags)
	all := NormalizeTags(existing)
	for _, tag := range NormalizeTags(tags) {
		if !containsString(all, tag) {
			all = append(all, tag)
		}
	}
	if len(all) > 0 {
		meta.Set(KeyTags, all)
	}
	if agent != "" {
		meta.Set(KeyAgent, agent)
	}
	return meta
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

var (
	updatedLine = regexp.MustCompile(`(?m)^updated:.*$`)
	createdLine = regexp.MustCompile(`(?m)^created:.*$`)
)

// TouchUpdated stamps the updated field on an edited document. With an
// existing front-matter block the updated: line is replaced in place,
// inserted after created:, or added before the closing ---. Documents
// without front-matter are returned unchanged.
func TouchUpdated(text, nowDate string) string {
	if !strings.HasPrefix(text, "---") {
		return text
	}
	loc := fmPattern.FindStringIndex(text)
	if loc == nil {
		return text
	}
	block := text[:loc[1]]
	rest := text[loc[1]:]

	switch {
	case updatedLine.MatchString(block):
		block = updatedLine.ReplaceAllString(block, "updated: "+nowDate)
	case createdLine.MatchString(block):
		block = createdLine.ReplaceAllString(block, "$0\nupdated: "+nowDate)
	default:
		idx := strings.LastIndex(block, "---")
		block = block[:idx] + "updated: " + nowDate + "\n" + block[idx:]
	}
	return block + rest
}

// Fields is the typed view of the reserved keys, for callers that only
// need them.
type Fields struct {
	Title   string   `yaml:"title"`
	Tags    []string `yaml:"tags"`
	Created string   `yaml:"created"`
	Updated string   `yaml:"updated"`
	Agent   string   `yaml:"agente_creador"`
}

// ParseFields extracts the reserved keys and the body. Parse failures
// degrade to zero fields with the whole content as body.
func ParseFields(content string) (Fields, string) {
	var f Fields
	body, err := frontmatter.Parse(strings.NewReader(content), &f)
	if err != nil {
		return Fields{}, content
	}
	return f, string(body)
}
