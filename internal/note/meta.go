// Package note implements the document model: ordered front-matter
// parsing and emission, deterministic metadata merging, link and tag
// extraction, and filename rules.
package note

import (
	"fmt"
	"sort"
	"strings"
)

// Meta is an ordered front-matter mapping. Insertion order survives
// parse, merge and emission so metadata-only edits do not shuffle keys.
type Meta struct {
	keys []string
	vals map[string]any
}

// NewMeta returns an empty mapping.
func NewMeta() *Meta {
	return &Meta{vals: make(map[string]any)}
}

// Get returns the value for key.
func (m *Meta) Get(key string) (any, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// GetString returns the value for key rendered as a string.
func (m *Meta) GetString(key string) string {
	v, ok := m.vals[key]
	if !ok || v == nil {
		return ""
	}
	return Stringify(v)
}

// Set stores a value, keeping the key's original position when it
// already exists.
func (m *Meta) Set(key string, v any) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Delete removes a key.
func (m *Meta) Delete(key string) {
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (m *Meta) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Len returns the number of keys.
func (m *Meta) Len() int { return len(m.keys) }

// Clone returns a shallow copy.
func (m *Meta) Clone() *Meta {
	out := NewMeta()
	for _, k := range m.keys {
		out.Set(k, m.vals[k])
	}
	return out
}

// Stringify renders a scalar or list metadata value as a flat string;
// lists become comma-joined. Used when chunk metadata must be scalar.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, Stringify(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+Stringify(t[k]))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Flatten renders every value as a scalar string, for attaching
// front-matter to chunk metadata.
func (m *Meta) Flatten() map[string]string {
	out := make(map[string]string, len(m.keys))
	for _, k := range m.keys {
		out[k] = Stringify(m.vals[k])
	}
	return out
}

// NormalizeTags coerces a front-matter tags value into a clean list:
// comma-separated strings are split, entries trimmed, leading '#'
// stripped, empties dropped.
func NormalizeTags(v any) []string {
	var raw []string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		raw = strings.Split(t, ",")
	case []string:
		raw = t
	case []any:
		for _, item := range t {
			raw = append(raw, Stringify(item))
		}
	default:
		raw = []string{Stringify(t)}
	}
	out := make([]string, 0, len(raw))
	for _, tag := range raw {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
