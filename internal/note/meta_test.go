package note

import (
	"strings"
	"testing"
)

func TestMetaOrder(t *testing.T) {
	m := NewMeta()
	m.Set("b", 1)
	m.Set("a", 2)
	m.Set("c", 3)
	m.Set("a", 9) // re-set keeps the original slot

	keys := m.Keys()
	if strings.Join(keys, "") != "bac" {
		t.Errorf("keys = %v", keys)
	}
	if v, _ := m.Get("a"); v != 9 {
		t.Errorf("a = %v", v)
	}

	m.Delete("b")
	if strings.Join(m.Keys(), "") != "ac" {
		t.Errorf("keys after delete = %v", m.Keys())
	}
	if _, ok := m.Get("b"); ok {
		t.Error("deleted key still present")
	}
}

func TestMetaClone(t *testing.T) {
	m := NewMeta()
	m.Set("title", "orig")
	c := m.Clone()
	c.Set("title", "copia")
	c.Set("extra", true)

	if m.GetString("title") != "orig" {
		t.Error("clone mutated the original")
	}
	if m.Len() != 1 {
		t.Errorf("original len = %d", m.Len())
	}
}

func TestStringify(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"string", "hola", "hola"},
		{"string slice", []string{"a", "b"}, "a, b"},
		{"any slice", []any{"x", 2}, "x, 2"},
		{"int", 42, "42"},
		{"nil", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Stringify(tc.in); got != tc.want {
				t.Errorf("Stringify = %q, want %q", got, tc.want)
			}
		})
	}

	t.Run("map sorted", func(t *testing.T) {
		got := Stringify(map[string]any{"z": 1, "a": 2})
		if got != "a: 2, z: 1" {
			t.Errorf("Stringify(map) = %q", got)
		}
	})
}

func TestFlatten(t *testing.T) {
	m := NewMeta()
	m.Set("title", "Nota")
	m.Set("tags", []string{"uno", "dos"})
	m.Set("prioridad", 3)

	flat := m.Flatten()
	if flat["title"] != "Nota" || flat["tags"] != "uno, dos" || flat["prioridad"] != "3" {
		t.Errorf("flat = %v", flat)
	}
}
