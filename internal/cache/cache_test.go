package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNameCacheResolve(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "Nota.md")
	if err := os.WriteFile(fp, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	calls := 0
	lookup := func(string) (string, error) {
		calls++
		return fp, nil
	}

	c := NewNameCache(time.Minute)
	for i := 0; i < 3; i++ {
		got, err := c.Resolve("Nota", lookup)
		if err != nil || got != fp {
			t.Fatalf("resolve = %q, %v", got, err)
		}
	}
	if calls != 1 {
		t.Errorf("lookup called %d times", calls)
	}

	// Case-insensitive key.
	if _, err := c.Resolve("nota", lookup); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("case variant missed the cache: %d calls", calls)
	}
}

func TestNameCacheRevalidatesOnDisk(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "Nota.md")
	if err := os.WriteFile(fp, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	calls := 0
	lookup := func(string) (string, error) {
		calls++
		if calls == 1 {
			return fp, nil
		}
		return "", errors.New("gone")
	}

	c := NewNameCache(time.Minute)
	if _, err := c.Resolve("Nota", lookup); err != nil {
		t.Fatal(err)
	}

	// The note disappears; the cached hit must not be served.
	os.Remove(fp)
	if _, err := c.Resolve("Nota", lookup); err == nil {
		t.Error("stale cached path served after delete")
	}
	if calls != 2 {
		t.Errorf("lookup called %d times", calls)
	}
}

func TestNameCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "Nota.md")
	os.WriteFile(fp, []byte("x"), 0o644)

	calls := 0
	lookup := func(string) (string, error) {
		calls++
		return fp, nil
	}

	c := NewNameCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Resolve("Nota", lookup)
	now = now.Add(2 * time.Minute)
	c.Resolve("Nota", lookup)
	if calls != 2 {
		t.Errorf("expired entry still served: %d calls", calls)
	}
}

func TestNameCacheInvalidate(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "Nota.md")
	os.WriteFile(fp, []byte("x"), 0o644)

	calls := 0
	lookup := func(string) (string, error) {
		calls++
		return fp, nil
	}

	c := NewNameCache(time.Minute)
	c.Resolve("Nota", lookup)
	c.Invalidate("NOTA")
	c.Resolve("Nota", lookup)
	if calls != 2 {
		t.Errorf("invalidate ignored: %d calls", calls)
	}

	c.InvalidateAll()
	c.Resolve("Nota", lookup)
	if calls != 3 {
		t.Errorf("invalidate all ignored: %d calls", calls)
	}
}

func TestMemo(t *testing.T) {
	m := NewMemo[int](time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }

	calls := 0
	compute := func() (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := m.Get(compute)
		if err != nil || v != 42 {
			t.Fatalf("get = %d, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("compute called %d times", calls)
	}

	now = now.Add(2 * time.Minute)
	m.Get(compute)
	if calls != 2 {
		t.Errorf("expired memo served: %d calls", calls)
	}

	m.Drop()
	m.Get(compute)
	if calls != 3 {
		t.Errorf("dropped memo served: %d calls", calls)
	}
}

func TestMemoErrorNotCached(t *testing.T) {
	m := NewMemo[string](time.Minute)
	calls := 0
	failing := func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("boom")
		}
		return "ok", nil
	}

	if _, err := m.Get(failing); err == nil {
		t.Fatal("expected error")
	}
	v, err := m.Get(failing)
	if err != nil || v != "ok" {
		t.Errorf("get = %q, %v", v, err)
	}
}
