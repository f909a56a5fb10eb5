package sessioncache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	first := NewFile(path)
	if err := first.Update(map[string]string{"admin_session_token": "abc", "admin_user": `{"email":"a@b.co"}`}, nil); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// A fresh instance simulates a process restart.
	second := NewFile(path)
	v, ok, err := second.Get("admin_session_token")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || v != "abc" {
		t.Fatalf("expected token abc, got %q (ok=%v)", v, ok)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected mode 0600, got %o", perm)
	}
}

func TestFileMissingKey(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "session.json"))

	v, ok, err := f.Get("admin_session_token")
	if err != nil {
		t.Fatalf("Get on missing file: %v", err)
	}
	if ok || v != "" {
		t.Fatalf("expected missing key, got %q", v)
	}
}

func TestFileRemoveAllDeletesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	f := NewFile(path)

	if err := f.Set("a", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := f.Set("b", "2"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := f.Update(nil, []string{"a", "b"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file to be removed, stat err = %v", err)
	}
	// Removing again is not an error.
	if err := f.Remove("a"); err != nil {
		t.Fatalf("Remove on missing file: %v", err)
	}
}

func TestFileCorruptContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}

	f := NewFile(path)
	if _, _, err := f.Get("a"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestMemoryUpdate(t *testing.T) {
	m := NewMemory()
	_ = m.Set("stale", "x")

	if err := m.Update(map[string]string{"a": "1"}, []string{"stale"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, ok, _ := m.Get("stale"); ok {
		t.Fatal("stale key should be removed")
	}
	if v, ok, _ := m.Get("a"); !ok || v != "1" {
		t.Fatalf("expected a=1, got %q", v)
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 key, got %d", m.Len())
	}
}
