package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScratchWriteAndRemove(t *testing.T) {
	s, err := NewScratch(t.TempDir())
	if err != nil {
		t.Fatalf("NewScratch: %v", err)
	}

	path, err := s.Write("generated_campaigns/interfood/flyer_page_0_0.png", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(data) != 3 {
		t.Fatalf("read %d bytes, want 3", len(data))
	}

	if err := s.Remove("generated_campaigns/interfood"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); !os.IsNotExist(err) {
		t.Fatalf("campaign dir still present after Remove: %v", err)
	}
}

func TestScratchDirIsIdempotent(t *testing.T) {
	s, err := NewScratch(t.TempDir())
	if err != nil {
		t.Fatalf("NewScratch: %v", err)
	}

	first, err := s.Dir("logo")
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	second, err := s.Dir("logo")
	if err != nil {
		t.Fatalf("Dir again: %v", err)
	}
	if first != second {
		t.Fatalf("Dir not stable: %q vs %q", first, second)
	}
	info, err := os.Stat(first)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %q: %v", first, err)
	}
}

func TestScratchRejectsEscapingKeys(t *testing.T) {
	s, err := NewScratch(t.TempDir())
	if err != nil {
		t.Fatalf("NewScratch: %v", err)
	}

	for _, key := range []string{"", "..", "../outside", "a/../../b"} {
		if _, err := s.Write(key, []byte("x")); err == nil {
			t.Fatalf("Write(%q) should have been rejected", key)
		}
	}
}

func TestScratchCleansAbsoluteStyleKeys(t *testing.T) {
	root := t.TempDir()
	s, err := NewScratch(root)
	if err != nil {
		t.Fatalf("NewScratch: %v", err)
	}

	path, err := s.Write("/logo/acme.png", []byte("x"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Dir(filepath.Dir(path)) != root {
		t.Fatalf("leading slash escaped the root: %q", path)
	}
}
