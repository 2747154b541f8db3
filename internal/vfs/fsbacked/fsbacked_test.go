package fsbacked

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteMirrorsToDisk(t *testing.T) {
	dir := t.TempDir()
	f, err := New(nil, dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer f.Close()

	if _, err := f.Write("notes/a.txt", []byte("hello"), "test"); err != nil {
		t.Fatalf("write: %v", err)
	}

	onDisk, err := os.ReadFile(filepath.Join(dir, "notes", "a.txt"))
	if err != nil || string(onDisk) != "hello" {
		t.Fatalf("expected mirrored file, got %q err=%v", onDisk, err)
	}

	content, ok := f.Read("notes/a.txt")
	if !ok || string(content) != "hello" {
		t.Fatalf("expected versioned read, got %q ok=%v", content, ok)
	}
}

func TestEscapeRejected(t *testing.T) {
	f, err := New(nil, t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer f.Close()

	if _, err := f.Write("../escape.txt", []byte("x"), "test"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}

func TestLoadExistingOnStartup(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pre.txt"), []byte("old"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	f, err := New(nil, dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer f.Close()

	content, ok := f.Read("pre.txt")
	if !ok || string(content) != "old" {
		t.Fatalf("expected pre-existing file loaded, got %q ok=%v", content, ok)
	}
	hist := f.History("pre.txt")
	if len(hist) != 1 || hist[0].Author != "fsload" {
		t.Fatalf("expected one fsload version, got %+v", hist)
	}
}
