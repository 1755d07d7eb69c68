package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"kaizen/internal/media"
)

// WriteVideo writes size bytes of filler at path, creating parent
// directories, and returns the local-video locator for it. Nothing decodes
// the content; it only needs to exist and have a length.
func WriteVideo(t testing.TB, path string, size int) string {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return media.Locator(path)
}

// WriteScript writes an executable shell script and returns its path.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script %s: %v", name, err)
	}
	return path
}
