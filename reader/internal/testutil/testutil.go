// Package testutil provides shared fixtures for the reader test packages.
package testutil

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
)

// TempSource writes content to a file under t.TempDir and returns its path.
func TempSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

// TempGzipSource writes gzip-compressed content and returns the file path.
func TempGzipSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	fh, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture %s: %v", name, err)
	}
	zw := gzip.NewWriter(fh)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatalf("compress fixture %s: %v", name, err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip %s: %v", name, err)
	}
	if err := fh.Close(); err != nil {
		t.Fatalf("close fixture %s: %v", name, err)
	}
	return path
}
