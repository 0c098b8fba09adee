package baseinstaller

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocateFindsCachedBinary(t *testing.T) {
	dir := t.TempDir()
	binPath := filepath.Join(dir, "bgpi")
	if err := os.WriteFile(binPath, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	req := Request{Binary: "bgpi-not-on-path-xyz", CachePath: dir}
	// Locate looks for req.Binary under CachePath, so name the file to match.
	req.Binary = "bgpi"
	path, err := Locate(req)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if path != binPath {
		t.Fatalf("got %q, want %q", path, binPath)
	}
}

func TestLocateFailsWhenNowhereFound(t *testing.T) {
	_, err := Locate(Request{Binary: "definitely-not-a-real-binary-xyz123"})
	if err == nil {
		t.Fatal("expected an error when the binary cannot be found anywhere")
	}
}
