package cpio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAddFromFileRegular(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "init")
	if err := os.WriteFile(src, []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	a := New()
	if err := a.AddFromFile("init", src, 0755); err != nil {
		t.Fatalf("AddFromFile: %v", err)
	}

	e, ok := a.Entry("init")
	if !ok {
		t.Fatal("expected the added entry to exist")
	}
	if e.Mode != modeIFREG|0755 {
		t.Fatalf("unexpected mode: %o", e.Mode)
	}
	if string(e.Content) != "#!/bin/sh\necho hi\n" {
		t.Fatalf("unexpected content: %q", e.Content)
	}
	if e.RDevMajor != 0 || e.RDevMinor != 0 {
		t.Fatalf("expected a regular file to carry no device numbers, got %d/%d", e.RDevMajor, e.RDevMinor)
	}
}

func TestAddFromFileMissingSource(t *testing.T) {
	a := New()
	if err := a.AddFromFile("init", filepath.Join(t.TempDir(), "does-not-exist"), 0644); err == nil {
		t.Fatal("expected an error for a missing source file")
	}
}
