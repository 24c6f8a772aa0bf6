package bootpatch

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenMappedImageDecodes(t *testing.T) {
	ir := baseTestIR()
	encoded, err := encodeAndroid(ir)
	if err != nil {
		t.Fatalf("encodeAndroid: %v", err)
	}

	path := filepath.Join(t.TempDir(), "boot.img")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	mi, err := OpenMappedImage(path)
	if err != nil {
		t.Fatalf("OpenMappedImage: %v", err)
	}
	defer mi.Close()

	if !bytes.Equal(mi.Bytes(), encoded) {
		t.Fatal("expected the mapped bytes to match the file contents")
	}

	decoded, err := Decode(mi.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded.Kernel.Bytes(), ir.Kernel.Bytes()) {
		t.Fatal("kernel payload mismatch decoding a mapped image")
	}
}

func TestOpenMappedImageMissingFile(t *testing.T) {
	if _, err := OpenMappedImage(filepath.Join(t.TempDir(), "missing.img")); err == nil {
		t.Fatal("expected an error opening a missing file")
	}
}
