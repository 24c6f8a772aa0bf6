package patcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"bootpatch"
	"bootpatch/device"
)

func writeFixtureZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture zip: %v", err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close fixture zip: %v", err)
	}
}

func newOptions(t *testing.T, sourceZip string) Options {
	t.Helper()
	dataDir := t.TempDir()
	tempDir := t.TempDir()

	binDir := filepath.Join(dataDir, "binaries", "android", "arm64-v8a")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(binDir, "mbtool_recovery"), []byte("installer-binary"), 0o755); err != nil {
		t.Fatal(err)
	}
	scriptDir := filepath.Join(dataDir, "scripts")
	if err := os.MkdirAll(scriptDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(scriptDir, "bb-wrapper.sh"), []byte("#!/system/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	return Options{
		SourcePath: sourceZip,
		Device:     device.Descriptor{ID: "fajita", Codenames: []string{"fajita"}, Name: "OnePlus 6T"},
		RomID:      "lineageos",
		DataDir:    dataDir,
		TempDir:    tempDir,
		Arch:       "arm64-v8a",
	}
}

func TestArchivePatcherFinalizationEntries(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "update.zip")
	writeFixtureZip(t, src, map[string]string{
		"META-INF/com/google/android/update-binary": "#!/sbin/sh\noriginal installer\n",
		"META-INF/com/google/android/updater-script": "# nothing to see here\n",
	})

	opts := newOptions(t, src)
	p := New(opts)
	outPath, err := p.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer os.Remove(outPath)

	if p.jobTempDir == "" {
		t.Fatal("expected Run to have recorded a job temp dir")
	}
	if _, err := os.Stat(p.jobTempDir); !os.IsNotExist(err) {
		t.Fatalf("expected job temp dir %s to be removed after a successful run, stat err = %v", p.jobTempDir, err)
	}

	zr, err := OpenZip(outPath)
	if err != nil {
		t.Fatalf("open output zip: %v", err)
	}
	defer zr.Close()

	names := make(map[string]bool)
	for _, e := range zr.Entries() {
		names[e.Name] = true
	}

	for _, want := range []string{
		"META-INF/com/google/android/update-binary",
		"META-INF/com/google/android/update-binary.orig",
		"multiboot/bb-wrapper.sh",
		"multiboot/info.prop",
		"META-INF/com/google/android/updater-script",
	} {
		if !names[want] {
			t.Fatalf("expected output zip to contain %s, got %v", want, names)
		}
	}

	newBinary, err := zr.ReadAll("META-INF/com/google/android/update-binary")
	if err != nil {
		t.Fatalf("read new update-binary: %v", err)
	}
	if string(newBinary) != "installer-binary" {
		t.Fatalf("expected the new update-binary to be the installer stub, got %q", newBinary)
	}

	origBinary, err := zr.ReadAll("META-INF/com/google/android/update-binary.orig")
	if err != nil {
		t.Fatalf("read orig update-binary: %v", err)
	}
	if string(origBinary) != "#!/sbin/sh\noriginal installer\n" {
		t.Fatalf("expected the original installer script to survive under .orig, got %q", origBinary)
	}

	infoProp, err := zr.ReadAll("multiboot/info.prop")
	if err != nil {
		t.Fatalf("read info.prop: %v", err)
	}
	if !contains(string(infoProp), "mbtool.installer.device=fajita") {
		t.Fatalf("expected info.prop to name the target device, got %q", infoProp)
	}
	if !contains(string(infoProp), "mbtool.installer.install-location=lineageos") {
		t.Fatalf("expected info.prop to name the rom id, got %q", infoProp)
	}
}

func TestArchivePatcherRespectsCancellation(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "update.zip")
	writeFixtureZip(t, src, map[string]string{"updater-script": "noop\n"})

	opts := newOptions(t, src)
	opts.Cancel = NewCancelToken()
	opts.Cancel.Cancel()
	p := New(opts)

	_, err := p.Run()
	if err == nil {
		t.Fatal("expected a cancelled run to fail")
	}
	if !bootpatch.Cancelled(err) {
		t.Fatalf("expected a Cancelled error, got %v", err)
	}

	// opts.TempDir itself is a t.TempDir() and would be cleaned up by the
	// test framework regardless; assert on the job-scoped subdirectory
	// Run creates under it to actually exercise the cleanup path.
	if p.jobTempDir == "" {
		t.Fatal("expected Run to have recorded a job temp dir before cancelling")
	}
	if _, err := os.Stat(p.jobTempDir); !os.IsNotExist(err) {
		t.Fatalf("expected job temp dir %s to be removed after a cancelled run, stat err = %v", p.jobTempDir, err)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
