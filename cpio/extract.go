package cpio

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"

	"bootpatch/internal/stub"
)

// Additional mode-type bits needed to reconstruct entries on disk,
// alongside modeIFREG/modeIFBLK/modeIFCHR in addfs.go, matching the
// teacher's S_IFDIR/S_IFLNK/S_IFMT constants.
const (
	modeIFDIR    = 0040000
	modeIFLNK    = 0120000
	modeTypeMask = 0170000
)

// ExtractEntry reconstructs the single entry named name on the local
// filesystem at destPath, generalized from the teacher's Cpio.extractEntry.
// Regular files, directories and symlinks are materialized directly;
// character and block device entries are recreated with stub.Mknod using
// their recorded major/minor (stub.Mkdev), the reverse of AddFromFile's
// stub.Stat-based capture. Device-node reconstruction is a no-op on
// windows, matching internal/stub's windows_stub Mknod stub.
func (a *Archive) ExtractEntry(name, destPath string) error {
	e, ok := a.entries[normalizeName(name)]
	if !ok {
		return ErrEntryMissing
	}

	if dir := filepath.Dir(destPath); dir != "." {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
	}

	perm := os.FileMode(e.Mode & 0o777)
	switch e.Mode & modeTypeMask {
	case modeIFDIR:
		return os.Mkdir(destPath, perm)
	case modeIFREG:
		return os.WriteFile(destPath, e.Content, perm)
	case modeIFLNK:
		return os.Symlink(string(bytes.TrimRight(e.Content, "\x00")), destPath)
	case modeIFBLK, modeIFCHR:
		if runtime.GOOS == "windows" {
			return nil
		}
		dev := stub.Mkdev(e.RDevMajor, e.RDevMinor)
		return stub.Mknod(destPath, uint32(e.Mode), int(dev))
	default:
		return ErrAlloc
	}
}

// ExtractAll reconstructs every entry in the archive under destDir,
// skipping the synthetic "." and ".." members the way the teacher's
// Cpio.Extract does when called with no single-entry target.
func (a *Archive) ExtractAll(destDir string) error {
	for _, name := range a.order {
		if name == "." || name == ".." {
			continue
		}
		if err := a.ExtractEntry(name, filepath.Join(destDir, filepath.FromSlash(name))); err != nil {
			return err
		}
	}
	return nil
}
