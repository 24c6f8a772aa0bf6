package cpio

import (
	"os"
	"runtime"

	"bootpatch/internal/stub"
)

// Mode bits cpio newc headers encode in their hex "mode" field, matching
// the teacher's cpio.go constants.
const (
	modeIFREG = 0100000
	modeIFBLK = 0060000
	modeIFCHR = 0020000
)

// AddFromFile stats srcPath on the local filesystem and inserts it into
// the archive under name, the way the teacher's Cpio.Add builds a new
// ramdisk tree entry-by-entry from files staged on disk. Regular files
// and symlinks are copied by content; character and block device nodes
// are recorded by major/minor only (via internal/stub, which wraps
// golang.org/x/sys/unix.Stat/Major/Minor — device files have no
// meaningful "content" to read). permBits is ORed with the discovered
// file-type bit to form the final mode field.
func (a *Archive) AddFromFile(name, srcPath string, permBits uint32) error {
	attr, err := os.Lstat(srcPath)
	if err != nil {
		return err
	}

	var content []byte
	var rdevMajor, rdevMinor uint32
	mode := permBits

	switch {
	case attr.Mode().IsRegular() || attr.Mode()&os.ModeSymlink != 0:
		mode |= modeIFREG
		content, err = os.ReadFile(srcPath)
		if err != nil {
			return err
		}

	case runtime.GOOS != "windows" && attr.Mode()&(os.ModeDevice|os.ModeCharDevice) != 0:
		var st stub.Stat_t
		if err := stub.Stat(srcPath, &st); err != nil {
			return err
		}
		rdevMajor = stub.Major(uint64(st.Rdev))
		rdevMinor = stub.Minor(uint64(st.Rdev))
		if attr.Mode()&os.ModeCharDevice != 0 {
			mode |= modeIFCHR
		} else {
			mode |= modeIFBLK
		}

	default:
		return ErrAlloc
	}

	a.addEntry(Entry{
		Name:      name,
		Mode:      mode,
		Nlink:     1,
		RDevMajor: rdevMajor,
		RDevMinor: rdevMinor,
		Content:   content,
	})
	return nil
}
