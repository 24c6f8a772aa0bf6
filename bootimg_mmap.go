package bootpatch

import (
	"os"

	"github.com/edsrzf/mmap-go"
)

// MappedImage is a read-only memory-mapped view of a boot image file on
// disk, mirroring the teacher's heavy use of mmap.MMap for BootImg/Cpio
// instead of reading the whole file into a owned buffer up front. Decode
// accepts MappedImage.Bytes() directly since BinBuf's borrow mode already
// supports aliasing caller memory the way the teacher aliases mmap
// regions straight into header/kernel/ramdisk fields.
type MappedImage struct {
	file *os.File
	m    mmap.MMap
}

// OpenMappedImage opens path and maps it read-only.
func OpenMappedImage(path string) (*MappedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewError(CodeFileOpenError, "open "+path, err)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, NewError(CodeFileOpenError, "mmap "+path, err)
	}
	return &MappedImage{file: f, m: m}, nil
}

// Bytes returns the mapped region. The returned slice is only valid until
// Close is called.
func (mi *MappedImage) Bytes() []byte {
	return mi.m
}

// Close unmaps the region and closes the underlying file.
func (mi *MappedImage) Close() error {
	uerr := mi.m.Unmap()
	cerr := mi.file.Close()
	if uerr != nil {
		return NewError(CodeFileReadError, "munmap", uerr)
	}
	if cerr != nil {
		return NewError(CodeFileReadError, "close", cerr)
	}
	return nil
}
