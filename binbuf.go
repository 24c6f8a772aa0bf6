package bootpatch

import "bytes"

// BinBuf is a sized byte region with three construction modes: an owned
// copy, an owned move from a caller-supplied slice, and a non-owning
// borrow of caller memory. Go's garbage collector makes the explicit
// lifetime tracking of the original design unnecessary; a borrow simply
// aliases the backing array and callers must not mutate it concurrently
// with the BinBuf's own lifetime, mirroring how the teacher aliases
// mmap.MMap regions directly into BootImg payload fields.
type BinBuf struct {
	data   []byte
	borrow bool
}

// NewBinBufCopy allocates a new buffer and copies b into it.
func NewBinBufCopy(b []byte) BinBuf {
	return BinBuf{data: bytes.Clone(b)}
}

// NewBinBufOwned takes ownership of b without copying.
func NewBinBufOwned(b []byte) BinBuf {
	return BinBuf{data: b}
}

// NewBinBufBorrow aliases b without copying or taking ownership.
func NewBinBufBorrow(b []byte) BinBuf {
	return BinBuf{data: b, borrow: true}
}

// Size returns the number of bytes currently held.
func (b BinBuf) Size() int {
	return len(b.data)
}

// Bytes returns the held bytes. Callers must not retain and mutate the
// slice of a borrowed BinBuf past the lifetime of the memory it aliases.
func (b BinBuf) Bytes() []byte {
	return b.data
}

// IsBorrow reports whether this BinBuf aliases caller-owned memory rather
// than holding its own copy.
func (b BinBuf) IsBorrow() bool {
	return b.borrow
}

// Resize grows or shrinks the buffer, preserving the existing prefix
// (zero-filling any newly added tail). A borrowed BinBuf becomes owned
// as a result, since growth cannot safely happen in place over memory
// this BinBuf does not own.
func (b BinBuf) Resize(n int) BinBuf {
	if n < 0 {
		n = 0
	}
	out := make([]byte, n)
	copy(out, b.data)
	return BinBuf{data: out}
}

// Equal compares two BinBufs by content, ignoring construction mode.
func (b BinBuf) Equal(other BinBuf) bool {
	return bytes.Equal(b.data, other.data)
}

// Clone returns an owned copy of b, regardless of b's own mode.
func (b BinBuf) Clone() BinBuf {
	return NewBinBufCopy(b.data)
}
