package bootpatch

import "bytes"

// CompressionFormat identifies the compression codec, if any, wrapping a
// kernel or ramdisk payload. Detection is magic-based and generalizes the
// teacher's CheckFmt/format_t, narrowed to the formats this core decodes
// (§4.3b of the expanded spec). All of them except BZIP2 are also
// recompressed by CompressPayload; BZIP2 is decode-only.
type CompressionFormat int

const (
	CompressionUnknown CompressionFormat = iota
	CompressionGzip
	CompressionXZ
	CompressionLZMA
	CompressionBZIP2
	CompressionLZ4
	CompressionLZ4Legacy
)

const (
	gzip1Magic  = "\x1f\x8b"
	gzip2Magic  = "\x1f\x9e"
	xzMagic     = "\xfd7zXZ"
	bzipMagic   = "BZh"
	lz4LegMagic = "\x02\x21\x4c\x18"
	lz41Magic   = "\x03\x21\x4c\x18"
	lz42Magic   = "\x04\x22\x4d\x18"
)

// CheckCompression probes buf against the known compression magic bytes.
// Returns CompressionUnknown if buf matches none, which callers treat as
// "raw, uncompressed payload".
func CheckCompression(buf []byte) CompressionFormat {
	matches := func(magic string) bool {
		return len(buf) >= len(magic) && bytes.Equal(buf[:len(magic)], []byte(magic))
	}
	switch {
	case matches(gzip1Magic), matches(gzip2Magic):
		return CompressionGzip
	case matches(xzMagic):
		return CompressionXZ
	case len(buf) >= 13 && bytes.Equal(buf[:3], []byte("\x5d\x00\x00")) && (buf[12] == '\xff' || buf[12] == '\x00'):
		return CompressionLZMA
	case matches(bzipMagic):
		return CompressionBZIP2
	case matches(lz41Magic), matches(lz42Magic):
		return CompressionLZ4
	case matches(lz4LegMagic):
		return CompressionLZ4Legacy
	default:
		return CompressionUnknown
	}
}

func (f CompressionFormat) String() string {
	switch f {
	case CompressionGzip:
		return "gzip"
	case CompressionXZ:
		return "xz"
	case CompressionLZMA:
		return "lzma"
	case CompressionBZIP2:
		return "bzip2"
	case CompressionLZ4:
		return "lz4"
	case CompressionLZ4Legacy:
		return "lz4_legacy"
	default:
		return "raw"
	}
}
