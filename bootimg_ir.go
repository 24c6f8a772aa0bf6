package bootpatch

import "bytes"

// FormatTag identifies which boot-image family a handler decoded from or
// will encode to. The zero value is never a valid detected tag.
type FormatTag int

const (
	FormatUnknown FormatTag = iota
	FormatAndroid
	FormatLoki
	FormatBump
	FormatMTK
	FormatSonyELF
)

func (t FormatTag) String() string {
	switch t {
	case FormatAndroid:
		return "android"
	case FormatLoki:
		return "loki"
	case FormatBump:
		return "bump"
	case FormatMTK:
		return "mtk"
	case FormatSonyELF:
		return "sony_elf"
	default:
		return "unknown"
	}
}

// AllowedPageSizes are the only page sizes a decoded image may carry,
// per §3 of the spec.
var AllowedPageSizes = []uint32{2048, 4096, 8192, 16384, 32768, 65536, 131072}

func isAllowedPageSize(v uint32) bool {
	for _, p := range AllowedPageSizes {
		if p == v {
			return true
		}
	}
	return false
}

// BootImageIR is the union of every field any supported boot-image
// format may carry (§3). A handler's Decode populates only the fields
// relevant to its format; Encode ignores fields its format does not use.
type BootImageIR struct {
	Cmdline   string
	BoardName string

	KernelAddr     uint32
	RamdiskAddr    uint32
	SecondAddr     uint32
	TagsAddr       uint32
	IplAddr        uint32
	RpmAddr        uint32
	AppsblAddr     uint32
	EntrypointAddr uint32

	HdrKernelSize  uint32
	HdrRamdiskSize uint32
	HdrSecondSize  uint32
	HdrDtSize      uint32
	HdrUnused      uint32

	Kernel       BinBuf
	Ramdisk      BinBuf
	Second       BinBuf
	Dt           BinBuf
	Aboot        BinBuf
	MtkKernelHdr BinBuf
	MtkRamdiskHdr BinBuf
	Ipl          BinBuf
	Rpm          BinBuf
	Appsbl       BinBuf
	SonySinHdr   BinBuf
	SonySin      BinBuf

	PageSize uint32
	Id       [32]byte

	// SourceType is the format the image was decoded from; TargetType is
	// the format Encode will produce. They default to the same value
	// except for Loki, whose TargetType defaults to Android (§4.2: full
	// Loki re-injection needs the device's aboot partition, which this
	// core does not have access to).
	SourceType FormatTag
	TargetType FormatTag

	// RamdiskCompression records the codec the ramdisk payload was
	// wrapped in at decode time (§4.3b expansion), so Encode can
	// recompress it the same way after a RamdiskTransform mutates it.
	RamdiskCompression CompressionFormat
}

// syncHeaderSizes recomputes the Hdr*Size fields from the payload
// lengths (plus any MTK sub-header) before Encode writes the header, per
// the "sizes are recomputed from payload lengths" encode invariant (§3).
func (ir *BootImageIR) syncHeaderSizes() {
	ir.HdrKernelSize = uint32(ir.Kernel.Size())
	if ir.MtkKernelHdr.Size() > 0 {
		ir.HdrKernelSize += uint32(ir.MtkKernelHdr.Size())
	}
	ir.HdrRamdiskSize = uint32(ir.Ramdisk.Size())
	if ir.MtkRamdiskHdr.Size() > 0 {
		ir.HdrRamdiskSize += uint32(ir.MtkRamdiskHdr.Size())
	}
	ir.HdrSecondSize = uint32(ir.Second.Size())
	ir.HdrDtSize = uint32(ir.Dt.Size())
}

// Equal compares two BootImageIR values ignoring format-tag differences
// and HdrUnused, per §3: "a Loki-wrapped image equals its Android
// equivalent".
func (ir *BootImageIR) Equal(other *BootImageIR) bool {
	if ir.Cmdline != other.Cmdline || ir.BoardName != other.BoardName {
		return false
	}
	if ir.KernelAddr != other.KernelAddr || ir.RamdiskAddr != other.RamdiskAddr ||
		ir.SecondAddr != other.SecondAddr || ir.TagsAddr != other.TagsAddr ||
		ir.IplAddr != other.IplAddr || ir.RpmAddr != other.RpmAddr ||
		ir.AppsblAddr != other.AppsblAddr || ir.EntrypointAddr != other.EntrypointAddr {
		return false
	}
	if ir.HdrKernelSize != other.HdrKernelSize || ir.HdrRamdiskSize != other.HdrRamdiskSize ||
		ir.HdrSecondSize != other.HdrSecondSize || ir.HdrDtSize != other.HdrDtSize {
		return false
	}
	if !ir.Kernel.Equal(other.Kernel) || !ir.Ramdisk.Equal(other.Ramdisk) ||
		!ir.Second.Equal(other.Second) || !ir.Dt.Equal(other.Dt) ||
		!ir.Aboot.Equal(other.Aboot) || !ir.MtkKernelHdr.Equal(other.MtkKernelHdr) ||
		!ir.MtkRamdiskHdr.Equal(other.MtkRamdiskHdr) || !ir.Ipl.Equal(other.Ipl) ||
		!ir.Rpm.Equal(other.Rpm) || !ir.Appsbl.Equal(other.Appsbl) ||
		!ir.SonySinHdr.Equal(other.SonySinHdr) || !ir.SonySin.Equal(other.SonySin) {
		return false
	}
	if ir.PageSize != other.PageSize {
		return false
	}
	return bytes.Equal(ir.Id[:], other.Id[:])
}

func alignUp(v, a uint64) uint64 {
	if a == 0 {
		return v
	}
	return (v + a - 1) / a * a
}

func padTo(data []byte, align uint64) []byte {
	pad := alignUp(uint64(len(data)), align) - uint64(len(data))
	if pad == 0 {
		return data
	}
	out := make([]byte, len(data)+int(pad))
	copy(out, data)
	return out
}
