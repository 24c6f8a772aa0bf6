package bootpatch

import (
	"bytes"
	"encoding/binary"
)

// lokiHeaderOffset is the fixed offset of the Loki side header within a
// Loki-patched image, per §4.2's detection rule.
const lokiHeaderOffset = 0x400

const lokiBuildSize = 128

var lokiMagic = []byte("LOKI")

// lokiHeader is the side header a Loki-patched image carries at
// lokiHeaderOffset, recording enough of the original image to recover
// the genuine kernel/ramdisk after the bootloader-check workaround has
// scrambled the wrapped Android header's own size fields.
type lokiHeader struct {
	Magic           [4]byte
	Recovery        uint32
	Build           [lokiBuildSize]byte
	OrigKernelSize  uint32
	OrigRamdiskSize uint32
	RamdiskAddr     uint32
}

const lokiHeaderSize = 4 + 4 + lokiBuildSize + 4 + 4 + 4

func isLokiImage(buf []byte) bool {
	return len(buf) >= lokiHeaderOffset+4 && bytes.Equal(buf[lokiHeaderOffset:lokiHeaderOffset+4], lokiMagic)
}

func parseLokiHeader(buf []byte) (*lokiHeader, error) {
	if len(buf) < lokiHeaderOffset+lokiHeaderSize {
		return nil, NewError(CodeBootImageParseError, "truncated loki header", nil)
	}
	var h lokiHeader
	r := bytes.NewReader(buf[lokiHeaderOffset : lokiHeaderOffset+lokiHeaderSize])
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, NewError(CodeBootImageParseError, "loki header decode", err)
	}
	return &h, nil
}

// decodeLoki decodes a Loki-patched image (§4.3's Loki variant): the
// wrapped Android header's own kernel_size/ramdisk_size fields may have
// been zeroed or forged to pass a bootloader signature check, so the
// genuine kernel and ramdisk are located using the side header's
// orig_kernel_size/orig_ramdisk_size instead — falling back to the
// wrapped header's own sizes only if the side header recorded zero,
// which happens on some early Loki variants that never touched those
// fields. ramdisk_addr is recovered from the side header, and the bytes
// preceding the Loki magic (the patched aboot image the tool wraps
// around the payload) are kept as ir.Aboot for inspection, though this
// core never re-derives a fresh aboot on encode.
//
// Re-encode of a decoded Loki IR is intentionally unsupported: TargetType
// defaults to FormatAndroid (§4.2), since full Loki re-injection needs
// the device's own aboot partition, which this core has no access to.
func decodeLoki(buf []byte) (*BootImageIR, error) {
	loki, err := parseLokiHeader(buf)
	if err != nil {
		return nil, err
	}

	off := findAndroidHeader(buf)
	if off < 0 {
		return nil, NewError(CodeBootImageParseError, "loki: no android header found", nil)
	}
	hdr, ir, err := decodeAndroidHeader(buf, off)
	if err != nil {
		return nil, err
	}

	headerPages := alignUp(androidHeaderSize, uint64(hdr.PageSize))
	pos := uint64(off) + headerPages

	kernelSize := loki.OrigKernelSize
	if kernelSize == 0 {
		kernelSize = hdr.KernelSize
	}
	ramdiskSize := loki.OrigRamdiskSize
	if ramdiskSize == 0 {
		ramdiskSize = hdr.RamdiskSize
	}

	if pos+uint64(kernelSize) > uint64(len(buf)) {
		return nil, NewError(CodeBootImageParseError, "loki: recovered kernel size exceeds buffer", nil)
	}
	kernel := buf[pos : pos+uint64(kernelSize)]

	rpos := pos + alignUp(uint64(kernelSize), uint64(hdr.PageSize))
	if rpos+uint64(ramdiskSize) > uint64(len(buf)) {
		return nil, NewError(CodeBootImageParseError, "loki: recovered ramdisk size exceeds buffer", nil)
	}
	ramdiskRaw := buf[rpos : rpos+uint64(ramdiskSize)]

	ramdisk, comp, err := decodeRamdiskPayload(ramdiskRaw)
	if err != nil {
		return nil, err
	}

	ir.Kernel = NewBinBufCopy(kernel)
	ir.Ramdisk = NewBinBufCopy(ramdisk)
	ir.RamdiskCompression = comp
	ir.HdrKernelSize = kernelSize
	ir.HdrRamdiskSize = ramdiskSize
	ir.RamdiskAddr = loki.RamdiskAddr
	ir.Aboot = NewBinBufCopy(buf[:lokiHeaderOffset])
	ir.SourceType = FormatLoki
	ir.TargetType = FormatAndroid
	return ir, nil
}
