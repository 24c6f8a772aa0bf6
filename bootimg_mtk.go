package bootpatch

import (
	"bytes"
	"encoding/binary"
)

// mtkMagic is the 4-byte marker MediaTek prepends to kernel and/or
// ramdisk payloads (§4.2).
var mtkMagic = []byte{0x88, 0x16, 0x88, 0x58}

const mtkHeaderSize = 512

// mtkSubHeader is the 512-byte vendor header MediaTek bootloaders
// prepend to kernel and ramdisk payloads, generalized from the teacher's
// MtkHdr.
type mtkSubHeader struct {
	Magic   uint32
	Size    uint32
	Name    [32]byte
	Padding [mtkHeaderSize - 4 - 4 - 32]byte
}

func parseMTKSubHeader(buf []byte) (*mtkSubHeader, error) {
	if len(buf) < mtkHeaderSize {
		return nil, NewError(CodeBootImageParseError, "truncated mtk sub-header", nil)
	}
	var h mtkSubHeader
	if err := binary.Read(bytes.NewReader(buf[:mtkHeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, NewError(CodeBootImageParseError, "mtk sub-header decode", err)
	}
	return &h, nil
}

func encodeMTKSubHeader(name string, size uint32) []byte {
	var h mtkSubHeader
	h.Magic = binary.LittleEndian.Uint32(mtkMagic)
	h.Size = size
	copy(h.Name[:], name)
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, &h)
	return buf.Bytes()
}

// isMTKImage reports whether an Android-valid image has at least one of
// its kernel/ramdisk payload regions beginning with the MTK magic,
// per §4.2.
func isMTKImage(buf []byte) bool {
	off := findAndroidHeader(buf)
	if off < 0 {
		return false
	}
	hdr, _, err := decodeAndroidHeader(buf, off)
	if err != nil {
		return false
	}
	return payloadHasMTKMagic(buf, off, hdr)
}

func payloadHasMTKMagic(buf []byte, off int, hdr *androidHeader) bool {
	headerPages := alignUp(androidHeaderSize, uint64(hdr.PageSize))
	pos := uint64(off) + headerPages
	if hdr.KernelSize >= 4 && bytes.Equal(buf[pos:pos+4], mtkMagic) {
		return true
	}
	kernelPages := alignUp(uint64(hdr.KernelSize), uint64(hdr.PageSize))
	rpos := pos + kernelPages
	if hdr.RamdiskSize >= 4 && bytes.Equal(buf[rpos:rpos+4], mtkMagic) {
		return true
	}
	return false
}

// decodeMTK decodes an Android-family image that carries MTK sub-headers
// on its kernel and/or ramdisk payload, stripping those sub-headers into
// ir.MtkKernelHdr/ir.MtkRamdiskHdr as described in §4.3's MTK variant.
func decodeMTK(buf []byte) (*BootImageIR, error) {
	off := findAndroidHeader(buf)
	if off < 0 {
		return nil, NewError(CodeBootImageParseError, "mtk: no android header found", nil)
	}
	hdr, ir, err := decodeAndroidHeader(buf, off)
	if err != nil {
		return nil, err
	}

	if ir.Kernel.Size() >= 4 && bytes.Equal(ir.Kernel.Bytes()[:4], mtkMagic) {
		sub, err := parseMTKSubHeader(ir.Kernel.Bytes())
		if err != nil {
			return nil, err
		}
		payload := ir.Kernel.Bytes()[mtkHeaderSize:]
		if sub.Size != uint32(len(payload)) {
			// Warning-only per §4.3: the on-device boot may have
			// appended a DTB after the kernel payload.
			logf("mtk kernel sub-header size %d does not match payload length %d; keeping payload as-is", sub.Size, len(payload))
		}
		ir.MtkKernelHdr = NewBinBufCopy(mtkSubHeaderBytes(sub))
		ir.Kernel = NewBinBufCopy(payload)
	}

	if ir.Ramdisk.Size() >= 4 && bytes.Equal(ir.Ramdisk.Bytes()[:4], mtkMagic) {
		sub, err := parseMTKSubHeader(ir.Ramdisk.Bytes())
		if err != nil {
			return nil, err
		}
		payload := ir.Ramdisk.Bytes()[mtkHeaderSize:]
		if sub.Size != uint32(len(payload)) {
			return nil, NewError(CodeBootImageParseError, "mtk ramdisk sub-header size mismatch", nil)
		}
		ir.MtkRamdiskHdr = NewBinBufCopy(mtkSubHeaderBytes(sub))
		ramdisk, comp, err := decodeRamdiskPayload(payload)
		if err != nil {
			return nil, err
		}
		ir.Ramdisk = NewBinBufCopy(ramdisk)
		ir.RamdiskCompression = comp
	} else {
		ramdisk, comp, err := decodeRamdiskPayload(ir.Ramdisk.Bytes())
		if err != nil {
			return nil, err
		}
		ir.Ramdisk = NewBinBufCopy(ramdisk)
		ir.RamdiskCompression = comp
	}

	ir.SourceType = FormatMTK
	ir.TargetType = FormatMTK
	return ir, nil
}

func mtkSubHeaderBytes(h *mtkSubHeader) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, h)
	return buf.Bytes()
}

func mtkSubHeaderName(b []byte) string {
	if len(b) < mtkHeaderSize {
		return ""
	}
	return cstring(b[8:40])
}

// encodeMTK re-prefixes the MTK sub-headers onto the kernel/ramdisk
// payloads (if present) and writes a standard Android image body around
// them, per §4.3's MTK variant.
func encodeMTK(ir *BootImageIR) ([]byte, error) {
	ir.syncHeaderSizes()

	kernelStream := ir.Kernel.Bytes()
	if ir.MtkKernelHdr.Size() > 0 {
		name := mtkSubHeaderName(ir.MtkKernelHdr.Bytes())
		sub := encodeMTKSubHeader(name, uint32(ir.Kernel.Size()))
		kernelStream = append(append([]byte{}, sub...), ir.Kernel.Bytes()...)
	}

	ramdisk, err := encodeRamdiskPayload(ir.Ramdisk.Bytes(), ir.RamdiskCompression)
	if err != nil {
		return nil, err
	}
	ramdiskStream := ramdisk
	if ir.MtkRamdiskHdr.Size() > 0 {
		name := mtkSubHeaderName(ir.MtkRamdiskHdr.Bytes())
		sub := encodeMTKSubHeader(name, uint32(len(ramdisk)))
		ramdiskStream = append(append([]byte{}, sub...), ramdisk...)
	}

	ir.HdrKernelSize = uint32(len(kernelStream))
	ir.HdrRamdiskSize = uint32(len(ramdiskStream))
	fillSHA1(ir, kernelStream, ramdiskStream)

	return encodeAndroidImage(ir, kernelStream, ramdiskStream), nil
}
