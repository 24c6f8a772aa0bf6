package bootpatch

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
)

// androidMagic is the marker every Android-family image (plain, Bump,
// MTK) carries at its header start. Generalizes the teacher's BOOT_MAGIC.
const androidMagic = "ANDROID!"

const (
	androidMagicSize   = 8
	androidNameSize    = 16
	androidCmdlineSize = 512
	androidIDWords     = 8
)

// androidHeader is the packed, little-endian on-disk layout described in
// §4.3: magic[8], five (size, addr) pairs, tags_addr, page_size, dt_size,
// unused, name[16], cmdline[512], id[8]uint32. This single layout
// replaces the teacher's BootImgHdrV0..V4/Vendor header-version ladder,
// which models Android's header-version evolution that this spec's IR
// does not track (see DESIGN.md).
type androidHeader struct {
	Magic       [androidMagicSize]byte
	KernelSize  uint32
	KernelAddr  uint32
	RamdiskSize uint32
	RamdiskAddr uint32
	SecondSize  uint32
	SecondAddr  uint32
	TagsAddr    uint32
	PageSize    uint32
	DtSize      uint32
	Unused      uint32
	Name        [androidNameSize]byte
	Cmdline     [androidCmdlineSize]byte
	Id          [androidIDWords]uint32
}

const androidHeaderSize = androidMagicSize + 4*10 + androidNameSize + androidCmdlineSize + androidIDWords*4

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func putCString(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// findAndroidHeader scans buf for the ANDROID! magic at any 512-byte
// aligned offset within the first block (page_size or 4 KiB, whichever
// is larger), per §4.2's detection rule, and returns the offset or -1.
func findAndroidHeader(buf []byte) int {
	limit := 4096
	// A page_size field only exists once we've found a header, so the
	// widened "whichever is larger" scan window is realized by simply
	// scanning up to the largest allowed page size up front.
	if len(AllowedPageSizes) > 0 {
		limit = int(AllowedPageSizes[len(AllowedPageSizes)-1])
	}
	if limit > len(buf) {
		limit = len(buf)
	}
	for off := 0; off+androidMagicSize <= limit; off += 512 {
		if bytes.Equal(buf[off:off+androidMagicSize], []byte(androidMagic)) {
			return off
		}
	}
	return -1
}

// isAndroidImage reports whether buf carries the ANDROID! magic AND a
// header whose page_size and declared payload sizes are valid and fit
// within buf, per §4.2. A magic-only match is not enough: Detect must
// not misreport a buffer with a coincidental magic and garbage sizes as
// FormatAndroid, the same way isMTKImage insists on a full header parse.
func isAndroidImage(buf []byte) bool {
	off := findAndroidHeader(buf)
	if off < 0 {
		return false
	}
	_, _, err := decodeAndroidHeader(buf, off)
	return err == nil
}

// decodeAndroidHeader parses the fixed androidHeader at off within buf
// and validates that the declared payload sizes fit within buf. It does
// not yet know about MTK sub-headers or Bump trailers; callers adjust
// the resulting IR for those variants.
func decodeAndroidHeader(buf []byte, off int) (*androidHeader, *BootImageIR, error) {
	if off+androidHeaderSize > len(buf) {
		return nil, nil, NewError(CodeBootImageParseError, "truncated android header", nil)
	}
	var hdr androidHeader
	r := bytes.NewReader(buf[off : off+androidHeaderSize])
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, nil, NewError(CodeBootImageParseError, "android header decode", err)
	}
	if !isAllowedPageSize(hdr.PageSize) {
		return nil, nil, NewError(CodeBootImageParseError, "invalid page_size", nil)
	}

	kernelPages := alignUp(uint64(hdr.KernelSize), uint64(hdr.PageSize))
	ramdiskPages := alignUp(uint64(hdr.RamdiskSize), uint64(hdr.PageSize))
	secondPages := alignUp(uint64(hdr.SecondSize), uint64(hdr.PageSize))
	dtPages := alignUp(uint64(hdr.DtSize), uint64(hdr.PageSize))
	headerPages := alignUp(androidHeaderSize, uint64(hdr.PageSize))

	total := uint64(off) + headerPages + kernelPages + ramdiskPages + secondPages + dtPages
	if total > uint64(len(buf)) {
		return nil, nil, NewError(CodeBootImageParseError, "declared payload sizes exceed buffer", nil)
	}

	pos := uint64(off) + headerPages
	kernel := buf[pos : pos+uint64(hdr.KernelSize)]
	pos += kernelPages
	ramdisk := buf[pos : pos+uint64(hdr.RamdiskSize)]
	pos += ramdiskPages
	second := buf[pos : pos+uint64(hdr.SecondSize)]
	pos += secondPages
	dt := buf[pos : pos+uint64(hdr.DtSize)]

	ir := &BootImageIR{
		Cmdline:        cstring(hdr.Cmdline[:]),
		BoardName:      cstring(hdr.Name[:]),
		KernelAddr:     hdr.KernelAddr,
		RamdiskAddr:    hdr.RamdiskAddr,
		SecondAddr:     hdr.SecondAddr,
		TagsAddr:       hdr.TagsAddr,
		HdrKernelSize:  hdr.KernelSize,
		HdrRamdiskSize: hdr.RamdiskSize,
		HdrSecondSize:  hdr.SecondSize,
		HdrDtSize:      hdr.DtSize,
		HdrUnused:      hdr.Unused,
		Kernel:         NewBinBufCopy(kernel),
		Ramdisk:        NewBinBufCopy(ramdisk),
		Second:         NewBinBufCopy(second),
		Dt:             NewBinBufCopy(dt),
		PageSize:       hdr.PageSize,
	}
	for i, w := range hdr.Id {
		binary.LittleEndian.PutUint32(ir.Id[i*4:i*4+4], w)
	}
	return &hdr, ir, nil
}

// androidSHA1 computes the §4.3 identity digest: kernel || kernel_size ||
// ramdisk || ramdisk_size || second || second_size (always hashed, even
// empty) || [dt || dt_size, only if dt_size > 0]. kernelStream/
// ramdiskStream let the MTK variant include its sub-headers in the hash
// at the position they occupy on disk, per §4.3's MTK variant note.
func androidSHA1(kernelStream, ramdiskStream, second, dt []byte, kernelSize, ramdiskSize, secondSize, dtSize uint32) [20]byte {
	h := sha1.New()
	h.Write(kernelStream)
	writeLE32(h, kernelSize)
	h.Write(ramdiskStream)
	writeLE32(h, ramdiskSize)
	h.Write(second)
	writeLE32(h, secondSize)
	if dtSize > 0 {
		h.Write(dt)
		writeLE32(h, dtSize)
	}
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

func writeLE32(w interface{ Write([]byte) (int, error) }, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

// decodeRamdiskPayload strips a compression codec off a ramdisk payload
// before the caller hands it to a CPIO archive, per §4.3b. Uncompressed/
// unrecognized payloads pass through unchanged with CompressionUnknown.
func decodeRamdiskPayload(raw []byte) ([]byte, CompressionFormat, error) {
	f := CheckCompression(raw)
	if f == CompressionUnknown {
		return raw, CompressionUnknown, nil
	}
	decoded, err := DecompressPayload(f, raw)
	if err != nil {
		return nil, CompressionUnknown, err
	}
	return decoded, f, nil
}

// encodeRamdiskPayload is the inverse of decodeRamdiskPayload: it
// recompresses raw with f, or passes it through unchanged if f is
// CompressionUnknown (the ramdisk was raw CPIO on decode).
func encodeRamdiskPayload(raw []byte, f CompressionFormat) ([]byte, error) {
	if f == CompressionUnknown {
		return raw, nil
	}
	return CompressPayload(f, raw)
}

// encodeAndroidHeader renders ir into the fixed androidHeader layout,
// after syncHeaderSizes has recomputed the size fields from payload
// lengths (the encode invariant in §3).
func encodeAndroidHeader(ir *BootImageIR) []byte {
	var hdr androidHeader
	copy(hdr.Magic[:], androidMagic)
	hdr.KernelSize = ir.HdrKernelSize
	hdr.KernelAddr = ir.KernelAddr
	hdr.RamdiskSize = ir.HdrRamdiskSize
	hdr.RamdiskAddr = ir.RamdiskAddr
	hdr.SecondSize = ir.HdrSecondSize
	hdr.SecondAddr = ir.SecondAddr
	hdr.TagsAddr = ir.TagsAddr
	hdr.PageSize = ir.PageSize
	hdr.DtSize = ir.HdrDtSize
	hdr.Unused = ir.HdrUnused
	putCString(hdr.Name[:], ir.BoardName)
	putCString(hdr.Cmdline[:], ir.Cmdline)
	for i := 0; i < androidIDWords; i++ {
		hdr.Id[i] = binary.LittleEndian.Uint32(ir.Id[i*4 : i*4+4])
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, &hdr)
	return buf.Bytes()
}

// encodeAndroidImage assembles the full page-aligned image body (header,
// kernel, ramdisk, second, dt) shared by the Android, Bump and MTK
// encoders. kernelStream/ramdiskStream are the bytes actually written
// for those sections (MTK prefixes its 512-byte sub-headers onto these).
func encodeAndroidImage(ir *BootImageIR, kernelStream, ramdiskStream []byte) []byte {
	header := padTo(encodeAndroidHeader(ir), uint64(ir.PageSize))
	out := new(bytes.Buffer)
	out.Write(header)
	out.Write(padTo(kernelStream, uint64(ir.PageSize)))
	out.Write(padTo(ramdiskStream, uint64(ir.PageSize)))
	if ir.Second.Size() > 0 {
		out.Write(padTo(ir.Second.Bytes(), uint64(ir.PageSize)))
	}
	if ir.Dt.Size() > 0 {
		out.Write(padTo(ir.Dt.Bytes(), uint64(ir.PageSize)))
	}
	return out.Bytes()
}

// fillSHA1 computes the §4.3 identity digest over the exact byte streams
// that will be written to disk (kernelStream/ramdiskStream already carry
// any MTK sub-header), and stores it right-zero-padded into ir.Id.
func fillSHA1(ir *BootImageIR, kernelStream, ramdiskStream []byte) {
	sum := androidSHA1(kernelStream, ramdiskStream, ir.Second.Bytes(), ir.Dt.Bytes(),
		uint32(len(kernelStream)), uint32(len(ramdiskStream)), ir.HdrSecondSize, ir.HdrDtSize)
	var id [32]byte
	copy(id[:20], sum[:])
	ir.Id = id
}

// decodeAndroid decodes a plain (non-MTK, non-Bump) Android-family image.
func decodeAndroid(buf []byte) (*BootImageIR, error) {
	off := findAndroidHeader(buf)
	if off < 0 {
		return nil, NewError(CodeBootImageParseError, "no android header found", nil)
	}
	_, ir, err := decodeAndroidHeader(buf, off)
	if err != nil {
		return nil, err
	}
	ramdisk, comp, err := decodeRamdiskPayload(ir.Ramdisk.Bytes())
	if err != nil {
		return nil, err
	}
	ir.Ramdisk = NewBinBufCopy(ramdisk)
	ir.RamdiskCompression = comp
	ir.SourceType = FormatAndroid
	ir.TargetType = FormatAndroid
	return ir, nil
}

// encodeAndroid renders ir back into a plain Android image. For inputs
// whose declared sizes already matched payload lengths on decode, this
// reproduces the source byte-for-byte (§6 boot-image byte compatibility).
func encodeAndroid(ir *BootImageIR) ([]byte, error) {
	ir.syncHeaderSizes()
	ramdisk, err := encodeRamdiskPayload(ir.Ramdisk.Bytes(), ir.RamdiskCompression)
	if err != nil {
		return nil, err
	}
	ir.HdrRamdiskSize = uint32(len(ramdisk))
	fillSHA1(ir, ir.Kernel.Bytes(), ramdisk)
	return encodeAndroidImage(ir, ir.Kernel.Bytes(), ramdisk), nil
}
