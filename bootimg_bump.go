package bootpatch

import "bytes"

// bumpSignature is the fixed 9-byte trailer Bump-patched boot images
// carry after the final page-aligned section, satisfying the bootloader
// signature check the Bump patch works around (§4.2, §4.3).
var bumpSignature = []byte{0x62, 0x75, 0x6d, 0x70, 0x2d, 0x6d, 0x61, 0x67, 0x69}

// isBumpImage reports whether an Android-valid image additionally carries
// the Bump trailer, per §4.2's detection rule (Bump is Android-valid AND
// trailing bytes equal the Bump signature).
func isBumpImage(buf []byte) bool {
	if len(buf) < len(bumpSignature) || !bytes.Equal(buf[len(buf)-len(bumpSignature):], bumpSignature) {
		return false
	}
	return isAndroidImage(buf[:len(buf)-len(bumpSignature)])
}

func decodeBump(buf []byte) (*BootImageIR, error) {
	off := findAndroidHeader(buf)
	if off < 0 {
		return nil, NewError(CodeBootImageParseError, "bump: no android header found", nil)
	}
	body := buf[:len(buf)-len(bumpSignature)]
	_, ir, err := decodeAndroidHeader(body, off)
	if err != nil {
		return nil, err
	}
	ramdisk, comp, err := decodeRamdiskPayload(ir.Ramdisk.Bytes())
	if err != nil {
		return nil, err
	}
	ir.Ramdisk = NewBinBufCopy(ramdisk)
	ir.RamdiskCompression = comp
	ir.SourceType = FormatBump
	ir.TargetType = FormatBump
	return ir, nil
}

// encodeBump writes a plain Android image then appends the fixed 9-byte
// Bump trailer (§4.3's Bump variant: "Same as Android encode plus a
// fixed 9-byte trailer appended after final padding").
func encodeBump(ir *BootImageIR) ([]byte, error) {
	ir.syncHeaderSizes()
	ramdisk, err := encodeRamdiskPayload(ir.Ramdisk.Bytes(), ir.RamdiskCompression)
	if err != nil {
		return nil, err
	}
	ir.HdrRamdiskSize = uint32(len(ramdisk))
	fillSHA1(ir, ir.Kernel.Bytes(), ramdisk)
	body := encodeAndroidImage(ir, ir.Kernel.Bytes(), ramdisk)
	out := make([]byte, 0, len(body)+len(bumpSignature))
	out = append(out, body...)
	out = append(out, bumpSignature...)
	return out, nil
}
