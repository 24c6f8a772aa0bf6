package bootpatch

// Detect probes buf in the fixed order required by §4.2 — Loki, Bump,
// MTK, Android, Sony-ELF — and returns the first matching format tag, or
// FormatUnknown if none match. Loki/Bump/MTK are supersets of the plain
// Android layout and must be probed before it.
func Detect(buf []byte) FormatTag {
	switch {
	case isLokiImage(buf):
		return FormatLoki
	case isBumpImage(buf):
		return FormatBump
	case isMTKImage(buf):
		return FormatMTK
	case isAndroidImage(buf):
		return FormatAndroid
	case isSonyELFImage(buf):
		return FormatSonyELF
	default:
		return FormatUnknown
	}
}

// IsValid reports whether buf is a boot image this codec recognizes in
// any supported format, mirroring the teacher's BootImg::is_valid used
// by ArchivePatcher's pass 1 to decide whether a ".img"/".lok" entry is
// worth decoding at all.
func IsValid(buf []byte) bool {
	return Detect(buf) != FormatUnknown
}

// Decode dispatches buf to the handler for its detected format.
func Decode(buf []byte) (*BootImageIR, error) {
	switch Detect(buf) {
	case FormatLoki:
		return decodeLoki(buf)
	case FormatBump:
		return decodeBump(buf)
	case FormatMTK:
		return decodeMTK(buf)
	case FormatAndroid:
		return decodeAndroid(buf)
	case FormatSonyELF:
		return decodeSonyELF(buf)
	default:
		return nil, NewError(CodeBootImageParseError, "unrecognized boot image format", nil)
	}
}

// Encode dispatches ir to the handler for ir.TargetType.
func Encode(ir *BootImageIR) ([]byte, error) {
	switch ir.TargetType {
	case FormatAndroid:
		return encodeAndroid(ir)
	case FormatBump:
		return encodeBump(ir)
	case FormatMTK:
		return encodeMTK(ir)
	case FormatSonyELF:
		return encodeSonyELF(ir)
	case FormatLoki:
		return nil, NewError(CodeBootImageCreateError, "loki re-encode is unsupported; re-target to android", nil)
	default:
		return nil, NewError(CodeBootImageCreateError, "unknown target boot image format", nil)
	}
}
