package transform

import (
	"bytes"
	"strings"

	"bootpatch/cpio"
)

// verityPatterns and encryptionPatterns name the fs_mgr_flags prefixes
// VerityTransform strips from fstab entries, carried over from the
// teacher's patch.go verityPatterns/encryptionPatterns tables.
var (
	verityPatterns = [][]byte{
		[]byte("verifyatboot"),
		[]byte("verify"),
		[]byte("avb_keys"),
		[]byte("avb"),
		[]byte("support_scfs"),
		[]byte("fsverity"),
	}

	encryptionPatterns = [][]byte{
		[]byte("forceencrypt"),
		[]byte("forcefdeorfbe"),
		[]byte("fileencryption"),
	}
)

const fileModeRegular = 0100000
const fileTypeMask = 0170000

// VerityTransform rewrites every fstab entry's fs_mgr_flags to drop
// verity/AVB/force-encryption flags, generalized from the teacher's
// Cpio.Patch (cpio/cpio.go) plus its patch.go PatchVerity/PatchEncryption
// helpers. It is the core's reference RamdiskTransform implementation
// (SPEC_FULL.md §4.3a) — the guard for which entries count as an
// editable fstab exactly matches the teacher's: a regular file whose
// name starts with "fstab", excluding ".backup"/"twrp"/"recovery"
// prefixed names.
type VerityTransform struct{}

func (VerityTransform) Transform(archive *cpio.Archive, _ Device, info Info) error {
	if info.KeepVerity && info.KeepForceEncrypt {
		return nil
	}
	for _, e := range archive.Enumerate() {
		if !isEditableFstab(e) {
			continue
		}
		content := e.Content
		if !info.KeepVerity {
			content = patchFstab(content, verityPatterns)
		}
		if !info.KeepForceEncrypt {
			content = patchFstab(content, encryptionPatterns)
		}
		archive.SetContents(e.Name, content)
	}
	if !info.KeepVerity {
		archive.Remove("verity_key")
	}
	return nil
}

func isEditableFstab(e cpio.Entry) bool {
	if e.Mode&fileTypeMask != fileModeRegular {
		return false
	}
	if strings.HasPrefix(e.Name, ".backup") || strings.HasPrefix(e.Name, "twrp") || strings.HasPrefix(e.Name, "recovery") {
		return false
	}
	return strings.HasPrefix(e.Name, "fstab")
}

// patchFstab drops any fs_mgr_flags entry (the fstab line's 5th
// whitespace-separated field) whose value starts with one of patterns,
// line by line, preserving comments and short/malformed lines verbatim.
func patchFstab(fstabContent []byte, patterns [][]byte) []byte {
	lines := bytes.Split(fstabContent, []byte{'\n'})
	result := make([][]byte, 0, len(lines))

	for _, line := range lines {
		if len(line) == 0 || line[0] == '#' {
			result = append(result, line)
			continue
		}
		fields := bytes.Fields(line)
		if len(fields) < 5 {
			result = append(result, line)
			continue
		}

		flags := bytes.Split(fields[4], []byte{','})
		newFlags := make([][]byte, 0, len(flags))
		for _, flag := range flags {
			if !hasAnyPrefix(flag, patterns) {
				newFlags = append(newFlags, flag)
			}
		}

		newLine := bytes.Join([][]byte{
			bytes.Join(fields[:4], []byte{' '}),
			bytes.Join(newFlags, []byte{','}),
		}, []byte{' '})
		if len(fields) > 5 {
			newLine = append(newLine, ' ')
			newLine = append(newLine, bytes.Join(fields[5:], []byte{' '})...)
		}
		result = append(result, newLine)
	}

	return bytes.Join(result, []byte{'\n'})
}

func hasAnyPrefix(flag []byte, patterns [][]byte) bool {
	for _, p := range patterns {
		if bytes.HasPrefix(flag, p) {
			return true
		}
	}
	return false
}
