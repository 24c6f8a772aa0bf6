package patcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"archive/zip"

	"bootpatch"
	"bootpatch/cpio"
	"bootpatch/device"
	"bootpatch/transform"
)

const maxInlinePayload = 30 << 20 // 30 MiB, per §4.5 pass 1

const (
	updateBinaryPath    = "META-INF/com/google/android/update-binary"
	updateBinaryOrigExt = ".orig"
	bbWrapperOutPath    = "multiboot/bb-wrapper.sh"
	infoPropOutPath     = "multiboot/info.prop"
)

// FileTransform is the pass-2 collaborator named in §4.5/§6: it declares
// the files it wants pass-1 to extract untouched (existing_files), then
// edits them in place once they sit in temp_dir (patch_files). This is
// distinct from transform.RamdiskTransform, which edits a boot image's
// CPIO ramdisk in memory during decode→re-encode; FileTransform instead
// edits plain files (installer scripts, configs) that live alongside
// boot images in the archive.
type FileTransform interface {
	ExistingFiles() []string
	PatchFiles(tempDir string) error
}

// Options configures one ArchivePatcher run, mirroring §4.5's "Inputs".
type Options struct {
	SourcePath string
	Device     device.Descriptor
	Devices    *device.Registry
	RomID      string
	DataDir    string
	// TempDir is the parent directory Run creates its own per-job scratch
	// subdirectory under (§4.5/§5: "temp directory is scoped to one patch
	// job"). Defaults to os.TempDir() if empty.
	TempDir string
	Arch    string

	FileTransforms []FileTransform

	OnProgress ProgressFunc
	Cancel     *CancelToken
	Logger     bootpatch.Logger

	KeepVerity       bool
	KeepForceEncrypt bool
}

// ArchivePatcher runs the two-pass rewrite described in §4.5.
type ArchivePatcher struct {
	opts Options

	// jobTempDir is the per-job scratch subdirectory Run creates under
	// opts.TempDir and always removes on exit; runPass1/runPass2 extract
	// pass-2 files here instead of directly into opts.TempDir so
	// concurrent jobs never collide (§4.5: "each has its own ...
	// temporary directory").
	jobTempDir string
}

// New constructs an ArchivePatcher for opts.
func New(opts Options) *ArchivePatcher {
	if opts.Devices == nil {
		opts.Devices = device.Default()
	}
	if opts.Cancel == nil {
		opts.Cancel = NewCancelToken()
	}
	if opts.Logger == nil {
		opts.Logger = bootpatch.NopLogger{}
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &ArchivePatcher{opts: opts}
}

// OutputPath returns "<original-stem>_<rom-id>.zip", the guaranteed
// output naming from §4.5.
func (p *ArchivePatcher) OutputPath() string {
	base := filepath.Base(p.opts.SourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(p.opts.SourcePath), fmt.Sprintf("%s_%s.zip", stem, p.opts.RomID))
}

func (p *ArchivePatcher) checkCancel() error {
	if p.opts.Cancel.Cancelled() {
		return bootpatch.NewError(bootpatch.CodeCancelled, "patch job cancelled", nil)
	}
	return nil
}

// Run executes the full pass-1 → pass-2 → finalization pipeline and
// returns the output path on success. On any error, including Cancelled,
// the partially written output file is removed. If cancellation was
// requested by the time a pass fails, Cancelled is returned instead of
// that pass's error (§7).
func (p *ArchivePatcher) Run() (string, error) {
	jobTempDir, err := os.MkdirTemp(p.opts.TempDir, "bootpatch-")
	if err != nil {
		return "", bootpatch.NewError(bootpatch.CodeFileWriteError, "create job temp dir", err)
	}
	p.jobTempDir = jobTempDir
	defer os.RemoveAll(jobTempDir)

	zr, err := OpenZip(p.opts.SourcePath)
	if err != nil {
		return "", bootpatch.NewError(bootpatch.CodeArchiveReadOpenError, "open source zip", err)
	}
	defer zr.Close()

	entries := zr.Entries()
	exclusion := p.exclusionSet()

	progress := Progress{MaxFiles: len(entries) + 3}
	for _, e := range entries {
		progress.TotalBytes += e.UncompressedSize
	}

	outPath := p.OutputPath()
	zw, err := CreateZip(outPath)
	if err != nil {
		return "", bootpatch.NewError(bootpatch.CodeArchiveWriteOpenError, "create output zip", err)
	}
	success := false
	defer func() {
		zw.Close()
		if !success {
			os.Remove(outPath)
		}
	}()

	err = p.runPass1(zr, zw, entries, exclusion, &progress)
	if err == nil {
		err = p.runPass2(zr, zw, exclusion, &progress)
	}
	if err == nil {
		err = p.finalize(zw, &progress)
	}
	if err != nil {
		if cerr := p.checkCancel(); cerr != nil {
			return "", cerr
		}
		return "", err
	}

	success = true
	return outPath, nil
}

func (p *ArchivePatcher) exclusionSet() map[string]bool {
	set := make(map[string]bool)
	for _, t := range p.opts.FileTransforms {
		for _, name := range t.ExistingFiles() {
			set[name] = true
		}
	}
	return set
}

func (p *ArchivePatcher) reportProgress(progress *Progress, name string) {
	progress.CurrentEntry = name
	progress.FilesDone++
	if p.opts.OnProgress != nil {
		p.opts.OnProgress(*progress)
	}
}

func (p *ArchivePatcher) runPass1(zr *Reader, zw *Writer, entries []EntryInfo, exclusion map[string]bool, progress *Progress) error {
	for _, e := range entries {
		if err := p.checkCancel(); err != nil {
			return err
		}

		switch {
		case exclusion[e.Name]:
			dest := filepath.Join(p.jobTempDir, filepath.FromSlash(e.Name))
			if err := zr.ExtractTo(e.Name, dest); err != nil {
				return bootpatch.NewError(bootpatch.CodeArchiveReadDataError, "extract "+e.Name, err)
			}

		case p.isInlinePatchCandidate(e):
			if err := p.patchEntryInline(zr, zw, e); err != nil {
				return err
			}

		case e.Name == updateBinaryPath:
			if err := zw.RawCopy(zr, e.Name, e.Name+updateBinaryOrigExt); err != nil {
				return bootpatch.NewError(bootpatch.CodeArchiveWriteDataError, "rename update-binary", err)
			}

		default:
			if err := zw.RawCopy(zr, e.Name, e.Name); err != nil {
				return bootpatch.NewError(bootpatch.CodeArchiveWriteDataError, "copy "+e.Name, err)
			}
		}

		progress.BytesDone += e.UncompressedSize
		p.reportProgress(progress, e.Name)
	}
	return nil
}

func (p *ArchivePatcher) isInlinePatchCandidate(e EntryInfo) bool {
	if e.UncompressedSize > maxInlinePayload {
		return false
	}
	return strings.HasSuffix(e.Name, ".img") || strings.HasSuffix(e.Name, ".lok") || strings.HasSuffix(e.Name, ".gz")
}

func (p *ArchivePatcher) patchEntryInline(zr *Reader, zw *Writer, e EntryInfo) error {
	data, err := zr.ReadAll(e.Name)
	if err != nil {
		return bootpatch.NewError(bootpatch.CodeArchiveReadDataError, "read "+e.Name, err)
	}

	if strings.HasSuffix(e.Name, ".gz") {
		patched, ok := p.tryTransformRawRamdisk(data)
		if !ok {
			patched = data
		}
		return p.writeBytes(zw, e.Name, patched)
	}

	if !bootpatch.IsValid(data) {
		return p.writeBytes(zw, e.Name, data)
	}

	if err := p.checkCancel(); err != nil {
		return err
	}
	ir, err := bootpatch.Decode(data)
	if err != nil {
		return bootpatch.NewError(bootpatch.CodeBootImageParseError, "decode "+e.Name, err)
	}
	if err := p.applyRamdiskTransform(ir); err != nil {
		return bootpatch.NewError(bootpatch.CodeRamdiskTransformError, "transform ramdisk in "+e.Name, err)
	}
	out, err := bootpatch.Encode(ir)
	if err != nil {
		return bootpatch.NewError(bootpatch.CodeBootImageCreateError, "encode "+e.Name, err)
	}
	if err := p.checkCancel(); err != nil {
		return err
	}
	return p.writeBytes(zw, e.Name, out)
}

// tryTransformRawRamdisk applies the ramdisk transform directly to a
// standalone ".gz" payload that is itself a (possibly compressed) raw
// CPIO ramdisk rather than a boot image container, per §4.5 pass 1's
// ".gz" branch.
func (p *ArchivePatcher) tryTransformRawRamdisk(data []byte) ([]byte, bool) {
	format := bootpatch.CheckCompression(data)
	raw := data
	if format != bootpatch.CompressionUnknown {
		decoded, err := bootpatch.DecompressPayload(format, data)
		if err != nil {
			return nil, false
		}
		raw = decoded
	}

	archive, err := cpio.Load(raw)
	if err != nil {
		return nil, false
	}
	t := transform.Resolve(p.opts.Device.ID)
	if err := t.Transform(archive, p.transformDevice(), p.transformInfo()); err != nil {
		return nil, false
	}
	serialized := archive.Serialize()

	if format == bootpatch.CompressionUnknown {
		return serialized, true
	}
	recompressed, err := bootpatch.CompressPayload(format, serialized)
	if err != nil {
		return nil, false
	}
	return recompressed, true
}

func (p *ArchivePatcher) applyRamdiskTransform(ir *bootpatch.BootImageIR) error {
	archive, err := cpio.Load(ir.Ramdisk.Bytes())
	if err != nil {
		return err
	}
	t := transform.Resolve(p.opts.Device.ID)
	if err := t.Transform(archive, p.transformDevice(), p.transformInfo()); err != nil {
		return err
	}
	ir.Ramdisk = bootpatch.NewBinBufOwned(archive.Serialize())
	return nil
}

func (p *ArchivePatcher) transformDevice() transform.Device {
	return transform.Device{
		ID:        p.opts.Device.ID,
		Codenames: p.opts.Device.Codenames,
		Name:      p.opts.Device.Name,
	}
}

func (p *ArchivePatcher) transformInfo() transform.Info {
	return transform.Info{
		RomID:            p.opts.RomID,
		KeepVerity:       p.opts.KeepVerity,
		KeepForceEncrypt: p.opts.KeepForceEncrypt,
	}
}

func (p *ArchivePatcher) writeBytes(zw *Writer, name string, data []byte) error {
	if err := zw.AddBytes(name, data, zip.Deflate); err != nil {
		return bootpatch.NewError(bootpatch.CodeArchiveWriteDataError, "write "+name, err)
	}
	return nil
}

func (p *ArchivePatcher) runPass2(zr *Reader, zw *Writer, exclusion map[string]bool, progress *Progress) error {
	for _, t := range p.opts.FileTransforms {
		if err := p.checkCancel(); err != nil {
			return err
		}
		if err := t.PatchFiles(p.jobTempDir); err != nil {
			return bootpatch.NewError(bootpatch.CodeRamdiskTransformError, "pass-2 transform failed", err)
		}
		if err := p.checkCancel(); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(exclusion))
	for name := range exclusion {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := p.checkCancel(); err != nil {
			return err
		}
		src := filepath.Join(p.jobTempDir, filepath.FromSlash(name))
		if _, err := os.Stat(src); os.IsNotExist(err) {
			p.opts.Logger.Warnf("pass-2 file %s missing from temp dir, skipping", name)
			continue
		}
		destName := name
		if name == updateBinaryPath {
			destName = name + updateBinaryOrigExt
		}
		if err := zw.AddFile(destName, src, zip.Deflate); err != nil {
			return bootpatch.NewError(bootpatch.CodeArchiveWriteDataError, "append pass-2 file "+name, err)
		}
		progress.FilesDone++
	}
	return nil
}

func (p *ArchivePatcher) finalize(zw *Writer, progress *Progress) error {
	entries := []struct {
		name string
		data func() ([]byte, error)
	}{
		{updateBinaryPath, func() ([]byte, error) {
			return os.ReadFile(filepath.Join(p.opts.DataDir, "binaries", "android", p.opts.Arch, "mbtool_recovery"))
		}},
		{bbWrapperOutPath, func() ([]byte, error) {
			return os.ReadFile(filepath.Join(p.opts.DataDir, "scripts", "bb-wrapper.sh"))
		}},
		{infoPropOutPath, func() ([]byte, error) {
			return []byte(p.renderInfoProp()), nil
		}},
	}

	for _, e := range entries {
		if err := p.checkCancel(); err != nil {
			return err
		}
		data, err := e.data()
		if err != nil {
			return bootpatch.NewError(bootpatch.CodeFileReadError, "read finalization source for "+e.name, err)
		}
		if err := p.writeBytes(zw, e.name, data); err != nil {
			return err
		}
		progress.FilesDone++
	}
	return nil
}

// renderInfoProp generates multiboot/info.prop's text per §4.5/§6: the
// installer version, target device id, ignore-codename flag (default
// false), install location (the ROM id), and a commented ASCII table of
// every known device (id, codenames, human name).
func (p *ArchivePatcher) renderInfoProp() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mbtool.installer.version=%s\n", installerVersion)
	fmt.Fprintf(&b, "mbtool.installer.device=%s\n", p.opts.Device.ID)
	fmt.Fprintf(&b, "mbtool.installer.ignore-codename=false\n")
	fmt.Fprintf(&b, "mbtool.installer.install-location=%s\n", p.opts.RomID)
	b.WriteString("#\n# id\tcodenames\tname\n")
	for _, d := range p.opts.Devices.All() {
		fmt.Fprintf(&b, "# %s\t%s\t%s\n", d.ID, strings.Join(d.Codenames, ", "), d.Name)
	}
	return b.String()
}

const installerVersion = "1.0.0"
