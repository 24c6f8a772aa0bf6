// Package transform defines the RamdiskTransform collaborator contract
// the boot-image codec invokes during decode→re-encode (§4.5's "ramdisk
// transform pipeline"), plus a small registry for resolving one by
// device id. The interface itself is the core's contract per spec.md §1
// ("the core only specifies the interface and invokes it through the
// two-pass pipeline"); this package additionally ships one concrete
// reference implementation, VerityTransform, so the interface can be
// exercised end-to-end without an external plugin (SPEC_FULL.md §4.3a).
package transform

import "bootpatch/cpio"

// Device carries the minimal identity a RamdiskTransform needs to
// decide device-specific edits, generalized from the teacher's implicit
// "this is the ramdisk for device X" context.
type Device struct {
	ID        string
	Codenames []string
	Name      string
}

// Info carries per-job context a transform may need beyond the archive
// itself (the ROM identifier being installed, whether to keep verity or
// force-encrypt flags), mirroring the teacher's KEEPVERITY/
// KEEPFORCEENCRYPT environment switches turned into explicit fields.
type Info struct {
	RomID            string
	KeepVerity       bool
	KeepForceEncrypt bool
}

// RamdiskTransform mutates a ramdisk's CpioArchive in place. Concrete
// transforms are resolved through Register/Resolve, keyed by device id.
type RamdiskTransform interface {
	Transform(archive *cpio.Archive, device Device, info Info) error
}

var registry = map[string]RamdiskTransform{
	"default": VerityTransform{},
}

// Register installs t under key, overwriting any previous registration.
// Keys are either "default" or "<device-id>/default" per §4.5.
func Register(key string, t RamdiskTransform) {
	registry[key] = t
}

// Resolve looks up the transform for deviceID: a device-specific entry
// first, falling back to the global default, per §4.5's "Ramdisk
// transform pipeline" (exactly one transform is applied per boot image).
func Resolve(deviceID string) RamdiskTransform {
	if deviceID != "" {
		if t, ok := registry[deviceID+"/default"]; ok {
			return t
		}
	}
	return registry["default"]
}
