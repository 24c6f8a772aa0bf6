package transform

import "bootpatch/cpio"

// IdentityTransform leaves the archive untouched. It is not registered
// by default (the "default" registry entry is VerityTransform); callers
// can Register it, and the transform tests use it as a no-op baseline.
type IdentityTransform struct{}

func (IdentityTransform) Transform(*cpio.Archive, Device, Info) error {
	return nil
}
