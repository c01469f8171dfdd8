// Package storage exposes the removable storage volume the bootloader reads
// firmware images and the update marker from.
//
// Paths are drive-prefixed the way the device firmware names them:
//
//	0:Application.bin     primary image
//	0:g_application.bin   golden image
//	0:Flag.txt            update marker
//
// A Volume maps those names onto an afero.Fs rooted at the card, so the same
// code runs against a real directory (afero.NewBasePathFs) in the simulator
// and against afero.NewMemMapFs in tests.
//
// The volume must be mounted before use. Mount probes the filesystem and
// retries transient failures; a volume that cannot be mounted reports
// ErrUnavailable, which the boot sequence treats as fatal.
//
// Stage, RaiseMarker and CopyFile are the helpers used by the download side:
// an image is always written to a temporary name and renamed into place, so
// the bootloader never observes a partially written image under its final
// name.
package storage
