// Package firmware describes the on-storage firmware image format used by the
// boot-time updater.
//
// # Image Format
//
// An image is an opaque payload immediately followed by a 4-byte trailer:
//
//	[Payload(N bytes)][CRC32(4 bytes, little-endian)]
//
// The trailer holds the standard CRC-32 (IEEE polynomial, initial value
// 0xFFFFFFFF, output complemented) of the payload bytes alone. An image is
// therefore never shorter than 4 bytes.
//
// # Usage
//
// Build an image from a raw application binary:
//
//	img := firmware.Seal(payload)
//	err := afero.WriteFile(fs, "/Application.bin", img, 0o644)
//
// Inspect the trailer of an image already in storage:
//
//	f, _ := fs.Open("/Application.bin")
//	info, _ := f.Stat()
//	img, err := firmware.Inspect("0:Application.bin", f, info.Size())
//	fmt.Printf("payload %d bytes, crc 0x%08X\n", img.PayloadSize(), img.Expected)
//
// # Error Handling
//
// Inspect and Split return a *TooSmallError for data shorter than the
// trailer, and wrap io.ErrUnexpectedEOF when the trailer cannot be read.
package firmware
