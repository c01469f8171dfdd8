package flash

import (
	"io"
	"math"
)

// Device is the hardware capability the bootloader needs from program memory.
// Implementations map directly onto the part's erase and program primitives.
type Device interface {
	// ErasePage clears the page starting at addr to ErasedValue
	ErasePage(addr uint32) error

	// WriteChunk programs data at addr
	WriteChunk(addr uint32, data []byte) error

	// ReadAt copies memory starting at addr into p
	ReadAt(p []byte, addr uint32) (int, error)
}

type deviceReaderAt struct {
	dev Device
}

func (r deviceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > math.MaxUint32 {
		return 0, io.EOF
	}
	return r.dev.ReadAt(p, uint32(off))
}

// NewReader returns a reader over n bytes of program memory starting at addr.
func NewReader(dev Device, addr uint32, n int64) *io.SectionReader {
	return io.NewSectionReader(deviceReaderAt{dev: dev}, int64(addr), n)
}
