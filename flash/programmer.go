package flash

import "fmt"

// Programmer erases and writes the application region of a Device.
// Every call is validated against the geometry before reaching the device.
type Programmer struct {
	dev  Device
	geom Geometry
}

// NewProgrammer creates a Programmer for dev. It panics on a nil device or an
// invalid geometry, both of which are wiring mistakes.
func NewProgrammer(dev Device, geom Geometry) *Programmer {
	if dev == nil {
		panic("device cannot be nil")
	}
	if err := geom.Validate(); err != nil {
		panic(fmt.Sprintf("invalid flash geometry: %v", err))
	}

	return &Programmer{
		dev:  dev,
		geom: geom,
	}
}

// Geometry returns the region the programmer operates on.
func (p *Programmer) Geometry() Geometry {
	return p.geom
}

// Device returns the underlying device.
func (p *Programmer) Device() Device {
	return p.dev
}

// ErasePage erases the page starting at addr. The previous contents of the
// whole page are always destroyed, even when called twice in a row.
func (p *Programmer) ErasePage(addr uint32) error {
	if addr%p.geom.PageSize != 0 {
		return &EraseError{
			Address: addr,
			Err:     &AlignmentError{Op: "erase", Address: addr, Alignment: p.geom.PageSize},
		}
	}
	if !p.geom.Contains(addr, p.geom.PageSize) {
		return &EraseError{Address: addr, Err: ErrOutOfRange}
	}

	if err := p.dev.ErasePage(addr); err != nil {
		return &EraseError{Address: addr, Err: err}
	}
	return nil
}

// WriteChunk programs data at addr. The address must be chunk aligned, data
// must fit in one chunk, and the page holding it must have been erased.
func (p *Programmer) WriteChunk(addr uint32, data []byte) error {
	if addr%p.geom.ChunkSize != 0 {
		return &WriteError{
			Address: addr,
			Length:  len(data),
			Err:     &AlignmentError{Op: "write", Address: addr, Alignment: p.geom.ChunkSize},
		}
	}
	if len(data) == 0 || uint32(len(data)) > p.geom.ChunkSize {
		return &WriteError{
			Address: addr,
			Length:  len(data),
			Err:     fmt.Errorf("chunk length must be 1-%d bytes", p.geom.ChunkSize),
		}
	}
	if !p.geom.Contains(addr, uint32(len(data))) {
		return &WriteError{Address: addr, Length: len(data), Err: ErrOutOfRange}
	}

	if err := p.dev.WriteChunk(addr, data); err != nil {
		return &WriteError{Address: addr, Length: len(data), Err: err}
	}
	return nil
}

// ProgramPage erases the page at addr and writes data into it chunk by chunk.
// data must not exceed one page. The first failing call aborts the page.
func (p *Programmer) ProgramPage(addr uint32, data []byte) error {
	if uint32(len(data)) > p.geom.PageSize {
		return &WriteError{
			Address: addr,
			Length:  len(data),
			Err:     fmt.Errorf("row of %d bytes exceeds page size %d", len(data), p.geom.PageSize),
		}
	}

	if err := p.ErasePage(addr); err != nil {
		return err
	}

	chunkSize := int(p.geom.ChunkSize)
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := p.WriteChunk(addr+uint32(off), data[off:end]); err != nil {
			return err
		}
	}
	return nil
}
