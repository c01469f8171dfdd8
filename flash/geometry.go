package flash

import "fmt"

// Default geometry of the reference board (256 KB part, 256-byte rows
// programmed in 64-byte chunks, application linked at 0x12000).
const (
	// DefaultLoadAddress is where the application vector table lives
	DefaultLoadAddress = 0x12000

	// DefaultFlashSize is the total size of program memory
	DefaultFlashSize = 0x40000

	// DefaultPageSize is the erase unit (one row)
	DefaultPageSize = 256

	// DefaultChunkSize is the program unit
	DefaultChunkSize = 64

	// ErasedValue is the content of every byte after an erase
	ErasedValue = 0xFF
)

// Geometry describes the application region of program memory.
type Geometry struct {
	// LoadAddress is the first byte of the application region
	LoadAddress uint32

	// RegionSize is the number of bytes available to the application
	RegionSize uint32

	// PageSize is the erase granularity
	PageSize uint32

	// ChunkSize is the write granularity, at most PageSize
	ChunkSize uint32
}

// DefaultGeometry returns the geometry of the reference board.
func DefaultGeometry() Geometry {
	return Geometry{
		LoadAddress: DefaultLoadAddress,
		RegionSize:  DefaultFlashSize - DefaultLoadAddress,
		PageSize:    DefaultPageSize,
		ChunkSize:   DefaultChunkSize,
	}
}

// Validate checks that the geometry is self-consistent.
func (g Geometry) Validate() error {
	switch {
	case g.PageSize == 0:
		return fmt.Errorf("page size must be positive")
	case g.ChunkSize == 0:
		return fmt.Errorf("chunk size must be positive")
	case g.ChunkSize > g.PageSize:
		return fmt.Errorf("chunk size %d exceeds page size %d", g.ChunkSize, g.PageSize)
	case g.PageSize%g.ChunkSize != 0:
		return fmt.Errorf("page size %d is not a multiple of chunk size %d", g.PageSize, g.ChunkSize)
	case g.LoadAddress%g.PageSize != 0:
		return fmt.Errorf("load address 0x%08X is not page aligned", g.LoadAddress)
	case g.RegionSize == 0 || g.RegionSize%g.PageSize != 0:
		return fmt.Errorf("region size %d is not a positive multiple of page size %d", g.RegionSize, g.PageSize)
	case uint64(g.LoadAddress)+uint64(g.RegionSize) > 1<<32:
		return fmt.Errorf("region 0x%08X+%d overflows the address space", g.LoadAddress, g.RegionSize)
	}
	return nil
}

// End returns the first address past the application region.
func (g Geometry) End() uint32 {
	return g.LoadAddress + g.RegionSize
}

// Contains reports whether [addr, addr+n) lies inside the application region.
func (g Geometry) Contains(addr uint32, n uint32) bool {
	if addr < g.LoadAddress {
		return false
	}
	return uint64(addr)+uint64(n) <= uint64(g.End())
}

// Pages returns the number of pages needed to hold n bytes.
func (g Geometry) Pages(n int64) int {
	if n <= 0 {
		return 0
	}
	return int((n + int64(g.PageSize) - 1) / int64(g.PageSize))
}
