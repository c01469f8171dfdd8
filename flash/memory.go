package flash

import (
	"bytes"
	"fmt"
	"io"
)

// MemDevice is an in-memory Device covering addresses [0, size).
// It behaves like NOR flash: a chunk can be programmed once and must be
// erased (together with its page) before it can be programmed again.
type MemDevice struct {
	pageSize  uint32
	chunkSize uint32
	mem       []byte
	written   []bool // one entry per chunk

	failErase map[uint32]error
	failWrite map[uint32]error

	erases int
	writes int
}

// NewMemDevice creates a blank device large enough for geom.
func NewMemDevice(geom Geometry) *MemDevice {
	if err := geom.Validate(); err != nil {
		panic(fmt.Sprintf("invalid flash geometry: %v", err))
	}

	size := geom.End()
	mem := bytes.Repeat([]byte{ErasedValue}, int(size))

	return &MemDevice{
		pageSize:  geom.PageSize,
		chunkSize: geom.ChunkSize,
		mem:       mem,
		written:   make([]bool, (size+geom.ChunkSize-1)/geom.ChunkSize),
		failErase: make(map[uint32]error),
		failWrite: make(map[uint32]error),
	}
}

// ErasePage implements Device.
func (d *MemDevice) ErasePage(addr uint32) error {
	if addr%d.pageSize != 0 {
		return &AlignmentError{Op: "erase", Address: addr, Alignment: d.pageSize}
	}
	if uint64(addr)+uint64(d.pageSize) > uint64(len(d.mem)) {
		return ErrOutOfRange
	}
	if err, ok := d.failErase[addr]; ok {
		return err
	}

	d.erases++
	for i := addr; i < addr+d.pageSize; i++ {
		d.mem[i] = ErasedValue
	}
	for c := addr / d.chunkSize; c < (addr+d.pageSize)/d.chunkSize; c++ {
		d.written[c] = false
	}
	return nil
}

// WriteChunk implements Device.
func (d *MemDevice) WriteChunk(addr uint32, data []byte) error {
	if addr%d.chunkSize != 0 {
		return &AlignmentError{Op: "write", Address: addr, Alignment: d.chunkSize}
	}
	if uint32(len(data)) > d.chunkSize {
		return fmt.Errorf("chunk of %d bytes exceeds %d", len(data), d.chunkSize)
	}
	if uint64(addr)+uint64(len(data)) > uint64(len(d.mem)) {
		return ErrOutOfRange
	}
	if err, ok := d.failWrite[addr]; ok {
		return err
	}

	chunk := addr / d.chunkSize
	if d.written[chunk] {
		return fmt.Errorf("0x%08X: %w", addr, ErrNotErased)
	}

	d.writes++
	copy(d.mem[addr:], data)
	d.written[chunk] = true
	return nil
}

// ReadAt implements Device.
func (d *MemDevice) ReadAt(p []byte, addr uint32) (int, error) {
	if uint64(addr) >= uint64(len(d.mem)) {
		return 0, io.EOF
	}
	n := copy(p, d.mem[addr:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Load places data at addr without erase or program rules, as if it had been
// flashed by an external programmer.
func (d *MemDevice) Load(addr uint32, data []byte) {
	copy(d.mem[addr:], data)
	for c := addr / d.chunkSize; c*d.chunkSize < addr+uint32(len(data)); c++ {
		d.written[c] = true
	}
}

// Bytes returns a copy of n bytes starting at addr.
func (d *MemDevice) Bytes(addr uint32, n int) []byte {
	out := make([]byte, n)
	copy(out, d.mem[addr:])
	return out
}

// FailEraseAt makes the next erases of the page at addr fail with err.
// A nil err clears the fault.
func (d *MemDevice) FailEraseAt(addr uint32, err error) {
	if err == nil {
		delete(d.failErase, addr)
		return
	}
	d.failErase[addr] = err
}

// FailWriteAt makes writes of the chunk at addr fail with err.
// A nil err clears the fault.
func (d *MemDevice) FailWriteAt(addr uint32, err error) {
	if err == nil {
		delete(d.failWrite, addr)
		return
	}
	d.failWrite[addr] = err
}

// EraseCount returns the number of successful page erases.
func (d *MemDevice) EraseCount() int { return d.erases }

// WriteCount returns the number of successful chunk writes.
func (d *MemDevice) WriteCount() int { return d.writes }
