package bootloader

import (
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/moffa90/go-sdboot/flash"
)

// VTORMask keeps the table-offset bits of the vector table base register
// (bits 31:7 on Cortex-M0+).
const VTORMask = 0xFFFFFF80

const vectorTableHeaderSize = 8

// CPU is the processor capability used to leave the bootloader.
// On hardware Jump and Reset never return.
type CPU interface {
	// SetStackPointer loads the main stack pointer
	SetStackPointer(sp uint32)

	// RelocateVectorTable points the exception vector table base at base
	RelocateVectorTable(base uint32)

	// Jump branches to entry
	Jump(entry uint32) error

	// Reset restarts the device
	Reset() error
}

// Peripheral is anything the bootloader started that must be shut down
// before the application runs.
type Peripheral interface {
	Name() string
	Deinit() error
}

// VectorTable is the head of the application's exception vector table.
type VectorTable struct {
	// StackPointer is the initial main stack pointer (offset 0)
	StackPointer uint32

	// ResetHandler is the application entry point (offset 4)
	ResetHandler uint32
}

// Blank reports whether both words still hold erased flash.
func (vt VectorTable) Blank() bool {
	return vt.StackPointer == 0xFFFFFFFF && vt.ResetHandler == 0xFFFFFFFF
}

// ReadVectorTable reads the initial stack pointer and reset handler stored at
// addr.
func ReadVectorTable(dev flash.Device, addr uint32) (VectorTable, error) {
	var buf [vectorTableHeaderSize]byte
	n, err := dev.ReadAt(buf[:], addr)
	if n != len(buf) {
		return VectorTable{}, fmt.Errorf("read vector table at 0x%08X: got %d bytes: %v", addr, n, err)
	}

	return VectorTable{
		StackPointer: binary.LittleEndian.Uint32(buf[0:4]),
		ResetHandler: binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

// Launch rebases the stack pointer, relocates the vector table to
// loadAddress and jumps to the reset handler. A vector table that does not
// describe a real application fails in hardware; nothing here can detect it.
func Launch(cpu CPU, vt VectorTable, loadAddress uint32) error {
	cpu.SetStackPointer(vt.StackPointer)
	cpu.RelocateVectorTable(loadAddress & VTORMask)
	return cpu.Jump(vt.ResetHandler)
}

// TransferToApplication reads the vector table at loadAddress and launches the
// application. All peripherals must already be deinitialized.
func TransferToApplication(dev flash.Device, cpu CPU, loadAddress uint32) error {
	vt, err := ReadVectorTable(dev, loadAddress)
	if err != nil {
		return err
	}
	return Launch(cpu, vt, loadAddress)
}

// DeinitPeripherals shuts down every peripheral in order. A failing
// peripheral does not stop the others; all failures are returned together.
func DeinitPeripherals(peripherals []Peripheral, log zerolog.Logger) error {
	var result *multierror.Error
	for _, p := range peripherals {
		if err := p.Deinit(); err != nil {
			log.Warn().Err(err).Str("peripheral", p.Name()).Msg("peripheral deinit failed")
			result = multierror.Append(result, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		log.Debug().Str("peripheral", p.Name()).Msg("peripheral deinitialized")
	}
	return result.ErrorOrNil()
}
