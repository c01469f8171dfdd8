package bootloader

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-sdboot/flash"
)

func TestReadVectorTable(t *testing.T) {
	geom := testGeometry()
	dev := flash.NewMemDevice(geom)

	vt, err := ReadVectorTable(dev, geom.LoadAddress)
	require.NoError(t, err)
	assert.True(t, vt.Blank())

	dev.Load(geom.LoadAddress, appPayload(1, 64))
	vt, err = ReadVectorTable(dev, geom.LoadAddress)
	require.NoError(t, err)
	assert.False(t, vt.Blank())
	assert.Equal(t, uint32(testStackPointer), vt.StackPointer)
	assert.Equal(t, geom.LoadAddress+testEntryOffset, vt.ResetHandler)

	_, err = ReadVectorTable(dev, geom.End()-4)
	assert.Error(t, err)
}

func TestLaunch(t *testing.T) {
	tests := []struct {
		name        string
		loadAddress uint32
		wantBase    uint32
	}{
		{"aligned", 0x12000, 0x12000},
		{"unaligned", 0x12345, 0x12300},
		{"low bits only", 0x7F, 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu := &mockCPU{}
			cpu.On("SetStackPointer", uint32(0x20001000)).Return()
			cpu.On("RelocateVectorTable", tt.wantBase).Return()
			cpu.On("Jump", uint32(0x12101)).Return(nil)

			err := Launch(cpu, VectorTable{StackPointer: 0x20001000, ResetHandler: 0x12101}, tt.loadAddress)
			require.NoError(t, err)

			cpu.AssertExpectations(t)
			assert.Equal(t, []string{"SetStackPointer", "RelocateVectorTable", "Jump"}, cpu.methods())
		})
	}
}

func TestTransferToApplication(t *testing.T) {
	geom := testGeometry()
	dev := flash.NewMemDevice(geom)
	dev.Load(geom.LoadAddress, appPayload(1, 256))

	cpu := &mockCPU{}
	cpu.On("SetStackPointer", uint32(testStackPointer)).Return()
	cpu.On("RelocateVectorTable", geom.LoadAddress).Return()
	cpu.On("Jump", geom.LoadAddress+testEntryOffset).Return(errors.New("simulated"))

	err := TransferToApplication(dev, cpu, geom.LoadAddress)
	assert.EqualError(t, err, "simulated")
	cpu.AssertExpectations(t)
}

func TestDeinitPeripherals(t *testing.T) {
	uart := &mockPeripheral{name: "uart"}
	uart.On("Deinit").Return(errors.New("busy"))
	spi := &mockPeripheral{name: "spi"}
	spi.On("Deinit").Return(nil)
	clock := &mockPeripheral{name: "clock"}
	clock.On("Deinit").Return(errors.New("locked"))

	err := DeinitPeripherals([]Peripheral{uart, spi, clock}, zerolog.Nop())
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	assert.Contains(t, err.Error(), "uart: busy")
	assert.Contains(t, err.Error(), "clock: locked")

	uart.AssertExpectations(t)
	spi.AssertExpectations(t)
	clock.AssertExpectations(t)

	assert.NoError(t, DeinitPeripherals(nil, zerolog.Nop()))
}
