package bootloader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-sdboot/storage"
)

func expectLaunch(cpu *mockCPU, load uint32) {
	cpu.On("SetStackPointer", uint32(testStackPointer)).Return()
	cpu.On("RelocateVectorTable", load&VTORMask).Return()
	cpu.On("Jump", load+testEntryOffset).Return(nil)
}

func TestBootInstallsAndTransfers(t *testing.T) {
	env := newTestEnv(t)
	env.raiseMarker(t)
	env.writeImage(t, storage.PrimaryImage, appPayload(1, 800))

	cpu := &mockCPU{}
	expectLaunch(cpu, env.geom.LoadAddress)
	console := &mockPeripheral{name: "console"}
	console.On("Deinit").Return(nil)

	bl := New(env.vol, env.dev, cpu, env.options(WithPeripherals(console))...)
	cycle, err := bl.Boot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PrimaryValid, cycle.Decision)
	assert.Equal(t, []string{"SetStackPointer", "RelocateVectorTable", "Jump"}, cpu.methods())
	cpu.AssertExpectations(t)
	console.AssertExpectations(t)
	assert.False(t, env.vol.Mounted(), "storage must be unmounted before the jump")
}

func TestBootTransfersWhenNothingVerified(t *testing.T) {
	env := newTestEnv(t)
	env.dev.Load(env.geom.LoadAddress, appPayload(5, 128))

	cpu := &mockCPU{}
	expectLaunch(cpu, env.geom.LoadAddress)

	cycle, err := New(env.vol, env.dev, cpu, env.options()...).Boot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PrimaryInvalidGoldenInvalid, cycle.Decision)
	cpu.AssertCalled(t, "Jump", env.geom.LoadAddress+testEntryOffset)
}

func TestBootIgnoresDeinitFailures(t *testing.T) {
	env := newTestEnv(t)
	env.dev.Load(env.geom.LoadAddress, appPayload(5, 128))

	cpu := &mockCPU{}
	expectLaunch(cpu, env.geom.LoadAddress)
	timer := &mockPeripheral{name: "timer"}
	timer.On("Deinit").Return(errors.New("still running"))

	_, err := New(env.vol, env.dev, cpu, env.options(WithPeripherals(timer))...).Boot(context.Background())
	require.NoError(t, err)
	timer.AssertExpectations(t)
	cpu.AssertExpectations(t)
}

func TestBootResetsWhenMountFails(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	vol := storage.NewVolume(fs, storage.WithMountRetry(0, time.Millisecond))
	env := newTestEnv(t)

	cpu := &mockCPU{}
	cpu.On("Reset").Return(nil)

	cycle, err := New(vol, env.dev, cpu, env.options()...).Boot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.Equal(t, Cycle{}, cycle)

	cpu.AssertCalled(t, "Reset")
	cpu.AssertNotCalled(t, "Jump", mock.Anything)
	assert.Equal(t, 0, env.dev.EraseCount())
}

func TestBootResetFailureIsReported(t *testing.T) {
	vol := storage.NewVolume(afero.NewReadOnlyFs(afero.NewMemMapFs()), storage.WithMountRetry(1, time.Millisecond))
	env := newTestEnv(t)

	cpu := &mockCPU{}
	cpu.On("Reset").Return(errors.New("watchdog disabled"))

	_, err := New(vol, env.dev, cpu, env.options()...).Boot(context.Background())
	require.ErrorIs(t, err, storage.ErrUnavailable)
	assert.Contains(t, err.Error(), "watchdog disabled")
}

func TestBootRestartDelayHonoursContext(t *testing.T) {
	vol := storage.NewVolume(afero.NewReadOnlyFs(afero.NewMemMapFs()), storage.WithMountRetry(0, time.Millisecond))
	env := newTestEnv(t)

	cpu := &mockCPU{}
	cpu.On("Reset").Return(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := New(vol, env.dev, cpu, env.options(WithRestartDelay(time.Hour))...).Boot(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Minute)
	cpu.AssertCalled(t, "Reset")
}

func TestHandoffWarnsOnBlankFlash(t *testing.T) {
	env := newTestEnv(t)
	cpu := &mockCPU{}
	cpu.On("SetStackPointer", uint32(0xFFFFFFFF)).Return()
	cpu.On("RelocateVectorTable", env.geom.LoadAddress).Return()
	cpu.On("Jump", uint32(0xFFFFFFFF)).Return(nil)

	bl := New(env.vol, env.dev, cpu, env.options()...)
	require.NoError(t, bl.Handoff(NewCycle()))
	cpu.AssertExpectations(t)
}

func TestNewPanicsWithoutCPU(t *testing.T) {
	env := newTestEnv(t)
	assert.Panics(t, func() { New(env.vol, env.dev, nil) })
}

func TestHandoffDeinitializesWhenVectorTableUnreadable(t *testing.T) {
	env := newTestEnv(t)
	dev := failingReadDevice{MemDevice: env.dev, err: errors.New("bus fault")}

	cpu := &mockCPU{}
	console := &mockPeripheral{name: "console"}
	console.On("Deinit").Return(nil)

	bl := New(env.vol, dev, cpu, env.options(WithPeripherals(console))...)
	err := bl.Handoff(NewCycle())
	require.Error(t, err)

	console.AssertExpectations(t)
	assert.False(t, env.vol.Mounted(), "storage must be unmounted even without a jump")
	cpu.AssertNotCalled(t, "Jump", mock.Anything)
	assert.Empty(t, cpu.methods())
}
