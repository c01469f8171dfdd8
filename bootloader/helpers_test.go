package bootloader

import (
	"context"
	"encoding/binary"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-sdboot/firmware"
	"github.com/moffa90/go-sdboot/flash"
	"github.com/moffa90/go-sdboot/storage"
)

const (
	testStackPointer = 0x20008000
	testEntryOffset  = 0x1D9
)

func testGeometry() flash.Geometry {
	return flash.Geometry{
		LoadAddress: 0x2000,
		RegionSize:  0x2000,
		PageSize:    256,
		ChunkSize:   64,
	}
}

type testEnv struct {
	fs   afero.Fs
	vol  *storage.Volume
	dev  *flash.MemDevice
	geom flash.Geometry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fs := afero.NewMemMapFs()
	vol := storage.NewVolume(fs, storage.WithMountRetry(0, time.Millisecond))
	require.NoError(t, vol.Mount(context.Background()))

	geom := testGeometry()
	return &testEnv{
		fs:   fs,
		vol:  vol,
		dev:  flash.NewMemDevice(geom),
		geom: geom,
	}
}

// appPayload builds an application binary whose first words form a valid
// vector table header.
func appPayload(seed byte, n int) []byte {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = seed + byte(i*31)
	}
	if n >= 8 {
		binary.LittleEndian.PutUint32(payload[0:4], testStackPointer)
		binary.LittleEndian.PutUint32(payload[4:8], testGeometry().LoadAddress+testEntryOffset)
	}
	return payload
}

func (e *testEnv) writeImage(t *testing.T, name string, payload []byte) {
	t.Helper()
	require.NoError(t, e.vol.WriteFile(name, firmware.Seal(payload)))
}

// writeCorruptImage stores payload with a trailer that does not match it and
// returns the payload bytes as stored.
func (e *testEnv) writeCorruptImage(t *testing.T, name string, payload []byte) []byte {
	t.Helper()
	image := firmware.Seal(payload)
	image[len(payload)/2] ^= 0x40
	require.NoError(t, e.vol.WriteFile(name, image))
	return image[:len(payload)]
}

func (e *testEnv) raiseMarker(t *testing.T) {
	t.Helper()
	require.NoError(t, e.vol.RaiseMarker(storage.UpdateMarker))
}

func (e *testEnv) markerExists(t *testing.T) bool {
	t.Helper()
	exists, err := e.vol.Exists(storage.UpdateMarker)
	require.NoError(t, err)
	return exists
}

func (e *testEnv) flashBytes(n int) []byte {
	return e.dev.Bytes(e.geom.LoadAddress, n)
}

func (e *testEnv) options(extra ...Option) []Option {
	return append([]Option{WithGeometry(e.geom), WithRestartDelay(0)}, extra...)
}

// progressRecorder collects the images the installer touched.
type progressRecorder struct {
	events []Progress
}

func (r *progressRecorder) record(p Progress) {
	r.events = append(r.events, p)
}

func (r *progressRecorder) installed(image string) bool {
	for _, p := range r.events {
		if p.Image == image {
			return true
		}
	}
	return false
}

type mockCPU struct {
	mock.Mock
}

func (m *mockCPU) SetStackPointer(sp uint32) { m.Called(sp) }

func (m *mockCPU) RelocateVectorTable(base uint32) { m.Called(base) }

func (m *mockCPU) Jump(entry uint32) error { return m.Called(entry).Error(0) }

func (m *mockCPU) Reset() error { return m.Called().Error(0) }

func (m *mockCPU) methods() []string {
	var names []string
	for _, c := range m.Calls {
		names = append(names, c.Method)
	}
	return names
}

type mockPeripheral struct {
	mock.Mock
	name string
}

func (m *mockPeripheral) Name() string { return m.name }

func (m *mockPeripheral) Deinit() error { return m.Called().Error(0) }

// failingRemoveStorage refuses to delete anything.
type failingRemoveStorage struct {
	Storage
	err error
}

func (s failingRemoveStorage) Remove(name string) error {
	if strings.HasSuffix(name, "Flag.txt") {
		return s.err
	}
	return s.Storage.Remove(name)
}

// failingReadDevice returns err for every read that reaches from or beyond.
// Bytes before from are still delivered.
type failingReadDevice struct {
	*flash.MemDevice
	from uint32
	err  error
}

func (d failingReadDevice) ReadAt(p []byte, addr uint32) (int, error) {
	if addr >= d.from {
		return 0, d.err
	}
	if uint64(addr)+uint64(len(p)) > uint64(d.from) {
		n, _ := d.MemDevice.ReadAt(p[:d.from-addr], addr)
		return n, d.err
	}
	return d.MemDevice.ReadAt(p, addr)
}
