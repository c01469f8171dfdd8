package flash

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// FileDevice persists program memory in a file so that consecutive simulated
// boots observe the same flash contents. Offset N in the file is address N.
type FileDevice struct {
	f         afero.File
	size      uint32
	pageSize  uint32
	chunkSize uint32
}

// OpenFileDevice opens (or creates) the backing file at path on fs. A new or
// short file is padded with ErasedValue up to geom.End().
func OpenFileDevice(fs afero.Fs, path string, geom Geometry) (*FileDevice, error) {
	if err := geom.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flash geometry: %w", err)
	}

	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open flash image: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat flash image: %w", err)
	}

	size := geom.End()
	if info.Size() < int64(size) {
		pad := bytes.Repeat([]byte{ErasedValue}, int(int64(size)-info.Size()))
		if _, err := f.WriteAt(pad, info.Size()); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("extend flash image: %w", err)
		}
	}

	return &FileDevice{
		f:         f,
		size:      size,
		pageSize:  geom.PageSize,
		chunkSize: geom.ChunkSize,
	}, nil
}

// ErasePage implements Device.
func (d *FileDevice) ErasePage(addr uint32) error {
	if addr%d.pageSize != 0 {
		return &AlignmentError{Op: "erase", Address: addr, Alignment: d.pageSize}
	}
	if uint64(addr)+uint64(d.pageSize) > uint64(d.size) {
		return ErrOutOfRange
	}

	_, err := d.f.WriteAt(bytes.Repeat([]byte{ErasedValue}, int(d.pageSize)), int64(addr))
	return err
}

// WriteChunk implements Device.
func (d *FileDevice) WriteChunk(addr uint32, data []byte) error {
	if addr%d.chunkSize != 0 {
		return &AlignmentError{Op: "write", Address: addr, Alignment: d.chunkSize}
	}
	if uint64(addr)+uint64(len(data)) > uint64(d.size) {
		return ErrOutOfRange
	}

	_, err := d.f.WriteAt(data, int64(addr))
	return err
}

// ReadAt implements Device.
func (d *FileDevice) ReadAt(p []byte, addr uint32) (int, error) {
	return d.f.ReadAt(p, int64(addr))
}

// Name returns the peripheral name used in handoff logs.
func (d *FileDevice) Name() string {
	return "flash:" + d.f.Name()
}

// Deinit flushes and closes the backing file.
func (d *FileDevice) Deinit() error {
	if err := d.f.Sync(); err != nil {
		_ = d.f.Close()
		return err
	}
	return d.f.Close()
}
