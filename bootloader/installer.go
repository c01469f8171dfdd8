package bootloader

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/moffa90/go-sdboot/firmware"
	"github.com/moffa90/go-sdboot/flash"
)

// Installer copies the payload of a firmware image from storage into the
// application flash region, one page-sized row at a time.
type Installer struct {
	store  Storage
	prog   *flash.Programmer
	config Config
}

// NewInstaller creates an Installer programming through prog.
func NewInstaller(store Storage, prog *flash.Programmer, opts ...Option) *Installer {
	if store == nil {
		panic("storage cannot be nil")
	}
	if prog == nil {
		panic("programmer cannot be nil")
	}

	return &Installer{
		store:  store,
		prog:   prog,
		config: newConfig(opts),
	}
}

// Install programs the payload of the named image at the load address:
//  1. Read the next row (one flash page) of payload
//  2. Erase the page at the write cursor
//  3. Program the row chunk by chunk
//  4. Advance the cursor by one page
//
// The trailer is never programmed. Install stops at the first failure and
// leaves whatever was already written in place; it does not verify the
// result. It returns the number of payload bytes programmed.
func (in *Installer) Install(ctx context.Context, name string) (int64, error) {
	f, err := in.store.Open(name)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", name, err)
	}

	size := info.Size()
	if size < firmware.TrailerSize {
		return 0, &firmware.TooSmallError{Name: name, Size: size}
	}

	geom := in.prog.Geometry()
	payload := size - firmware.TrailerSize
	if payload > int64(geom.RegionSize) {
		return 0, &ImageTooLargeError{Image: name, Size: payload, Capacity: geom.RegionSize}
	}

	startTime := time.Now()
	totalRows := geom.Pages(payload)
	row := make([]byte, geom.PageSize)
	addr := geom.LoadAddress

	in.config.Logger.Info().
		Str("image", name).
		Int64("payload_bytes", payload).
		Int("rows", totalRows).
		Str("address", fmt.Sprintf("0x%08X", addr)).
		Msg("installing image")

	var written int64
	for i := 0; written < payload; i++ {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("cancelled: %w", err)
		}

		want := min(int64(geom.PageSize), payload-written)
		n, err := io.ReadFull(f, row[:want])
		if err != nil {
			return written, &ShortReadError{Image: name, Offset: written, Want: want, Got: int64(n), Err: err}
		}

		if err := in.prog.ProgramPage(addr, row[:n]); err != nil {
			in.config.Logger.Error().
				Err(err).
				Str("image", name).
				Int("row", i).
				Str("address", fmt.Sprintf("0x%08X", addr)).
				Msg("flash programming failed")
			return written, fmt.Errorf("program row %d (address=0x%08X): %w", i, addr, err)
		}

		written += int64(n)
		addr += geom.PageSize

		in.reportProgress(Progress{
			Phase:        PhaseInstalling,
			Image:        name,
			CurrentRow:   i + 1,
			TotalRows:    totalRows,
			Percentage:   float64(written) / float64(payload) * 100,
			BytesWritten: written,
			ElapsedTime:  time.Since(startTime),
		})
	}

	in.reportProgress(Progress{
		Phase:        PhaseComplete,
		Image:        name,
		CurrentRow:   totalRows,
		TotalRows:    totalRows,
		Percentage:   100,
		BytesWritten: written,
		ElapsedTime:  time.Since(startTime),
	})

	in.config.Logger.Info().
		Str("image", name).
		Int64("bytes", written).
		Str("elapsed", time.Since(startTime).String()).
		Msg("image installed")

	return written, nil
}

// reportProgress calls the progress callback if configured.
func (in *Installer) reportProgress(progress Progress) {
	if in.config.ProgressCallback != nil {
		in.config.ProgressCallback(progress)
	}
}
