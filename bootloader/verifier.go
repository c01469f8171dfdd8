package bootloader

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/moffa90/go-sdboot/firmware"
	"github.com/moffa90/go-sdboot/flash"
)

const (
	sourceFlash = "flash"
	sourceFile  = "file"
)

// Verifier checks firmware images against the CRC-32 stored in their trailer.
// It never modifies flash or storage.
type Verifier struct {
	store  Storage
	dev    flash.Device
	config Config
}

// NewVerifier creates a Verifier reading images from store and flash from dev.
func NewVerifier(store Storage, dev flash.Device, opts ...Option) *Verifier {
	if store == nil {
		panic("storage cannot be nil")
	}
	if dev == nil {
		panic("device cannot be nil")
	}

	return &Verifier{
		store:  store,
		dev:    dev,
		config: newConfig(opts),
	}
}

// VerifyFlash checks the bytes resident at the load address against the
// trailer of the named image. It returns nil when the flash holds exactly the
// image's payload.
func (v *Verifier) VerifyFlash(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := v.inspect(name)
	if err != nil {
		return err
	}

	geom := v.config.Geometry
	if img.PayloadSize() > int64(geom.RegionSize) {
		return &ImageTooLargeError{Image: name, Size: img.PayloadSize(), Capacity: geom.RegionSize}
	}

	r := flash.NewReader(v.dev, geom.LoadAddress, img.PayloadSize())
	return v.compare(img, r, sourceFlash, geom.LoadAddress)
}

// VerifyFile checks the payload of the named image against its own trailer.
func (v *Verifier) VerifyFile(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, img, err := v.open(name)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	r := io.NewSectionReader(f, 0, img.PayloadSize())
	return v.compare(img, r, sourceFile, 0)
}

// inspect reads the trailer of name and closes the file again. The size in the
// returned image was captured while the file was open.
func (v *Verifier) inspect(name string) (*firmware.Image, error) {
	f, img, err := v.open(name)
	if err != nil {
		return nil, err
	}
	_ = f.Close()
	return img, nil
}

func (v *Verifier) open(name string) (afero.File, *firmware.Image, error) {
	f, err := v.store.Open(name)
	if err != nil {
		v.config.Logger.Warn().Err(err).Str("image", name).Msg("cannot open firmware image")
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", name, err)
	}

	img, err := firmware.Inspect(name, f, info.Size())
	if err != nil {
		_ = f.Close()
		v.config.Logger.Warn().Err(err).Str("image", name).Int64("size", info.Size()).Msg("cannot read image trailer")
		return nil, nil, err
	}

	v.config.Logger.Debug().
		Str("image", name).
		Int64("size", img.Size).
		Str("expected", fmt.Sprintf("0x%08X", img.Expected)).
		Msg("expected checksum from image")
	return f, img, nil
}

func (v *Verifier) compare(img *firmware.Image, r io.Reader, source string, addr uint32) error {
	actual, n, err := firmware.ChecksumReader(r)
	if err != nil {
		return &ShortReadError{Image: img.Name, Offset: n, Want: img.PayloadSize(), Got: n, Err: err}
	}
	if n != img.PayloadSize() {
		return &ShortReadError{Image: img.Name, Offset: n, Want: img.PayloadSize(), Got: n, Err: io.ErrUnexpectedEOF}
	}

	log := v.config.Logger.With().
		Str("image", img.Name).
		Str("source", source).
		Str("expected", fmt.Sprintf("0x%08X", img.Expected)).
		Str("actual", fmt.Sprintf("0x%08X", actual)).
		Logger()

	if actual != img.Expected {
		log.Warn().Msg("checksum mismatch")
		return &ChecksumMismatchError{
			Image:    img.Name,
			Source:   source,
			Address:  addr,
			Length:   img.PayloadSize(),
			Expected: img.Expected,
			Actual:   actual,
		}
	}

	log.Info().Msg("checksum verified")
	return nil
}
