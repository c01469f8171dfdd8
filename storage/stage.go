package storage

import (
	"fmt"
	"io"

	"github.com/moffa90/go-sdboot/firmware"
)

const tempSuffix = ".part"

// WriteFile atomically replaces name with data: the bytes go to a temporary
// file first and are renamed into place only after a complete write.
func (v *Volume) WriteFile(name string, data []byte) error {
	tmp := name + tempSuffix

	f, err := v.Create(tmp)
	if err != nil {
		return err
	}
	n, err := f.Write(data)
	if err == nil && n != len(data) {
		err = io.ErrShortWrite
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = v.Remove(tmp)
		return wrapErr("write", name, err)
	}

	return v.Rename(tmp, name)
}

// RaiseMarker creates the empty marker file that requests an update on the
// next boot.
func (v *Volume) RaiseMarker(marker string) error {
	f, err := v.Create(marker)
	if err != nil {
		return err
	}
	return f.Close()
}

// Stage stores payload as a sealed firmware image under name and then raises
// marker. The marker is only created once the image is completely in place.
func (v *Volume) Stage(name, marker string, payload []byte) error {
	if err := v.WriteFile(name, firmware.Seal(payload)); err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}
	if err := v.RaiseMarker(marker); err != nil {
		return fmt.Errorf("raise marker %s: %w", marker, err)
	}

	v.log.Info().
		Str("image", name).
		Int("payload_bytes", len(payload)).
		Str("marker", marker).
		Msg("firmware staged")
	return nil
}

// CopyFile copies src to dst through a temporary file, one row-sized buffer
// at a time. It is how a golden copy of the running application is made.
func (v *Volume) CopyFile(src, dst string) (int64, error) {
	in, err := v.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	tmp := dst + tempSuffix
	out, err := v.Create(tmp)
	if err != nil {
		return 0, err
	}

	n, err := io.CopyBuffer(out, in, make([]byte, 256))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = v.Remove(tmp)
		return n, fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}

	if err := v.Rename(tmp, dst); err != nil {
		return n, err
	}

	v.log.Info().Str("src", src).Str("dst", dst).Int64("bytes", n).Msg("file copied")
	return n, nil
}
