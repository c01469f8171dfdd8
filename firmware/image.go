package firmware

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// TrailerSize is the size of the CRC-32 trailer appended to every image.
const TrailerSize = 4

// Image describes a firmware image held in storage.
type Image struct {
	// Name is the storage path the image was read from
	Name string

	// Size is the total image size including the trailer
	Size int64

	// Expected is the CRC-32 stored in the trailer
	Expected uint32
}

// PayloadSize returns the number of payload bytes, i.e. the bytes that are
// programmed into flash and covered by the checksum.
func (i *Image) PayloadSize() int64 {
	return i.Size - TrailerSize
}

// TooSmallError indicates that an image cannot hold a checksum trailer.
type TooSmallError struct {
	Name string
	Size int64
}

func (e *TooSmallError) Error() string {
	return fmt.Sprintf("firmware image %s too small: %d bytes, need at least %d",
		e.Name, e.Size, TrailerSize)
}

// Inspect reads the checksum trailer of an image of the given size.
// The size is captured by the caller before any read and is the only size
// the returned Image ever reports.
func Inspect(name string, r io.ReaderAt, size int64) (*Image, error) {
	if size < TrailerSize {
		return nil, &TooSmallError{Name: name, Size: size}
	}

	var trailer [TrailerSize]byte
	n, err := r.ReadAt(trailer[:], size-TrailerSize)
	if n != TrailerSize {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read trailer of %s: %w", name, err)
	}

	return &Image{
		Name:     name,
		Size:     size,
		Expected: binary.LittleEndian.Uint32(trailer[:]),
	}, nil
}

// Split separates an in-memory image into its payload and stored checksum.
func Split(image []byte) ([]byte, uint32, error) {
	if len(image) < TrailerSize {
		return nil, 0, &TooSmallError{Size: int64(len(image))}
	}

	payloadLen := len(image) - TrailerSize
	return image[:payloadLen], binary.LittleEndian.Uint32(image[payloadLen:]), nil
}

// Seal returns payload followed by its CRC-32 trailer.
func Seal(payload []byte) []byte {
	image := make([]byte, len(payload), len(payload)+TrailerSize)
	copy(image, payload)
	return binary.LittleEndian.AppendUint32(image, Checksum(payload))
}

// Valid reports whether the trailer of an in-memory image matches its payload.
func Valid(image []byte) bool {
	payload, expected, err := Split(image)
	if err != nil {
		return false
	}
	return Checksum(payload) == expected
}
