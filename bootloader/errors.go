package bootloader

import (
	"errors"
	"fmt"
)

// ErrChecksumMismatch is the kind of every *ChecksumMismatchError.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ErrShortRead is the kind of every *ShortReadError.
var ErrShortRead = errors.New("short read")

// ChecksumMismatchError indicates that the computed CRC-32 of an image does not
// match the value stored in its trailer.
type ChecksumMismatchError struct {
	Image    string
	Source   string // "flash" or "file"
	Address  uint32
	Length   int64
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	if e.Source == sourceFlash {
		return fmt.Sprintf("checksum mismatch for %s in flash at 0x%08X (%d bytes): expected 0x%08X, got 0x%08X",
			e.Image, e.Address, e.Length, e.Expected, e.Actual)
	}
	return fmt.Sprintf("checksum mismatch for %s (%d bytes): expected 0x%08X, got 0x%08X",
		e.Image, e.Length, e.Expected, e.Actual)
}

// Is reports ChecksumMismatchError as ErrChecksumMismatch.
func (e *ChecksumMismatchError) Is(target error) bool { return target == ErrChecksumMismatch }

// ImageTooLargeError indicates a payload that does not fit the flash region.
type ImageTooLargeError struct {
	Image    string
	Size     int64
	Capacity uint32
}

func (e *ImageTooLargeError) Error() string {
	return fmt.Sprintf("image %s payload of %d bytes exceeds flash region of %d bytes",
		e.Image, e.Size, e.Capacity)
}

// ShortReadError indicates that fewer bytes than expected could be read from
// an image or from flash.
type ShortReadError struct {
	Image  string
	Offset int64
	Want   int64
	Got    int64
	Err    error
}

func (e *ShortReadError) Error() string {
	msg := fmt.Sprintf("short read of %s at offset %d: got %d bytes, want %d",
		e.Image, e.Offset, e.Got, e.Want)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ShortReadError) Unwrap() error { return e.Err }

// Is reports ShortReadError as ErrShortRead.
func (e *ShortReadError) Is(target error) bool { return target == ErrShortRead }

// StageError records a failure that caused the orchestrator to fall back.
type StageError struct {
	State State
	Image string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.State, e.Image, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
