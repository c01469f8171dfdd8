package flash

import (
	"errors"
	"fmt"
)

// Error kinds reported by the programmer. Match them with errors.Is.
var (
	// ErrEraseFailed is the kind of every *EraseError
	ErrEraseFailed = errors.New("flash erase failed")

	// ErrWriteFailed is the kind of every *WriteError
	ErrWriteFailed = errors.New("flash write failed")

	// ErrNotErased is returned by devices that detect a write into a chunk
	// that has not been erased since it was last programmed
	ErrNotErased = errors.New("chunk not erased")

	// ErrOutOfRange is returned for addresses outside the device or region
	ErrOutOfRange = errors.New("address out of range")
)

// EraseError indicates that erasing a page failed.
type EraseError struct {
	Address uint32
	Err     error
}

func (e *EraseError) Error() string {
	return fmt.Sprintf("erase page at 0x%08X: %v", e.Address, e.Err)
}

func (e *EraseError) Unwrap() error { return e.Err }

// Is reports EraseError as ErrEraseFailed.
func (e *EraseError) Is(target error) bool { return target == ErrEraseFailed }

// WriteError indicates that programming a chunk failed.
type WriteError struct {
	Address uint32
	Length  int
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %d bytes at 0x%08X: %v", e.Length, e.Address, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Is reports WriteError as ErrWriteFailed.
func (e *WriteError) Is(target error) bool { return target == ErrWriteFailed }

// AlignmentError indicates an address that is not aligned to the required unit.
type AlignmentError struct {
	Op        string
	Address   uint32
	Alignment uint32
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("%s: address 0x%08X is not aligned to %d bytes", e.Op, e.Address, e.Alignment)
}
