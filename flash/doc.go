// Package flash drives the non-volatile program memory that holds the
// application image.
//
// # Geometry
//
// The application region starts at a fixed load address and is divided into
// pages (rows), the smallest erasable unit, and chunks, the largest single
// program operation:
//
//	LoadAddress                                               End()
//	|<- page ->|<- page ->|<- page ->| ...
//	|c|c|c|c|   chunks of ChunkSize within each page
//
// A page must be erased before any chunk in it is written. Erasing clears the
// whole page to ErasedValue.
//
// # Devices
//
// Hardware access lives behind the Device interface. Two implementations
// ship with the package:
//   - MemDevice: in-memory flash for tests, enforcing erase-before-write and
//     supporting fault injection
//   - FileDevice: flash contents persisted in a file, used by the host
//     simulator
//
// Programmer wraps a Device with alignment and range validation and reports
// failures as *EraseError and *WriteError.
package flash
