package firmware

import (
	"hash"
	"hash/crc32"
	"io"
)

// CRC-32 parameters shared with the image trailer.
const (
	// CRC32Polynomial is the reversed IEEE 802.3 polynomial
	CRC32Polynomial = crc32.IEEE

	// CRC32InitialValue is the register value before the first byte
	CRC32InitialValue = 0xFFFFFFFF

	// CRC32FinalXOR is applied to the register after the last byte
	CRC32FinalXOR = 0xFFFFFFFF
)

// Checksum computes the standard CRC-32 of data.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// NewHash returns a running CRC-32 for streaming input.
func NewHash() hash.Hash32 {
	return crc32.NewIEEE()
}

// ChecksumReader computes the CRC-32 of everything read from r.
// It returns the checksum and the number of bytes consumed.
func ChecksumReader(r io.Reader) (uint32, int64, error) {
	h := NewHash()
	n, err := io.Copy(h, r)
	if err != nil {
		return 0, n, err
	}
	return h.Sum32(), n, nil
}
