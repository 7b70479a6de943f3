// Package hash provides the content hash shared by cells and map entries.
//
// Every encoding of a value hashes its decoded bytes, and integers hash their
// canonical decimal rendering, so equal content always hashes equal.
package hash

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Bytes computes the xxHash64 of data.
func Bytes(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// String computes the xxHash64 of data.
func String(data string) uint64 {
	return xxhash.Sum64String(data)
}

// Int hashes the canonical decimal rendering of v, which equals Bytes of the
// same digits.
func Int(v int64) uint64 {
	var buf [20]byte

	return xxhash.Sum64(strconv.AppendInt(buf[:0], v, 10))
}
