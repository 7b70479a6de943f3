// Package endian provides the byte order used for every fixed-width field
// that kvcore writes into a byte buffer.
//
// In-memory layouts in this module are pinned to little-endian regardless of
// the host byte order, so a buffer dumped on one machine reads the same on
// another:
//
//	engine := endian.GetLittleEndianEngine()
//	engine.PutUint64(entry[keyLen+1:], uint64(ref))
//
// The bit-packing kernels also load 8-byte groups through the little-endian
// engine, which is what makes packed output identical across architectures.
//
// # Thread Safety
//
// All functions and methods in this package are safe for concurrent use.
// The returned EndianEngine instances are immutable and stateless.
package endian

import "encoding/binary"

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from encoding/binary
// into a single interface for convenient byte order operations.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the little-endian engine.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// Load64 reads a little-endian uint64 from the first 8 bytes of b.
func Load64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// Store64 writes v little-endian into the first 8 bytes of b.
func Store64(b []byte, v uint64) {
	binary.LittleEndian.PutUint64(b, v)
}
