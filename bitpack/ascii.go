package bitpack

import (
	"fmt"

	"github.com/arloliu/kvcore/endian"
	"github.com/arloliu/kvcore/errs"
)

const (
	groupLen  = 8
	packedLen = 7

	lowMask7 = 0x7F
	highBits = 0x8080808080808080
)

// PackedLen returns the number of bytes Pack writes for n input bytes.
func PackedLen(n int) int {
	return (n*7 + 7) / 8
}

// Validate reports whether every byte of b has its high bit cleared.
//
// The whole input is always scanned.
func Validate(b []byte) bool {
	return activeValidate(b)
}

// Pack packs src into dst and returns the number of bytes written.
//
// src must be 7-bit clean and dst must hold at least PackedLen(len(src))
// bytes. Pack panics if either precondition is violated; use PackChecked to
// get an error for non-ASCII input instead.
func Pack(dst, src []byte) int {
	n := PackedLen(len(src))
	if len(dst) < n {
		panic(fmt.Sprintf("bitpack: dst length %d is smaller than packed length %d", len(dst), n))
	}

	if activePack(dst, src) {
		panic("bitpack: Pack called with non-ASCII input")
	}

	return n
}

// PackChecked is like Pack but returns errs.ErrNotASCII when src is not 7-bit
// clean. dst is left untouched in that case.
func PackChecked(dst, src []byte) (int, error) {
	if !Validate(src) {
		return 0, errs.ErrNotASCII
	}

	return Pack(dst, src), nil
}

// AppendPack appends the packed form of src to dst.
func AppendPack(dst, src []byte) []byte {
	start := len(dst)
	dst = grow(dst, PackedLen(len(src)))
	Pack(dst[start:], src)

	return dst
}

// Unpack decodes n original bytes from packed into dst.
//
// dst must hold at least n bytes and packed must be exactly PackedLen(n)
// bytes long. dst must not overlap packed, except in the right-aligned
// arrangement handled by UnpackInPlace.
func Unpack(dst, packed []byte, n int) {
	if len(dst) < n {
		panic(fmt.Sprintf("bitpack: dst length %d is smaller than decoded length %d", len(dst), n))
	}
	if len(packed) != PackedLen(n) {
		panic(fmt.Sprintf("bitpack: packed length %d does not match decoded length %d", len(packed), n))
	}

	unpack(dst, packed, n)
}

// AppendUnpack appends the n decoded bytes of packed to dst.
func AppendUnpack(dst, packed []byte, n int) []byte {
	start := len(dst)
	dst = grow(dst, n)
	Unpack(dst[start:], packed, n)

	return dst
}

// UnpackInPlace decodes a packed payload stored right-aligned in buf.
//
// buf must be exactly n bytes long with the packed bytes occupying
// buf[n-PackedLen(n):]. After the call buf holds the n decoded bytes. Each
// 8-byte output group ends no later than the start of the next unread packed
// group, so no input is overwritten before it is read.
func UnpackInPlace(buf []byte, n int) {
	if len(buf) != n {
		panic(fmt.Sprintf("bitpack: in-place buffer length %d does not match decoded length %d", len(buf), n))
	}

	unpack(buf, buf[n-PackedLen(n):], n)
}

// ComparePacked reports whether packed is the packed form of raw.
//
// Each packed byte is recomputed from raw and compared, returning on the
// first mismatching group; no unpacked copy is allocated.
func ComparePacked(packed, raw []byte) bool {
	if len(packed) != PackedLen(len(raw)) {
		return false
	}

	// A byte with the high bit set can alias a valid packed byte, and packed
	// payloads only ever hold ASCII.
	var seen byte
	for len(raw) >= groupLen {
		var diff byte
		for i := range packedLen {
			conv := (raw[i] >> i) | (raw[i+1] << (7 - i))
			diff |= conv ^ packed[i]
			seen |= raw[i]
		}
		seen |= raw[packedLen]
		if diff != 0 || seen&0x80 != 0 {
			return false
		}

		raw = raw[groupLen:]
		packed = packed[packedLen:]
	}

	for i := range raw {
		if raw[i] != packed[i] || raw[i]&0x80 != 0 {
			return false
		}
	}

	return true
}

// unpack is the single unpack routine; it reads a whole packed group before
// writing the corresponding output group so that UnpackInPlace stays correct.
func unpack(dst, packed []byte, n int) {
	for n >= groupLen {
		v := uint64(packed[0]) | uint64(packed[1])<<8 | uint64(packed[2])<<16 |
			uint64(packed[3])<<24 | uint64(packed[4])<<32 | uint64(packed[5])<<40 |
			uint64(packed[6])<<48

		_ = dst[7]
		for i := range groupLen {
			dst[i] = byte(v>>(7*i)) & lowMask7
		}

		dst = dst[groupLen:]
		packed = packed[packedLen:]
		n -= groupLen
	}

	copy(dst[:n], packed[:n])
}

// packGroup packs one little-endian 8-byte group into the low 56 bits.
func packGroup(val uint64) uint64 {
	dest := val & lowMask7
	for i := 1; i <= 7; i++ {
		val >>= 1
		dest |= val & (lowMask7 << (7 * i))
	}

	return dest
}

// validateScalar ORs every byte and checks the high bit once at the end.
func validateScalar(b []byte) bool {
	var acc uint64
	for len(b) >= groupLen {
		acc |= endian.Load64(b)
		b = b[groupLen:]
	}

	var tail byte
	for _, c := range b {
		tail |= c
	}

	return acc&highBits == 0 && tail&0x80 == 0
}

// packScalar packs src into dst one group at a time and reports whether any
// high bit was seen.
func packScalar(dst, src []byte) bool {
	var hi uint64
	var word [8]byte

	for len(src) >= groupLen {
		val := endian.Load64(src)
		hi |= val & highBits

		endian.Store64(word[:], packGroup(val))
		copy(dst[:packedLen], word[:packedLen])

		dst = dst[packedLen:]
		src = src[groupLen:]
	}

	// Less than a full group remains; it is stored unpacked.
	var tail byte
	for i, c := range src {
		tail |= c
		dst[i] = c
	}

	return hi != 0 || tail&0x80 != 0
}

func grow(b []byte, n int) []byte {
	if cap(b)-len(b) >= n {
		return b[:len(b)+n]
	}

	nb := make([]byte, len(b)+n, 2*cap(b)+n)
	copy(nb, b)

	return nb
}
