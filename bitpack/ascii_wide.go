package bitpack

import "github.com/arloliu/kvcore/endian"

const (
	wideLen = 2 * groupLen

	// wideMargin is how far before the end of the input the wide pack loop
	// stops. Each iteration stores 15 bytes for 14 bytes of output, and the
	// margin keeps those stores inside the packed length.
	wideMargin = 32
)

// validateWide ORs two 8-byte lanes per 16-byte block and finishes the
// remainder with the scalar routine.
func validateWide(b []byte) bool {
	var lo, hi uint64
	for len(b) >= wideLen {
		lo |= endian.Load64(b)
		hi |= endian.Load64(b[groupLen:])
		b = b[wideLen:]
	}

	return (lo|hi)&highBits == 0 && validateScalar(b)
}

// packWide packs two groups per iteration while at least wideMargin input
// bytes remain, then finishes with packScalar. The output is byte-for-byte
// what packScalar alone produces.
func packWide(dst, src []byte) bool {
	var hiBits uint64

	for len(src) >= wideMargin {
		v0 := endian.Load64(src)
		v1 := endian.Load64(src[groupLen:])
		hiBits |= (v0 | v1) & highBits

		d0 := packLanes(v0)
		d1 := packLanes(v1)

		// The second store overwrites the zero top byte of the first.
		endian.Store64(dst, d0)
		endian.Store64(dst[packedLen:], d1)

		dst = dst[2*packedLen:]
		src = src[wideLen:]
	}

	return packScalar(dst, src) || hiBits != 0
}

// packLanes is packGroup with the shift sequence unrolled.
func packLanes(v uint64) uint64 {
	return v&0x7F |
		(v>>1)&(0x7F<<7) |
		(v>>2)&(0x7F<<14) |
		(v>>3)&(0x7F<<21) |
		(v>>4)&(0x7F<<28) |
		(v>>5)&(0x7F<<35) |
		(v>>6)&(0x7F<<42) |
		(v>>7)&(0x7F<<49)
}
