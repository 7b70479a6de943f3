// Package bitpack packs 7-bit ASCII text at 7 bits per byte.
//
// Every group of 8 input bytes becomes 7 output bytes: the most significant
// bit of each input byte is dropped and the remaining 56 bits are laid out
// contiguously, little-endian. A trailing group shorter than 8 bytes is copied
// through unchanged. The packed length for n input bytes is therefore
//
//	7*(n/8) + n%8 == (7*n + 7) / 8
//
// which is what PackedLen returns. The packed form is not self-describing:
// the decoded length must be stored next to it.
//
// # Usage
//
//	if bitpack.Validate(value) {
//	    packed := bitpack.AppendPack(nil, value)
//	    ...
//	    original := bitpack.AppendUnpack(nil, packed, len(value))
//	}
//
// Equality against raw bytes does not need an unpacked copy:
//
//	equal := bitpack.ComparePacked(packed, candidate)
//
// # Kernels
//
// Two kernels implement Validate and Pack. The scalar kernel works on one
// 8-byte group at a time. The wide kernel works on two groups per iteration
// and hands the last 16..31 bytes to the scalar kernel, so both always produce
// identical bytes. Both kernels are plain Go working on uint64 lanes (SWAR);
// the wide kernel gains from issuing the two independent lanes in parallel,
// not from vector instructions. It is selected at init on amd64 and arm64,
// where the SSE2 and ASIMD checks are baseline probes that always succeed on
// real hardware; other architectures use the scalar kernel. Set
// KVCORE_ASCII_KERNEL to "scalar" or "wide" to override the selection.
//
// # Thread Safety
//
// All functions are pure and safe for concurrent use.
package bitpack
