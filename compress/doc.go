// Package compress provides the codecs behind the optional compressed heap
// representation of cells.
//
// Large values that do not qualify for inline or packed storage live in an
// allocator block. When a cell.Env is configured with a compression type, such
// values are compressed before they are copied into the block, and kept
// compressed only when that makes the block smaller.
//
// # Algorithms
//
//   - None: values are stored verbatim
//   - Zstd: best ratio, moderate speed (pure Go by default)
//   - S2: balanced speed and ratio
//   - LZ4: fastest decompression
//
// The pure-Go zstd implementation from klauspost/compress is used unless the
// module is built with cgo and the gozstd tag, which switches to the
// libzstd-backed valyala/gozstd.
//
// # Decoded size
//
// Every compressed payload in kvcore is stored next to its decoded length, so
// Decompress takes that length and decodes into exactly that many bytes. A
// payload that decodes to any other length is reported as
// errs.ErrCorruptPayload. Passing a dst with at least size capacity makes
// decoding allocation-free.
//
// # Thread Safety
//
// All codecs are stateless values and safe for concurrent use; encoder and
// decoder state is pooled internally.
package compress
