// Package cell implements Cell, the compact holder for one stored value.
//
// A Cell keeps a value in the smallest of five encodings:
//
//   - SmallInt: the value is a canonical decimal int64 ("42", "-7", not
//     "042" or "+1") and is stored as 8 bytes inside the cell
//   - InlineRaw: up to MaxInlineLen bytes stored verbatim inside the cell
//   - InlinePacked: up to MaxPackedLen 7-bit ASCII bytes packed at 7 bits
//     per byte (see package bitpack) inside the cell
//   - Heap: anything else, copied into a block obtained from an
//     alloc.Allocator, optionally compressed
//   - Rich: an externally built container (set, hash, sorted set, stream)
//     that the cell takes ownership of
//
// The encoding is an internal detail. Size, HashCode and equality are computed
// over decoded content, so "0" stored as SmallInt and "0" stored verbatim are
// equal and hash equal.
//
// # Environment
//
// Operations that allocate, free or read allocator memory take an *Env, which
// carries the allocator, the optional compression codec and the logger. There
// is no package-level state; every shard passes its own Env.
//
//	heap, _ := alloc.New()
//	env, _ := cell.NewEnv(heap)
//
//	var c cell.Cell
//	if err := c.SetString(env, []byte("value"), cell.NoExpiry); err != nil {
//	    return err
//	}
//	fmt.Println(string(c.GetSlice(env, nil)))
//	c.Reset(env)
//
// # Layout
//
// The cell's inline area is MaxInlineLen bytes. For Heap cells it holds the
// allocator reference (8 bytes), the decoded length and the stored length
// (4 bytes each, little-endian); compressed payloads record their codec in the
// cell as well. On 64-bit platforms a Cell is 32 bytes: the inline area, one
// byte each for encoding, flags, length and codec, and a pointer that only
// Rich cells set. A Cell must not be copied by value while it owns a Heap or
// Rich payload: both copies would free the same resources. Use Clone.
//
// # Concurrency
//
// Cells do no locking. Mutating calls (SetString, SetInt, ImportRich, Reset,
// DefragIfNeeded) need exclusive access for their duration; read-only calls
// may run concurrently with each other.
package cell
