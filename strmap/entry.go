package strmap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/arloliu/kvcore/alloc"
	"github.com/arloliu/kvcore/endian"
	"github.com/arloliu/kvcore/errs"
	"github.com/arloliu/kvcore/internal/hash"
)

// separator follows the key bytes of every entry.
const separator = 0x00

// refSize is the width of the value reference stored after the separator.
const refSize = 8

var le = endian.GetLittleEndianEngine()

// entryLen returns the size of the key block for a field of n bytes.
func entryLen(n int) int {
	return uvarintLen(n) + n + 1 + refSize
}

func uvarintLen(n int) int {
	var tmp [binary.MaxVarintLen64]byte

	return binary.PutUvarint(tmp[:], uint64(n)) //nolint:gosec
}

// writeEntry lays out a key block:
//
//	[uvarint len][field][0x00][value ref, 8 bytes little-endian]
func writeEntry(dst, field []byte, value alloc.Ref) {
	off := binary.PutUvarint(dst, uint64(len(field)))
	off += copy(dst[off:], field)
	dst[off] = separator
	le.PutUint64(dst[off+1:], uint64(value))
}

// writeValue lays out a value block: [uvarint len][value].
func writeValue(dst, value []byte) {
	off := binary.PutUvarint(dst, uint64(len(value)))
	copy(dst[off:], value)
}

// lengthPrefixed returns the payload of a uvarint length-prefixed block and
// the offset just past it.
func lengthPrefixed(blk []byte) ([]byte, int) {
	n, w := binary.Uvarint(blk)
	if w <= 0 || uint64(len(blk)-w) < n {
		panic(fmt.Errorf("%w: bad length header in block of %d bytes", errs.ErrCorruptPayload, len(blk)))
	}
	end := w + int(n) //nolint:gosec

	return blk[w:end], end
}

// policy implements denseset.Policy over key block references, probing with
// the raw field bytes.
type policy struct {
	heap alloc.Allocator
}

func (p policy) key(e alloc.Ref) []byte {
	key, _ := lengthPrefixed(p.heap.Bytes(e))
	return key
}

func (p policy) valueRef(e alloc.Ref) alloc.Ref {
	blk := p.heap.Bytes(e)
	_, end := lengthPrefixed(blk)

	return alloc.Ref(le.Uint64(blk[end+1:]))
}

func (p policy) setValueRef(e, value alloc.Ref) {
	blk := p.heap.Bytes(e)
	_, end := lengthPrefixed(blk)
	le.PutUint64(blk[end+1:], uint64(value))
}

func (p policy) value(e alloc.Ref) []byte {
	v, _ := lengthPrefixed(p.heap.Bytes(p.valueRef(e)))
	return v
}

func (p policy) Hash(e alloc.Ref) uint64 { return hash.Bytes(p.key(e)) }
func (p policy) HashKey(field []byte) uint64 { return hash.Bytes(field) }
func (p policy) Equal(a, b alloc.Ref) bool { return bytes.Equal(p.key(a), p.key(b)) }
func (p policy) EqualKey(e alloc.Ref, f []byte) bool { return bytes.Equal(p.key(e), f) }

// AllocSize is the usable size of the key block plus the value block.
func (p policy) AllocSize(e alloc.Ref) int {
	return p.heap.UsableSize(e) + p.heap.UsableSize(p.valueRef(e))
}

// ExpireTime always fails: map entries carry no expiry.
func (p policy) ExpireTime(alloc.Ref) (uint32, error) {
	return 0, fmt.Errorf("%w: field expiry", errs.ErrUnsupported)
}

// Delete frees the value block, then the key block.
func (p policy) Delete(e alloc.Ref) {
	p.heap.Free(p.valueRef(e))
	p.heap.Free(e)
}
