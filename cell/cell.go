package cell

import (
	"bytes"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/arloliu/kvcore/alloc"
	"github.com/arloliu/kvcore/bitpack"
	"github.com/arloliu/kvcore/compress"
	"github.com/arloliu/kvcore/endian"
	"github.com/arloliu/kvcore/errs"
	"github.com/arloliu/kvcore/format"
	"github.com/arloliu/kvcore/internal/hash"
	"github.com/arloliu/kvcore/internal/pool"
)

const (
	// NoExpiry is the only TTL SetString accepts.
	NoExpiry = format.NoExpiry

	// MaxInlineLen is the longest value stored verbatim inside the cell.
	MaxInlineLen = 20

	// MaxPackedLen is the longest ASCII value stored packed inside the cell.
	MaxPackedLen = 22

	// MaxValueLen is the longest value a cell can hold.
	MaxValueLen = math.MaxUint32
)

const (
	// FlagExpire marks a cell whose key carries an expiry elsewhere.
	FlagExpire uint8 = 1 << iota
	// FlagAux is free for the caller's own use.
	FlagAux
)

// heap payload fields inside Cell.buf
const (
	heapRefOff    = 0
	heapLenOff    = 8
	heapStoredOff = 12
)

var le = endian.GetLittleEndianEngine()

// Cell holds one value in the most compact encoding available. The zero Cell
// holds the empty string.
type Cell struct {
	buf   [MaxInlineLen]byte
	tag   format.Encoding
	flags uint8
	// n is the inline length for InlineRaw and InlinePacked cells and the
	// object type for Rich cells.
	n uint8
	// aux is the compression type of Heap cells and the cached container
	// encoding of Rich cells.
	aux uint8
	// rich is a pointer rather than an Object interface so scalar cells pay
	// 8 bytes for it instead of 16.
	rich *richHandle
}

// payload is what a cell owned before a mutation replaced it.
type payload struct {
	tag  format.Encoding
	ref  alloc.Ref
	rich Object
}

// Encoding returns the current encoding.
func (c *Cell) Encoding() format.Encoding {
	if c.tag == 0 {
		return format.EncodingInlineRaw
	}

	return c.tag
}

// IsInline reports whether the value lives entirely inside the cell.
func (c *Cell) IsInline() bool {
	switch c.Encoding() {
	case format.EncodingSmallInt, format.EncodingInlineRaw, format.EncodingInlinePacked:
		return true
	default:
		return false
	}
}

// ObjType returns ObjString for scalar cells and the imported type for rich
// cells.
func (c *Cell) ObjType() format.ObjType {
	if c.tag == format.EncodingRich {
		return format.ObjType(c.n)
	}

	return format.ObjString
}

// HasFlag reports whether every bit in f is set.
func (c *Cell) HasFlag(f uint8) bool { return c.flags&f == f }

// SetFlag sets or clears the bits in f.
func (c *Cell) SetFlag(f uint8, on bool) {
	if on {
		c.flags |= f
	} else {
		c.flags &^= f
	}
}

// HasExpire reports whether FlagExpire is set.
func (c *Cell) HasExpire() bool { return c.HasFlag(FlagExpire) }

// SetExpire sets or clears FlagExpire.
func (c *Cell) SetExpire(on bool) { c.SetFlag(FlagExpire, on) }

// SetString stores value, choosing the encoding by content:
//
//  1. a canonical decimal int64 becomes SmallInt
//  2. up to MaxInlineLen bytes are stored verbatim inline
//  3. up to MaxPackedLen 7-bit ASCII bytes are packed inline
//  4. everything else goes to the heap, compressed when the Env enables it
//     and the compressed form is smaller
//
// ttl must be NoExpiry. On error the cell keeps its previous value.
func (c *Cell) SetString(env *Env, value []byte, ttl uint32) error {
	if ttl != NoExpiry {
		return fmt.Errorf("%w: ttl %d", errs.ErrUnsupported, ttl)
	}

	if v, ok := parseCanonicalInt(value); ok {
		c.SetInt(env, v)
		return nil
	}

	return c.setBytes(env, value, true)
}

// SetStringVerbatim stores value without integer or packed conversion and
// without compression: inline when it fits, on the heap otherwise.
func (c *Cell) SetStringVerbatim(env *Env, value []byte) error {
	return c.setBytes(env, value, false)
}

// SetInt stores v as SmallInt.
func (c *Cell) SetInt(env *Env, v int64) {
	old := c.detach()
	c.buf = [MaxInlineLen]byte{}
	le.PutUint64(c.buf[:8], uint64(v))
	c.tag = format.EncodingSmallInt
	c.n, c.aux = 0, 0
	env.release(old)
}

// Int returns the integer of a SmallInt cell.
func (c *Cell) Int() (int64, bool) {
	if c.tag != format.EncodingSmallInt {
		return 0, false
	}

	return int64(le.Uint64(c.buf[:8])), true
}

func (c *Cell) setBytes(env *Env, value []byte, convert bool) error {
	if uint64(len(value)) > MaxValueLen {
		return fmt.Errorf("%w: value of %d bytes", errs.ErrUnsupported, len(value))
	}

	switch {
	case len(value) <= MaxInlineLen:
		old := c.detach()
		copy(c.buf[:], value)
		c.tag = format.EncodingInlineRaw
		c.n = uint8(len(value)) //nolint:gosec
		c.aux = 0
		env.release(old)

		return nil

	case convert && len(value) <= MaxPackedLen && bitpack.Validate(value):
		old := c.detach()
		c.buf = [MaxInlineLen]byte{}
		bitpack.Pack(c.buf[:], value)
		c.tag = format.EncodingInlinePacked
		c.n = uint8(len(value)) //nolint:gosec
		c.aux = 0
		env.release(old)

		return nil
	}

	stored, ct := value, format.CompressionNone
	if convert {
		stored, ct = env.maybeCompress(value)
	}

	ref, blk, err := env.heap.Alloc(len(stored))
	if err != nil {
		return err
	}
	copy(blk, stored)

	old := c.detach()
	c.setHeap(ref, len(value), len(stored), ct)
	env.release(old)

	return nil
}

func (c *Cell) setHeap(ref alloc.Ref, n, stored int, ct format.CompressionType) {
	c.buf = [MaxInlineLen]byte{}
	le.PutUint64(c.buf[heapRefOff:], uint64(ref))
	le.PutUint32(c.buf[heapLenOff:], uint32(n))         //nolint:gosec
	le.PutUint32(c.buf[heapStoredOff:], uint32(stored)) //nolint:gosec
	c.tag = format.EncodingHeap
	c.n = 0
	c.aux = uint8(ct)
}

func (c *Cell) heapRef() alloc.Ref { return alloc.Ref(le.Uint64(c.buf[heapRefOff:])) }
func (c *Cell) heapLen() int { return int(le.Uint32(c.buf[heapLenOff:])) }
func (c *Cell) heapStoredLen() int { return int(le.Uint32(c.buf[heapStoredOff:])) }
func (c *Cell) compressed() bool { return format.CompressionType(c.aux) != format.CompressionNone }
func (c *Cell) packedBytes() []byte { return c.buf[:bitpack.PackedLen(int(c.n))] }

// detach hands back the owned payload so it can be released after the new
// value is in place.
func (c *Cell) detach() payload {
	p := payload{tag: c.tag}
	switch c.tag {
	case format.EncodingHeap:
		p.ref = c.heapRef()
	case format.EncodingRich:
		p.rich = c.rich.obj
		c.rich = nil
	}

	return p
}

// Reset releases the payload and returns the cell to the zero value.
func (c *Cell) Reset(env *Env) {
	old := c.detach()
	*c = Cell{}
	env.release(old)
}

// Size returns the decoded length for strings (digit count for SmallInt) and
// the element count for rich containers.
func (c *Cell) Size() int {
	switch c.Encoding() {
	case format.EncodingSmallInt:
		v, _ := c.Int()
		return decimalLen(v)
	case format.EncodingInlineRaw, format.EncodingInlinePacked:
		return int(c.n)
	case format.EncodingHeap:
		return c.heapLen()
	case format.EncodingRich:
		return c.rich.obj.Size()
	}

	return 0
}

// GetSlice returns the decoded value. InlineRaw and uncompressed Heap values
// are returned as views into cell or allocator memory that stay valid until
// the next mutation; other encodings are decoded into scratch, which is
// grown as needed. Rich cells return nil.
func (c *Cell) GetSlice(env *Env, scratch []byte) []byte {
	switch c.Encoding() {
	case format.EncodingInlineRaw:
		return c.buf[:c.n]
	case format.EncodingHeap:
		if !c.compressed() {
			return env.heap.Bytes(c.heapRef())[:c.heapLen()]
		}
	case format.EncodingRich:
		return nil
	}

	return c.AppendTo(env, scratch[:0])
}

// AppendTo appends the decoded value to dst. Rich cells append nothing.
func (c *Cell) AppendTo(env *Env, dst []byte) []byte {
	switch c.Encoding() {
	case format.EncodingSmallInt:
		v, _ := c.Int()
		return appendInt(dst, v)
	case format.EncodingInlineRaw:
		return append(dst, c.buf[:c.n]...)
	case format.EncodingInlinePacked:
		return bitpack.AppendUnpack(dst, c.packedBytes(), int(c.n))
	case format.EncodingHeap:
		return env.appendHeap(dst, c)
	}

	return dst
}

// GetString returns a copy of the decoded value.
func (c *Cell) GetString(env *Env) string {
	var stack [MaxPackedLen]byte

	return string(c.GetSlice(env, stack[:0]))
}

// HashCode hashes the decoded value, so every encoding of the same content
// hashes equal. It panics on rich cells.
func (c *Cell) HashCode(env *Env) uint64 {
	switch c.Encoding() {
	case format.EncodingSmallInt:
		v, _ := c.Int()
		return hash.Int(v)
	case format.EncodingInlineRaw:
		return hash.Bytes(c.buf[:c.n])
	case format.EncodingInlinePacked:
		var stack [MaxPackedLen]byte
		bitpack.Unpack(stack[:], c.packedBytes(), int(c.n))

		return hash.Bytes(stack[:c.n])
	case format.EncodingHeap:
		if !c.compressed() {
			return hash.Bytes(env.heap.Bytes(c.heapRef())[:c.heapLen()])
		}

		bb := pool.GetScratch()
		defer pool.PutScratch(bb)
		bb.B = env.appendHeap(bb.B[:0], c)

		return hash.Bytes(bb.B)
	}

	panic("cell: HashCode on rich cell")
}

// EqualBytes reports whether the decoded value equals b. Rich cells never
// equal a byte string.
func (c *Cell) EqualBytes(env *Env, b []byte) bool {
	if c.tag == format.EncodingRich || c.Size() != len(b) {
		return false
	}

	switch c.Encoding() {
	case format.EncodingSmallInt:
		var stack [20]byte
		v, _ := c.Int()

		return bytes.Equal(appendInt(stack[:0], v), b)
	case format.EncodingInlineRaw:
		return bytes.Equal(c.buf[:c.n], b)
	case format.EncodingInlinePacked:
		return bitpack.ComparePacked(c.packedBytes(), b)
	case format.EncodingHeap:
		if !c.compressed() {
			return bytes.Equal(env.heap.Bytes(c.heapRef())[:c.heapLen()], b)
		}

		bb := pool.GetScratch()
		defer pool.PutScratch(bb)
		bb.B = env.appendHeap(bb.B[:0], c)

		return bytes.Equal(bb.B, b)
	}

	return false
}

// Equal compares two cells by decoded content. Rich cells are equal only to
// a cell holding the same object.
func (c *Cell) Equal(env *Env, o *Cell) bool {
	if c.tag == format.EncodingRich || o.tag == format.EncodingRich {
		return c.tag == o.tag && c.rich.obj == o.rich.obj
	}

	if c.Size() != o.Size() {
		return false
	}

	ce, oe := c.Encoding(), o.Encoding()
	switch {
	case ce == format.EncodingSmallInt && oe == format.EncodingSmallInt:
		a, _ := c.Int()
		b, _ := o.Int()

		return a == b
	case ce == format.EncodingInlinePacked && oe == format.EncodingInlinePacked:
		return bytes.Equal(c.packedBytes(), o.packedBytes())
	}

	// Decode whichever side is cheaper to view and compare the other to it.
	if ce == format.EncodingInlinePacked || ce == format.EncodingSmallInt {
		c, o = o, c
	}

	if c.Encoding() == format.EncodingHeap && c.compressed() {
		bb := pool.GetScratch()
		defer pool.PutScratch(bb)
		bb.B = env.appendHeap(bb.B[:0], c)

		return o.EqualBytes(env, bb.B)
	}

	var stack [MaxPackedLen]byte

	return o.EqualBytes(env, c.GetSlice(env, stack[:0]))
}

// MallocUsed returns the allocator bytes owned by the cell: the usable size
// of the heap block, the object's own report for rich cells, zero otherwise.
func (c *Cell) MallocUsed(env *Env) int {
	switch c.tag {
	case format.EncodingHeap:
		return env.heap.UsableSize(c.heapRef())
	case format.EncodingRich:
		return c.rich.obj.MallocUsed()
	}

	return 0
}

// Clone returns an independent copy. Heap payloads are duplicated; rich
// containers cannot be cloned and return ErrUnsupported.
func (c *Cell) Clone(env *Env) (Cell, error) {
	switch c.tag {
	case format.EncodingRich:
		return Cell{}, fmt.Errorf("%w: clone of %s cell", errs.ErrUnsupported, c.ObjType())
	case format.EncodingHeap:
		stored := c.heapStoredLen()
		ref, blk, err := env.heap.Alloc(stored)
		if err != nil {
			return Cell{}, err
		}
		copy(blk, env.heap.Bytes(c.heapRef())[:stored])

		out := *c
		out.setHeap(ref, c.heapLen(), stored, format.CompressionType(c.aux))

		return out, nil
	}

	return *c, nil
}

func (e *Env) maybeCompress(value []byte) ([]byte, format.CompressionType) {
	if e.codec == nil || len(value) < e.minCompress {
		return value, format.CompressionNone
	}

	out, err := e.codec.Compress(value)
	if err != nil || len(out) >= len(value) {
		e.logger.Debug("storing value uncompressed",
			zap.Int("size", len(value)), zap.Int("compressed", len(out)), zap.Error(err))

		return value, format.CompressionNone
	}

	return out, e.codec.Type()
}

// appendHeap appends the decoded heap payload of c to dst. A compressed
// payload that fails to decode to its recorded length means the allocator
// memory was corrupted, which is not recoverable.
func (e *Env) appendHeap(dst []byte, c *Cell) []byte {
	stored := e.heap.Bytes(c.heapRef())[:c.heapStoredLen()]
	if !c.compressed() {
		return append(dst, stored...)
	}

	codec := compress.MustGetCodec(format.CompressionType(c.aux))
	base := len(dst)
	out, err := codec.Decompress(dst[base:], stored, c.heapLen())
	if err != nil {
		panic(fmt.Errorf("payload of %s: %w", c.heapRef(), err))
	}

	if base == 0 {
		return out
	}

	return append(dst[:base], out...)
}

func (e *Env) release(p payload) {
	switch p.tag {
	case format.EncodingHeap:
		e.heap.Free(p.ref)
	case format.EncodingRich:
		if r, ok := p.rich.(Releaser); ok {
			r.Release()
		}
	}
}
