package cell

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arloliu/kvcore/alloc"
	"github.com/arloliu/kvcore/errs"
	"github.com/arloliu/kvcore/format"
	"github.com/arloliu/kvcore/internal/hash"
)

func newTestEnv(t *testing.T, opts ...EnvOption) (*Env, *alloc.Heap) {
	t.Helper()

	heap, err := alloc.New(alloc.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	opts = append([]EnvOption{WithLogger(zaptest.NewLogger(t))}, opts...)
	env, err := NewEnv(heap, opts...)
	require.NoError(t, err)

	return env, heap
}

func binaryValue(n int, seed int64) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	b[0] = 0xFF

	return b
}

func TestSetString_EncodingPolicy(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  format.Encoding
	}{
		{"empty", "", format.EncodingInlineRaw},
		{"zero", "0", format.EncodingSmallInt},
		{"positive", "42", format.EncodingSmallInt},
		{"negative", "-17", format.EncodingSmallInt},
		{"min int64", "-9223372036854775808", format.EncodingSmallInt},
		{"max int64", "9223372036854775807", format.EncodingSmallInt},
		{"overflow", "9223372036854775808", format.EncodingInlineRaw},
		{"leading zero", "007", format.EncodingInlineRaw},
		{"negative zero", "-0", format.EncodingInlineRaw},
		{"plus sign", "+1", format.EncodingInlineRaw},
		{"short text", "hello", format.EncodingInlineRaw},
		{"raw limit", strings.Repeat("a", MaxInlineLen), format.EncodingInlineRaw},
		{"packed 21", strings.Repeat("b", MaxInlineLen+1), format.EncodingInlinePacked},
		{"packed limit", "the quick brown fox ju", format.EncodingInlinePacked},
		{"over packed limit", "the quick brown fox jum", format.EncodingHeap},
		{"non-ascii 21", "\xffbcdefghijklmnopqrstu", format.EncodingHeap},
		{"25 bytes", "abcdefghijklmnopqrstuvwxy", format.EncodingHeap},
	}

	env, _ := newTestEnv(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Cell
			defer c.Reset(env)

			require.NoError(t, c.SetString(env, []byte(tt.value), NoExpiry))
			require.Equal(t, tt.want, c.Encoding())
			require.Equal(t, len(tt.value), c.Size())
			require.Equal(t, tt.value, c.GetString(env))
			require.Equal(t, tt.value, string(c.AppendTo(env, nil)))
			require.True(t, c.EqualBytes(env, []byte(tt.value)))
			require.False(t, c.EqualBytes(env, []byte(tt.value+"!")))
			require.Equal(t, hash.String(tt.value), c.HashCode(env))
			require.Equal(t, format.ObjString, c.ObjType())
			require.Equal(t, tt.want != format.EncodingHeap, c.IsInline())
		})
	}
}

func TestSetString_SmallIntValue(t *testing.T) {
	env, _ := newTestEnv(t)

	var c Cell
	require.NoError(t, c.SetString(env, []byte("-123"), NoExpiry))

	v, ok := c.Int()
	require.True(t, ok)
	require.Equal(t, int64(-123), v)
	require.Equal(t, 4, c.Size())

	c.SetInt(env, 1<<40)
	require.Equal(t, "1099511627776", c.GetString(env))

	require.NoError(t, c.SetString(env, []byte("text"), NoExpiry))
	_, ok = c.Int()
	require.False(t, ok)
}

func TestSetString_TTLUnsupported(t *testing.T) {
	env, _ := newTestEnv(t)

	var c Cell
	require.NoError(t, c.SetString(env, []byte("keep"), NoExpiry))

	err := c.SetString(env, []byte("replace"), 3600)
	require.ErrorIs(t, err, errs.ErrUnsupported)
	require.Equal(t, "keep", c.GetString(env))
}

func TestZeroCell(t *testing.T) {
	env, _ := newTestEnv(t)

	var c Cell
	require.Equal(t, format.EncodingInlineRaw, c.Encoding())
	require.Zero(t, c.Size())
	require.Empty(t, c.GetString(env))
	require.Equal(t, hash.Bytes(nil), c.HashCode(env))
	require.Zero(t, c.MallocUsed(env))
	c.Reset(env)
}

func TestCellFootprint(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("footprint is pinned for 64-bit platforms")
	}

	require.Equal(t, uintptr(32), unsafe.Sizeof(Cell{}))
}

func TestEqual_AcrossEncodings(t *testing.T) {
	env, _ := newTestEnv(t)

	pairs := []string{
		"0",
		"-9223372036854775808",
		"hello",
		"the quick brown fox ju",
		"abcdefghijklmnopqrstuvwxy",
	}

	for _, value := range pairs {
		var converted, verbatim Cell
		require.NoError(t, converted.SetString(env, []byte(value), NoExpiry))
		require.NoError(t, verbatim.SetStringVerbatim(env, []byte(value)))

		require.True(t, converted.Equal(env, &verbatim), value)
		require.True(t, verbatim.Equal(env, &converted), value)
		require.Equal(t, converted.HashCode(env), verbatim.HashCode(env), value)

		converted.Reset(env)
		verbatim.Reset(env)
	}
}

func TestEqual_Mismatch(t *testing.T) {
	env, _ := newTestEnv(t)

	var a, b Cell
	require.NoError(t, a.SetString(env, []byte("42"), NoExpiry))
	require.NoError(t, b.SetString(env, []byte("43"), NoExpiry))
	require.False(t, a.Equal(env, &b))

	require.NoError(t, a.SetString(env, []byte("the quick brown fox ju"), NoExpiry))
	require.NoError(t, b.SetString(env, []byte("the quick brown fox jv"), NoExpiry))
	require.False(t, a.Equal(env, &b))

	require.NoError(t, b.SetString(env, []byte("12"), NoExpiry))
	require.False(t, a.Equal(env, &b))

	// Same length, raw against int.
	require.NoError(t, a.SetString(env, []byte("aa"), NoExpiry))
	require.False(t, a.Equal(env, &b))
}

func TestSetStringVerbatim(t *testing.T) {
	env, _ := newTestEnv(t)

	var c Cell
	require.NoError(t, c.SetStringVerbatim(env, []byte("42")))
	require.Equal(t, format.EncodingInlineRaw, c.Encoding())

	require.NoError(t, c.SetStringVerbatim(env, []byte("the quick brown fox ju")))
	require.Equal(t, format.EncodingHeap, c.Encoding())
	require.Equal(t, "the quick brown fox ju", c.GetString(env))
	c.Reset(env)
}

func TestFlags(t *testing.T) {
	env, _ := newTestEnv(t)

	var c Cell
	c.SetExpire(true)
	c.SetFlag(FlagAux, true)

	require.NoError(t, c.SetString(env, []byte("abcdefghijklmnopqrstuvwxy"), NoExpiry))
	require.True(t, c.HasExpire())
	require.True(t, c.HasFlag(FlagAux))

	c.SetInt(env, 7)
	require.True(t, c.HasFlag(FlagExpire|FlagAux))

	c.SetFlag(FlagAux, false)
	require.True(t, c.HasExpire())
	require.False(t, c.HasFlag(FlagAux))

	c.Reset(env)
	require.False(t, c.HasExpire())
}

func TestHeapLifecycle(t *testing.T) {
	env, heap := newTestEnv(t)

	value := []byte(strings.Repeat("x", 100))

	var c Cell
	require.NoError(t, c.SetString(env, value, NoExpiry))
	require.Equal(t, int64(1), heap.Stats().LiveBlocks)
	require.Equal(t, alloc.ClassSize(len(value)), c.MallocUsed(env))

	// Overwriting a heap value with a bigger one frees the old block.
	require.NoError(t, c.SetString(env, bytes.Repeat(value, 3), NoExpiry))
	require.Equal(t, int64(1), heap.Stats().LiveBlocks)
	require.Equal(t, alloc.ClassSize(3*len(value)), c.MallocUsed(env))

	require.NoError(t, c.SetString(env, []byte("tiny"), NoExpiry))
	require.Zero(t, heap.Stats().LiveBlocks)
	require.Zero(t, c.MallocUsed(env))

	require.NoError(t, c.SetString(env, value, NoExpiry))
	c.Reset(env)
	require.Zero(t, heap.Stats().LiveBlocks)
	require.Zero(t, heap.Stats().AllocatedBytes)
}

func TestSetString_SelfAlias(t *testing.T) {
	env, _ := newTestEnv(t)

	var c Cell
	value := strings.Repeat("alias", 20)
	require.NoError(t, c.SetString(env, []byte(value), NoExpiry))

	// The view points into the block the cell is about to replace.
	view := c.GetSlice(env, nil)
	require.NoError(t, c.SetString(env, view[:50], NoExpiry))
	require.Equal(t, value[:50], c.GetString(env))

	require.NoError(t, c.SetString(env, []byte("short"), NoExpiry))
	require.NoError(t, c.SetString(env, c.GetSlice(env, nil)[1:], NoExpiry))
	require.Equal(t, "hort", c.GetString(env))
	c.Reset(env)
}

func TestSetString_AllocFailureKeepsValue(t *testing.T) {
	heap, err := alloc.New(alloc.WithLimit(alloc.DefaultPageSize))
	require.NoError(t, err)
	env, err := NewEnv(heap)
	require.NoError(t, err)

	var c Cell
	require.NoError(t, c.SetString(env, []byte("hello"), NoExpiry))

	err = c.SetString(env, binaryValue(2*alloc.DefaultPageSize, 1), NoExpiry)
	require.ErrorIs(t, err, errs.ErrOutOfMemory)
	require.Equal(t, "hello", c.GetString(env))
}

func TestGetSlice(t *testing.T) {
	env, _ := newTestEnv(t)

	var c Cell
	require.NoError(t, c.SetString(env, []byte("the quick brown fox ju"), NoExpiry))

	scratch := make([]byte, 0, 64)
	out := c.GetSlice(env, scratch)
	require.Equal(t, "the quick brown fox ju", string(out))
	require.Equal(t, &scratch[:1][0], &out[0], "packed values decode into scratch")

	c.SetInt(env, 99)
	require.Equal(t, "99", string(c.GetSlice(env, nil)))
}

func TestClone(t *testing.T) {
	env, heap := newTestEnv(t)

	for _, value := range []string{"12", "inline", "the quick brown fox ju", strings.Repeat("h", 300)} {
		var c Cell
		c.SetExpire(true)
		require.NoError(t, c.SetString(env, []byte(value), NoExpiry))

		clone, err := c.Clone(env)
		require.NoError(t, err)
		require.True(t, clone.Equal(env, &c))
		require.Equal(t, c.Encoding(), clone.Encoding())
		require.True(t, clone.HasExpire())

		c.Reset(env)
		require.Equal(t, value, clone.GetString(env))
		clone.Reset(env)
	}

	require.Zero(t, heap.Stats().LiveBlocks)
}

func TestParseCanonicalInt(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"0", 0, true},
		{"7", 7, true},
		{"-7", -7, true},
		{"1234567890", 1234567890, true},
		{"", 0, false},
		{"-", 0, false},
		{"-0", 0, false},
		{"00", 0, false},
		{"01", 0, false},
		{"+1", 0, false},
		{" 1", 0, false},
		{"1a", 0, false},
		{"-9223372036854775809", 0, false},
		{"123456789012345678901", 0, false},
	}

	for _, tt := range tests {
		v, ok := parseCanonicalInt([]byte(tt.in))
		require.Equal(t, tt.ok, ok, tt.in)
		require.Equal(t, tt.want, v, tt.in)
	}
}

func TestNewEnv(t *testing.T) {
	heap, err := alloc.New()
	require.NoError(t, err)

	_, err = NewEnv(nil)
	require.Error(t, err)

	_, err = NewEnv(heap, WithCompression(format.CompressionZstd, -1))
	require.ErrorIs(t, err, errs.ErrInvalidThreshold)

	_, err = NewEnv(heap, WithCompression(format.CompressionType(0x7F), 0))
	require.ErrorIs(t, err, errs.ErrInvalidCompression)

	env, err := NewEnv(heap, WithCompression(format.CompressionNone, 0))
	require.NoError(t, err)
	require.Equal(t, format.CompressionNone, env.Compression())
	require.Same(t, heap, env.Allocator())

	env, err = NewEnv(heap, WithCompression(format.CompressionS2, 128))
	require.NoError(t, err)
	require.Equal(t, format.CompressionS2, env.Compression())
}
