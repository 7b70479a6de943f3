package alloc

import (
	"math/bits"
	"testing"

	"github.com/arloliu/kvcore/errs"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// popcount returns the live slots recorded in the bitmap; it must agree with
// p.used.
func (p *page) popcount() int {
	n := 0
	for _, w := range p.inUse {
		n += bits.OnesCount64(w)
	}

	return n
}

func newTestHeap(t *testing.T, opts ...HeapOption) *Heap {
	t.Helper()

	h, err := New(opts...)
	require.NoError(t, err)

	return h
}

func TestSizeClasses(t *testing.T) {
	require.Equal(t, minClass, sizeClasses[0])
	require.Equal(t, MaxSmallSize, sizeClasses[len(sizeClasses)-1])

	for i := 1; i < len(sizeClasses); i++ {
		require.Greater(t, sizeClasses[i], sizeClasses[i-1])
		require.Zero(t, sizeClasses[i]%8)
	}

	tests := []struct {
		size int
		want int
	}{
		{0, 8},
		{1, 8},
		{8, 8},
		{9, 16},
		{64, 64},
		{65, 80},
		{129, 160},
		{MaxSmallSize, MaxSmallSize},
		{MaxSmallSize + 1, MaxSmallSize + hugeAlign},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ClassSize(tt.size), "size=%d", tt.size)
	}
}

func TestHeap_AllocFree(t *testing.T) {
	h := newTestHeap(t)

	ref, buf, err := h.Alloc(10)
	require.NoError(t, err)
	require.NotEqual(t, NilRef, ref)
	require.Len(t, buf, 10)
	require.Equal(t, 16, cap(buf))
	require.Equal(t, 16, h.UsableSize(ref))

	copy(buf, "0123456789")
	require.Equal(t, "0123456789", string(h.Bytes(ref)[:10]))

	st := h.Stats()
	require.Equal(t, int64(16), st.AllocatedBytes)
	require.Equal(t, int64(1), st.LiveBlocks)
	require.Equal(t, int64(DefaultPageSize), st.CommittedBytes)
	require.Equal(t, 1, st.Pages)

	h.Free(ref)
	st = h.Stats()
	require.Zero(t, st.AllocatedBytes)
	require.Zero(t, st.LiveBlocks)

	// Freeing NilRef is a no-op.
	h.Free(NilRef)
}

func TestHeap_AllocZero(t *testing.T) {
	h := newTestHeap(t)

	ref, buf, err := h.Alloc(0)
	require.NoError(t, err)
	require.Empty(t, buf)
	require.Equal(t, minClass, h.UsableSize(ref))
}

func TestHeap_BlocksDoNotOverlap(t *testing.T) {
	h := newTestHeap(t)

	refs := make([]Ref, 0, 100)
	for i := range 100 {
		ref, buf, err := h.Alloc(24)
		require.NoError(t, err)
		for j := range buf {
			buf[j] = byte(i)
		}
		refs = append(refs, ref)
	}

	for i, ref := range refs {
		for _, b := range h.Bytes(ref)[:24] {
			require.Equal(t, byte(i), b)
		}
	}

	// Bytes is capacity-limited to the slot.
	b := h.Bytes(refs[0])
	require.Equal(t, len(b), cap(b))
}

func TestHeap_DoubleFreePanics(t *testing.T) {
	h := newTestHeap(t)

	keep, _, err := h.Alloc(32)
	require.NoError(t, err)
	ref, _, err := h.Alloc(32)
	require.NoError(t, err)

	h.Free(ref)
	require.Panics(t, func() { h.Free(ref) })
	require.Panics(t, func() { h.Bytes(makeRef(999, 0)) })
	h.Free(keep)
}

func TestHeap_Huge(t *testing.T) {
	h := newTestHeap(t)

	ref, buf, err := h.Alloc(MaxSmallSize + 10)
	require.NoError(t, err)
	require.Len(t, buf, MaxSmallSize+10)
	require.Equal(t, MaxSmallSize+hugeAlign, h.UsableSize(ref))
	require.False(t, h.PageIsUnderutilized(ref, 0))

	pages := h.Stats().Pages
	h.Free(ref)
	require.Equal(t, pages-1, h.Stats().Pages)
	require.Zero(t, h.Stats().CommittedBytes)
}

func TestHeap_ReleasesEmptyPages(t *testing.T) {
	h := newTestHeap(t)
	perPage := DefaultPageSize / 64

	refs := make([]Ref, 0, 3*perPage)
	for range 3 * perPage {
		ref, _, err := h.Alloc(64)
		require.NoError(t, err)
		refs = append(refs, ref)
	}
	require.Equal(t, 3, h.Stats().Pages)

	// Free the first page's blocks: it is not current any more, so it goes.
	for _, ref := range refs[:perPage] {
		h.Free(ref)
	}
	require.Equal(t, 2, h.Stats().Pages)

	for _, ref := range refs[perPage:] {
		h.Free(ref)
	}
	// The current page is kept for reuse.
	require.Equal(t, 1, h.Stats().Pages)
	require.Zero(t, h.Stats().AllocatedBytes)

	for _, p := range h.pages {
		if p != nil {
			require.Equal(t, p.used, p.popcount())
		}
	}
}

func TestHeap_PageIsUnderutilized(t *testing.T) {
	h := newTestHeap(t)
	perPage := DefaultPageSize / 64

	first, _, err := h.Alloc(64)
	require.NoError(t, err)

	// Fresh block on the current page is never reported.
	require.False(t, h.PageIsUnderutilized(first, 0))
	require.False(t, h.PageIsUnderutilized(first, 1))

	fillers := make([]Ref, 0, perPage)
	for range perPage {
		ref, _, err := h.Alloc(64)
		require.NoError(t, err)
		fillers = append(fillers, ref)
	}

	// The first page is full and no longer current.
	require.False(t, h.PageIsUnderutilized(first, 0))

	firstPage := first.pageID()
	freed := 0
	for i, ref := range fillers {
		if ref.pageID() == firstPage && i%2 == 0 {
			h.Free(ref)
			freed++
		}
	}
	require.Positive(t, freed)

	require.True(t, h.PageIsUnderutilized(first, 0))
	require.True(t, h.PageIsUnderutilized(first, 0.25))
	require.False(t, h.PageIsUnderutilized(first, 0.75))
	require.False(t, h.PageIsUnderutilized(first, 1))

	// Out-of-range ratios are clamped.
	require.True(t, h.PageIsUnderutilized(first, -3))
	require.False(t, h.PageIsUnderutilized(first, 7))
}

func TestHeap_ReusesFullestPage(t *testing.T) {
	h := newTestHeap(t)
	perPage := DefaultPageSize / 128

	refs := make([]Ref, 0, 2*perPage+1)
	for range 2*perPage + 1 {
		ref, _, err := h.Alloc(128)
		require.NoError(t, err)
		refs = append(refs, ref)
	}

	// Page 1 loses one block, page 2 loses half.
	h.Free(refs[0])
	for i := perPage; i < perPage+perPage/2; i++ {
		h.Free(refs[i])
	}

	// Fill the current (third) page.
	for range perPage - 1 {
		_, _, err := h.Alloc(128)
		require.NoError(t, err)
	}

	ref, _, err := h.Alloc(128)
	require.NoError(t, err)
	require.Equal(t, refs[0].pageID(), ref.pageID())
}

func TestHeap_Limit(t *testing.T) {
	h := newTestHeap(t, WithLimit(DefaultPageSize), WithLogger(zap.NewNop()))

	_, _, err := h.Alloc(64)
	require.NoError(t, err)

	_, _, err = h.Alloc(MaxSmallSize + 1)
	require.ErrorIs(t, err, errs.ErrOutOfMemory)

	_, _, err = h.Alloc(1024)
	require.ErrorIs(t, err, errs.ErrOutOfMemory)
}

func TestHeap_Options(t *testing.T) {
	h := newTestHeap(t, WithPageSize(128*1024))
	require.Equal(t, 128*1024, h.PageSize())

	_, err := New(WithPageSize(1000))
	require.ErrorIs(t, err, errs.ErrInvalidPageSize)

	_, err = New(WithPageSize(1024))
	require.ErrorIs(t, err, errs.ErrInvalidPageSize)

	_, err = New(WithLimit(-1))
	require.ErrorIs(t, err, errs.ErrInvalidThreshold)
}

func TestStats_Utilization(t *testing.T) {
	require.Zero(t, Stats{}.Utilization())
	require.InDelta(t, 0.5, Stats{AllocatedBytes: 50, CommittedBytes: 100}.Utilization(), 1e-9)
}

func TestRef_String(t *testing.T) {
	require.Equal(t, "ref(page=3,slot=7)", makeRef(3, 7).String())
}

func TestHeap_Relocate(t *testing.T) {
	h := newTestHeap(t)
	perPage := DefaultPageSize / 64

	refs := make([]Ref, 0, 3*perPage)
	for i := range 3 * perPage {
		ref, blk, err := h.Alloc(64)
		require.NoError(t, err)
		blk[0] = byte(i)
		refs = append(refs, ref)
	}
	require.Equal(t, 3, h.Stats().Pages)
	sparse, dense, current := refs[0].pageID(), refs[perPage].pageID(), refs[2*perPage].pageID()

	// Page one keeps every other block, page two has four holes and the
	// current page is full.
	for i := 0; i < perPage; i += 2 {
		h.Free(refs[i])
	}
	for i := perPage; i < perPage+4; i++ {
		h.Free(refs[i])
	}
	before := h.Stats()

	for i := 1; i < 9; i += 2 {
		moved, ok := h.Relocate(refs[i])
		require.True(t, ok)
		require.Equal(t, dense, moved.pageID())
		require.Equal(t, byte(i), h.Bytes(moved)[0])
		refs[i] = moved
	}
	require.Equal(t, before.LiveBlocks, h.Stats().LiveBlocks)
	require.Equal(t, before.AllocatedBytes, h.Stats().AllocatedBytes)

	// Every other page is full now; the block must not move within its own
	// page.
	ref, ok := h.Relocate(refs[9])
	require.False(t, ok)
	require.Equal(t, refs[9], ref)
	require.Equal(t, sparse, ref.pageID())

	// A block on the current page has no fuller page to go to.
	_, ok = h.Relocate(refs[len(refs)-1])
	require.False(t, ok)
	require.Equal(t, current, refs[len(refs)-1].pageID())

	huge, _, err := h.Alloc(MaxSmallSize + 1)
	require.NoError(t, err)
	_, ok = h.Relocate(huge)
	require.False(t, ok)
}

func TestHeap_RelocatePrefersCurrentPage(t *testing.T) {
	h := newTestHeap(t)
	perPage := DefaultPageSize / 64

	refs := make([]Ref, 0, perPage+1)
	for range perPage + 1 {
		ref, _, err := h.Alloc(64)
		require.NoError(t, err)
		refs = append(refs, ref)
	}
	for i := 0; i < perPage; i += 2 {
		h.Free(refs[i])
	}

	moved, ok := h.Relocate(refs[1])
	require.True(t, ok)
	require.Equal(t, refs[perPage].pageID(), moved.pageID())
	require.Equal(t, 2, h.Stats().Pages)
}
