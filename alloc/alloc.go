package alloc

import "fmt"

// Ref identifies a live allocation. The zero Ref never refers to a block.
type Ref uint64

// NilRef is the zero reference.
const NilRef Ref = 0

func makeRef(pageID, slot uint32) Ref {
	return Ref(uint64(pageID)<<32 | uint64(slot))
}

func (r Ref) pageID() uint32 { return uint32(r >> 32) }
func (r Ref) slot() uint32   { return uint32(r) }

// String implements fmt.Stringer.
func (r Ref) String() string {
	return fmt.Sprintf("ref(page=%d,slot=%d)", r.pageID(), r.slot())
}

// Allocator is the allocation capability the cell and strmap packages are
// built on. Implementations are not required to be safe for concurrent use.
type Allocator interface {
	// Alloc reserves a block of at least size bytes and returns its reference
	// and a slice of length size over it. The slice capacity is the usable
	// size of the block.
	Alloc(size int) (Ref, []byte, error)

	// Free releases the block. Freeing NilRef is a no-op; freeing a reference
	// twice is a programmer error.
	Free(ref Ref)

	// Bytes returns the whole usable region of a live block.
	Bytes(ref Ref) []byte

	// UsableSize returns the true number of bytes the block occupies.
	UsableSize(ref Ref) int

	// PageIsUnderutilized reports whether the page backing the block holds
	// enough free space that moving the block elsewhere is worthwhile. ratio
	// is the fraction of free slots a page may carry before its blocks become
	// candidates: 1 never reports a page, 0 reports any page with a free slot.
	PageIsUnderutilized(ref Ref, ratio float64) bool

	// Relocate copies the block into a slot on a different page of the same
	// size class that is at least as full as its own page, frees the old
	// block and returns the new reference. It reports false, leaving the
	// block in place, when no such page has room.
	Relocate(ref Ref) (Ref, bool)

	// Stats returns a snapshot of allocator usage.
	Stats() Stats
}

// Stats is a snapshot of allocator usage.
//
//   - AllocatedBytes: sum of usable sizes of live blocks
//   - CommittedBytes: sum of page sizes currently held
//   - LiveBlocks: number of live blocks
//   - Pages: number of pages currently held
type Stats struct {
	AllocatedBytes int64
	CommittedBytes int64
	LiveBlocks     int64
	Pages          int
}

// Utilization returns AllocatedBytes / CommittedBytes, or 0 for an empty heap.
func (s Stats) Utilization() float64 {
	if s.CommittedBytes == 0 {
		return 0
	}

	return float64(s.AllocatedBytes) / float64(s.CommittedBytes)
}
