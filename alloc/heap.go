package alloc

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/arloliu/kvcore/errs"
	"github.com/arloliu/kvcore/internal/options"
)

// DefaultPageSize is the default size of a shared page (64KiB).
const DefaultPageSize = 64 * 1024

// HeapOption configures a Heap.
type HeapOption = options.Option[*Heap]

// WithPageSize sets the size of shared pages. It must be a power of two no
// smaller than MaxSmallSize.
func WithPageSize(size int) HeapOption {
	return options.New(func(h *Heap) error {
		if size < MaxSmallSize || size&(size-1) != 0 {
			return fmt.Errorf("%w: %d", errs.ErrInvalidPageSize, size)
		}
		h.pageSize = size

		return nil
	})
}

// WithLimit caps the bytes the heap may commit. Zero means unlimited.
func WithLimit(bytes int64) HeapOption {
	return options.New(func(h *Heap) error {
		if bytes < 0 {
			return fmt.Errorf("%w: negative limit %d", errs.ErrInvalidThreshold, bytes)
		}
		h.limit = bytes

		return nil
	})
}

// WithLogger sets the logger used for page lifecycle events.
func WithLogger(logger *zap.Logger) HeapOption {
	return options.NoError(func(h *Heap) {
		if logger != nil {
			h.logger = logger
		}
	})
}

type page struct {
	id        uint32
	class     int
	blockSize int
	capacity  int
	used      int
	bumped    int      // slots handed out at least once
	free      []uint32 // recycled slots, used as a stack
	inUse     []uint64 // one bit per slot
	binIdx    int
	data      []byte
}

func (p *page) full() bool {
	return p.used == p.capacity
}

func (p *page) take() uint32 {
	var slot uint32
	if n := len(p.free); n > 0 {
		slot = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		slot = uint32(p.bumped) //nolint:gosec
		p.bumped++
	}

	p.inUse[slot/64] |= 1 << (slot % 64)
	p.used++

	return slot
}

func (p *page) put(slot uint32) {
	if int(slot) >= p.bumped || p.inUse[slot/64]&(1<<(slot%64)) == 0 {
		panic(fmt.Sprintf("alloc: free of unallocated slot %d on page %d", slot, p.id))
	}

	p.inUse[slot/64] &^= 1 << (slot % 64)
	p.free = append(p.free, slot)
	p.used--
}

func (p *page) block(slot uint32) []byte {
	off := int(slot) * p.blockSize

	return p.data[off : off+p.blockSize : off+p.blockSize]
}

// Heap is a size-class page allocator. The zero value is not usable; create
// one with New.
type Heap struct {
	pageSize int
	limit    int64
	logger   *zap.Logger

	pages   []*page // indexed by page id; slot 0 is unused
	freeIDs []uint32
	bins    [][]*page // pages per size class
	current []*page   // allocation page per size class
	stats   Stats
}

var _ Allocator = (*Heap)(nil)

// New creates a Heap.
func New(opts ...HeapOption) (*Heap, error) {
	h := &Heap{
		pageSize: DefaultPageSize,
		logger:   zap.NewNop(),
		pages:    make([]*page, 1, 16),
		bins:     make([][]*page, len(sizeClasses)),
		current:  make([]*page, len(sizeClasses)),
	}

	if err := options.Apply(h, opts...); err != nil {
		return nil, err
	}

	return h, nil
}

// PageSize returns the size of shared pages.
func (h *Heap) PageSize() int {
	return h.pageSize
}

// Alloc implements Allocator.
func (h *Heap) Alloc(size int) (Ref, []byte, error) {
	if size < 0 {
		panic(fmt.Sprintf("alloc: negative allocation size %d", size))
	}

	if size > MaxSmallSize {
		return h.allocHuge(size)
	}

	cls := classOf(size)
	p := h.current[cls]
	if p == nil || p.full() {
		var err error
		if p, err = h.selectPage(cls); err != nil {
			return NilRef, nil, err
		}
		h.current[cls] = p
	}

	slot := p.take()
	h.stats.AllocatedBytes += int64(p.blockSize)
	h.stats.LiveBlocks++

	return makeRef(p.id, slot), p.block(slot)[:size], nil
}

func (h *Heap) allocHuge(size int) (Ref, []byte, error) {
	p, err := h.newPage(hugeClass, roundUp(size, hugeAlign), roundUp(size, hugeAlign))
	if err != nil {
		return NilRef, nil, err
	}

	slot := p.take()
	h.stats.AllocatedBytes += int64(p.blockSize)
	h.stats.LiveBlocks++

	return makeRef(p.id, slot), p.block(slot)[:size], nil
}

// selectPage picks the fullest non-full page of the class, or creates one.
func (h *Heap) selectPage(cls int) (*page, error) {
	var best *page
	for _, p := range h.bins[cls] {
		if !p.full() && (best == nil || p.used > best.used) {
			best = p
		}
	}
	if best != nil {
		return best, nil
	}

	return h.newPage(cls, sizeClasses[cls], h.pageSize)
}

func (h *Heap) newPage(cls, blockSize, dataSize int) (*page, error) {
	if h.limit > 0 && h.stats.CommittedBytes+int64(dataSize) > h.limit {
		return nil, fmt.Errorf("%w: committed %d, requested page of %d, limit %d",
			errs.ErrOutOfMemory, h.stats.CommittedBytes, dataSize, h.limit)
	}

	capacity := dataSize / blockSize
	p := &page{
		class:     cls,
		blockSize: blockSize,
		capacity:  capacity,
		inUse:     make([]uint64, (capacity+63)/64),
		data:      make([]byte, dataSize),
	}

	if n := len(h.freeIDs); n > 0 {
		p.id = h.freeIDs[n-1]
		h.freeIDs = h.freeIDs[:n-1]
		h.pages[p.id] = p
	} else {
		p.id = uint32(len(h.pages)) //nolint:gosec
		h.pages = append(h.pages, p)
	}

	if cls != hugeClass {
		p.binIdx = len(h.bins[cls])
		h.bins[cls] = append(h.bins[cls], p)
	}

	h.stats.CommittedBytes += int64(dataSize)
	h.stats.Pages++

	h.logger.Debug("page created",
		zap.Uint32("page", p.id),
		zap.Int("block_size", blockSize),
		zap.Int("capacity", capacity))

	return p, nil
}

func (h *Heap) releasePage(p *page) {
	if p.class != hugeClass {
		bin := h.bins[p.class]
		last := len(bin) - 1
		bin[p.binIdx] = bin[last]
		bin[p.binIdx].binIdx = p.binIdx
		bin[last] = nil
		h.bins[p.class] = bin[:last]
	}

	h.pages[p.id] = nil
	h.freeIDs = append(h.freeIDs, p.id)
	h.stats.CommittedBytes -= int64(len(p.data))
	h.stats.Pages--

	h.logger.Debug("page released",
		zap.Uint32("page", p.id),
		zap.Int("block_size", p.blockSize))
}

func (h *Heap) lookup(ref Ref) *page {
	id := ref.pageID()
	if id == 0 || int(id) >= len(h.pages) || h.pages[id] == nil {
		panic(fmt.Sprintf("alloc: unknown %s", ref))
	}

	p := h.pages[id]
	if int(ref.slot()) >= p.capacity {
		panic(fmt.Sprintf("alloc: slot out of range in %s", ref))
	}

	return p
}

// Free implements Allocator.
func (h *Heap) Free(ref Ref) {
	if ref == NilRef {
		return
	}

	p := h.lookup(ref)
	p.put(ref.slot())
	h.stats.AllocatedBytes -= int64(p.blockSize)
	h.stats.LiveBlocks--

	if p.used == 0 && (p.class == hugeClass || h.current[p.class] != p) {
		h.releasePage(p)
	}
}

// Bytes implements Allocator.
func (h *Heap) Bytes(ref Ref) []byte {
	return h.lookup(ref).block(ref.slot())
}

// UsableSize implements Allocator.
func (h *Heap) UsableSize(ref Ref) int {
	return h.lookup(ref).blockSize
}

// PageIsUnderutilized implements Allocator. Huge pages and the current page
// of a size class are never reported.
func (h *Heap) PageIsUnderutilized(ref Ref, ratio float64) bool {
	p := h.lookup(ref)
	if p.class == hugeClass || h.current[p.class] == p {
		return false
	}

	ratio = min(max(ratio, 0), 1)
	freeSlots := p.capacity - p.used

	return float64(freeSlots) > ratio*float64(p.capacity)
}

// Relocate implements Allocator. The class's current page is preferred when it
// is not the source and has room. Relocate never creates a page, and the
// source page is never a target, so a move always leaves the source page
// with one more free slot.
func (h *Heap) Relocate(ref Ref) (Ref, bool) {
	src := h.lookup(ref)
	if src.class == hugeClass {
		return ref, false
	}

	dst := h.relocationTarget(src)
	if dst == nil {
		return ref, false
	}

	slot := dst.take()
	newRef := makeRef(dst.id, slot)
	copy(dst.block(slot), src.block(ref.slot()))
	h.stats.AllocatedBytes += int64(dst.blockSize)
	h.stats.LiveBlocks++

	h.Free(ref)

	return newRef, true
}

func (h *Heap) relocationTarget(src *page) *page {
	if cur := h.current[src.class]; cur != nil && cur != src && !cur.full() {
		return cur
	}

	var best *page
	for _, p := range h.bins[src.class] {
		if p == src || p.full() || p.used < src.used {
			continue
		}
		if best == nil || p.used > best.used {
			best = p
		}
	}

	return best
}

// Stats implements Allocator.
func (h *Heap) Stats() Stats {
	return h.stats
}
