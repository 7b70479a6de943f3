package cell

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/arloliu/kvcore/errs"
	"github.com/arloliu/kvcore/format"
)

// DefragIfNeeded moves a heap payload into a fresh block when the allocator
// reports its page as underutilized at ratio, and reports whether it moved.
// ratio is the tolerated fraction of free slots on the page: 1 never moves,
// 0 moves whenever the page has a free slot. Inline and rich cells never
// move. The new block is on another page of the same size class that is at
// least as full; when no such page has room the value stays in place. The
// decoded value is unchanged by a move.
func (c *Cell) DefragIfNeeded(env *Env, ratio float64) (bool, error) {
	if !(ratio >= 0 && ratio <= 1) {
		return false, fmt.Errorf("%w: %v", errs.ErrInvalidRatio, ratio)
	}

	if c.tag != format.EncodingHeap {
		return false, nil
	}

	oldRef := c.heapRef()
	if !env.heap.PageIsUnderutilized(oldRef, ratio) {
		return false, nil
	}

	ref, moved := env.heap.Relocate(oldRef)
	if !moved {
		return false, nil
	}
	c.setHeap(ref, c.heapLen(), c.heapStoredLen(), format.CompressionType(c.aux))

	env.logger.Debug("relocated heap value",
		zap.Stringer("from", oldRef), zap.Stringer("to", ref), zap.Int("size", c.heapStoredLen()))

	return true, nil
}
