// Package alloc provides the allocator capability consumed by the cell and
// strmap packages, and Heap, a size-class page allocator that implements it.
//
// # References instead of addresses
//
// Allocations are identified by a Ref: the page id in the upper 32 bits and
// the slot index in the lower 32 bits. A Ref is a plain integer, so it can be
// embedded in byte buffers (see strmap) without storing a machine address, and
// it stays meaningful when the buffer holding it is copied.
//
// # Pages and size classes
//
// Small requests are rounded up to a size class and served from pages of
// PageSize bytes carved into equal slots. Each class has a current page that
// new allocations are taken from. When it fills up, the fullest partially used
// page of the class becomes current, and only when none exists is a new page
// created. Requests above the largest class get a dedicated huge page rounded
// to 4KiB. A page that becomes empty is released unless it is current.
//
// UsableSize reports the slot size, the true number of bytes a block occupies,
// and is what memory accounting should sum. PageIsUnderutilized lets callers
// find blocks worth moving off sparsely used pages.
//
// # Concurrency
//
// A Heap is not safe for concurrent use. Use one heap per shard or protect it
// with the lock that guards the data structures allocating from it.
package alloc
