// Package denseset implements an open-addressing hash set whose elements are
// opaque to the table.
//
// The table stores elements of type E and never looks inside them: hashing,
// equality, size accounting and destruction all go through a Policy. Lookups
// use a separate key type K, so a caller can probe with a lightweight view
// (for example the raw field bytes) instead of building a stored element:
//
//	s := denseset.New[alloc.Ref, []byte](policy, 0)
//	if _, ok := s.Find([]byte("field")); !ok {
//	    s.Add(entryRef)
//	}
//
// Each slot has a control byte: empty, deleted, or the low 7 bits of the
// element hash. Probing is linear from the slot chosen by the remaining hash
// bits and compares control bytes before calling the policy, so most
// mismatches never touch element memory. The table grows by doubling when
// live elements and tombstones reach 7/8 of the capacity, and rehashes in
// place when tombstones alone are the problem.
//
// A Set is not safe for concurrent use.
package denseset

import (
	"iter"
	"unsafe"
)

// Policy supplies the element operations a Set cannot perform itself.
//
// Hash and HashKey must agree: an element and a key that are EqualKey must
// hash equal.
type Policy[E, K any] interface {
	Hash(e E) uint64
	HashKey(k K) uint64
	Equal(a, b E) bool
	EqualKey(e E, k K) bool
	// AllocSize returns the bytes owned by e.
	AllocSize(e E) int
	// ExpireTime returns the expiry of e, or an error when the element type
	// does not support expiry.
	ExpireTime(e E) (uint32, error)
	// Delete releases everything e owns.
	Delete(e E)
}

const (
	ctrlEmpty   uint8 = 0x80
	ctrlDeleted uint8 = 0xFE

	minCapacity = 8
)

func h1(hash uint64) uint64 { return hash >> 7 }
func h2(hash uint64) uint8 { return uint8(hash & 0x7F) }

func isFull(c uint8) bool { return c&0x80 == 0 }

// Set is an open-addressing hash set.
type Set[E, K any] struct {
	policy     Policy[E, K]
	ctrl       []uint8
	slots      []E
	mask       uint64
	size       int
	tombstones int
	growthLeft int
}

// New creates a Set sized for at least capacity elements.
func New[E, K any](policy Policy[E, K], capacity int) *Set[E, K] {
	s := &Set[E, K]{policy: policy}
	if capacity > 0 {
		s.resize(capacityFor(capacity))
	}

	return s
}

// capacityFor returns the smallest power-of-two table that holds n elements
// under the 7/8 load limit.
func capacityFor(n int) int {
	want := n + n/7 + 1
	c := minCapacity
	for c < want {
		c <<= 1
	}

	return c
}

func maxLoad(capacity int) int {
	return capacity - capacity/8
}

// Len returns the number of elements.
func (s *Set[E, K]) Len() int { return s.size }

// Cap returns the number of slots.
func (s *Set[E, K]) Cap() int { return len(s.ctrl) }

// Find returns the element matching k.
func (s *Set[E, K]) Find(k K) (E, bool) {
	if i := s.findKey(k, s.policy.HashKey(k)); i >= 0 {
		return s.slots[i], true
	}

	var zero E

	return zero, false
}

// Contains reports whether an element matches k.
func (s *Set[E, K]) Contains(k K) bool {
	return s.findKey(k, s.policy.HashKey(k)) >= 0
}

// Add inserts e unless an equal element is present, and reports whether it
// was inserted.
func (s *Set[E, K]) Add(e E) bool {
	hash := s.policy.Hash(e)
	if s.findElem(e, hash) >= 0 {
		return false
	}

	s.insert(e, hash)

	return true
}

// Remove takes the element matching k out of the set without deleting it.
func (s *Set[E, K]) Remove(k K) (E, bool) {
	var zero E

	i := s.findKey(k, s.policy.HashKey(k))
	if i < 0 {
		return zero, false
	}

	e := s.slots[i]
	s.slots[i] = zero
	s.size--

	// A slot followed by an empty one ends every probe chain through it, so
	// it can become empty instead of a tombstone.
	if s.ctrl[(uint64(i)+1)&s.mask] == ctrlEmpty {
		s.ctrl[i] = ctrlEmpty
		s.growthLeft++
	} else {
		s.ctrl[i] = ctrlDeleted
		s.tombstones++
	}

	return e, true
}

// Erase removes and deletes the element matching k.
func (s *Set[E, K]) Erase(k K) bool {
	e, ok := s.Remove(k)
	if ok {
		s.policy.Delete(e)
	}

	return ok
}

// ExpireTime returns the policy's expiry for the element matching k.
func (s *Set[E, K]) ExpireTime(k K) (uint32, bool, error) {
	e, ok := s.Find(k)
	if !ok {
		return 0, false, nil
	}

	t, err := s.policy.ExpireTime(e)

	return t, true, err
}

// Clear deletes every element and releases the table. It returns the number
// of elements deleted.
func (s *Set[E, K]) Clear() int {
	n := s.size
	for i, c := range s.ctrl {
		if isFull(c) {
			s.policy.Delete(s.slots[i])
		}
	}

	*s = Set[E, K]{policy: s.policy}

	return n
}

// All yields every element in table order. The set must not be modified
// during iteration.
func (s *Set[E, K]) All() iter.Seq[E] {
	return func(yield func(E) bool) {
		for i, c := range s.ctrl {
			if isFull(c) && !yield(s.slots[i]) {
				return
			}
		}
	}
}

// ObjAllocSize sums the policy's AllocSize over every element.
func (s *Set[E, K]) ObjAllocSize() int64 {
	var total int64
	for i, c := range s.ctrl {
		if isFull(c) {
			total += int64(s.policy.AllocSize(s.slots[i]))
		}
	}

	return total
}

// TableBytes returns the memory held by the control bytes and slots.
func (s *Set[E, K]) TableBytes() int64 {
	var zero E

	return int64(len(s.ctrl)) * int64(1+unsafe.Sizeof(zero))
}

func (s *Set[E, K]) findKey(k K, hash uint64) int {
	if len(s.ctrl) == 0 {
		return -1
	}

	tag := h2(hash)
	i := h1(hash) & s.mask
	for range s.ctrl {
		c := s.ctrl[i]
		if c == ctrlEmpty {
			return -1
		}
		if c == tag && s.policy.EqualKey(s.slots[i], k) {
			return int(i)
		}
		i = (i + 1) & s.mask
	}

	return -1
}

func (s *Set[E, K]) findElem(e E, hash uint64) int {
	if len(s.ctrl) == 0 {
		return -1
	}

	tag := h2(hash)
	i := h1(hash) & s.mask
	for range s.ctrl {
		c := s.ctrl[i]
		if c == ctrlEmpty {
			return -1
		}
		if c == tag && s.policy.Equal(s.slots[i], e) {
			return int(i)
		}
		i = (i + 1) & s.mask
	}

	return -1
}

// insert places e, known to be absent, in the first free slot of its probe
// sequence.
func (s *Set[E, K]) insert(e E, hash uint64) {
	if s.growthLeft == 0 {
		s.rehash()
	}

	i := h1(hash) & s.mask
	for isFull(s.ctrl[i]) {
		i = (i + 1) & s.mask
	}

	if s.ctrl[i] == ctrlDeleted {
		s.tombstones--
	} else {
		s.growthLeft--
	}

	s.ctrl[i] = h2(hash)
	s.slots[i] = e
	s.size++
}

// rehash grows the table, or rebuilds it at the same size when at least half
// of the load is tombstones.
func (s *Set[E, K]) rehash() {
	switch {
	case len(s.ctrl) == 0:
		s.resize(minCapacity)
	case s.size < maxLoad(len(s.ctrl))/2:
		s.resize(len(s.ctrl))
	default:
		s.resize(2 * len(s.ctrl))
	}
}

func (s *Set[E, K]) resize(capacity int) {
	oldCtrl, oldSlots := s.ctrl, s.slots

	s.ctrl = make([]uint8, capacity)
	for i := range s.ctrl {
		s.ctrl[i] = ctrlEmpty
	}
	s.slots = make([]E, capacity)
	s.mask = uint64(capacity - 1) //nolint:gosec
	s.size = 0
	s.tombstones = 0
	s.growthLeft = maxLoad(capacity)

	for i, c := range oldCtrl {
		if isFull(c) {
			s.insert(oldSlots[i], s.policy.Hash(oldSlots[i]))
		}
	}
}
