// Package strmap implements a field to value map whose entries live in
// allocator memory.
//
// Each entry is one key block that embeds a reference to a separately
// allocated value block, so a field/value pair costs two allocations and no
// wrapper object:
//
//	key block:   [uvarint len][field][0x00][value ref, 8 bytes LE]
//	value block: [uvarint len][value]
//
// The reference is an alloc.Ref, never a machine address, so a dumped block
// reads the same on every run. Hashing and equality cover the field bytes
// only, and lookups probe with the field itself without allocating.
//
// A Map is not safe for concurrent use.
package strmap

import (
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/arloliu/kvcore/alloc"
	"github.com/arloliu/kvcore/denseset"
	"github.com/arloliu/kvcore/errs"
	"github.com/arloliu/kvcore/format"
	"github.com/arloliu/kvcore/internal/options"
)

// NoExpiry is the only TTL AddOrSet accepts.
const NoExpiry = format.NoExpiry

// Map stores field/value pairs in an allocator.
type Map struct {
	heap     alloc.Allocator
	policy   policy
	set      *denseset.Set[alloc.Ref, []byte]
	capacity int
	logger   *zap.Logger
}

// Option configures a Map.
type Option = options.Option[*Map]

// WithCapacity presizes the table for n entries.
func WithCapacity(n int) Option {
	return options.New(func(m *Map) error {
		if n < 0 {
			return fmt.Errorf("%w: negative capacity %d", errs.ErrInvalidThreshold, n)
		}
		m.capacity = n

		return nil
	})
}

// WithLogger sets the logger for clear events.
func WithLogger(logger *zap.Logger) Option {
	return options.NoError(func(m *Map) {
		if logger != nil {
			m.logger = logger
		}
	})
}

// New creates a Map allocating from heap.
func New(heap alloc.Allocator, opts ...Option) (*Map, error) {
	if heap == nil {
		return nil, fmt.Errorf("strmap: nil allocator")
	}

	m := &Map{
		heap:   heap,
		policy: policy{heap: heap},
		logger: zap.NewNop(),
	}

	if err := options.Apply(m, opts...); err != nil {
		return nil, err
	}

	m.set = denseset.New[alloc.Ref, []byte](m.policy, m.capacity)

	return m, nil
}

// AddOrSet stores value under field and reports whether the field is new.
// An existing field keeps its key block and gets a new value block; the old
// value block is freed. ttl must be NoExpiry. On error the map is unchanged.
func (m *Map) AddOrSet(field, value []byte, ttl uint32) (bool, error) {
	if ttl != NoExpiry {
		return false, fmt.Errorf("%w: ttl %d", errs.ErrUnsupported, ttl)
	}

	valRef, err := m.allocValue(value)
	if err != nil {
		return false, err
	}

	if e, ok := m.set.Find(field); ok {
		old := m.policy.valueRef(e)
		m.policy.setValueRef(e, valRef)
		m.heap.Free(old)

		return false, nil
	}

	keyRef, blk, err := m.heap.Alloc(entryLen(len(field)))
	if err != nil {
		m.heap.Free(valRef)
		return false, err
	}
	writeEntry(blk, field, valRef)
	m.set.Add(keyRef)

	return true, nil
}

func (m *Map) allocValue(value []byte) (alloc.Ref, error) {
	ref, blk, err := m.heap.Alloc(uvarintLen(len(value)) + len(value))
	if err != nil {
		return alloc.NilRef, err
	}
	writeValue(blk, value)

	return ref, nil
}

// Contains reports whether field is present.
func (m *Map) Contains(field []byte) bool {
	return m.set.Contains(field)
}

// Get returns the value stored under field. The slice points into allocator
// memory and is valid until the field is overwritten or removed.
func (m *Map) Get(field []byte) ([]byte, bool) {
	e, ok := m.set.Find(field)
	if !ok {
		return nil, false
	}

	return m.policy.value(e), true
}

// Erase removes field, freeing its key and value blocks, and reports whether
// it was present.
func (m *Map) Erase(field []byte) bool {
	return m.set.Erase(field)
}

// ExpireTime fails with ErrUnsupported: fields carry no expiry.
func (m *Map) ExpireTime(field []byte) (uint32, error) {
	_, found, err := m.set.ExpireTime(field)
	if !found {
		return 0, fmt.Errorf("%w: field expiry", errs.ErrUnsupported)
	}

	return 0, err
}

// EntryAllocSize returns the allocator bytes held by field's entry.
func (m *Map) EntryAllocSize(field []byte) (int, bool) {
	e, ok := m.set.Find(field)
	if !ok {
		return 0, false
	}

	return m.policy.AllocSize(e), true
}

// Clear frees every entry and empties the map.
func (m *Map) Clear() {
	if m.set.Len() == 0 {
		return
	}

	before := m.heap.Stats().AllocatedBytes
	n := m.set.Clear()

	m.logger.Debug("map cleared",
		zap.Int("entries", n),
		zap.Int64("released_bytes", before-m.heap.Stats().AllocatedBytes))
}

// Len returns the number of fields.
func (m *Map) Len() int {
	return m.set.Len()
}

// All yields every field and value. Both slices point into allocator memory;
// the map must not be modified during iteration.
func (m *Map) All() iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		for e := range m.set.All() {
			if !yield(m.policy.key(e), m.policy.value(e)) {
				return
			}
		}
	}
}

// AllocSize sums the allocator bytes of every entry.
func (m *Map) AllocSize() int64 {
	return m.set.ObjAllocSize()
}

// MallocUsed returns the entries' allocator bytes plus the table itself.
func (m *Map) MallocUsed() int64 {
	return m.set.ObjAllocSize() + m.set.TableBytes()
}
