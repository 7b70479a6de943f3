// Package kvcore provides the memory-compact value and map primitives of an
// in-memory key-value store.
//
// kvcore is optimized for holding millions of small values per shard with as
// little per-value overhead as possible: short strings and integers never
// touch the allocator, short ASCII strings are packed at 7 bits per byte, and
// field/value maps store each pair as two allocator blocks with no wrapper
// object.
//
// # Core Features
//
//   - Cell: a value holder choosing among SmallInt, inline raw, inline packed
//     ASCII, heap and rich-container encodings
//   - Encoding-invariant hashing and equality (64-bit xxHash64)
//   - Optional heap compression (Zstd, S2, LZ4)
//   - Size-class page allocator with usable-size and page-utilization queries
//     for accurate memory accounting and defragmentation
//   - strmap.Map: a field/value map with allocation-free lookups
//   - Scalar and wide ASCII packing kernels selected at startup
//
// # Basic Usage
//
// Creating a shard and storing values:
//
//	shard, _ := kvcore.NewDefaultShard()
//
//	var c cell.Cell
//	_ = c.SetString(shard.Env, []byte("42"), cell.NoExpiry) // SmallInt
//	_ = c.SetString(shard.Env, []byte("hello"), cell.NoExpiry) // inline
//	fmt.Println(c.GetString(shard.Env))
//	c.Reset(shard.Env)
//
// Field/value maps share the shard's allocator:
//
//	m, _ := shard.NewMap()
//	_, _ = m.AddOrSet([]byte("field"), []byte("value"), strmap.NoExpiry)
//	v, ok := m.Get([]byte("field"))
//
// # Package Structure
//
// This package wires the allocator, the cell environment and maps together
// for the common case. For fine-grained control use the alloc, cell, strmap
// and bitpack packages directly.
package kvcore

import (
	"go.uber.org/zap"

	"github.com/arloliu/kvcore/alloc"
	"github.com/arloliu/kvcore/cell"
	"github.com/arloliu/kvcore/format"
	"github.com/arloliu/kvcore/internal/hash"
	"github.com/arloliu/kvcore/internal/options"
	"github.com/arloliu/kvcore/metrics"
	"github.com/arloliu/kvcore/strmap"
)

// Shard bundles the allocator and cell environment used by one
// single-threaded owner. Every cell and map created for a shard must only be
// used with that shard's Env and Heap.
type Shard struct {
	Heap    *alloc.Heap
	Env     *cell.Env
	logger  *zap.Logger
	metrics *metrics.Collector
}

type shardConfig struct {
	heapOpts []alloc.HeapOption
	envOpts  []cell.EnvOption
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// ShardOption configures NewShard.
type ShardOption = options.Option[*shardConfig]

// WithHeapOptions passes options to the shard's allocator.
func WithHeapOptions(opts ...alloc.HeapOption) ShardOption {
	return options.NoError(func(c *shardConfig) {
		c.heapOpts = append(c.heapOpts, opts...)
	})
}

// WithEnvOptions passes options to the shard's cell environment.
func WithEnvOptions(opts ...cell.EnvOption) ShardOption {
	return options.NoError(func(c *shardConfig) {
		c.envOpts = append(c.envOpts, opts...)
	})
}

// WithCompression enables heap compression for values of at least minSize
// bytes.
func WithCompression(ct format.CompressionType, minSize int) ShardOption {
	return WithEnvOptions(cell.WithCompression(ct, minSize))
}

// WithLogger sets the logger shared by the allocator, the environment and
// maps created through the shard.
func WithLogger(logger *zap.Logger) ShardOption {
	return options.NoError(func(c *shardConfig) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithMetrics publishes allocator statistics and defrag moves to c.
func WithMetrics(c *metrics.Collector) ShardOption {
	return options.NoError(func(cfg *shardConfig) {
		cfg.metrics = c
	})
}

// NewShard creates a shard with custom options.
//
// Parameters:
//   - opts: Optional configuration functions (see ShardOption)
//
// Returns:
//   - *Shard: The created shard.
//   - error: An error if any allocator or environment option is invalid.
//
// Example:
//
//	shard, err := kvcore.NewShard(
//	    kvcore.WithHeapOptions(alloc.WithLimit(1<<30)),
//	    kvcore.WithCompression(format.CompressionS2, 1024),
//	)
func NewShard(opts ...ShardOption) (*Shard, error) {
	cfg := &shardConfig{logger: zap.NewNop()}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	heapOpts := append([]alloc.HeapOption{alloc.WithLogger(cfg.logger)}, cfg.heapOpts...)
	heap, err := alloc.New(heapOpts...)
	if err != nil {
		return nil, err
	}

	envOpts := append([]cell.EnvOption{cell.WithLogger(cfg.logger)}, cfg.envOpts...)
	env, err := cell.NewEnv(heap, envOpts...)
	if err != nil {
		return nil, err
	}

	return &Shard{Heap: heap, Env: env, logger: cfg.logger, metrics: cfg.metrics}, nil
}

// NewDefaultShard creates a shard with default pages, no memory limit and no
// compression.
func NewDefaultShard() (*Shard, error) {
	return NewShard()
}

// NewMap creates a field/value map allocating from the shard's heap.
func (s *Shard) NewMap(opts ...strmap.Option) (*strmap.Map, error) {
	all := append([]strmap.Option{strmap.WithLogger(s.logger)}, opts...)
	return strmap.New(s.Heap, all...)
}

// Defrag relocates every heap value in cells whose page is underutilized at
// ratio and returns how many moved. It stops at the first error.
func (s *Shard) Defrag(cells []cell.Cell, ratio float64) (int, error) {
	moved := 0
	for i := range cells {
		ok, err := cells[i].DefragIfNeeded(s.Env, ratio)
		if err != nil {
			return moved, err
		}
		if ok {
			moved++
		}
	}

	if moved > 0 {
		stats := s.Heap.Stats()
		s.logger.Debug("defrag pass finished",
			zap.Int("moved", moved),
			zap.Int("pages", stats.Pages),
			zap.Float64("utilization", stats.Utilization()))

		if s.metrics != nil {
			s.metrics.AddDefragMoves(moved)
			s.metrics.PublishHeap(stats)
		}
	}

	return moved, nil
}

// PublishMetrics publishes the allocator statistics and the totals of maps to
// the collector set with WithMetrics. It must be called from the goroutine
// that owns the shard.
func (s *Shard) PublishMetrics(maps ...*strmap.Map) {
	if s.metrics == nil {
		return
	}

	entries, bytes := 0, int64(0)
	for _, m := range maps {
		entries += m.Len()
		bytes += m.AllocSize()
	}

	s.metrics.PublishHeap(s.Heap.Stats())
	s.metrics.PublishMap(entries, bytes)
}

// Hash returns the content hash kvcore uses for values and map fields. Every
// encoding of the same content hashes to this value.
func Hash(b []byte) uint64 {
	return hash.Bytes(b)
}
