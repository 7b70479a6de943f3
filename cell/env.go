package cell

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/arloliu/kvcore/alloc"
	"github.com/arloliu/kvcore/compress"
	"github.com/arloliu/kvcore/errs"
	"github.com/arloliu/kvcore/format"
	"github.com/arloliu/kvcore/internal/options"
)

// DefaultMinCompressSize is the smallest heap value compressed when
// compression is enabled.
const DefaultMinCompressSize = 1024

// Env carries the resources cells allocate from.
type Env struct {
	heap        alloc.Allocator
	codec       compress.Codec
	minCompress int
	logger      *zap.Logger
}

// EnvOption configures an Env.
type EnvOption = options.Option[*Env]

// WithCompression compresses heap values of at least minSize bytes with the
// given codec. CompressionNone disables compression.
func WithCompression(ct format.CompressionType, minSize int) EnvOption {
	return options.New(func(e *Env) error {
		if minSize < 0 {
			return fmt.Errorf("%w: negative compression size %d", errs.ErrInvalidThreshold, minSize)
		}

		codec, err := compress.GetCodec(ct)
		if err != nil {
			return err
		}

		if ct == format.CompressionNone {
			codec = nil
		}
		e.codec = codec
		e.minCompress = minSize

		return nil
	})
}

// WithLogger sets the logger for relocation and compression events.
func WithLogger(logger *zap.Logger) EnvOption {
	return options.NoError(func(e *Env) {
		if logger != nil {
			e.logger = logger
		}
	})
}

// NewEnv creates an Env over heap.
func NewEnv(heap alloc.Allocator, opts ...EnvOption) (*Env, error) {
	if heap == nil {
		return nil, fmt.Errorf("cell: nil allocator")
	}

	e := &Env{
		heap:        heap,
		minCompress: DefaultMinCompressSize,
		logger:      zap.NewNop(),
	}

	if err := options.Apply(e, opts...); err != nil {
		return nil, err
	}

	if e.codec != nil {
		e.logger.Debug("heap compression enabled",
			zap.Stringer("codec", e.codec.Type()),
			zap.Int("min_size", e.minCompress))
	}

	return e, nil
}

// Allocator returns the allocator cells in this Env use.
func (e *Env) Allocator() alloc.Allocator {
	return e.heap
}

// Compression returns the configured compression type.
func (e *Env) Compression() format.CompressionType {
	if e.codec == nil {
		return format.CompressionNone
	}

	return e.codec.Type()
}
