package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/arloliu/kvcore/errs"
	"github.com/arloliu/kvcore/format"
)

// lz4CompressorPool pools lz4.Compressor instances, which keep a hash table
// between calls.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// ErrIncompressible is returned by LZ4Compressor.Compress when the block
// encoder cannot shrink the input. Cells treat it like any other compression
// miss and store the value verbatim.
var ErrIncompressible = errors.New("lz4: incompressible input")

// LZ4Compressor is the LZ4 block codec. LZ4 blocks do not record their decoded
// size, so decoding relies on the size stored next to the payload.
type LZ4Compressor struct{}

var _ Codec = (*LZ4Compressor)(nil)

// NewLZ4Compressor creates a new LZ4 codec.
func NewLZ4Compressor() LZ4Compressor {
	return LZ4Compressor{}
}

// Type implements Codec.
func (c LZ4Compressor) Type() format.CompressionType {
	return format.CompressionLZ4
}

// Compress compresses the input data using a pooled lz4.Compressor.
func (c LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lc.CompressBlock(data, dst)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrIncompressible
	}

	return dst[:n], nil
}

// Decompress decodes an LZ4 block into exactly size bytes.
func (c LZ4Compressor) Decompress(dst, data []byte, size int) ([]byte, error) {
	if len(data) == 0 {
		return dst[:0], checkSize(format.CompressionLZ4, 0, size)
	}

	buf := sizedBuffer(dst, size)
	n, err := lz4.UncompressBlock(data, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %v", errs.ErrCorruptPayload, err)
	}
	if err := checkSize(format.CompressionLZ4, n, size); err != nil {
		return nil, err
	}

	return buf, nil
}
