package compress

import (
	"fmt"

	"github.com/klauspost/compress/s2"

	"github.com/arloliu/kvcore/errs"
	"github.com/arloliu/kvcore/format"
)

// S2Compressor is the S2 (Snappy-compatible) block codec.
type S2Compressor struct{}

var _ Codec = (*S2Compressor)(nil)

// NewS2Compressor creates a new S2 codec.
func NewS2Compressor() S2Compressor {
	return S2Compressor{}
}

// Type implements Codec.
func (c S2Compressor) Type() format.CompressionType {
	return format.CompressionS2
}

// Compress compresses the input data using S2 compression.
func (c S2Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.Encode(nil, data), nil
}

// Decompress decodes an S2 block. The block header carries its own decoded
// length, which is checked against size before any output is written.
func (c S2Compressor) Decompress(dst, data []byte, size int) ([]byte, error) {
	if len(data) == 0 {
		return dst[:0], checkSize(format.CompressionS2, 0, size)
	}

	n, err := s2.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("%w: s2: %v", errs.ErrCorruptPayload, err)
	}
	if err := checkSize(format.CompressionS2, n, size); err != nil {
		return nil, err
	}

	out, err := s2.Decode(sizedBuffer(dst, size), data)
	if err != nil {
		return nil, fmt.Errorf("%w: s2: %v", errs.ErrCorruptPayload, err)
	}

	return out, nil
}
