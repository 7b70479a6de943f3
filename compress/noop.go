package compress

import "github.com/arloliu/kvcore/format"

// NoOpCompressor stores payloads verbatim.
type NoOpCompressor struct{}

var _ Codec = (*NoOpCompressor)(nil)

// NewNoOpCompressor creates a new no-operation codec.
func NewNoOpCompressor() NoOpCompressor {
	return NoOpCompressor{}
}

// Type implements Codec.
func (c NoOpCompressor) Type() format.CompressionType {
	return format.CompressionNone
}

// Compress returns data unchanged; the result shares memory with data.
func (c NoOpCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress copies data into dst.
func (c NoOpCompressor) Decompress(dst, data []byte, size int) ([]byte, error) {
	if err := checkSize(format.CompressionNone, len(data), size); err != nil {
		return nil, err
	}

	return append(dst[:0], data...), nil
}
