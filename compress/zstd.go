package compress

import "github.com/arloliu/kvcore/format"

// ZstdCompressor is the Zstandard codec. The backing implementation is chosen
// at build time, see zstd_pure.go and zstd_cgo.go.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd codec.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}

// Type implements Codec.
func (c ZstdCompressor) Type() format.CompressionType {
	return format.CompressionZstd
}
