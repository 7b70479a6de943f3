//go:build cgo && gozstd

package compress

import (
	"fmt"

	"github.com/valyala/gozstd"

	"github.com/arloliu/kvcore/errs"
	"github.com/arloliu/kvcore/format"
)

// zstdLevel matches the default level of the pure-Go encoder, so a value
// compresses to about the same size under either build.
const zstdLevel = 3

// Compress compresses the input data with libzstd.
func (c ZstdCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return gozstd.CompressLevel(nil, data, zstdLevel), nil
}

// Decompress decodes a Zstd frame into dst with libzstd.
func (c ZstdCompressor) Decompress(dst, data []byte, size int) ([]byte, error) {
	if len(data) == 0 {
		return dst[:0], checkSize(format.CompressionZstd, 0, size)
	}

	out, err := gozstd.Decompress(sizedBuffer(dst, size)[:0], data)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", errs.ErrCorruptPayload, err)
	}
	if err := checkSize(format.CompressionZstd, len(out), size); err != nil {
		return nil, err
	}

	return out, nil
}
