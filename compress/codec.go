package compress

import (
	"fmt"

	"github.com/arloliu/kvcore/errs"
	"github.com/arloliu/kvcore/format"
)

// Compressor compresses a payload.
type Compressor interface {
	// Compress returns the compressed form of data. The returned slice may be
	// data itself for codecs that do not transform it.
	Compress(data []byte) ([]byte, error)
}

// Decompressor decompresses a payload whose decoded size was recorded when it
// was stored.
type Decompressor interface {
	// Decompress decodes data into exactly size bytes, reusing dst's memory
	// when its capacity is at least size. The result may alias dst but never
	// data. Output of any other length fails with errs.ErrCorruptPayload.
	Decompress(dst, data []byte, size int) ([]byte, error)
}

// Codec combines both directions.
type Codec interface {
	Compressor
	Decompressor
	Type() format.CompressionType
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves the built-in Codec for compressionType.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("%w: %s", errs.ErrInvalidCompression, compressionType)
}

// sizedBuffer returns dst resliced, or replaced, to hold exactly size bytes.
func sizedBuffer(dst []byte, size int) []byte {
	if cap(dst) < size {
		return make([]byte, size)
	}

	return dst[:size]
}

func checkSize(ct format.CompressionType, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %s decoded %d bytes, recorded %d", errs.ErrCorruptPayload, ct, got, want)
	}

	return nil
}

// MustGetCodec is GetCodec for compression types recorded by this module; an
// unknown type means the caller's state is corrupt.
func MustGetCodec(compressionType format.CompressionType) Codec {
	codec, err := GetCodec(compressionType)
	if err != nil {
		panic(err)
	}

	return codec
}
