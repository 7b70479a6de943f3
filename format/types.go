package format

import "math"

// NoExpiry is the TTL meaning "never expires", the only TTL the cell and map
// setters accept.
const NoExpiry uint32 = math.MaxUint32

type (
	Encoding        uint8
	CompressionType uint8
	ObjType         uint8
	RichEncoding    uint8
)

const (
	EncodingSmallInt     Encoding = 0x1 // EncodingSmallInt stores a canonical int64 in the cell.
	EncodingInlineRaw    Encoding = 0x2 // EncodingInlineRaw stores raw bytes in the cell footprint.
	EncodingInlinePacked Encoding = 0x3 // EncodingInlinePacked stores 7-bit packed ASCII in the cell footprint.
	EncodingHeap         Encoding = 0x4 // EncodingHeap references an allocator-owned buffer.
	EncodingRich         Encoding = 0x5 // EncodingRich references an externally owned container.

	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.

	ObjString ObjType = 0x0 // ObjString is the type of every scalar cell.
	ObjList   ObjType = 0x1
	ObjSet    ObjType = 0x2
	ObjZSet   ObjType = 0x3
	ObjHash   ObjType = 0x4
	ObjStream ObjType = 0x5

	RichEncodingUnknown  RichEncoding = 0x0
	RichEncodingIntSet   RichEncoding = 0x1 // RichEncodingIntSet is a sorted integer array set.
	RichEncodingListPack RichEncoding = 0x2 // RichEncodingListPack is a flat serialized container.
	RichEncodingTable    RichEncoding = 0x3 // RichEncodingTable is a hash-table backed container.
	RichEncodingSkipList RichEncoding = 0x4 // RichEncodingSkipList is a sorted-set skip list.
	RichEncodingStream   RichEncoding = 0x5 // RichEncodingStream is a radix-tree stream.
)

func (e Encoding) String() string {
	switch e {
	case EncodingSmallInt:
		return "SmallInt"
	case EncodingInlineRaw:
		return "InlineRaw"
	case EncodingInlinePacked:
		return "InlinePacked"
	case EncodingHeap:
		return "Heap"
	case EncodingRich:
		return "Rich"
	default:
		return "Unknown"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

func (t ObjType) String() string {
	switch t {
	case ObjString:
		return "string"
	case ObjList:
		return "list"
	case ObjSet:
		return "set"
	case ObjZSet:
		return "zset"
	case ObjHash:
		return "hash"
	case ObjStream:
		return "stream"
	default:
		return "unknown"
	}
}

func (r RichEncoding) String() string {
	switch r {
	case RichEncodingIntSet:
		return "intset"
	case RichEncodingListPack:
		return "listpack"
	case RichEncodingTable:
		return "hashtable"
	case RichEncodingSkipList:
		return "skiplist"
	case RichEncodingStream:
		return "stream"
	default:
		return "unknown"
	}
}
