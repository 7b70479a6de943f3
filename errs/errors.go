// Package errs defines the sentinel errors shared by the kvcore packages.
//
// Callers should match them with errors.Is; packages wrap them with
// additional context using fmt.Errorf("...: %w", err).
package errs

import "errors"

var (
	// ErrUnsupported is returned for features that exist in the API surface but
	// are not implemented by this core: per-field expiry and non-default TTLs.
	ErrUnsupported = errors.New("unsupported feature")

	// ErrNotASCII is returned when packing is requested for input that contains
	// a byte with the high bit set.
	ErrNotASCII = errors.New("input is not 7-bit ASCII")

	// ErrInvalidRatio is returned when a defragmentation ratio is outside [0, 1].
	ErrInvalidRatio = errors.New("ratio must be within [0, 1]")

	// ErrCorruptPayload is returned when a stored compressed payload cannot be decoded
	// back to its recorded length.
	ErrCorruptPayload = errors.New("corrupt payload")

	// ErrInvalidCompression is returned for unknown compression types.
	ErrInvalidCompression = errors.New("invalid compression type")

	// ErrInvalidThreshold is returned when a size threshold option is out of range.
	ErrInvalidThreshold = errors.New("invalid size threshold")

	// ErrInvalidPageSize is returned when an allocator page size is not a power of two
	// or is smaller than the largest size class.
	ErrInvalidPageSize = errors.New("invalid page size")

	// ErrOutOfMemory is returned when an allocation would exceed the allocator limit.
	ErrOutOfMemory = errors.New("allocator memory limit exceeded")
)
