package alloc

import "sort"

const (
	// minClass is the smallest block size handed out, also for Alloc(0).
	minClass = 8

	// MaxSmallSize is the largest request served from shared pages.
	MaxSmallSize = 32 * 1024

	// hugeAlign is the rounding applied to requests above MaxSmallSize.
	hugeAlign = 4096

	// hugeClass marks a dedicated page.
	hugeClass = -1
)

// sizeClasses holds block sizes in increasing order: multiples of 8 up to 64,
// then four classes per power of two up to MaxSmallSize.
var sizeClasses = buildSizeClasses()

func buildSizeClasses() []int {
	classes := make([]int, 0, 64)
	for size := minClass; size <= 64; size += 8 {
		classes = append(classes, size)
	}

	for base := 64; base < MaxSmallSize; base *= 2 {
		step := base / 4
		for size := base + step; size <= 2*base; size += step {
			classes = append(classes, size)
		}
	}

	return classes
}

// classOf returns the index of the smallest class holding size bytes.
// size must not exceed MaxSmallSize.
func classOf(size int) int {
	return sort.SearchInts(sizeClasses, size)
}

// ClassSize returns the usable size Alloc would return for a request of size
// bytes.
func ClassSize(size int) int {
	if size > MaxSmallSize {
		return roundUp(size, hugeAlign)
	}

	return sizeClasses[classOf(size)]
}

func roundUp(n, align int) int {
	return (n + align - 1) / align * align
}
