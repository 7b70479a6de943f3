//go:build arm64

package bitpack

import "golang.org/x/sys/cpu"

// ASIMD is part of the arm64 baseline, as SSE2 is on amd64.
func init() {
	hasWideUnits = cpu.ARM64.HasASIMD
	initKernel()
}
