//go:build amd64

package bitpack

import "golang.org/x/sys/cpu"

// SSE2 is part of the amd64 baseline; the check only guards against an
// emulator reporting no features at all.
func init() {
	hasWideUnits = cpu.X86.HasSSE2
	initKernel()
}
