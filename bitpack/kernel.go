package bitpack

import (
	"os"
	"strings"
)

// Kernel identifies an implementation of the validate and pack routines.
type Kernel uint8

const (
	// KernelScalar processes one 8-byte group per iteration.
	KernelScalar Kernel = iota
	// KernelWide processes two 8-byte groups per iteration.
	KernelWide
)

// String returns the string representation of a Kernel.
func (k Kernel) String() string {
	switch k {
	case KernelScalar:
		return "scalar"
	case KernelWide:
		return "wide"
	default:
		return "unknown"
	}
}

// ParseKernel parses a kernel name.
func ParseKernel(s string) (Kernel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scalar", "generic":
		return KernelScalar, true
	case "wide":
		return KernelWide, true
	default:
		return KernelScalar, false
	}
}

// kernelEnv overrides runtime kernel selection.
const kernelEnv = "KVCORE_ASCII_KERNEL"

// Package-level state, fixed during init.
var (
	activeKernel   Kernel
	activeValidate = validateScalar
	activePack     = packScalar

	// hasWideUnits is set by the platform-specific init.
	hasWideUnits bool
)

func initKernel() {
	activeKernel = KernelScalar
	if hasWideUnits {
		activeKernel = KernelWide
	}

	if override := os.Getenv(kernelEnv); override != "" {
		if k, ok := ParseKernel(override); ok {
			activeKernel = k
		}
	}

	setKernel(activeKernel)
}

func setKernel(k Kernel) {
	switch k {
	case KernelWide:
		activeValidate = validateWide
		activePack = packWide
	default:
		activeValidate = validateScalar
		activePack = packScalar
	}
}

// ActiveKernel returns the kernel selected at init.
func ActiveKernel() Kernel {
	return activeKernel
}
