//go:build !amd64 && !arm64

package bitpack

func init() {
	initKernel()
}
