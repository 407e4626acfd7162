//go:build !govips || !cgo

package preview

import "github.com/rs/zerolog"

// Startup is a no-op without libvips; previews use the pure Go renderer.
func Startup(zerolog.Logger) error {
	return nil
}

func Shutdown() {}

func newRenderer() (Renderer, error) {
	return stdRenderer{}, nil
}
