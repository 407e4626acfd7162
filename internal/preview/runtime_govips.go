//go:build govips && cgo

package preview

import (
	"errors"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/rs/zerolog"
)

// libvips is process global. Startup and Shutdown are reference counted so
// that a binary embedding several renderers tears it down once.
var (
	vipsMu   sync.Mutex
	vipsRefs int
)

func Startup(logger zerolog.Logger) error {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	vipsRefs++
	if vipsRefs > 1 {
		return nil
	}

	logger = logger.With().Str("component", "libvips").Logger()
	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logger.Error().Str("domain", domain).Msg(msg)
		case vips.LogLevelWarning:
			logger.Warn().Str("domain", domain).Msg(msg)
		default:
			logger.Debug().Str("domain", domain).Msg(msg)
		}
	}, vips.LogLevelWarning)

	// Previews are bounded by MaxEdge, so a small operation cache is enough.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheFiles:    0,
		MaxCacheMem:      32 << 20,
		MaxCacheSize:     32,
	})
	return nil
}

func Shutdown() {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	if vipsRefs == 0 {
		return
	}
	vipsRefs--
	if vipsRefs == 0 {
		vips.Shutdown()
	}
}

func newRenderer() (Renderer, error) {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	if vipsRefs == 0 {
		return nil, errors.New("libvips is not started")
	}
	return govipsRenderer{}, nil
}
