// Package preview renders the local on-screen preview of an uploaded photo
// from its transform, and caches the uploaded bytes the preview is drawn
// from. Nothing here talks to the processing service; the service derives
// its own pixels from the raw transform fields.
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/dunamismax/passportflow/internal/transform"
)

const DefaultMaxEdge = 1024

// MaxSourcePixels caps the decoded size of a source. A small upload can
// still declare dimensions that take gigabytes to decode.
const MaxSourcePixels = 40_000_000

var (
	ErrEmptySource    = errors.New("preview source is empty")
	ErrSourceTooLarge = errors.New("preview source has too many pixels")
)

type Options struct {
	// MaxEdge bounds the longer side of the decoded source before any
	// transform is applied. Zero means DefaultMaxEdge.
	MaxEdge int
	Format  string
	Quality int
}

type Result struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

func (r Result) ContentType() string {
	return ContentTypeForFormat(r.Format)
}

type Renderer interface {
	Render(ctx context.Context, src []byte, d transform.Display, opts Options) (Result, error)
}

// NewRenderer returns the renderer compiled into this binary.
func NewRenderer() (Renderer, error) {
	return newRenderer()
}

// Render is a convenience that derives the display transform from state.
func Render(ctx context.Context, r Renderer, src []byte, state transform.State, opts Options) (Result, error) {
	if len(src) == 0 {
		return Result{}, ErrEmptySource
	}
	out, err := r.Render(ctx, src, transform.ComposeForDisplay(state), opts)
	if err != nil {
		return Result{}, fmt.Errorf("render preview: %w", err)
	}
	return out, nil
}

// checkSourcePixels reads only the image header. Formats the header reader
// does not know are left to the decoder.
func checkSourcePixels(src []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > MaxSourcePixels {
		return fmt.Errorf("%w: %dx%d", ErrSourceTooLarge, cfg.Width, cfg.Height)
	}
	return nil
}

func normalizeOutputFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpg", "jpeg":
		return "jpeg"
	default:
		return "png"
	}
}

func ContentTypeForFormat(format string) string {
	switch normalizeOutputFormat(format) {
	case "jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}

func maxEdge(opts Options) int {
	if opts.MaxEdge <= 0 {
		return DefaultMaxEdge
	}
	return opts.MaxEdge
}

// zoomRect is the destination of the scaled image, centered on a canvas of
// w x h. It extends past the canvas when zooming in.
func zoomRect(w, h int, scale float64) (x0, y0, x1, y1 int) {
	sw := int(float64(w)*scale + 0.5)
	sh := int(float64(h)*scale + 0.5)
	if sw < 1 {
		sw = 1
	}
	if sh < 1 {
		sh = 1
	}
	x0 = (w - sw) / 2
	y0 = (h - sh) / 2
	return x0, y0, x0 + sw, y0 + sh
}

// level applies the display brightness and then contrast multipliers to one
// 8-bit channel value.
func level(v uint8, brightness, contrast float64) uint8 {
	f := float64(v) / 255 * brightness
	f = (f-0.5)*contrast + 0.5
	switch {
	case f <= 0:
		return 0
	case f >= 1:
		return 255
	default:
		return uint8(f*255 + 0.5)
	}
}
