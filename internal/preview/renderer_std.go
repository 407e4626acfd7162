package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/passportflow/internal/transform"
	"golang.org/x/image/draw"
)

type stdRenderer struct{}

func (stdRenderer) Render(ctx context.Context, src []byte, d transform.Display, opts Options) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	if err := checkSourcePixels(src); err != nil {
		return Result{}, err
	}
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("decode source image: %w", err)
	}

	edge := maxEdge(opts)
	if b := img.Bounds(); b.Dx() > edge || b.Dy() > edge {
		img = imaging.Fit(img, edge, edge, imaging.Lanczos)
	}

	var out *image.NRGBA
	switch d.QuarterTurns {
	case 1:
		out = imaging.Rotate90(img)
	case 2:
		out = imaging.Rotate180(img)
	case 3:
		out = imaging.Rotate270(img)
	default:
		out = imaging.Clone(img)
	}

	if d.BrightnessFactor != 1 || d.ContrastFactor != 1 {
		b, c := d.BrightnessFactor, d.ContrastFactor
		out = imaging.AdjustFunc(out, func(px color.NRGBA) color.NRGBA {
			return color.NRGBA{R: level(px.R, b, c), G: level(px.G, b, c), B: level(px.B, b, c), A: px.A}
		})
	}

	if d.Scale != 1 {
		out = zoom(out, d.Scale)
	}

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	format := normalizeOutputFormat(opts.Format)
	data, err := encodeImage(out, format, opts.Quality)
	if err != nil {
		return Result{}, err
	}
	bounds := out.Bounds()
	return Result{Data: data, Format: format, Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

// zoom scales src about its center onto a canvas of the same size. Zooming
// out leaves a transparent border; zooming in crops.
func zoom(src *image.NRGBA, scale float64) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	x0, y0, x1, y1 := zoomRect(b.Dx(), b.Dy(), scale)
	draw.CatmullRom.Scale(dst, image.Rect(x0, y0, x1, y1), src, b, draw.Over, nil)
	return dst
}

func encodeImage(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case "jpeg":
		if quality <= 0 || quality > 100 {
			quality = 85
		}
		if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	default:
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// flatten composites img over white so JPEG previews do not turn
// transparent borders black.
func flatten(img image.Image) image.Image {
	bg := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
