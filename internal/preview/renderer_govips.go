//go:build govips && cgo

package preview

import (
	"context"
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/passportflow/internal/transform"
)

type govipsRenderer struct{}

func (govipsRenderer) Render(ctx context.Context, src []byte, d transform.Display, opts Options) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	if err := checkSourcePixels(src); err != nil {
		return Result{}, err
	}
	img, err := vips.NewImageFromBuffer(src)
	if err != nil {
		return Result{}, fmt.Errorf("decode source image: %w", err)
	}
	defer img.Close()

	if err := img.AutoRotate(); err != nil {
		return Result{}, fmt.Errorf("auto rotate: %w", err)
	}

	edge := maxEdge(opts)
	if longest := max(img.Width(), img.Height()); longest > edge {
		if err := img.Resize(float64(edge)/float64(longest), vips.KernelLanczos3); err != nil {
			return Result{}, fmt.Errorf("fit preview: %w", err)
		}
	}

	if angle := vipsAngle(d.QuarterTurns); angle != vips.Angle0 {
		if err := img.Rotate(angle); err != nil {
			return Result{}, fmt.Errorf("rotate: %w", err)
		}
	}

	if d.BrightnessFactor != 1 || d.ContrastFactor != 1 {
		if err := applyGovipsLevels(img, d.BrightnessFactor, d.ContrastFactor); err != nil {
			return Result{}, err
		}
	}

	if d.Scale != 1 {
		if err := applyGovipsZoom(img, d.Scale); err != nil {
			return Result{}, err
		}
	}

	format := normalizeOutputFormat(opts.Format)
	data, err := exportGovipsImage(img, format, opts.Quality)
	if err != nil {
		return Result{}, err
	}
	return Result{Data: data, Format: format, Width: img.Width(), Height: img.Height()}, nil
}

func vipsAngle(quarterTurns int) vips.Angle {
	switch quarterTurns {
	case 1:
		return vips.Angle90
	case 2:
		return vips.Angle180
	case 3:
		return vips.Angle270
	default:
		return vips.Angle0
	}
}

// applyGovipsLevels folds brightness then contrast into one linear map:
// out = in*b*c + 127.5*(1-c). Alpha passes through.
func applyGovipsLevels(img *vips.ImageRef, brightness, contrast float64) error {
	mul := brightness * contrast
	add := 127.5 * (1 - contrast)

	bands := img.Bands()
	a := make([]float64, bands)
	b := make([]float64, bands)
	for i := range bands {
		a[i], b[i] = mul, add
	}
	if img.HasAlpha() {
		a[bands-1], b[bands-1] = 1, 0
	}

	if err := img.Linear(a, b); err != nil {
		return fmt.Errorf("adjust levels: %w", err)
	}
	if err := img.Cast(vips.BandFormatUchar); err != nil {
		return fmt.Errorf("cast levels: %w", err)
	}
	return nil
}

func applyGovipsZoom(img *vips.ImageRef, scale float64) error {
	w, h := img.Width(), img.Height()
	if err := img.Resize(scale, vips.KernelLanczos3); err != nil {
		return fmt.Errorf("zoom: %w", err)
	}

	sw, sh := img.Width(), img.Height()
	if scale > 1 {
		cw, ch := min(w, sw), min(h, sh)
		if err := img.ExtractArea((sw-cw)/2, (sh-ch)/2, cw, ch); err != nil {
			return fmt.Errorf("crop zoom: %w", err)
		}
		return nil
	}

	if !img.HasAlpha() {
		if err := img.AddAlpha(); err != nil {
			return fmt.Errorf("add alpha: %w", err)
		}
	}
	if err := img.Embed((w-sw)/2, (h-sh)/2, w, h, vips.ExtendBlack); err != nil {
		return fmt.Errorf("pad zoom: %w", err)
	}
	return nil
}

func exportGovipsImage(img *vips.ImageRef, format string, quality int) ([]byte, error) {
	switch format {
	case "jpeg":
		params := vips.NewJpegExportParams()
		if quality > 0 && quality <= 100 {
			params.Quality = quality
		}
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	default:
		data, _, err := img.ExportPng(vips.NewPngExportParams())
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	}
}
