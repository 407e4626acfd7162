// Package transform holds the non-destructive edit model applied to an
// uploaded photo: zoom, rotation, brightness and contrast. Every function is
// pure and returns a new State; the four fields fully determine the visual
// result.
package transform

import "math"

const (
	MinZoom     = 0.5
	MaxZoom     = 3.0
	DefaultZoom = 1.0
	ZoomStep    = 0.1

	RotationStep    = 90
	DefaultRotation = 0

	MinLevel     = 0
	MaxLevel     = 200
	NeutralLevel = 100
)

type State struct {
	Zoom       float64 `json:"zoom"`
	Rotation   int     `json:"rotation"`
	Brightness int     `json:"brightness"`
	Contrast   int     `json:"contrast"`
}

func Reset() State {
	return State{
		Zoom:       DefaultZoom,
		Rotation:   DefaultRotation,
		Brightness: NeutralLevel,
		Contrast:   NeutralLevel,
	}
}

func ZoomIn(s State) State {
	return SetZoom(s, s.Zoom+ZoomStep)
}

func ZoomOut(s State) State {
	return SetZoom(s, s.Zoom-ZoomStep)
}

// SetZoom saturates at the zoom bounds. Values are kept at two decimals so
// repeated steps do not accumulate float drift.
func SetZoom(s State, zoom float64) State {
	if math.IsNaN(zoom) {
		zoom = DefaultZoom
	}
	s.Zoom = clampFloat(math.Round(zoom*100)/100, MinZoom, MaxZoom)
	return s
}

func RotateLeft(s State) State {
	s.Rotation = normalizeRotation(s.Rotation - RotationStep)
	return s
}

func RotateRight(s State) State {
	s.Rotation = normalizeRotation(s.Rotation + RotationStep)
	return s
}

func SetBrightness(s State, v int) State {
	s.Brightness = clampInt(v, MinLevel, MaxLevel)
	return s
}

func SetContrast(s State, v int) State {
	s.Contrast = clampInt(v, MinLevel, MaxLevel)
	return s
}

// Normalize brings an arbitrary State (for example one decoded from a
// request or a persisted snapshot) back inside the valid ranges. A zero
// zoom is treated as unset.
func Normalize(s State) State {
	if s.Zoom == 0 {
		s.Zoom = DefaultZoom
	}
	s = SetZoom(s, s.Zoom)
	s.Rotation = normalizeRotation(snapRotation(s.Rotation))
	s.Brightness = clampInt(s.Brightness, MinLevel, MaxLevel)
	s.Contrast = clampInt(s.Contrast, MinLevel, MaxLevel)
	return s
}

func (s State) IsDefault() bool {
	return s == Reset()
}

func normalizeRotation(deg int) int {
	return ((deg % 360) + 360) % 360
}

func snapRotation(deg int) int {
	q := int(math.Round(float64(deg) / RotationStep))
	return q * RotationStep
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
