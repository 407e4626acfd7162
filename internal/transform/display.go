package transform

// Display is the local-preview rendering descriptor derived from a State.
// It is never sent to the processing service, which derives its own pixel
// transform from the raw State fields.
type Display struct {
	Scale            float64
	RotationDegrees  int
	QuarterTurns     int
	BrightnessFactor float64
	ContrastFactor   float64
}

func ComposeForDisplay(s State) Display {
	s = Normalize(s)
	return Display{
		Scale:            s.Zoom,
		RotationDegrees:  s.Rotation,
		QuarterTurns:     s.Rotation / RotationStep,
		BrightnessFactor: float64(s.Brightness) / NeutralLevel,
		ContrastFactor:   float64(s.Contrast) / NeutralLevel,
	}
}

// Identity reports whether rendering d would leave the source unchanged.
func (d Display) Identity() bool {
	return d.Scale == DefaultZoom &&
		d.QuarterTurns == 0 &&
		d.BrightnessFactor == 1 &&
		d.ContrastFactor == 1
}
