package main

import (
	"github.com/dunamismax/passportflow/internal/transform"
	"github.com/dunamismax/passportflow/internal/wizard"
	"github.com/spf13/cobra"
)

type editFlags struct {
	zoom       float64
	rotate     int
	brightness int
	contrast   int
}

func (f *editFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.zoom, "zoom", transform.DefaultZoom, "Zoom factor (0.5 to 3.0)")
	cmd.Flags().IntVar(&f.rotate, "rotate", 0, "Rotation in degrees, a multiple of 90")
	cmd.Flags().IntVar(&f.brightness, "brightness", transform.NeutralLevel, "Brightness level (0 to 200)")
	cmd.Flags().IntVar(&f.contrast, "contrast", transform.NeutralLevel, "Contrast level (0 to 200)")
}

func (f editFlags) state() transform.State {
	return transform.Normalize(transform.State{
		Zoom:       f.zoom,
		Rotation:   f.rotate,
		Brightness: f.brightness,
		Contrast:   f.contrast,
	})
}

// apply commits the flags to the session as a single edit.
func (f editFlags) apply(s *wizard.Session) (transform.State, error) {
	want := f.state()
	draft := s.BeginEdit()
	draft.Reset()
	draft.SetZoom(want.Zoom)
	for i := 0; i < want.Rotation/transform.RotationStep; i++ {
		draft.RotateRight()
	}
	draft.SetBrightness(want.Brightness)
	draft.SetContrast(want.Contrast)
	return draft.Commit()
}
