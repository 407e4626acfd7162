package transform

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResetReturnsDefaults(t *testing.T) {
	want := State{Zoom: 1.0, Rotation: 0, Brightness: 100, Contrast: 100}

	if diff := cmp.Diff(want, Reset()); diff != "" {
		t.Fatalf("reset mismatch (-want +got):\n%s", diff)
	}
	if !Reset().IsDefault() {
		t.Fatal("expected reset state to report default")
	}
}

func TestRotateRightFourTimesIsIdentity(t *testing.T) {
	for _, start := range []int{0, 90, 180, 270} {
		s := Reset()
		s.Rotation = start
		got := RotateRight(RotateRight(RotateRight(RotateRight(s))))
		if got.Rotation != start {
			t.Fatalf("start=%d: expected %d after four right turns, got %d", start, start, got.Rotation)
		}
	}
}

func TestRotateLeftThenRightIsIdentity(t *testing.T) {
	for _, start := range []int{0, 90, 180, 270} {
		s := Reset()
		s.Rotation = start
		if got := RotateRight(RotateLeft(s)); got.Rotation != start {
			t.Fatalf("start=%d: got %d", start, got.Rotation)
		}
	}
}

func TestRotateLeftFromZeroIsCanonical(t *testing.T) {
	got := RotateLeft(Reset())
	if got.Rotation != 270 {
		t.Fatalf("expected 270, got %d", got.Rotation)
	}

	s := Reset()
	for i := 0; i < 4; i++ {
		s = RotateLeft(s)
	}
	if s.Rotation != 0 {
		t.Fatalf("expected rotation to return to 0 after four left turns, got %d", s.Rotation)
	}
}

func TestZoomSaturates(t *testing.T) {
	s := Reset()
	for i := 0; i < 100; i++ {
		s = ZoomIn(s)
	}
	if s.Zoom != MaxZoom {
		t.Fatalf("expected zoom to saturate at %v, got %v", MaxZoom, s.Zoom)
	}

	for i := 0; i < 100; i++ {
		s = ZoomOut(s)
	}
	if s.Zoom != MinZoom {
		t.Fatalf("expected zoom to saturate at %v, got %v", MinZoom, s.Zoom)
	}
}

func TestZoomStepsDoNotDrift(t *testing.T) {
	s := Reset()
	for i := 0; i < 5; i++ {
		s = ZoomIn(s)
	}
	if s.Zoom != 1.5 {
		t.Fatalf("expected zoom 1.5 after five steps, got %v", s.Zoom)
	}
}

func TestLevelsClamp(t *testing.T) {
	cases := []struct {
		name string
		in   int
		want int
	}{
		{name: "below", in: -40, want: 0},
		{name: "inside", in: 130, want: 130},
		{name: "above", in: 900, want: 200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SetBrightness(Reset(), tc.in).Brightness; got != tc.want {
				t.Fatalf("brightness: expected %d, got %d", tc.want, got)
			}
			if got := SetContrast(Reset(), tc.in).Contrast; got != tc.want {
				t.Fatalf("contrast: expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestRandomSequencesStayInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := Reset()
	for i := 0; i < 5000; i++ {
		switch rng.Intn(7) {
		case 0:
			s = ZoomIn(s)
		case 1:
			s = ZoomOut(s)
		case 2:
			s = RotateLeft(s)
		case 3:
			s = RotateRight(s)
		case 4:
			s = SetBrightness(s, rng.Intn(600)-200)
		case 5:
			s = SetContrast(s, rng.Intn(600)-200)
		case 6:
			s = SetZoom(s, rng.Float64()*6-1)
		}

		if s.Zoom < MinZoom || s.Zoom > MaxZoom {
			t.Fatalf("step %d: zoom out of range: %v", i, s.Zoom)
		}
		if s.Brightness < MinLevel || s.Brightness > MaxLevel {
			t.Fatalf("step %d: brightness out of range: %d", i, s.Brightness)
		}
		if s.Contrast < MinLevel || s.Contrast > MaxLevel {
			t.Fatalf("step %d: contrast out of range: %d", i, s.Contrast)
		}
		if s.Rotation%90 != 0 || s.Rotation < 0 || s.Rotation >= 360 {
			t.Fatalf("step %d: rotation not canonical: %d", i, s.Rotation)
		}
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize(State{Zoom: 0, Rotation: -450, Brightness: 250, Contrast: -1})
	want := State{Zoom: 1.0, Rotation: 270, Brightness: 200, Contrast: 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestComposeForDisplay(t *testing.T) {
	s := SetContrast(SetBrightness(RotateRight(SetZoom(Reset(), 1.5)), 150), 50)
	got := ComposeForDisplay(s)
	want := Display{
		Scale:            1.5,
		RotationDegrees:  90,
		QuarterTurns:     1,
		BrightnessFactor: 1.5,
		ContrastFactor:   0.5,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("display mismatch (-want +got):\n%s", diff)
	}
	if got.Identity() {
		t.Fatal("expected non-identity display")
	}
	if !ComposeForDisplay(Reset()).Identity() {
		t.Fatal("expected default state to compose to identity")
	}
}
