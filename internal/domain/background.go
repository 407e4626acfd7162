package domain

import (
	"fmt"
	"regexp"
	"strings"
)

type BackgroundPreset string

const (
	BackgroundWhite       BackgroundPreset = "white"
	BackgroundLightGray   BackgroundPreset = "lightgray"
	BackgroundBlue        BackgroundPreset = "blue"
	BackgroundTransparent BackgroundPreset = "transparent"
	BackgroundCustom      BackgroundPreset = "custom"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9a-f]{6}$`)

// BackgroundSpec is either a named preset or a custom #rrggbb color.
type BackgroundSpec struct {
	Preset BackgroundPreset `json:"preset"`
	Color  string           `json:"color,omitempty"`
}

type BackgroundOption struct {
	Preset  BackgroundPreset
	Name    string
	Display string
}

func BackgroundOptions() []BackgroundOption {
	return []BackgroundOption{
		{Preset: BackgroundWhite, Name: "White", Display: "#ffffff"},
		{Preset: BackgroundLightGray, Name: "Light Gray", Display: "#f0f0f0"},
		{Preset: BackgroundBlue, Name: "Blue", Display: "#0078d7"},
		{Preset: BackgroundTransparent, Name: "Transparent", Display: "transparent"},
	}
}

func DefaultBackground() BackgroundSpec {
	return BackgroundSpec{Preset: BackgroundWhite}
}

func PresetBackground(p BackgroundPreset) (BackgroundSpec, error) {
	switch p {
	case BackgroundWhite, BackgroundLightGray, BackgroundBlue, BackgroundTransparent:
		return BackgroundSpec{Preset: p}, nil
	default:
		return BackgroundSpec{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidColor, p)
	}
}

func CustomBackground(color string) (BackgroundSpec, error) {
	color = strings.ToLower(strings.TrimSpace(color))
	if !hexColorPattern.MatchString(color) {
		return BackgroundSpec{}, fmt.Errorf("%w: color must be #rrggbb, got %q", ErrInvalidColor, color)
	}
	return BackgroundSpec{Preset: BackgroundCustom, Color: color}, nil
}

// ParseBackground accepts a preset key ("light-gray" is an alias of
// "lightgray") or a #rrggbb color.
func ParseBackground(value string) (BackgroundSpec, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if strings.HasPrefix(value, "#") {
		return CustomBackground(value)
	}
	if value == "light-gray" || value == "light_gray" {
		value = string(BackgroundLightGray)
	}
	return PresetBackground(BackgroundPreset(value))
}

// WireValue is the value sent as "background" to the processing service.
func (b BackgroundSpec) WireValue() string {
	if b.Preset == BackgroundCustom {
		return b.Color
	}
	if b.Preset == "" {
		return string(BackgroundWhite)
	}
	return string(b.Preset)
}

func (b BackgroundSpec) RequiresAlpha() bool {
	return b.Preset == BackgroundTransparent
}

func (b BackgroundSpec) Validate() error {
	if b.Preset == BackgroundCustom {
		_, err := CustomBackground(b.Color)
		return err
	}
	_, err := PresetBackground(b.Preset)
	return err
}
