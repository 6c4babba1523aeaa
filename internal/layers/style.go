package layers

import (
	"fmt"
	"regexp"

	"growgent/internal/types"
)

// Field colors.
const (
	SelectedFieldFill    = "#16a34a"
	SelectedFieldOutline = "#14532d"
	FieldFill            = "#86efac"
	FieldOutline         = "#22c55e"
	SensorColor          = "#0ea5e9"
)

// LevelStyle is the fill and outline color used for one risk level.
type LevelStyle struct {
	Fill    string `json:"fill" yaml:"fill"`
	Outline string `json:"outline" yaml:"outline"`
}

// Palette maps each risk level to its style.
type Palette map[types.RiskLevel]LevelStyle

// DefaultPalette returns the built-in level colors.
func DefaultPalette() Palette {
	return Palette{
		types.LevelCritical: {Fill: "#dc2626", Outline: "#991b1b"},
		types.LevelHigh:     {Fill: "#ea580c", Outline: "#9a3412"},
		types.LevelModerate: {Fill: "#eab308", Outline: "#a16207"},
		types.LevelLow:      {Fill: "#22c55e", Outline: "#15803d"},
		types.LevelInfo:     {Fill: "#3b82f6", Outline: "#1d4ed8"},
	}
}

// For returns the style of level. Unknown levels, and levels the palette
// leaves out, use the info style.
func (p Palette) For(level types.RiskLevel) LevelStyle {
	if s, ok := p[level]; ok {
		return s
	}
	if s, ok := p[types.LevelInfo]; ok {
		return s
	}
	return DefaultPalette()[types.LevelInfo]
}

// Merge returns a copy of p with the entries of override replacing its own.
func (p Palette) Merge(override Palette) Palette {
	out := make(Palette, len(p)+len(override))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate checks that every entry names a known level and uses hex colors.
func (p Palette) Validate() error {
	for level, s := range p {
		if !level.Valid() {
			return fmt.Errorf("palette: unknown risk level %q", level)
		}
		if !hexColor.MatchString(s.Fill) || !hexColor.MatchString(s.Outline) {
			return fmt.Errorf("palette: level %q must use hex colors, got fill=%q outline=%q", level, s.Fill, s.Outline)
		}
	}
	return nil
}

// FieldStyle returns the fill and outline for a field.
func FieldStyle(selected bool) LevelStyle {
	if selected {
		return LevelStyle{Fill: SelectedFieldFill, Outline: SelectedFieldOutline}
	}
	return LevelStyle{Fill: FieldFill, Outline: FieldOutline}
}
