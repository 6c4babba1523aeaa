// Package layers composes fields, zones, sensors and imagery into map layers.
package layers

import (
	"fmt"

	"growgent/internal/types"
)

// Toggle names one user-controlled layer switch.
type Toggle string

const (
	ToggleSatellite Toggle = "satellite"
	ToggleSensors   Toggle = "sensors"
	ToggleNDVI      Toggle = "ndvi"
	ToggleFireRisk  Toggle = "fireRisk"
	TogglePSPS      Toggle = "psps"
)

// Toggles lists every switch in panel order.
var Toggles = []Toggle{ToggleSatellite, ToggleSensors, ToggleNDVI, ToggleFireRisk, TogglePSPS}

// LayerState holds the layer panel switches. Fields and custom zones have no
// switch; they are drawn whenever they have content.
type LayerState struct {
	Satellite bool `json:"satellite" yaml:"satellite"`
	Sensors   bool `json:"sensors" yaml:"sensors"`
	NDVI      bool `json:"ndvi" yaml:"ndvi"`
	FireRisk  bool `json:"fireRisk" yaml:"fireRisk"`
	PSPS      bool `json:"psps" yaml:"psps"`
}

// DefaultLayerState is the panel state of a freshly opened map.
func DefaultLayerState() LayerState {
	return LayerState{Sensors: true, FireRisk: true, PSPS: true}
}

// Enabled reports the switch value for t. Unknown names report false.
func (s LayerState) Enabled(t Toggle) bool {
	if p := s.field(t); p != nil {
		return *p
	}
	return false
}

// Set changes one switch.
func (s *LayerState) Set(t Toggle, on bool) error {
	p := s.field(t)
	if p == nil {
		return unknownToggle(t)
	}
	*p = on
	return nil
}

// Flip inverts one switch and returns its new value.
func (s *LayerState) Flip(t Toggle) (bool, error) {
	p := s.field(t)
	if p == nil {
		return false, unknownToggle(t)
	}
	*p = !*p
	return *p, nil
}

func unknownToggle(t Toggle) error {
	return types.NewAppErrorWithDetails(types.ErrCodeValidationUnknownLayer, fmt.Sprintf("unknown layer %q", t), nil,
		map[string]any{"allowed": Toggles})
}

func (s *LayerState) field(t Toggle) *bool {
	switch t {
	case ToggleSatellite:
		return &s.Satellite
	case ToggleSensors:
		return &s.Sensors
	case ToggleNDVI:
		return &s.NDVI
	case ToggleFireRisk:
		return &s.FireRisk
	case TogglePSPS:
		return &s.PSPS
	default:
		return nil
	}
}
