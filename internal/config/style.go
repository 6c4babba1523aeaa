package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"growgent/internal/layers"
)

// mapStyle is the document read from MAP_STYLE_FILE:
//
//	style_url: mapbox://styles/mapbox/satellite-streets-v12
//	center: [-121.49, 38.58]
//	zoom: 14
//	tiles:
//	  satellite: https://tiles.example.com/sat/{z}/{x}/{y}.png
//	palette:
//	  critical: {fill: "#b91c1c", outline: "#7f1d1d"}
//	layers:
//	  satellite: true
//
// Every key is optional.
type mapStyle struct {
	StyleURL string         `yaml:"style_url"`
	Center   []float64      `yaml:"center"`
	Zoom     *float64       `yaml:"zoom"`
	Tiles    styleTiles     `yaml:"tiles"`
	Palette  layers.Palette `yaml:"palette"`
	Layers   layerOverrides `yaml:"layers"`
}

type styleTiles struct {
	Satellite string `yaml:"satellite"`
	NDVI      string `yaml:"ndvi"`
}

// layerOverrides distinguishes an absent switch from one set to false.
type layerOverrides struct {
	Satellite *bool `yaml:"satellite"`
	Sensors   *bool `yaml:"sensors"`
	NDVI      *bool `yaml:"ndvi"`
	FireRisk  *bool `yaml:"fireRisk"`
	PSPS      *bool `yaml:"psps"`
}

func readStyleFile(read fileReader, path string) (*mapStyle, error) {
	raw, err := read(path)
	if err != nil {
		return nil, &ConfigError{
			Type:    ErrStyleFile,
			Message: fmt.Sprintf("failed to read map style file %s", path),
			Err:     err,
		}
	}

	var style mapStyle
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&style); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigError{
			Type:    ErrStyleFile,
			Message: fmt.Sprintf("failed to decode map style file %s", path),
			Err:     err,
		}
	}
	if len(style.Center) != 0 && len(style.Center) != 2 {
		return nil, &ConfigError{
			Type:    ErrStyleFile,
			Message: fmt.Sprintf("map style center must be [lng, lat], got %d values", len(style.Center)),
		}
	}
	return &style, nil
}

// apply copies the style into m. Values whose environment variable is set
// keep the environment's value.
func (s *mapStyle) apply(m *MapConfig, lookup envLookup) {
	fromEnv := func(key string) bool {
		if lookup == nil {
			return false
		}
		_, ok := lookup(key)
		return ok
	}

	if s.StyleURL != "" && !fromEnv("MAP_STYLE_URL") {
		m.StyleURL = s.StyleURL
	}
	if len(s.Center) == 2 {
		if !fromEnv("MAP_CENTER_LNG") {
			m.CenterLng = s.Center[0]
		}
		if !fromEnv("MAP_CENTER_LAT") {
			m.CenterLat = s.Center[1]
		}
	}
	if s.Zoom != nil && !fromEnv("MAP_ZOOM") {
		m.Zoom = *s.Zoom
	}
	if s.Tiles.Satellite != "" && !fromEnv("MAP_SATELLITE_TILES") {
		m.SatelliteTiles = s.Tiles.Satellite
	}
	if s.Tiles.NDVI != "" && !fromEnv("MAP_NDVI_TILES") {
		m.NDVITiles = s.Tiles.NDVI
	}
	if len(s.Palette) > 0 {
		m.Palette = m.Palette.Merge(s.Palette)
	}

	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&m.Layers.Satellite, s.Layers.Satellite)
	set(&m.Layers.Sensors, s.Layers.Sensors)
	set(&m.Layers.NDVI, s.Layers.NDVI)
	set(&m.Layers.FireRisk, s.Layers.FireRisk)
	set(&m.Layers.PSPS, s.Layers.PSPS)
}
