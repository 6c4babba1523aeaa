// Package geometry normalizes the geometry values stored on fields and zones
// into GeoJSON Features.
package geometry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"growgent/internal/types"
)

// wktPoint matches the WKT form PostGIS returns for point locations, with an
// optional EWKT SRID prefix.
var wktPoint = regexp.MustCompile(`(?i)^(?:SRID=(\d+);)?\s*POINT\s*\(\s*([-+]?[0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)\s+([-+]?[0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)\s*\)$`)

// Parser converts stored geometry values into Features. Unparsable input is
// logged and yields nil.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser. A nil logger uses slog.Default.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// probe is the subset of a GeoJSON object needed to classify it.
type probe struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Parse normalizes v into a Feature.
//
// Accepted inputs are nil, GeoJSON text (string, []byte, json.RawMessage),
// WKT POINT text, decoded JSON maps, and the geometry types of package types.
// A Feature is returned unchanged; a bare Point, LineString, Polygon or
// MultiPolygon is wrapped in a Feature with empty properties. Everything else
// returns nil.
func (p *Parser) Parse(v any) *types.Feature {
	switch val := v.(type) {
	case nil:
		return nil
	case *types.Feature:
		if val == nil {
			return nil
		}
		if val.Type == types.GeoJSONFeature {
			return val
		}
		return nil
	case types.Feature:
		if val.Type == types.GeoJSONFeature {
			return &val
		}
		return nil
	case *types.Geometry:
		if val == nil {
			return nil
		}
		return wrap(*val)
	case types.Geometry:
		return wrap(val)
	case string:
		return p.parseText(val)
	case *string:
		if val == nil {
			return nil
		}
		return p.parseText(*val)
	case json.RawMessage:
		return p.parseText(string(val))
	case []byte:
		return p.parseText(string(val))
	case map[string]any:
		raw, err := json.Marshal(val)
		if err != nil {
			p.logger.Warn("failed to encode geometry object", "error", err)
			return nil
		}
		return p.parseJSON(raw)
	default:
		p.logger.Warn("unsupported geometry value", "type", fmt.Sprintf("%T", v))
		return nil
	}
}

func (p *Parser) parseText(s string) *types.Feature {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil
	}
	if m := wktPoint.FindStringSubmatch(s); m != nil {
		return p.parseWKTPoint(m)
	}
	return p.parseJSON([]byte(s))
}

func (p *Parser) parseJSON(raw []byte) *types.Feature {
	var pr probe
	if err := json.Unmarshal(raw, &pr); err != nil {
		p.logger.Warn("failed to parse geometry", "error", err)
		return nil
	}

	switch {
	case pr.Type == types.GeoJSONFeature:
		var f types.Feature
		if err := json.Unmarshal(raw, &f); err != nil {
			p.logger.Warn("failed to parse geometry feature", "error", err)
			return nil
		}
		return &f
	case types.IsKnownGeometry(types.GeometryType(pr.Type)):
		return wrap(types.Geometry{Type: types.GeometryType(pr.Type), Coordinates: pr.Coordinates})
	default:
		return nil
	}
}

func (p *Parser) parseWKTPoint(m []string) *types.Feature {
	if m[1] != "" && m[1] != "4326" {
		p.logger.Warn("unsupported geometry SRID", "srid", m[1])
		return nil
	}
	lng, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		p.logger.Warn("failed to parse WKT longitude", "error", err)
		return nil
	}
	lat, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		p.logger.Warn("failed to parse WKT latitude", "error", err)
		return nil
	}
	return wrap(*types.NewPointGeometry(types.Position{lng, lat}))
}

// wrap puts a known geometry into a Feature with empty properties. Geometries
// without coordinates are rejected.
func wrap(g types.Geometry) *types.Feature {
	if !types.IsKnownGeometry(g.Type) {
		return nil
	}
	if c := strings.TrimSpace(string(g.Coordinates)); c == "" || c == "null" || c[0] != '[' {
		return nil
	}
	return &types.Feature{
		Type:       types.GeoJSONFeature,
		Geometry:   &g,
		Properties: map[string]any{},
	}
}

// Parse normalizes v with a parser that logs to slog.Default.
func Parse(v any) *types.Feature {
	return NewParser(nil).Parse(v)
}
