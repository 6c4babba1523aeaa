package types

import (
	"encoding/json"
	"fmt"
)

// GeometryType names a GeoJSON geometry kind.
type GeometryType string

const (
	GeometryPoint        GeometryType = "Point"
	GeometryLineString   GeometryType = "LineString"
	GeometryPolygon      GeometryType = "Polygon"
	GeometryMultiPolygon GeometryType = "MultiPolygon"
)

// GeoJSON object type discriminants.
const (
	GeoJSONFeature           = "Feature"
	GeoJSONFeatureCollection = "FeatureCollection"
)

// IsKnownGeometry reports whether t is one of the geometry kinds rendered on the map.
func IsKnownGeometry(t GeometryType) bool {
	switch t {
	case GeometryPoint, GeometryLineString, GeometryPolygon, GeometryMultiPolygon:
		return true
	}
	return false
}

// Position is a [longitude, latitude] pair in WGS84.
type Position [2]float64

// Lng returns the longitude.
func (p Position) Lng() float64 { return p[0] }

// Lat returns the latitude.
func (p Position) Lat() float64 { return p[1] }

// Geometry is a GeoJSON geometry object. Coordinates are kept raw so that every
// geometry kind round-trips without loss.
type Geometry struct {
	Type        GeometryType    `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Feature is a GeoJSON Feature.
type Feature struct {
	Type       string         `json:"type"`
	ID         any            `json:"id,omitempty"`
	Geometry   *Geometry      `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// FeatureCollection is a GeoJSON FeatureCollection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection returns a collection with a non-nil feature slice so it
// always serializes as an array.
func NewFeatureCollection(features []Feature) FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return FeatureCollection{Type: GeoJSONFeatureCollection, Features: features}
}

// NewPointGeometry builds a Point geometry.
func NewPointGeometry(p Position) *Geometry {
	raw, _ := json.Marshal(p)
	return &Geometry{Type: GeometryPoint, Coordinates: raw}
}

// NewLineStringGeometry builds a LineString geometry.
func NewLineStringGeometry(points []Position) *Geometry {
	raw, _ := json.Marshal(points)
	return &Geometry{Type: GeometryLineString, Coordinates: raw}
}

// NewPolygonGeometry builds a single-ring Polygon geometry. The ring is stored
// as given; callers close it.
func NewPolygonGeometry(ring []Position) *Geometry {
	raw, _ := json.Marshal([][]Position{ring})
	return &Geometry{Type: GeometryPolygon, Coordinates: raw}
}

// PointCoordinates decodes the coordinates of a Point geometry.
func (g *Geometry) PointCoordinates() (Position, error) {
	var p Position
	if g == nil || g.Type != GeometryPoint {
		return p, fmt.Errorf("geometry is not a Point")
	}
	if err := json.Unmarshal(g.Coordinates, &p); err != nil {
		return p, fmt.Errorf("decoding point coordinates: %w", err)
	}
	return p, nil
}

// PolygonRings decodes the rings of a Polygon geometry.
func (g *Geometry) PolygonRings() ([][]Position, error) {
	if g == nil || g.Type != GeometryPolygon {
		return nil, fmt.Errorf("geometry is not a Polygon")
	}
	var rings [][]Position
	if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
		return nil, fmt.Errorf("decoding polygon coordinates: %w", err)
	}
	return rings, nil
}

// MultiPolygonRings decodes the polygons of a MultiPolygon geometry.
func (g *Geometry) MultiPolygonRings() ([][][]Position, error) {
	if g == nil || g.Type != GeometryMultiPolygon {
		return nil, fmt.Errorf("geometry is not a MultiPolygon")
	}
	var polys [][][]Position
	if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
		return nil, fmt.Errorf("decoding multipolygon coordinates: %w", err)
	}
	return polys, nil
}

// Clone returns a copy of the feature with its own geometry and properties
// map, so callers can decorate properties without touching the original.
func (f Feature) Clone() Feature {
	props := make(map[string]any, len(f.Properties))
	for k, v := range f.Properties {
		props[k] = v
	}
	f.Properties = props
	if f.Geometry != nil {
		g := *f.Geometry
		g.Coordinates = append(json.RawMessage(nil), g.Coordinates...)
		f.Geometry = &g
	}
	return f
}
