package geometry

import (
	"encoding/json"
	"errors"

	"growgent/internal/types"
)

// PlaceholderDelta is the half-width, in degrees, of the square used for zones
// created without a drawn polygon.
const PlaceholderDelta = 0.01

// ErrNotEnoughPoints is returned when fewer than three vertices are supplied.
var ErrNotEnoughPoints = errors.New("polygon needs at least 3 points")

// ClosedRing returns a copy of points with the first point repeated at the end.
// The input slice is never modified.
func ClosedRing(points []types.Position) []types.Position {
	ring := make([]types.Position, 0, len(points)+1)
	ring = append(ring, points...)
	if len(points) > 0 {
		ring = append(ring, points[0])
	}
	return ring
}

// PolygonFromPoints builds a single-ring polygon Feature from open vertices.
func PolygonFromPoints(points []types.Position) (types.Feature, error) {
	if len(points) < 3 {
		return types.Feature{}, ErrNotEnoughPoints
	}
	return types.Feature{
		Type:       types.GeoJSONFeature,
		Geometry:   types.NewPolygonGeometry(ClosedRing(points)),
		Properties: map[string]any{},
	}, nil
}

// PlaceholderPolygon returns a small square around center.
func PlaceholderPolygon(center types.Position) types.Feature {
	lng, lat := center.Lng(), center.Lat()
	d := PlaceholderDelta
	f, _ := PolygonFromPoints([]types.Position{
		{lng - d, lat - d},
		{lng + d, lat - d},
		{lng + d, lat + d},
		{lng - d, lat + d},
	})
	return f
}

// Centroid returns a representative point for the feature: the point itself,
// the vertex average of a line, or the vertex average of the outer ring of a
// polygon (the first polygon of a MultiPolygon). The closing point of a ring is
// not counted twice.
func Centroid(f *types.Feature) (types.Position, bool) {
	if f == nil || f.Geometry == nil {
		return types.Position{}, false
	}
	g := f.Geometry
	switch g.Type {
	case types.GeometryPoint:
		p, err := g.PointCoordinates()
		return p, err == nil
	case types.GeometryLineString:
		var line []types.Position
		if err := json.Unmarshal(g.Coordinates, &line); err != nil {
			return types.Position{}, false
		}
		return average(line)
	case types.GeometryPolygon:
		rings, err := g.PolygonRings()
		if err != nil || len(rings) == 0 {
			return types.Position{}, false
		}
		return average(openRing(rings[0]))
	case types.GeometryMultiPolygon:
		polys, err := g.MultiPolygonRings()
		if err != nil || len(polys) == 0 || len(polys[0]) == 0 {
			return types.Position{}, false
		}
		return average(openRing(polys[0][0]))
	default:
		return types.Position{}, false
	}
}

func openRing(ring []types.Position) []types.Position {
	if n := len(ring); n > 1 && ring[0] == ring[n-1] {
		return ring[:n-1]
	}
	return ring
}

func average(points []types.Position) (types.Position, bool) {
	if len(points) == 0 {
		return types.Position{}, false
	}
	var sumLng, sumLat float64
	for _, p := range points {
		sumLng += p.Lng()
		sumLat += p.Lat()
	}
	n := float64(len(points))
	return types.Position{sumLng / n, sumLat / n}, true
}
