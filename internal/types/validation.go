package types

import "fmt"

// Validation constraint constants.
const (
	MinLat        = -90.0
	MaxLat        = 90.0
	MinLon        = -180.0
	MaxLon        = 180.0
	MaxNameLength = 255
	MinRingPoints = 4 // three vertices plus the closing point
)

// ValidatePosition checks that p lies within WGS84 bounds.
func ValidatePosition(p Position) error {
	if p.Lat() < MinLat || p.Lat() > MaxLat {
		return fmt.Errorf("%s: latitude %.6f outside [-90, 90]", ErrCodeValidationGeometry, p.Lat())
	}
	if p.Lng() < MinLon || p.Lng() > MaxLon {
		return fmt.Errorf("%s: longitude %.6f outside [-180, 180]", ErrCodeValidationGeometry, p.Lng())
	}
	return nil
}

// ValidateRing checks that a polygon ring is closed, long enough, and in bounds.
func ValidateRing(ring []Position) error {
	if len(ring) < MinRingPoints {
		return fmt.Errorf("%s: ring has %d positions, need at least %d", ErrCodeValidationGeometry, len(ring), MinRingPoints)
	}
	if ring[0] != ring[len(ring)-1] {
		return fmt.Errorf("%s: ring is not closed", ErrCodeValidationGeometry)
	}
	for _, p := range ring {
		if err := ValidatePosition(p); err != nil {
			return err
		}
	}
	return nil
}

// ValidateZoneGeometry checks that f is a Feature carrying a valid Polygon or
// MultiPolygon.
func ValidateZoneGeometry(f Feature) error {
	if f.Type != GeoJSONFeature {
		return fmt.Errorf("%s: expected a Feature, got %q", ErrCodeValidationGeometry, f.Type)
	}
	switch {
	case f.Geometry == nil:
		return fmt.Errorf("%s: feature has no geometry", ErrCodeValidationGeometry)
	case f.Geometry.Type == GeometryPolygon:
		rings, err := f.Geometry.PolygonRings()
		if err != nil {
			return fmt.Errorf("%s: %v", ErrCodeValidationGeometry, err)
		}
		return validateRings(rings)
	case f.Geometry.Type == GeometryMultiPolygon:
		polys, err := f.Geometry.MultiPolygonRings()
		if err != nil {
			return fmt.Errorf("%s: %v", ErrCodeValidationGeometry, err)
		}
		if len(polys) == 0 {
			return fmt.Errorf("%s: multipolygon is empty", ErrCodeValidationGeometry)
		}
		for _, rings := range polys {
			if err := validateRings(rings); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%s: zones must be polygons, got %q", ErrCodeValidationGeometry, f.Geometry.Type)
	}
}

func validateRings(rings [][]Position) error {
	if len(rings) == 0 {
		return fmt.Errorf("%s: polygon has no rings", ErrCodeValidationGeometry)
	}
	for _, ring := range rings {
		if err := ValidateRing(ring); err != nil {
			return err
		}
	}
	return nil
}
