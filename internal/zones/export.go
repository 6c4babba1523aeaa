package zones

import (
	"encoding/json"
	"fmt"
	"time"

	"growgent/internal/types"
)

// Export file extensions.
const (
	ExtGeoJSON = "geojson"
	ExtXLSX    = "xlsx"
)

// FeatureCollection turns zones into a FeatureCollection with each zone's
// attributes flattened into its feature's properties. Input zones are not
// modified.
func FeatureCollection(zones []types.RiskZone) types.FeatureCollection {
	features := make([]types.Feature, 0, len(zones))
	for _, z := range zones {
		f := z.Geometry.Clone()
		f.Type = types.GeoJSONFeature
		f.ID = z.ID
		f.Properties["id"] = z.ID
		f.Properties["name"] = z.Name
		f.Properties["type"] = string(z.Type)
		f.Properties["level"] = string(z.Level)
		f.Properties["description"] = deref(z.Description)
		f.Properties["field_id"] = deref(z.FieldID)
		f.Properties["farm_id"] = deref(z.FarmID)
		f.Properties["created_at"] = z.CreatedAt.UTC().Format(time.RFC3339)
		f.Properties["updated_at"] = z.UpdatedAt.UTC().Format(time.RFC3339)
		if len(z.Metadata) > 0 {
			f.Properties["metadata"] = z.Metadata
		}
		features = append(features, f)
	}
	return types.NewFeatureCollection(features)
}

// ExportGeoJSON renders zones as a pretty-printed FeatureCollection.
func ExportGeoJSON(zones []types.RiskZone) ([]byte, error) {
	data, err := json.MarshalIndent(FeatureCollection(zones), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding zones as GeoJSON: %w", err)
	}
	return data, nil
}

// ExportFilename returns the download name for an export made at now, e.g.
// zones-2026-06-01.geojson.
func ExportFilename(now time.Time, ext string) string {
	return fmt.Sprintf("zones-%s.%s", now.UTC().Format(time.DateOnly), ext)
}

// deref returns nil for a nil pointer so the property serializes as null.
func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
