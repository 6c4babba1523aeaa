package layers

import (
	"growgent/internal/geometry"
	"growgent/internal/mapengine"
	"growgent/internal/types"
)

// Group ids, bottom to top. Each group owns one source with the same id.
const (
	GroupSatellite   = "satellite"
	GroupNDVI        = "ndvi"
	GroupFields      = "fields"
	GroupFireRisk    = "fire-risk-zones"
	GroupPSPS        = "psps-zones"
	GroupCustomZones = "custom-zones"
	GroupSensors     = "sensors"
)

// GroupOrder is the stacking order of the groups.
var GroupOrder = []string{
	GroupSatellite,
	GroupNDVI,
	GroupFields,
	GroupFireRisk,
	GroupPSPS,
	GroupCustomZones,
	GroupSensors,
}

// FieldsFillLayer is the layer whose clicks select a field.
const FieldsFillLayer = GroupFields + "-fill"

// Feature property names read by layer paint expressions.
const (
	PropFillColor    = "fill_color"
	PropOutlineColor = "outline_color"
)

// TileSources holds the raster tile URL templates. An empty URL keeps the
// corresponding group off even when its switch is on.
type TileSources struct {
	Satellite string `json:"satellite,omitempty" yaml:"satellite"`
	NDVI      string `json:"ndvi,omitempty" yaml:"ndvi"`
}

// Inputs is everything the compositor draws.
type Inputs struct {
	Layers          LayerState
	Fields          []types.Field
	SelectedFieldID string
	Zones           []types.RiskZone
	Tiles           TileSources
}

// group is one source plus the layers drawn from it.
type group struct {
	id     string
	source mapengine.Source
	layers []mapengine.Layer
}

func (g group) layerIDs() []string {
	ids := make([]string, len(g.layers))
	for i, l := range g.layers {
		ids[i] = l.ID
	}
	return ids
}

func rasterGroup(id, url string, opacity float64) group {
	return group{
		id:     id,
		source: mapengine.Source{Type: mapengine.SourceRaster, Tiles: []string{url}, TileSize: 256},
		layers: []mapengine.Layer{{
			ID:     id + "-raster",
			Type:   mapengine.LayerRaster,
			Source: id,
			Paint:  map[string]any{"raster-opacity": opacity},
		}},
	}
}

func polygonGroup(id string, features []types.Feature, fillOpacity float64) group {
	fc := types.NewFeatureCollection(features)
	return group{
		id:     id,
		source: mapengine.Source{Type: mapengine.SourceGeoJSON, Data: &fc},
		layers: []mapengine.Layer{
			{
				ID:     id + "-fill",
				Type:   mapengine.LayerFill,
				Source: id,
				Paint: map[string]any{
					"fill-color":   []any{"get", PropFillColor},
					"fill-opacity": fillOpacity,
				},
			},
			{
				ID:     id + "-outline",
				Type:   mapengine.LayerLine,
				Source: id,
				Paint: map[string]any{
					"line-color": []any{"get", PropOutlineColor},
					"line-width": 2,
				},
			},
		},
	}
}

// fieldFeatures parses each field's boundary. Fields whose geometry cannot be
// parsed are left off the map.
func fieldFeatures(p *geometry.Parser, fields []types.Field, selectedID string) []types.Feature {
	out := make([]types.Feature, 0, len(fields))
	for _, fld := range fields {
		f := p.Parse(fld.LocationGeom)
		if f == nil {
			continue
		}
		feat := f.Clone()
		feat.ID = fld.ID
		style := FieldStyle(fld.ID == selectedID)
		feat.Properties["id"] = fld.ID
		feat.Properties["name"] = fld.Name
		feat.Properties["crop_type"] = fld.CropType
		feat.Properties["area_hectares"] = fld.AreaHectares
		feat.Properties["selected"] = fld.ID == selectedID
		feat.Properties[PropFillColor] = style.Fill
		feat.Properties[PropOutlineColor] = style.Outline
		out = append(out, feat)
	}
	return out
}

func fieldsGroup(features []types.Feature) group {
	g := polygonGroup(GroupFields, features, 0.45)
	g.layers = append(g.layers, mapengine.Layer{
		ID:     GroupFields + "-point",
		Type:   mapengine.LayerCircle,
		Source: GroupFields,
		Paint: map[string]any{
			"circle-color":        []any{"get", PropFillColor},
			"circle-radius":       7,
			"circle-stroke-color": []any{"get", PropOutlineColor},
			"circle-stroke-width": 2,
		},
		Filter: []any{"==", []any{"geometry-type"}, "Point"},
	})
	return g
}

// zoneFeatures styles zones whose type passes keep.
func zoneFeatures(palette Palette, zones []types.RiskZone, keep func(types.ZoneType) bool) []types.Feature {
	out := make([]types.Feature, 0, len(zones))
	for _, z := range zones {
		if !keep(z.Type) || z.Geometry.Geometry == nil {
			continue
		}
		feat := z.Geometry.Clone()
		feat.ID = z.ID
		style := palette.For(z.Level)
		feat.Properties["id"] = z.ID
		feat.Properties["name"] = z.Name
		feat.Properties["type"] = string(z.Type)
		feat.Properties["level"] = string(z.Level)
		feat.Properties[PropFillColor] = style.Fill
		feat.Properties[PropOutlineColor] = style.Outline
		out = append(out, feat)
	}
	return out
}

// sensorFeatures places the latest reading of each field at the field's
// representative point.
func sensorFeatures(p *geometry.Parser, fields []types.Field) []types.Feature {
	out := make([]types.Feature, 0)
	for _, fld := range fields {
		r := fld.LatestSensorReading
		if r == nil {
			continue
		}
		at, ok := geometry.Centroid(p.Parse(fld.LocationGeom))
		if !ok {
			continue
		}
		props := map[string]any{
			"sensor_id":         r.SensorID,
			"field_id":          fld.ID,
			"moisture_percent":  r.MoisturePercent,
			"reading_timestamp": r.ReadingTimestamp,
		}
		if r.BatteryLevel != nil {
			props["battery_level"] = *r.BatteryLevel
		}
		if r.Temperature != nil {
			props["temperature"] = *r.Temperature
		}
		out = append(out, types.Feature{
			Type:       types.GeoJSONFeature,
			ID:         r.SensorID,
			Geometry:   types.NewPointGeometry(at),
			Properties: props,
		})
	}
	return out
}

func sensorsGroup(features []types.Feature) group {
	fc := types.NewFeatureCollection(features)
	return group{
		id:     GroupSensors,
		source: mapengine.Source{Type: mapengine.SourceGeoJSON, Data: &fc},
		layers: []mapengine.Layer{{
			ID:     GroupSensors + "-circle",
			Type:   mapengine.LayerCircle,
			Source: GroupSensors,
			Paint: map[string]any{
				"circle-color":        SensorColor,
				"circle-radius":       6,
				"circle-stroke-color": "#ffffff",
				"circle-stroke-width": 1,
			},
		}},
	}
}

func isCustomZone(t types.ZoneType) bool {
	return t == types.ZoneIrrigation || t == types.ZoneCustom
}

func zoneTypeIs(want types.ZoneType) func(types.ZoneType) bool {
	return func(t types.ZoneType) bool { return t == want }
}

// FieldCollection returns the fields that have a parsable boundary as a
// FeatureCollection styled for selectedID.
func FieldCollection(p *geometry.Parser, fields []types.Field, selectedID string) types.FeatureCollection {
	return types.NewFeatureCollection(fieldFeatures(p, fields, selectedID))
}
