// Package mapengine defines the contract between the map logic and the
// interactive map that renders it.
package mapengine

import (
	"errors"

	"growgent/internal/types"
)

// SourceType is the kind of data a source feeds to its layers.
type SourceType string

const (
	SourceGeoJSON SourceType = "geojson"
	SourceRaster  SourceType = "raster"
)

// Source is a named data source.
type Source struct {
	Type     SourceType               `json:"type"`
	Data     *types.FeatureCollection `json:"data,omitempty"`
	Tiles    []string                 `json:"tiles,omitempty"`
	TileSize int                      `json:"tileSize,omitempty"`
}

// LayerType is the rendering primitive of a layer.
type LayerType string

const (
	LayerFill   LayerType = "fill"
	LayerLine   LayerType = "line"
	LayerCircle LayerType = "circle"
	LayerRaster LayerType = "raster"
)

// Layer is a styled view of a source. A non-empty Before inserts the layer
// below the named layer instead of on top of the stack.
type Layer struct {
	ID     string         `json:"id"`
	Type   LayerType      `json:"type"`
	Source string         `json:"source"`
	Paint  map[string]any `json:"paint,omitempty"`
	Filter []any          `json:"filter,omitempty"`
	Before string         `json:"before,omitempty"`
}

// Engine is the mutable map surface. Implementations must reject duplicate
// ids rather than silently replacing.
type Engine interface {
	Ready() bool
	HasSource(id string) bool
	AddSource(id string, src Source) error
	RemoveSource(id string) error
	HasLayer(id string) bool
	AddLayer(layer Layer) error
	RemoveLayer(id string) error
	AddMarker(id string, at types.Position) error
	RemoveMarker(id string) error
}

// Engine errors.
var (
	ErrNotReady      = errors.New("map engine is not ready")
	ErrDuplicateID   = errors.New("id already exists on the map")
	ErrUnknownID     = errors.New("id does not exist on the map")
	ErrUnknownSource = errors.New("layer references an unknown source")
	ErrSourceInUse   = errors.New("source is still referenced by a layer")
)

// OpKind names one engine mutation.
type OpKind string

const (
	OpAddSource    OpKind = "add_source"
	OpRemoveSource OpKind = "remove_source"
	OpAddLayer     OpKind = "add_layer"
	OpRemoveLayer  OpKind = "remove_layer"
	OpAddMarker    OpKind = "add_marker"
	OpRemoveMarker OpKind = "remove_marker"
)

// Op is a single mutation applied to an engine. It is also the payload the
// browser receives for every change.
type Op struct {
	Kind     OpKind          `json:"kind"`
	ID       string          `json:"id"`
	Source   *Source         `json:"source,omitempty"`
	Layer    *Layer          `json:"layer,omitempty"`
	Position *types.Position `json:"position,omitempty"`
}

// Apply replays op against e.
func Apply(e Engine, op Op) error {
	switch op.Kind {
	case OpAddSource:
		if op.Source == nil {
			return errors.New("add_source op without source")
		}
		return e.AddSource(op.ID, *op.Source)
	case OpRemoveSource:
		return e.RemoveSource(op.ID)
	case OpAddLayer:
		if op.Layer == nil {
			return errors.New("add_layer op without layer")
		}
		return e.AddLayer(*op.Layer)
	case OpRemoveLayer:
		return e.RemoveLayer(op.ID)
	case OpAddMarker:
		if op.Position == nil {
			return errors.New("add_marker op without position")
		}
		return e.AddMarker(op.ID, *op.Position)
	case OpRemoveMarker:
		return e.RemoveMarker(op.ID)
	default:
		return errors.New("unknown op kind " + string(op.Kind))
	}
}
