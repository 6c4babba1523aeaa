// Package mapsession drives one browser map over a WebSocket. Each session
// owns the page state of a map (layer switches, zone filter, selected field),
// runs a drawing session and a layer compositor against a remote engine, and
// applies zone edits through the zone service.
package mapsession

import (
	"encoding/json"

	"growgent/internal/layers"
	"growgent/internal/types"
	"growgent/internal/zones"
)

// Message is the frame exchanged in both directions. ID is echoed on replies
// and errors so the browser can correlate them.
type Message struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Events sent by the browser.
const (
	EventReady       = "ready"
	EventNotReady    = "not_ready"
	EventClick       = "click"
	EventDoubleClick = "dblclick"
	EventToggleLayer = "toggle_layer"
	EventSetDrawing  = "set_drawing"
	EventSetFilter   = "set_filter"
	EventSelectField = "select_field"
	EventCreateZone  = "create_zone"
	EventUpdateZone  = "update_zone"
	EventDeleteZone  = "delete_zone"
	EventEditZone    = "edit_zone"
)

// Messages sent to the browser.
const (
	MsgOp              = "op"
	MsgFieldSelected   = "field_selected"
	MsgPolygonComplete = "polygon_complete"
	MsgZones           = "zones"
	MsgZone            = "zone"
	MsgError           = "error"
)

// ToggleLayerData flips a layer switch, or sets it when On is given.
type ToggleLayerData struct {
	Layer layers.Toggle `json:"layer"`
	On    *bool         `json:"on,omitempty"`
}

type SetDrawingData struct {
	On bool `json:"on"`
}

type SelectFieldData struct {
	FieldID string `json:"field_id"`
}

// CreateZoneData is the zone dialog. Without a geometry the last completed
// polygon is used, then the placeholder polygon.
type CreateZoneData = zones.CreateZoneInput

type UpdateZoneData struct {
	ID    string          `json:"id"`
	Patch types.ZonePatch `json:"patch"`
}

type DeleteZoneData struct {
	ID        string `json:"id"`
	Confirmed bool   `json:"confirmed"`
}

type EditZoneData struct {
	ID string `json:"id"`
}


type FieldSelectedData struct {
	FieldID string `json:"field_id"`
}

type PolygonCompleteData struct {
	Feature types.Feature `json:"feature"`
}

// ZonesData carries the filtered zone list along with the filter that produced it.
type ZonesData struct {
	Zones  []types.RiskZone `json:"zones"`
	Filter types.ZoneFilter `json:"filter"`
	Total  int              `json:"total"`
}

type ZoneData struct {
	Zone types.RiskZone `json:"zone"`
}

// ErrorData reports a failed event.
type ErrorData struct {
	Code    types.ErrorCode `json:"code"`
	Message string          `json:"message"`
}
