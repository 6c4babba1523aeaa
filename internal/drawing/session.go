// Package drawing turns map clicks into a polygon.
package drawing

import (
	"fmt"
	"log/slog"
	"slices"

	"growgent/internal/geometry"
	"growgent/internal/mapengine"
	"growgent/internal/types"
)

// State is the phase of a drawing session.
type State int

const (
	Inactive State = iota
	Collecting
	Completing
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Collecting:
		return "collecting"
	case Completing:
		return "completing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Preview ids on the map engine.
const (
	PreviewSource    = "drawing-preview"
	PreviewLineLayer = "drawing-preview-line"
	markerPrefix     = "drawing-point-"
	previewColor     = "#2563eb"
)

// MinPoints is the number of vertices a polygon needs before it can be completed.
const MinPoints = 3

// Session accumulates clicked points into a polygon and previews them on the
// map. A map has one Session; it is not safe for concurrent use.
type Session struct {
	engine     mapengine.Engine
	onComplete func(types.Feature)
	logger     *slog.Logger

	state     State
	points    []types.Position
	markers   []string
	lineShown bool
	markerSeq int
}

// NewSession creates an inactive session. onComplete receives every finished
// polygon and may be nil.
func NewSession(engine mapengine.Engine, onComplete func(types.Feature), logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{engine: engine, onComplete: onComplete, logger: logger}
}

// State returns the current phase.
func (s *Session) State() State { return s.state }

// Points returns a copy of the collected vertices.
func (s *Session) Points() []types.Position { return slices.Clone(s.points) }

// Start enters drawing mode with an empty point list, discarding any preview
// left from an earlier session.
func (s *Session) Start() {
	s.clearPreviews()
	s.points = nil
	s.state = Collecting
}

// AddPoint appends a vertex while collecting. Out-of-range points and a
// repeat of the previous point (the clicks of a double-click) are ignored.
func (s *Session) AddPoint(lng, lat float64) bool {
	if s.state != Collecting {
		return false
	}
	p := types.Position{lng, lat}
	if err := types.ValidatePosition(p); err != nil {
		s.logger.Debug("ignoring drawing point", "error", err)
		return false
	}
	if n := len(s.points); n > 0 && s.points[n-1] == p {
		return false
	}
	s.points = append(s.points, p)
	s.addMarker(p)
	if len(s.points) >= 2 {
		s.redrawLine()
	}
	return true
}

// Complete finishes the polygon. With fewer than MinPoints vertices the
// gesture is ignored and the session keeps collecting. On success the closed
// polygon is handed to the completion callback exactly once and all previews
// are removed.
func (s *Session) Complete() (types.Feature, bool) {
	if s.state != Collecting || len(s.points) < MinPoints {
		return types.Feature{}, false
	}
	s.state = Completing
	feature, err := geometry.PolygonFromPoints(s.points)
	if err != nil {
		s.state = Collecting
		return types.Feature{}, false
	}
	s.clearPreviews()
	s.points = nil
	s.state = Inactive
	if s.onComplete != nil {
		s.onComplete(feature)
	}
	return feature, true
}

// Abort leaves drawing mode, discarding points and previews. Nothing is reported.
func (s *Session) Abort() {
	s.clearPreviews()
	s.points = nil
	s.state = Inactive
}

// SetDrawing maps the drawing-mode switch onto Start and Abort.
func (s *Session) SetDrawing(on bool) {
	switch {
	case on:
		s.Start()
	case s.state != Inactive || len(s.markers) > 0 || s.lineShown:
		s.Abort()
	}
}

func (s *Session) addMarker(p types.Position) {
	if !s.engine.Ready() {
		return
	}
	s.markerSeq++
	id := fmt.Sprintf("%s%d", markerPrefix, s.markerSeq)
	if err := s.engine.AddMarker(id, p); err != nil {
		s.logger.Warn("failed to add drawing marker", "marker", id, "error", err)
		return
	}
	s.markers = append(s.markers, id)
}

// redrawLine replaces the preview line. With three or more points the line
// returns to the first point; the point list itself is left open.
func (s *Session) redrawLine() {
	if !s.engine.Ready() {
		return
	}
	s.removeLine()
	line := s.points
	if len(line) >= MinPoints {
		line = geometry.ClosedRing(line)
	}
	fc := types.NewFeatureCollection([]types.Feature{{
		Type:       types.GeoJSONFeature,
		Geometry:   types.NewLineStringGeometry(line),
		Properties: map[string]any{},
	}})
	if err := s.engine.AddSource(PreviewSource, mapengine.Source{Type: mapengine.SourceGeoJSON, Data: &fc}); err != nil {
		s.logger.Warn("failed to add drawing preview source", "error", err)
		return
	}
	layer := mapengine.Layer{
		ID:     PreviewLineLayer,
		Type:   mapengine.LayerLine,
		Source: PreviewSource,
		Paint: map[string]any{
			"line-color":     previewColor,
			"line-width":     2,
			"line-dasharray": []any{2, 2},
		},
	}
	if err := s.engine.AddLayer(layer); err != nil {
		s.logger.Warn("failed to add drawing preview line", "error", err)
		_ = s.engine.RemoveSource(PreviewSource)
		return
	}
	s.lineShown = true
}

func (s *Session) removeLine() {
	if s.engine.HasLayer(PreviewLineLayer) {
		if err := s.engine.RemoveLayer(PreviewLineLayer); err != nil {
			s.logger.Warn("failed to remove drawing preview line", "error", err)
		}
	}
	if s.engine.HasSource(PreviewSource) {
		if err := s.engine.RemoveSource(PreviewSource); err != nil {
			s.logger.Warn("failed to remove drawing preview source", "error", err)
		}
	}
	s.lineShown = false
}

func (s *Session) clearPreviews() {
	if s.engine.Ready() {
		for _, id := range s.markers {
			if err := s.engine.RemoveMarker(id); err != nil {
				s.logger.Debug("drawing marker already gone", "marker", id, "error", err)
			}
		}
		s.removeLine()
	}
	s.markers = nil
	s.lineShown = false
}
