package layers

import "growgent/internal/types"

// ClickEvent is a click delivered by the map. Seq increases with every
// physical click; the map may deliver the same click once per subscribed layer.
type ClickEvent struct {
	Seq        uint64         `json:"seq"`
	LayerID    string         `json:"layer_id"`
	FeatureIDs []string       `json:"feature_ids"`
	LngLat     types.Position `json:"lng_lat"`
}

// FieldSelector turns clicks on the fields fill layer into field selections.
type FieldSelector struct {
	lastSeq uint64
	seen    bool
}

// HandleClick reports the topmost clicked field id. Each click sequence
// number is reported at most once; clicks on other layers, clicks without
// features, and replays of an already seen or older sequence are ignored.
func (s *FieldSelector) HandleClick(ev ClickEvent) (string, bool) {
	if s.seen && ev.Seq <= s.lastSeq {
		return "", false
	}
	if ev.LayerID != FieldsFillLayer && ev.LayerID != GroupFields+"-point" {
		return "", false
	}
	if len(ev.FeatureIDs) == 0 || ev.FeatureIDs[0] == "" {
		return "", false
	}
	s.lastSeq = ev.Seq
	s.seen = true
	return ev.FeatureIDs[0], true
}
