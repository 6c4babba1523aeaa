package types

import "time"

// ZoneEventType names a zone change published to downstream consumers.
type ZoneEventType string

const (
	ZoneCreated ZoneEventType = "zone.created"
	ZoneUpdated ZoneEventType = "zone.updated"
	ZoneDeleted ZoneEventType = "zone.deleted"
)

// ZoneEvent is the queue payload describing one zone mutation. Zone is the
// state after the change and is nil for deletions. JSON tags use snake_case to
// match the backend's Pydantic models.
type ZoneEvent struct {
	EventID    string        `json:"event_id"`
	Type       ZoneEventType `json:"event_type"`
	ZoneID     string        `json:"zone_id"`
	Zone       *RiskZone     `json:"zone,omitempty"`
	RequestID  string        `json:"request_id,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}
