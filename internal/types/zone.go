package types

import (
	"encoding/json"
	"slices"
	"time"
)

// ZoneType classifies a risk zone.
type ZoneType string

const (
	ZoneFireRisk   ZoneType = "fire_risk"
	ZonePSPS       ZoneType = "psps"
	ZoneIrrigation ZoneType = "irrigation"
	ZoneCustom     ZoneType = "custom"
)

// ZoneTypes lists every zone type in display order.
var ZoneTypes = []ZoneType{ZoneFireRisk, ZonePSPS, ZoneIrrigation, ZoneCustom}

// Valid reports whether t is a known zone type.
func (t ZoneType) Valid() bool {
	switch t {
	case ZoneFireRisk, ZonePSPS, ZoneIrrigation, ZoneCustom:
		return true
	}
	return false
}

// RiskLevel is the severity of a zone, ordered from most to least severe.
type RiskLevel string

const (
	LevelCritical RiskLevel = "critical"
	LevelHigh     RiskLevel = "high"
	LevelModerate RiskLevel = "moderate"
	LevelLow      RiskLevel = "low"
	LevelInfo     RiskLevel = "info"
)

// RiskLevels lists every level from most to least severe.
var RiskLevels = []RiskLevel{LevelCritical, LevelHigh, LevelModerate, LevelLow, LevelInfo}

// Valid reports whether l is a known risk level.
func (l RiskLevel) Valid() bool {
	return l.Severity() >= 0
}

// Severity returns the position of l in the severity order, 0 being the most
// severe. Unknown levels return -1.
func (l RiskLevel) Severity() int {
	for i, known := range RiskLevels {
		if l == known {
			return i
		}
	}
	return -1
}

// Default values applied by the zone dialog.
const (
	DefaultZoneType  = ZoneFireRisk
	DefaultRiskLevel = LevelModerate
)

// RiskZone is a user-created zone drawn on the field map.
type RiskZone struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        ZoneType        `json:"type"`
	Level       RiskLevel       `json:"level"`
	Geometry    Feature         `json:"geometry"`
	Description *string         `json:"description,omitempty"`
	FieldID     *string         `json:"field_id,omitempty"`
	FarmID      *string         `json:"farm_id,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ZonePatch carries the mutable fields of a zone. Nil fields are left untouched.
type ZonePatch struct {
	Name        *string         `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Type        *ZoneType       `json:"type,omitempty" validate:"omitempty,zone_type"`
	Level       *RiskLevel      `json:"level,omitempty" validate:"omitempty,risk_level"`
	Geometry    *Feature        `json:"geometry,omitempty"`
	Description *string         `json:"description,omitempty"`
	FieldID     *string         `json:"field_id,omitempty"`
	FarmID      *string         `json:"farm_id,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ZonePatch) IsEmpty() bool {
	return p.Name == nil && p.Type == nil && p.Level == nil && p.Geometry == nil &&
		p.Description == nil && p.FieldID == nil && p.FarmID == nil && p.Metadata == nil
}

// Apply overwrites the patched fields of z and stamps UpdatedAt. ID and
// CreatedAt are never touched.
func (p ZonePatch) Apply(z *RiskZone, now time.Time) {
	if p.Name != nil {
		z.Name = *p.Name
	}
	if p.Type != nil {
		z.Type = *p.Type
	}
	if p.Level != nil {
		z.Level = *p.Level
	}
	if p.Geometry != nil {
		z.Geometry = *p.Geometry
	}
	if p.Description != nil {
		z.Description = p.Description
	}
	if p.FieldID != nil {
		z.FieldID = p.FieldID
	}
	if p.FarmID != nil {
		z.FarmID = p.FarmID
	}
	if p.Metadata != nil {
		z.Metadata = p.Metadata
	}
	z.UpdatedAt = now
}

// ZoneFilter selects zones by attribute. Empty sets mean "no restriction".
type ZoneFilter struct {
	Types   []ZoneType  `json:"types,omitempty"`
	Levels  []RiskLevel `json:"levels,omitempty"`
	FieldID string      `json:"field_id,omitempty"`
	FarmID  string      `json:"farm_id,omitempty"`
}

// Matches reports whether z passes every restriction of the filter.
func (f ZoneFilter) Matches(z RiskZone) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, z.Type) {
		return false
	}
	if len(f.Levels) > 0 && !slices.Contains(f.Levels, z.Level) {
		return false
	}
	if f.FieldID != "" && (z.FieldID == nil || *z.FieldID != f.FieldID) {
		return false
	}
	if f.FarmID != "" && (z.FarmID == nil || *z.FarmID != f.FarmID) {
		return false
	}
	return true
}
