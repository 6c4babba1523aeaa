package types

import (
	"encoding/json"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestRiskLevel_Severity(t *testing.T) {
	if LevelCritical.Severity() != 0 || LevelInfo.Severity() != 4 {
		t.Errorf("unexpected severity order: critical=%d info=%d", LevelCritical.Severity(), LevelInfo.Severity())
	}
	if RiskLevel("extreme").Valid() {
		t.Error("unknown level reported as valid")
	}
	if !LevelModerate.Valid() {
		t.Error("moderate should be valid")
	}
}

func TestZoneType_Valid(t *testing.T) {
	for _, zt := range ZoneTypes {
		if !zt.Valid() {
			t.Errorf("%q should be valid", zt)
		}
	}
	if ZoneType("flood").Valid() {
		t.Error("unknown zone type reported as valid")
	}
}

func TestZonePatch_Apply(t *testing.T) {
	created := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	now := created.Add(2 * time.Hour)
	z := RiskZone{
		ID:          "z1",
		Name:        "North Ridge",
		Type:        ZoneFireRisk,
		Level:       LevelHigh,
		Description: strPtr("dry grass"),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	level := LevelCritical

	ZonePatch{Level: &level}.Apply(&z, now)

	if z.ID != "z1" || !z.CreatedAt.Equal(created) {
		t.Errorf("identity changed: id=%q created=%v", z.ID, z.CreatedAt)
	}
	if !z.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", z.UpdatedAt, now)
	}
	if z.Level != LevelCritical {
		t.Errorf("Level = %q, want critical", z.Level)
	}
	if z.Name != "North Ridge" || z.Type != ZoneFireRisk || *z.Description != "dry grass" {
		t.Errorf("unpatched fields changed: %+v", z)
	}
}

func TestZonePatch_IsEmpty(t *testing.T) {
	if !(ZonePatch{}).IsEmpty() {
		t.Error("zero patch should be empty")
	}
	if (ZonePatch{Name: strPtr("x")}).IsEmpty() {
		t.Error("patch with a name should not be empty")
	}
	if (ZonePatch{Metadata: json.RawMessage(`{}`)}).IsEmpty() {
		t.Error("patch with metadata should not be empty")
	}
}

func TestZoneFilter_Matches(t *testing.T) {
	z := RiskZone{Type: ZonePSPS, Level: LevelCritical, FieldID: strPtr("f1")}

	tests := []struct {
		name   string
		filter ZoneFilter
		want   bool
	}{
		{"empty filter matches everything", ZoneFilter{}, true},
		{"type and level match", ZoneFilter{Types: []ZoneType{ZonePSPS}, Levels: []RiskLevel{LevelCritical}}, true},
		{"type mismatch", ZoneFilter{Types: []ZoneType{ZoneFireRisk}}, false},
		{"level mismatch", ZoneFilter{Levels: []RiskLevel{LevelLow}}, false},
		{"field match", ZoneFilter{FieldID: "f1"}, true},
		{"field mismatch", ZoneFilter{FieldID: "f2"}, false},
		{"farm required but unset", ZoneFilter{FarmID: "farm-1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(z); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
