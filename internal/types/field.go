package types

import "time"

// Field is an agricultural field owned by the backend. LocationGeom holds the
// serialized boundary (GeoJSON text, or WKT POINT for legacy rows).
type Field struct {
	ID                  string         `json:"id"`
	FarmID              string         `json:"farm_id"`
	Name                string         `json:"name"`
	CropType            string         `json:"crop_type"`
	AreaHectares        float64        `json:"area_hectares"`
	LocationGeom        *string        `json:"location_geom"`
	Notes               *string        `json:"notes,omitempty"`
	LatestSensorReading *SensorReading `json:"latest_sensor_reading,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// SensorReading is the most recent soil sensor sample reported for a field.
type SensorReading struct {
	SensorID         string    `json:"sensor_id"`
	MoisturePercent  float64   `json:"moisture_percent"`
	Temperature      *float64  `json:"temperature,omitempty"`
	PH               *float64  `json:"ph,omitempty"`
	BatteryLevel     *float64  `json:"battery_level,omitempty"`
	SignalStrength   *float64  `json:"signal_strength,omitempty"`
	ReadingTimestamp time.Time `json:"reading_timestamp"`
}

// FieldList is the page of fields returned by the backend.
type FieldList struct {
	Fields   []Field `json:"fields"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// Alert is a backend alert shown on the dashboard.
type Alert struct {
	ID             string     `json:"id"`
	FieldID        *string    `json:"field_id"`
	AlertType      string     `json:"alert_type"`
	Severity       string     `json:"severity"`
	Message        string     `json:"message"`
	AgentType      string     `json:"agent_type"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// AlertList is a page of alerts.
type AlertList struct {
	Alerts   []Alert `json:"alerts"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// WaterMetricsSummary aggregates irrigation savings for a farm.
type WaterMetricsSummary struct {
	FarmID                      string    `json:"farm_id"`
	TotalWaterRecommendedLiters int       `json:"total_water_recommended_liters"`
	TotalWaterTypicalLiters     int       `json:"total_water_typical_liters"`
	TotalWaterSavedLiters       int       `json:"total_water_saved_liters"`
	AverageEfficiencyPercent    float64   `json:"average_efficiency_percent"`
	TotalCostSavedUSD           float64   `json:"total_cost_saved_usd"`
	FieldCount                  int       `json:"field_count"`
	LastUpdated                 time.Time `json:"last_updated"`
}
