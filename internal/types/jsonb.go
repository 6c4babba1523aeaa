package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

var (
	_ sql.Scanner   = (*Geometry)(nil)
	_ driver.Valuer = Geometry{}
)

// scanJSONB decodes a json, jsonb or text column into dest. NULL is a no-op.
func scanJSONB(dest any, value any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// Scan implements sql.Scanner, reading the text produced by ST_AsGeoJSON.
func (g *Geometry) Scan(value any) error {
	return scanJSONB(g, value)
}

// Value implements driver.Valuer, producing the text consumed by ST_GeomFromGeoJSON.
// The value is returned as a string so the driver binds it as text rather than bytea.
func (g Geometry) Value() (driver.Value, error) {
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}
