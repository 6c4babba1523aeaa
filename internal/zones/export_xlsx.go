package zones

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"growgent/internal/geometry"
	"growgent/internal/types"
)

const zoneSheet = "Zones"

var zoneColumns = []any{
	"ID", "Name", "Type", "Level", "Description", "Field ID", "Farm ID",
	"Centroid Lng", "Centroid Lat", "Created At", "Updated At",
}

// ExportXLSX renders zones as a single-sheet workbook, one row per zone.
func ExportXLSX(zones []types.RiskZone) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", zoneSheet); err != nil {
		return nil, fmt.Errorf("naming zone sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetSheetRow(zoneSheet, "A1", &zoneColumns); err != nil {
		return nil, fmt.Errorf("writing header row: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(zoneColumns))
	if err := f.SetCellStyle(zoneSheet, "A1", lastCol+"1", header); err != nil {
		return nil, fmt.Errorf("styling header row: %w", err)
	}

	for i, z := range zones {
		var lng, lat any
		if c, ok := geometry.Centroid(&z.Geometry); ok {
			lng, lat = c.Lng(), c.Lat()
		}
		row := []any{
			z.ID, z.Name, string(z.Type), string(z.Level),
			deref(z.Description), deref(z.FieldID), deref(z.FarmID),
			lng, lat,
			z.CreatedAt.UTC().Format(time.RFC3339), z.UpdatedAt.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(zoneSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("writing zone %s: %w", z.ID, err)
		}
	}

	if err := f.SetColWidth(zoneSheet, "A", lastCol, 20); err != nil {
		return nil, fmt.Errorf("sizing columns: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encoding workbook: %w", err)
	}
	return buf.Bytes(), nil
}
