// Package xlsx exports query results as spreadsheet workbooks.
package xlsx

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/air-quality-etl/internal/pipeline"
)

const (
	MeasurementsSheet = "measurements"
	ColorsSheet       = "colors"
)

var measurementHeader = []any{
	"id", "timestamp", "station_id", "station_name", "pollutant_type", "value", "longitude", "latitude",
}

// Export writes res to w as a workbook with two sheets: the filtered rows
// and the colour of each requested pollutant type. Missing values are left
// as empty cells.
func Export(w io.Writer, res pipeline.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", MeasurementsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeMeasurements(f, res); err != nil {
		return err
	}
	if _, err := f.NewSheet(ColorsSheet); err != nil {
		return fmt.Errorf("create colors sheet: %w", err)
	}
	if err := writeColors(f, res); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeMeasurements(f *excelize.File, res pipeline.Result) error {
	if err := f.SetSheetRow(MeasurementsSheet, "A1", &measurementHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, m := range res.Rows {
		var value any
		if m.Value.Valid {
			value = m.Value.Float64
		}
		row := []any{
			m.ID,
			m.Timestamp.Format(time.RFC3339),
			m.StationID,
			m.StationName,
			m.PollutantType,
			value,
			m.Longitude,
			m.Latitude,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(MeasurementsSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	return nil
}

func writeColors(f *excelize.File, res pipeline.Result) error {
	header := []any{"pollutant_type", "color"}
	if err := f.SetSheetRow(ColorsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write colors header: %w", err)
	}
	for i, t := range res.Query.PollutantTypes {
		c, ok := res.Colors[t]
		if !ok {
			continue
		}
		row := i + 2
		typeCell, _ := excelize.CoordinatesToCellName(1, row)
		colorCell, _ := excelize.CoordinatesToCellName(2, row)
		if err := f.SetCellStr(ColorsSheet, typeCell, t); err != nil {
			return err
		}
		if err := f.SetCellStr(ColorsSheet, colorCell, c); err != nil {
			return err
		}
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{strings.TrimPrefix(c, "#")}},
		})
		if err != nil {
			return fmt.Errorf("colour style %s: %w", c, err)
		}
		if err := f.SetCellStyle(ColorsSheet, colorCell, colorCell, style); err != nil {
			return err
		}
	}
	return nil
}
