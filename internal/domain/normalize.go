package domain

import (
	"fmt"
	"strings"
	"time"
)

const timestampLayout = "2006010215"

// ParseTimestamp combines an 8-digit YYYYMMDD date with an hour that is
// zero-padded to two digits ("5" -> "05") and parses the result as
// YYYYMMDDHH in loc.
func ParseTimestamp(date, hour string, loc *time.Location) (time.Time, error) {
	date = strings.TrimSpace(date)
	hour = strings.TrimSpace(hour)
	if len(date) != 8 || !isDigits(date) {
		return time.Time{}, fmt.Errorf("date %q is not YYYYMMDD", date)
	}
	if hour == "" || !isDigits(hour) {
		return time.Time{}, fmt.Errorf("hour %q is not numeric", hour)
	}
	if len(hour) < 2 {
		hour = strings.Repeat("0", 2-len(hour)) + hour
	}
	if len(hour) != 2 {
		return time.Time{}, fmt.Errorf("hour %q out of range", hour)
	}
	if loc == nil {
		loc = time.UTC
	}
	ts, err := time.ParseInLocation(timestampLayout, date+hour, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", date+hour, err)
	}
	return ts, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// NormalizeReport counts what normalization excluded or coerced.
type NormalizeReport struct {
	Rows          int
	Normalized    int
	TimeErrors    []*TimeParseError
	MissingValues int
}

// Normalizer turns raw rows into wide records with typed timestamps and values.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer creates a Normalizer that reads timestamps in loc (UTC when nil).
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

// Normalize converts every row of every table. Rows with an unparseable
// date/hour are reported and skipped; cells that are not numeric become
// Missing and the row is kept.
func (n *Normalizer) Normalize(tables []RawTable) ([]WideRecord, NormalizeReport) {
	var report NormalizeReport
	var out []WideRecord
	for _, table := range tables {
		for _, row := range table.Rows {
			report.Rows++
			ts, err := ParseTimestamp(row.Date, row.Hour, n.loc)
			if err != nil {
				report.TimeErrors = append(report.TimeErrors, &TimeParseError{
					Source: table.Source,
					Line:   row.Line,
					Date:   row.Date,
					Hour:   row.Hour,
					Err:    err,
				})
				continue
			}

			values := make([]Value, len(table.StationIDs))
			for i := range table.StationIDs {
				var cell string
				if i < len(row.Cells) {
					cell = row.Cells[i]
				}
				values[i] = ParseValue(cell)
				if !values[i].Valid {
					report.MissingValues++
				}
			}

			out = append(out, WideRecord{
				Source:        table.Source,
				Line:          row.Line,
				Timestamp:     ts,
				PollutantType: strings.TrimSpace(row.PollutantType),
				StationIDs:    table.StationIDs,
				Values:        values,
			})
			report.Normalized++
		}
	}
	return out, report
}
