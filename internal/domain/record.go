package domain

import "time"

// RawTable is one parsed source file: the station columns of its header and
// its data rows with cells still as text.
type RawTable struct {
	Source     string
	StationIDs []string
	Rows       []RawRow
}

// RawRow is one data row of a source file. Cells align with the table's
// StationIDs; short rows are padded with empty cells.
type RawRow struct {
	Line          int
	Date          string
	Hour          string
	PollutantType string
	Cells         []string
}

// WideRecord is a normalized row: one timestamp and pollutant type with one
// value per station column.
type WideRecord struct {
	Source        string
	Line          int
	Timestamp     time.Time
	PollutantType string
	StationIDs    []string // shared with the source table, never mutated
	Values        []Value
}

// LongRecord is one (timestamp, pollutant type, station) observation.
type LongRecord struct {
	Timestamp     time.Time
	PollutantType string
	StationID     string
	Value         Value
	Source        string
	Line          int
}

// Measurement is a long record joined to its station.
type Measurement struct {
	ID            int       `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	PollutantType string    `json:"pollutant_type"`
	StationID     string    `json:"station_id"`
	Value         Value     `json:"value"`
	StationName   string    `json:"station_name"`
	Longitude     float64   `json:"longitude"`
	Latitude      float64   `json:"latitude"`
}

// IngestResult is the output of reading a source directory.
type IngestResult struct {
	Files    int
	Tables   []RawTable
	Failures []*IngestError
}
