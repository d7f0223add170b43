package pipeline

import (
	"time"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// RunStats summarises one pipeline run.
type RunStats struct {
	Files             int            `json:"files"`
	FilesIngested     int            `json:"files_ingested"`
	FilesFailed       int            `json:"files_failed"`
	Rows              int            `json:"rows"`
	TimeErrors        int            `json:"time_errors"`
	MissingValues     int            `json:"missing_values"`
	LongRows          int            `json:"long_rows"`
	DuplicatesDropped int            `json:"duplicates_dropped"`
	JoinDropped       int            `json:"join_dropped"`
	JoinMisses        map[string]int `json:"join_misses"`
	Measurements      int            `json:"measurements"`
	Duration          time.Duration  `json:"duration_ns"`
	PublishError      string         `json:"publish_error,omitempty"`
}

// Dataset is the immutable output of one run. Callers must not modify
// Measurements.
type Dataset struct {
	Measurements []domain.Measurement
	Registry     *domain.Registry
	Stats        RunStats
	BuiltAt      time.Time

	stations   []string
	pollutants []string
}

func newDataset(rows []domain.Measurement, reg *domain.Registry, stats RunStats, builtAt time.Time) *Dataset {
	ds := &Dataset{
		Measurements: rows,
		Registry:     reg,
		Stats:        stats,
		BuiltAt:      builtAt,
	}
	seenStation := make(map[string]struct{})
	seenType := make(map[string]struct{})
	for _, m := range rows {
		if _, ok := seenStation[m.StationName]; !ok {
			seenStation[m.StationName] = struct{}{}
			ds.stations = append(ds.stations, m.StationName)
		}
		if _, ok := seenType[m.PollutantType]; !ok {
			seenType[m.PollutantType] = struct{}{}
			ds.pollutants = append(ds.pollutants, m.PollutantType)
		}
	}
	return ds
}

// StationNames lists the station names present, in first-appearance order.
func (d *Dataset) StationNames() []string {
	return append([]string{}, d.stations...)
}

// PollutantTypes lists the pollutant types present, in first-appearance order.
func (d *Dataset) PollutantTypes() []string {
	return append([]string{}, d.pollutants...)
}

// DefaultQuery is the initial selection offered to a new session: the first
// station and first pollutant type as a scatter chart. ok is false for an
// empty dataset.
func (d *Dataset) DefaultQuery() (q domain.Query, ok bool) {
	if len(d.stations) == 0 || len(d.pollutants) == 0 {
		return domain.Query{}, false
	}
	size := domain.DefaultPointSize
	return domain.Query{
		StationName:    d.stations[0],
		PollutantTypes: []string{d.pollutants[0]},
		ChartKind:      domain.ChartScatter,
		Marker:         domain.DefaultMarker,
		Size:           &size,
	}, true
}
