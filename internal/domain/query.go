package domain

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// ChartKind selects how the rendering boundary draws series.
type ChartKind string

const (
	ChartLine    ChartKind = "line"
	ChartScatter ChartKind = "scatter"
)

// Marker and line style choices offered to the UI.
var (
	Markers    = []string{"o", "s", "^", "v", "+", "x", "d"}
	LineStyles = []string{"-", "--", ":", "-."}
)

const (
	DefaultMarker    = "o"
	DefaultLineStyle = "-"
	DefaultPointSize = 15
	MinPointSize     = 1
	MaxPointSize     = 100
)

// Query is the selection produced by the UI. It is treated as a value:
// nothing in this package modifies a Query it is given.
type Query struct {
	StationName    string    `json:"station_name"`
	PollutantTypes []string  `json:"pollutant_types"`
	ChartKind      ChartKind `json:"chart_kind"`
	Marker         string    `json:"marker,omitempty"`
	LineStyle      *string   `json:"linestyle,omitempty"`
	Size           *int      `json:"size,omitempty"`
}

// Validate checks the chart options. Station name and pollutant types are
// not validated: an unknown station or an empty selection yields an empty
// result, not an error.
func (q Query) Validate() error {
	switch q.ChartKind {
	case ChartLine, ChartScatter:
	default:
		return fmt.Errorf("%w: chart kind %q (allowed: line, scatter)", ErrInvalidQuery, q.ChartKind)
	}
	if q.Marker != "" && !slices.Contains(Markers, q.Marker) {
		return fmt.Errorf("%w: marker %q (allowed: %s)", ErrInvalidQuery, q.Marker, strings.Join(Markers, " "))
	}
	if q.LineStyle != nil && !slices.Contains(LineStyles, *q.LineStyle) {
		return fmt.Errorf("%w: linestyle %q (allowed: %s)", ErrInvalidQuery, *q.LineStyle, strings.Join(LineStyles, " "))
	}
	if q.Size != nil && (*q.Size < MinPointSize || *q.Size > MaxPointSize) {
		return fmt.Errorf("%w: size %d (allowed: %d-%d)", ErrInvalidQuery, *q.Size, MinPointSize, MaxPointSize)
	}
	return nil
}

// WithDefaults returns a copy of q with duplicate pollutant types collapsed
// (first occurrence wins) and chart options filled in: marker "o", a solid
// line for line charts, size 15 for scatter charts. Options that do not
// apply to the chart kind are cleared.
func (q Query) WithDefaults() Query {
	out := q
	out.PollutantTypes = uniqueStrings(q.PollutantTypes)
	if out.Marker == "" {
		out.Marker = DefaultMarker
	}
	switch out.ChartKind {
	case ChartLine:
		ls := DefaultLineStyle
		if q.LineStyle != nil {
			ls = *q.LineStyle
		}
		out.LineStyle = &ls
		out.Size = nil
	case ChartScatter:
		size := DefaultPointSize
		if q.Size != nil {
			size = *q.Size
		}
		out.Size = &size
		out.LineStyle = nil
	}
	return out
}

func uniqueStrings(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Filter returns the measurements at the named station (exact,
// case-sensitive) whose pollutant type is one of types, in input order.
// An empty type set or an unknown station yields an empty, non-nil slice.
func Filter(rows []Measurement, stationName string, types []string) []Measurement {
	out := make([]Measurement, 0)
	if len(types) == 0 {
		return out
	}
	want := make(map[string]struct{}, len(types))
	for _, t := range types {
		want[t] = struct{}{}
	}
	for _, m := range rows {
		if m.StationName != stationName {
			continue
		}
		if _, ok := want[m.PollutantType]; !ok {
			continue
		}
		out = append(out, m)
	}
	return out
}

// FilterForChart applies Filter for q and, for scatter charts, also drops
// rows whose value is missing. Line charts keep them so gaps render as breaks.
func FilterForChart(rows []Measurement, q Query) []Measurement {
	out := Filter(rows, q.StationName, q.PollutantTypes)
	if q.ChartKind != ChartScatter {
		return out
	}
	kept := out[:0]
	for _, m := range out {
		if m.Value.Valid {
			kept = append(kept, m)
		}
	}
	return kept
}

// Point is one sample of a series.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     Value     `json:"value"`
}

// Series is the per-pollutant data handed to the rendering boundary.
type Series struct {
	PollutantType string  `json:"pollutant_type"`
	Label         string  `json:"label"`
	Color         string  `json:"color"`
	Points        []Point `json:"points"`
}

// BuildSeries groups filtered rows into one series per requested pollutant
// type, in query order, with points sorted by timestamp. Types with no rows
// still get an empty series so legends stay aligned with the selection.
func BuildSeries(rows []Measurement, q Query, colors map[string]string) []Series {
	byType := make(map[string][]Point, len(q.PollutantTypes))
	for _, m := range rows {
		byType[m.PollutantType] = append(byType[m.PollutantType], Point{Timestamp: m.Timestamp, Value: m.Value})
	}
	series := make([]Series, 0, len(q.PollutantTypes))
	for _, t := range uniqueStrings(q.PollutantTypes) {
		pts := byType[t]
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Timestamp.Before(pts[j].Timestamp) })
		if pts == nil {
			pts = []Point{}
		}
		series = append(series, Series{
			PollutantType: t,
			Label:         q.StationName + " - " + t,
			Color:         colors[t],
			Points:        pts,
		})
	}
	return series
}
