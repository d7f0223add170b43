package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNoData means no source file could be ingested; the run is aborted.
	ErrNoData = errors.New("no ingestible measurement files")

	// ErrInvalidQuery is wrapped by Query.Validate failures.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrColorAssigned is returned when pinning a pollutant type that already has a colour.
	ErrColorAssigned = errors.New("colour already assigned")

	// ErrInvalidColor is returned for colours that are not #rrggbb.
	ErrInvalidColor = errors.New("invalid colour")
)

// IngestError reports a source file that could not be read as tabular text.
// It fails that file only.
type IngestError struct {
	Path string
	Err  error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Path, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// TimeParseError reports a row whose date/hour pair is not a valid
// timestamp. It excludes that row only.
type TimeParseError struct {
	Source string
	Line   int
	Date   string
	Hour   string
	Err    error
}

func (e *TimeParseError) Error() string {
	return fmt.Sprintf("%s:%d: parse timestamp date=%q hour=%q: %v", e.Source, e.Line, e.Date, e.Hour, e.Err)
}

func (e *TimeParseError) Unwrap() error { return e.Err }

// JoinMissError is returned when the join-miss policy is "fail" and long
// rows reference station ids that are not in the registry.
type JoinMissError struct {
	Missing map[string]int // station id -> dropped rows
}

func (e *JoinMissError) Error() string {
	ids := make([]string, 0, len(e.Missing))
	for id := range e.Missing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("station ids not in registry: %s", strings.Join(ids, ", "))
}
