package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// Leading columns every measurement file must start with, in order.
var leadingColumns = []string{"date", "hour", "type"}

// Ingestor discovers measurement files in a directory and parses them into
// raw tables. It implements pipeline.Extractor.
type Ingestor struct {
	dir     string
	pattern string
	workers int
	logger  *slog.Logger
}

// NewIngestor creates an Ingestor reading files that match pattern in dir
// with up to workers files parsed concurrently.
func NewIngestor(dir, pattern string, workers int, logger *slog.Logger) *Ingestor {
	if pattern == "" {
		pattern = "*.csv"
	}
	if workers < 1 {
		workers = 1
	}
	return &Ingestor{dir: dir, pattern: pattern, workers: workers, logger: logger}
}

// Ingest parses every matching file. A file that cannot be parsed is
// reported in IngestResult.Failures and the others are still read. Tables
// are returned in file name order. The returned error is reserved for
// problems with the directory itself or context cancellation.
func (in *Ingestor) Ingest(ctx context.Context) (domain.IngestResult, error) {
	paths, err := in.discover()
	if err != nil {
		return domain.IngestResult{}, err
	}

	tables := make([]*domain.RawTable, len(paths))
	failures := make([]*domain.IngestError, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			table, err := ReadFile(path)
			if err != nil {
				failures[i] = &domain.IngestError{Path: path, Err: err}
				in.logger.Warn("ingest file failed, skipping", "source", path, "error", err)
				return nil
			}
			in.logger.Debug("ingested file", "source", path, "rows", len(table.Rows), "stations", len(table.StationIDs))
			tables[i] = &table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.IngestResult{}, fmt.Errorf("ingest %s: %w", in.dir, err)
	}

	result := domain.IngestResult{Files: len(paths)}
	for i := range paths {
		if tables[i] != nil {
			result.Tables = append(result.Tables, *tables[i])
		}
		if failures[i] != nil {
			result.Failures = append(result.Failures, failures[i])
		}
	}
	return result, nil
}

func (in *Ingestor) discover() ([]string, error) {
	info, err := os.Stat(in.dir)
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data dir %s is not a directory", in.dir)
	}
	matches, err := filepath.Glob(filepath.Join(in.dir, in.pattern))
	if err != nil {
		return nil, fmt.Errorf("data glob %q: %w", in.pattern, err)
	}
	paths := matches[:0]
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
			paths = append(paths, m)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadFile opens and parses a single measurement file.
func ReadFile(path string) (domain.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.RawTable{}, err
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse reads a measurement table from r. A leading UTF-8 byte order mark
// is ignored. The header must start with date, hour and type; every other
// column is a station id. A repeated station id is renamed to "<id>.1",
// "<id>.2", ... so it never matches the registry. Rows shorter than the header are padded with
// empty cells, rows longer than the header fail the whole file.
func Parse(r io.Reader, source string) (domain.RawTable, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	// A stray quote inside a cell stays in the cell text and is coerced
	// to Missing later.
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return domain.RawTable{}, errors.New("missing header row")
	}
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read header: %w", err)
	}
	stationIDs, err := parseHeader(header)
	if err != nil {
		return domain.RawTable{}, err
	}

	table := domain.RawTable{Source: source, StationIDs: stationIDs}
	width := len(leadingColumns) + len(stationIDs)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.RawTable{}, err
		}
		line, _ := cr.FieldPos(0)
		if len(rec) > width {
			return domain.RawTable{}, fmt.Errorf("line %d: %d fields, header has %d", line, len(rec), width)
		}
		for len(rec) < width {
			rec = append(rec, "")
		}
		table.Rows = append(table.Rows, domain.RawRow{
			Line:          line,
			Date:          rec[0],
			Hour:          rec[1],
			PollutantType: rec[2],
			Cells:         rec[len(leadingColumns):],
		})
	}
	return table, nil
}

func parseHeader(header []string) ([]string, error) {
	if len(header) < len(leadingColumns) {
		return nil, fmt.Errorf("header has %d columns, want at least %q", len(header), leadingColumns)
	}
	for i, want := range leadingColumns {
		if got := strings.ToLower(strings.TrimSpace(header[i])); got != want {
			return nil, fmt.Errorf("header column %d is %q, want %q", i+1, header[i], want)
		}
	}
	ids := make([]string, 0, len(header)-len(leadingColumns))
	seen := make(map[string]struct{}, cap(ids))
	for _, h := range header[len(leadingColumns):] {
		id := strings.TrimSpace(h)
		if id == "" {
			return nil, errors.New("empty station column header")
		}
		if _, dup := seen[id]; dup {
			base := id
			for n := 1; ; n++ {
				id = base + "." + strconv.Itoa(n)
				if _, taken := seen[id]; !taken {
					break
				}
			}
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
