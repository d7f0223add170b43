// Command validate checks a directory of source files before it is served:
// every file parses, every row has a valid timestamp, every station column
// is registered, no observation is duplicated across files, and the share
// of missing cells stays under a threshold.
//
// Usage:
//
//	go run ./cmd/validate -data-dir data
//	go run ./cmd/validate -data-dir data -tz UTC -max-missing 0.1
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/air-quality-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type settings struct {
	dataDir    string
	glob       string
	loc        *time.Location
	maxMissing float64
}

func main() {
	dataDir := flag.String("data-dir", "data", "directory containing source CSV files")
	glob := flag.String("glob", "*.csv", "file name pattern")
	tz := flag.String("tz", "Asia/Shanghai", "zone the source timestamps are recorded in")
	maxMissing := flag.Float64("max-missing", 0.2, "maximum tolerated fraction of missing cells")
	flag.Parse()

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -tz %q: %v\n", *tz, err)
		os.Exit(1)
	}

	os.Exit(run(context.Background(), os.Stdout, settings{
		dataDir:    *dataDir,
		glob:       *glob,
		loc:        loc,
		maxMissing: *maxMissing,
	}))
}

func run(ctx context.Context, out io.Writer, s settings) int {
	fmt.Fprintln(out, "=== Air Quality Data Validation ===")
	fmt.Fprintln(out)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ingested, err := csvfile.NewIngestor(s.dataDir, s.glob, 4, logger).Ingest(ctx)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}

	wide, norm := domain.NewNormalizer(s.loc).Normalize(ingested.Tables)
	long := domain.Reshape(wide)
	reg := domain.DefaultRegistry()

	phases := []*phase{
		validateFiles(ingested),
		validateTimestamps(norm),
		validateRegistry(ingested.Tables, reg),
		validateDuplicates(long),
		validateMissing(norm, len(long), s.maxMissing),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Files: %d found, %d parsed. Rows: %d wide, %d long.\n",
		ingested.Files, len(ingested.Tables), norm.Rows, len(long))

	for _, p := range phases {
		if len(p.notes) > 0 {
			fmt.Fprintf(out, "\n--- %s (notes) ---\n", p.name)
			for _, n := range p.notes {
				fmt.Fprintf(out, "  %s\n", n)
			}
		}
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Phase 1: Files ──

func validateFiles(res domain.IngestResult) *phase {
	p := &phase{name: "Phase 1: Files (discover and parse)"}
	if res.Files == 0 {
		p.errorf("no files matched")
	}
	for _, f := range res.Failures {
		p.errorf("%v", f)
	}
	return p
}

// ── Phase 2: Timestamps ──

func validateTimestamps(norm domain.NormalizeReport) *phase {
	p := &phase{name: "Phase 2: Timestamps (date + hour)"}
	for _, te := range norm.TimeErrors {
		p.errorf("%v", te)
	}
	return p
}

// ── Phase 3: Registry drift ──
// A station column with no registry entry would be dropped silently by the join.

func validateRegistry(tables []domain.RawTable, reg *domain.Registry) *phase {
	p := &phase{name: "Phase 3: Registry (station columns)"}

	seen := make(map[string]bool)
	for _, t := range tables {
		for _, id := range t.StationIDs {
			seen[id] = true
			if _, ok := reg.Lookup(id); !ok {
				p.errorf("%s: station column %q is not in the registry", t.Source, id)
			}
		}
	}

	var absent []string
	for _, st := range reg.Stations() {
		if !seen[st.ID] {
			absent = append(absent, st.ID)
		}
	}
	if len(absent) > 0 && len(tables) > 0 {
		p.notef("registered stations with no column in any file: %v", absent)
	}
	return p
}

// ── Phase 4: Duplicates ──

func validateDuplicates(long []domain.LongRecord) *phase {
	p := &phase{name: "Phase 4: Duplicates (timestamp, type, station)"}

	type key struct {
		ts      int64
		typ, id string
	}
	first := make(map[key]domain.LongRecord, len(long))
	dupes := make(map[string]int)
	for _, r := range long {
		k := key{ts: r.Timestamp.Unix(), typ: r.PollutantType, id: r.StationID}
		if prev, ok := first[k]; ok {
			dupes[fmt.Sprintf("%s:%d duplicates %s:%d", filepath.Base(r.Source), r.Line, filepath.Base(prev.Source), prev.Line)]++
			continue
		}
		first[k] = r
	}

	msgs := make([]string, 0, len(dupes))
	for m := range dupes {
		msgs = append(msgs, m)
	}
	sort.Strings(msgs)
	for _, m := range msgs {
		p.errorf("%s (%d cells)", m, dupes[m])
	}
	return p
}

// ── Phase 5: Missing values ──

func validateMissing(norm domain.NormalizeReport, cells int, maxRate float64) *phase {
	p := &phase{name: "Phase 5: Missing values"}
	if cells == 0 {
		return p
	}
	rate := float64(norm.MissingValues) / float64(cells)
	p.notef("%d of %d cells missing (%.1f%%)", norm.MissingValues, cells, rate*100)
	if rate > maxRate {
		p.errorf("missing rate %.3f exceeds %.3f", rate, maxRate)
	}
	return p
}
