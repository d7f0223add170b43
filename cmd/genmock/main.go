// Command genmock writes synthetic wide-format air-quality files for the
// built-in stations, one file per day, for local development and tests.
// Files carry a UTF-8 BOM, unpadded hours and occasional missing sentinels
// like the real station exports do.
//
// Usage:
//
//	go run ./cmd/genmock -out data -start 20230101 -days 3
//	go run ./cmd/genmock -out data -unknown-station 9999Z
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

const utf8BOM = "\ufeff"

// pollutant describes the synthetic distribution of one pollutant type.
type pollutant struct {
	name string
	base float64
	amp  float64 // diurnal amplitude
	peak int     // hour of the daily maximum
}

var pollutants = []pollutant{
	{name: "AQI", base: 60, amp: 25, peak: 15},
	{name: "PM2.5", base: 35, amp: 15, peak: 8},
	{name: "PM10", base: 55, amp: 20, peak: 8},
	{name: "SO2", base: 8, amp: 3, peak: 10},
	{name: "NO2", base: 40, amp: 18, peak: 20},
	{name: "O3", base: 70, amp: 45, peak: 15},
	{name: "CO", base: 0.8, amp: 0.3, peak: 8},
}

type options struct {
	missingRate    float64
	unknownStation string
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data", "output directory")
	start := flag.String("start", "20230101", "first day (YYYYMMDD)")
	days := flag.Int("days", 3, "number of daily files")
	seed := flag.Uint64("seed", 1, "random seed")
	missing := flag.Float64("missing-rate", 0.03, "fraction of cells written as missing sentinels")
	unknown := flag.String("unknown-station", "", "extra station id column that is not in the registry")
	flag.Parse()

	first, err := time.Parse("20060102", *start)
	if err != nil {
		return fmt.Errorf("invalid -start %q: %w", *start, err)
	}
	if *days <= 0 {
		return fmt.Errorf("-days must be positive")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	ids := stationIDs(domain.DefaultStations())
	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	opts := options{missingRate: *missing, unknownStation: *unknown}

	for d := range *days {
		day := first.AddDate(0, 0, d)
		path := filepath.Join(*out, "china_sites_"+day.Format("20060102")+".csv")
		if err := writeFile(path, day, ids, rng, opts); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		log.Printf("wrote %s", path)
	}
	return nil
}

func stationIDs(stations []domain.Station) []string {
	ids := make([]string, len(stations))
	for i, st := range stations {
		ids[i] = st.ID
	}
	return ids
}

func writeFile(path string, day time.Time, ids []string, rng *rand.Rand, opts options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := generate(f, day, ids, rng, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// generate writes one day of hourly rows for every pollutant type.
func generate(w io.Writer, day time.Time, ids []string, rng *rand.Rand, opts options) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)

	cols := append([]string(nil), ids...)
	if opts.unknownStation != "" {
		cols = append(cols, opts.unknownStation)
	}
	header := append([]string{"date", "hour", "type"}, cols...)
	if err := cw.Write(header); err != nil {
		return err
	}

	date := day.Format("20060102")
	for hour := range 24 {
		for _, p := range pollutants {
			row := make([]string, 0, len(header))
			row = append(row, date, strconv.Itoa(hour), p.name)
			for i := range cols {
				row = append(row, cell(p, hour, i, rng, opts.missingRate))
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(p pollutant, hour, station int, rng *rand.Rand, missingRate float64) string {
	if rng.Float64() < missingRate {
		// Exports use both blanks and dashes for "no reading".
		if rng.IntN(2) == 0 {
			return ""
		}
		return "—"
	}
	phase := 2 * math.Pi * float64(hour-p.peak) / 24
	v := p.base + p.amp*math.Cos(phase) + float64(station%5)*p.base*0.04 + rng.NormFloat64()*p.amp*0.15
	v = math.Max(v, 0)
	if p.base < 5 {
		return strconv.FormatFloat(v, 'f', 3, 64)
	}
	return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
}
