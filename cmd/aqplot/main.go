// Command aqplot builds the air-quality dataset from a directory of source
// files and renders or exports query results from the command line.
//
// Usage:
//
//	aqplot stations
//	aqplot plot --station 广雅中学 -p PM2.5 -p NO2 --kind line --out chart.png
//	aqplot plot-all --out img
//	aqplot export --station 广雅中学 -p AQI --out aqi.xlsx
package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"
	_ "time/tzdata"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/air-quality-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/air-quality-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
	"github.com/couchcryptid/air-quality-etl/internal/observability"
	"github.com/couchcryptid/air-quality-etl/internal/pipeline"
	"github.com/couchcryptid/air-quality-etl/internal/render"
)

type cli struct {
	DataDir  string `help:"Directory containing source CSV files." default:"data" env:"DATA_DIR" type:"path"`
	Glob     string `help:"File name pattern." default:"*.csv" env:"DATA_GLOB"`
	Timezone string `help:"Zone the source timestamps are recorded in." name:"tz" default:"Asia/Shanghai" env:"SOURCE_TIMEZONE"`
	Dedup    string `help:"Duplicate observation policy." enum:"keep,drop" default:"keep" env:"DEDUP_POLICY"`
	JoinMiss string `help:"Unknown station column policy." enum:"drop,fail" default:"drop" env:"JOIN_MISS_POLICY"`
	LogLevel string `help:"Log level." default:"warn" env:"LOG_LEVEL"`

	Stations   stationsCmd   `cmd:"" help:"List the stations present in the data."`
	Pollutants pollutantsCmd `cmd:"" help:"List the pollutant types present in the data."`
	Plot       plotCmd       `cmd:"" help:"Render one station's pollutants to a PNG chart."`
	PlotAll    plotAllCmd    `cmd:"" name:"plot-all" help:"Render one scatter PNG per station and pollutant."`
	Export     exportCmd     `cmd:"" help:"Write a query result to an .xlsx workbook."`
}

// app is bound into every command's Run method.
type app struct {
	ctx    context.Context
	out    io.Writer
	flags  *cli
	p      *pipeline.Pipeline
	loaded *pipeline.Dataset
}

// dataset runs the pipeline once and caches the result.
func (a *app) dataset() (*pipeline.Dataset, error) {
	if a.loaded != nil {
		return a.loaded, nil
	}
	loc, err := time.LoadLocation(a.flags.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid --tz %q: %w", a.flags.Timezone, err)
	}
	logger := observability.NewLogger(a.flags.LogLevel, "text")
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())

	ingestor := csvfile.NewIngestor(a.flags.DataDir, a.flags.Glob, 4, logger)
	a.p = pipeline.New(ingestor, logger, metrics,
		pipeline.WithLocation(loc),
		pipeline.WithDedupPolicy(domain.DedupPolicy(a.flags.Dedup)),
		pipeline.WithJoinMissPolicy(domain.JoinMissPolicy(a.flags.JoinMiss)),
	)
	ds, err := a.p.Run(a.ctx)
	if err != nil {
		return nil, err
	}
	a.loaded = ds
	return ds, nil
}

type stationsCmd struct{}

func (c *stationsCmd) Run(a *app) error {
	ds, err := a.dataset()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLONGITUDE\tLATITUDE")
	for _, name := range ds.StationNames() {
		st, ok := ds.Registry.ByName(name)
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\n", st.ID, st.Name, st.Longitude, st.Latitude)
	}
	return tw.Flush()
}

type pollutantsCmd struct{}

func (c *pollutantsCmd) Run(a *app) error {
	ds, err := a.dataset()
	if err != nil {
		return err
	}
	for _, t := range ds.PollutantTypes() {
		fmt.Fprintln(a.out, t)
	}
	return nil
}

// queryFlags maps onto domain.Query plus the colour options of a session.
type queryFlags struct {
	Station   string            `help:"Station name." required:""`
	Pollutant []string          `help:"Pollutant type; repeat for several." short:"p" required:""`
	Kind      string            `help:"Chart kind." enum:"line,scatter" default:"scatter"`
	Marker    string            `help:"Marker: o s ^ v + x d." default:"o"`
	LineStyle string            `help:"Line style for line charts: - -- : -." name:"linestyle" default:"-"`
	Size      int               `help:"Marker size for scatter charts (1-100)." default:"15"`
	Color     map[string]string `help:"Pin a colour to a pollutant type, TYPE=#rrggbb."`
	Seed      uint64            `help:"Seed for fallback colours; 0 picks one at random."`
}

func (f queryFlags) query() domain.Query {
	q := domain.Query{
		StationName:    f.Station,
		PollutantTypes: f.Pollutant,
		ChartKind:      domain.ChartKind(f.Kind),
		Marker:         f.Marker,
	}
	switch q.ChartKind {
	case domain.ChartLine:
		ls := f.LineStyle
		q.LineStyle = &ls
	case domain.ChartScatter:
		size := f.Size
		q.Size = &size
	}
	return q
}

func (f queryFlags) allocator(a *app) (*domain.ColorAllocator, error) {
	colors := a.p.NewColorAllocator()
	if f.Seed != 0 {
		colors = domain.NewColorAllocator(domain.DefaultPalette(), rand.New(rand.NewPCG(f.Seed, f.Seed)))
	}
	for typ, c := range f.Color {
		if err := colors.Pin(typ, c); err != nil {
			return nil, fmt.Errorf("--color %s=%s: %w", typ, c, err)
		}
	}
	return colors, nil
}

func (f queryFlags) execute(a *app) (pipeline.Result, error) {
	ds, err := a.dataset()
	if err != nil {
		return pipeline.Result{}, err
	}
	colors, err := f.allocator(a)
	if err != nil {
		return pipeline.Result{}, err
	}
	return a.p.Execute(ds, f.query(), colors)
}

type plotCmd struct {
	Query queryFlags `embed:""`

	Out    string `help:"Output PNG file." default:"chart.png" type:"path"`
	Title  string `help:"Chart title; defaults to the station name."`
	Width  int    `help:"Canvas width in pixels." default:"960"`
	Height int    `help:"Canvas height in pixels." default:"540"`
}

func (c *plotCmd) Run(a *app) error {
	res, err := c.Query.execute(a)
	if err != nil {
		return err
	}
	if res.Empty {
		fmt.Fprintf(a.out, "no data for %s %v, writing empty chart\n", c.Query.Station, res.Query.PollutantTypes)
	}
	opts := render.Options{Width: c.Width, Height: c.Height, Title: c.Title}
	if err := writePNG(c.Out, res, opts); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "saved %s\n", c.Out)
	return nil
}

type plotAllCmd struct {
	Out     string `help:"Output directory." default:"img" type:"path"`
	Station string `help:"Limit to one station name."`
	Width   int    `help:"Canvas width in pixels." default:"1200"`
	Height  int    `help:"Canvas height in pixels." default:"600"`
}

func (c *plotAllCmd) Run(a *app) error {
	ds, err := a.dataset()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.Out, 0o755); err != nil {
		return err
	}

	// One allocator for the batch keeps a pollutant's colour stable across images.
	colors := a.p.NewColorAllocator()
	size := domain.DefaultPointSize
	var saved int
	for _, station := range ds.StationNames() {
		if c.Station != "" && station != c.Station {
			continue
		}
		for _, typ := range typesAt(ds, station) {
			q := domain.Query{
				StationName:    station,
				PollutantTypes: []string{typ},
				ChartKind:      domain.ChartScatter,
				Size:           &size,
			}
			res, err := a.p.Execute(ds, q, colors)
			if err != nil {
				return err
			}
			if res.Empty {
				continue
			}
			path := filepath.Join(c.Out, fileName(station, typ))
			opts := render.Options{Width: c.Width, Height: c.Height, Title: station + " - " + typ}
			if err := writePNG(path, res, opts); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "saved %s\n", path)
			saved++
		}
	}
	if saved == 0 {
		return fmt.Errorf("no charts written to %s", c.Out)
	}
	return nil
}

type exportCmd struct {
	Query queryFlags `embed:""`

	Out string `help:"Output workbook." default:"export.xlsx" type:"path"`
}

func (c *exportCmd) Run(a *app) error {
	res, err := c.Query.execute(a)
	if err != nil {
		return err
	}
	f, err := os.Create(c.Out)
	if err != nil {
		return err
	}
	if err := xlsx.Export(f, res); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "saved %s (%d rows)\n", c.Out, len(res.Rows))
	return nil
}

// typesAt lists the pollutant types measured at station in first-appearance order.
func typesAt(ds *pipeline.Dataset, station string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range ds.Measurements {
		if m.StationName != station {
			continue
		}
		if _, ok := seen[m.PollutantType]; ok {
			continue
		}
		seen[m.PollutantType] = struct{}{}
		out = append(out, m.PollutantType)
	}
	return out
}

var unsafePath = strings.NewReplacer("/", "_", `\`, "_", ":", "_", " ", "_")

func fileName(station, pollutant string) string {
	return unsafePath.Replace(station+"-"+pollutant) + ".png"
}

func writePNG(path string, res pipeline.Result, opts render.Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render.PNG(f, res.Query, res.Series, opts); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	return f.Close()
}

func run(ctx context.Context, args []string, out io.Writer, opts ...kong.Option) error {
	var flags cli
	opts = append([]kong.Option{
		kong.Name("aqplot"),
		kong.Description("Plot and export Guangzhou air-quality measurements."),
		kong.UsageOnError(),
		kong.Writers(out, os.Stderr),
	}, opts...)
	parser, err := kong.New(&flags, opts...)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run(&app{ctx: ctx, out: out, flags: &flags})
}

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "aqplot: %v\n", err)
		os.Exit(1)
	}
}
