package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
	"github.com/couchcryptid/air-quality-etl/internal/observability"
)

// Extractor reads every source file of one run.
type Extractor interface {
	Ingest(ctx context.Context) (domain.IngestResult, error)
}

// Publisher forwards the joined measurements of a run to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, rows []domain.Measurement) error
}

// Pipeline orchestrates ingest, normalize, reshape and join, and holds the
// most recently built Dataset.
type Pipeline struct {
	extractor  Extractor
	registry   *domain.Registry
	normalizer *domain.Normalizer
	dedup      domain.DedupPolicy
	joinMiss   domain.JoinMissPolicy
	palette    []string
	geocoder   domain.Geocoder
	publisher  Publisher
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics

	runMu   sync.Mutex
	current atomic.Pointer[Dataset]
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRegistry sets the station registry joined against. Defaults to the
// embedded station table.
func WithRegistry(reg *domain.Registry) Option {
	return func(p *Pipeline) { p.registry = reg }
}

// WithLocation sets the zone source timestamps are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(p *Pipeline) { p.normalizer = domain.NewNormalizer(loc) }
}

// WithDedupPolicy sets how duplicate (timestamp, type, station) rows are treated.
func WithDedupPolicy(policy domain.DedupPolicy) Option {
	return func(p *Pipeline) { p.dedup = policy }
}

// WithJoinMissPolicy sets how rows for unregistered stations are treated.
func WithJoinMissPolicy(policy domain.JoinMissPolicy) Option {
	return func(p *Pipeline) { p.joinMiss = policy }
}

// WithPalette sets the base palette handed to new colour allocators.
func WithPalette(palette []string) Option {
	return func(p *Pipeline) { p.palette = append([]string(nil), palette...) }
}

// WithGeocoder enables reverse geocoding of stations on each run.
func WithGeocoder(g domain.Geocoder) Option {
	return func(p *Pipeline) { p.geocoder = g }
}

// WithPublisher forwards each run's measurements to pub.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithClock overrides the clock used for run timestamps and durations.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// New creates a Pipeline reading from e.
func New(e Extractor, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:  e,
		registry:   domain.DefaultRegistry(),
		normalizer: domain.NewNormalizer(time.UTC),
		dedup:      domain.DedupKeep,
		joinMiss:   domain.JoinMissDrop,
		palette:    domain.DefaultPalette(),
		clock:      clockwork.NewRealClock(),
		logger:     logger,
		metrics:    metrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dataset returns the dataset built by the last successful run, or nil.
func (p *Pipeline) Dataset() *Dataset {
	return p.current.Load()
}

// CheckReadiness returns nil once a dataset is being served.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.current.Load() == nil {
		return errors.New("no dataset has been built yet")
	}
	return nil
}

// NewColorAllocator returns a fresh allocator over the pipeline's palette.
func (p *Pipeline) NewColorAllocator() *domain.ColorAllocator {
	return domain.NewColorAllocator(p.palette, nil)
}

// Run executes one full pass over the source files and, on success, replaces
// the served dataset. A failed run leaves the previous dataset in place.
// Runs are serialised.
func (p *Pipeline) Run(ctx context.Context) (*Dataset, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	start := p.clock.Now()
	ds, err := p.build(ctx, start)
	if err != nil {
		p.logger.Error("pipeline run failed", "error", err)
		return nil, err
	}
	ds.Stats.Duration = p.clock.Since(start)
	p.metrics.RunDuration.Observe(ds.Stats.Duration.Seconds())

	if p.publisher != nil {
		p.publish(ctx, ds)
	}

	p.current.Store(ds)
	p.metrics.Measurements.Set(float64(len(ds.Measurements)))
	p.metrics.PipelineReady.Set(1)

	p.logger.Info("pipeline run complete",
		"files", ds.Stats.Files,
		"files_failed", ds.Stats.FilesFailed,
		"rows", ds.Stats.Rows,
		"time_errors", ds.Stats.TimeErrors,
		"missing_values", ds.Stats.MissingValues,
		"long_rows", ds.Stats.LongRows,
		"duplicates_dropped", ds.Stats.DuplicatesDropped,
		"join_dropped", ds.Stats.JoinDropped,
		"measurements", len(ds.Measurements),
		"duration", ds.Stats.Duration,
	)
	return ds, nil
}

func (p *Pipeline) build(ctx context.Context, start time.Time) (*Dataset, error) {
	ingested, err := p.extractor.Ingest(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	for _, f := range ingested.Failures {
		p.logger.Warn("source file skipped", "source", f.Path, "error", f.Err)
	}
	p.metrics.FilesIngested.Add(float64(len(ingested.Tables)))
	p.metrics.FilesFailed.Add(float64(len(ingested.Failures)))
	if len(ingested.Tables) == 0 {
		return nil, fmt.Errorf("%w: %d files found, %d failed", domain.ErrNoData, ingested.Files, len(ingested.Failures))
	}

	wide, norm := p.normalizer.Normalize(ingested.Tables)
	for _, te := range norm.TimeErrors {
		p.logger.Warn("row excluded", "source", te.Source, "line", te.Line, "error", te.Err)
	}
	p.metrics.RowsRead.Add(float64(norm.Rows))
	p.metrics.TimeParseErrors.Add(float64(len(norm.TimeErrors)))
	p.metrics.MissingValues.Add(float64(norm.MissingValues))

	long := domain.Reshape(wide)
	longRows := len(long)
	long, dupes := domain.Deduplicate(long, p.dedup)
	p.metrics.LongRecords.Add(float64(longRows))
	p.metrics.DuplicatesDropped.Add(float64(dupes))

	reg := p.registry
	if p.geocoder != nil {
		p.metrics.GeocodeEnabled.Set(1)
		reg = domain.EnrichStations(ctx, reg, p.geocoder, p.logger)
	}

	rows, join := domain.Join(long, reg)
	for id, n := range join.Missing {
		p.logger.Warn("station id not in registry", "station_id", id, "rows", n)
		p.metrics.JoinMisses.WithLabelValues(id).Add(float64(n))
	}
	if err := join.Err(p.joinMiss); err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}

	stats := RunStats{
		Files:             ingested.Files,
		FilesIngested:     len(ingested.Tables),
		FilesFailed:       len(ingested.Failures),
		Rows:              norm.Rows,
		TimeErrors:        len(norm.TimeErrors),
		MissingValues:     norm.MissingValues,
		LongRows:          longRows,
		DuplicatesDropped: dupes,
		JoinDropped:       join.Dropped,
		JoinMisses:        join.Missing,
		Measurements:      len(rows),
	}
	return newDataset(rows, reg, stats, start), nil
}

// publish forwards the dataset downstream. A sink failure is logged and
// counted but does not discard the dataset.
func (p *Pipeline) publish(ctx context.Context, ds *Dataset) {
	if err := p.publisher.Publish(ctx, ds.Measurements); err != nil {
		p.logger.Error("publish measurements failed", "error", err, "measurements", len(ds.Measurements))
		p.metrics.PublishErrors.Inc()
		ds.Stats.PublishError = err.Error()
		return
	}
	p.metrics.MessagesProduced.Add(float64(len(ds.Measurements)))
}
