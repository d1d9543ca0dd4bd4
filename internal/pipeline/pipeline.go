// Package pipeline orchestrates the per-city extract → normalize → load
// sequence across the configured city list. Cities are independent end to
// end, so they run under a bounded worker pool purely to shorten wall-clock
// time; correctness never depends on parallelism.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/hazewatch/air-quality-etl/internal/domain"
	"github.com/hazewatch/air-quality-etl/internal/extract"
	"github.com/hazewatch/air-quality-etl/internal/load"
	"github.com/hazewatch/air-quality-etl/internal/observability"
	"github.com/hazewatch/air-quality-etl/internal/source"
	"github.com/hazewatch/air-quality-etl/internal/staging"
)

// Extractor obtains one city's raw batch, tolerating source failures.
type Extractor interface {
	ExtractCity(ctx context.Context, runID string, city domain.City, window source.Window) extract.Result
}

// Normalizer canonicalizes a raw batch, returning the dropped count.
type Normalizer interface {
	Normalize(batch []domain.RawReading) ([]domain.CanonicalRecord, int)
}

// Loader persists canonical records with insert-if-absent semantics.
type Loader interface {
	LoadBatch(ctx context.Context, records []domain.CanonicalRecord) (load.BatchResult, error)
}

// Publisher emits loaded records to downstream consumers. Optional.
type Publisher interface {
	Publish(ctx context.Context, records []domain.CanonicalRecord) error
}

// RunSummary is the operator-facing account of one pipeline run. A completed
// run always reports these counts instead of surfacing per-city faults.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Cities       int `json:"cities"`
	ViaPrimary   int `json:"via_primary"`
	ViaSecondary int `json:"via_secondary"`
	FailedCities int `json:"failed_cities"`

	RawReadings int `json:"raw_readings"`
	Dropped     int `json:"dropped"`
	Loaded      int `json:"loaded"`
	Duplicates  int `json:"duplicates"`
	RowFailures int `json:"row_failures"`
}

// Options fixes the run shape.
type Options struct {
	Cities      []domain.City
	WindowHours int
	// Concurrency caps the city worker pool. 1 means strictly sequential.
	Concurrency int
}

// Pipeline wires the stages together and accounts for a run.
type Pipeline struct {
	opts       Options
	extractor  Extractor
	normalizer Normalizer
	loader     Loader
	publisher  Publisher
	staging    *staging.Store
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics

	ready atomic.Bool

	mu   sync.Mutex
	last *RunSummary
}

// New creates a Pipeline. publisher may be nil when downstream publishing is
// disabled.
func New(opts Options, e Extractor, n Normalizer, l Loader, pub Publisher, store *staging.Store, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Pipeline{
		opts:       opts,
		extractor:  e,
		normalizer: n,
		loader:     l,
		publisher:  pub,
		staging:    store,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once at least one run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastSummary returns the most recent run summary, or nil before the first run.
func (p *Pipeline) LastSummary() *RunSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	s := *p.last
	return &s
}

// Run executes one full extract-normalize-load pass over the configured
// cities. Failures are isolated per city (extraction) and per row (load);
// Run only returns an error when the context is cancelled mid-run.
func (p *Pipeline) Run(ctx context.Context) (RunSummary, error) {
	now := p.clock.Now().UTC()
	end := now.Truncate(time.Hour)
	window := source.Window{Start: end.Add(-time.Duration(p.opts.WindowHours) * time.Hour), End: end}

	summary := RunSummary{
		RunID:     now.Format("20060102T150405Z"),
		StartedAt: now,
		Cities:    len(p.opts.Cities),
	}

	p.logger.Info("run started",
		"run_id", summary.RunID, "cities", summary.Cities,
		"window_start", window.Start, "window_end", window.End,
		"concurrency", p.opts.Concurrency)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var mu sync.Mutex // guards summary counters and allRecords
	var allRecords []domain.CanonicalRecord

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	for _, city := range p.opts.Cities {
		g.Go(func() error {
			records, cs, err := p.processCity(gctx, summary.RunID, city, window)
			if err != nil {
				return err
			}
			mu.Lock()
			summary.add(cs)
			allRecords = append(allRecords, records...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}

	// One canonical artifact per run, covering every surviving record, so
	// the load stage can be replayed against the same input.
	if len(allRecords) > 0 {
		if _, err := p.staging.WriteCanonical(summary.RunID, allRecords); err != nil {
			p.logger.Error("canonical staging write failed", "run_id", summary.RunID, "error", err)
		}
	}

	summary.FinishedAt = p.clock.Now().UTC()
	p.metrics.RunDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	p.finish(summary)
	return summary, nil
}

// Replay re-runs normalize and load from a previous run's raw staging
// artifacts, without touching the network. Loading is idempotent, so
// replaying a fully loaded run only produces duplicates.
func (p *Pipeline) Replay(ctx context.Context, runID string) (RunSummary, error) {
	arts, err := p.staging.ListRaw(runID)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:     runID,
		StartedAt: p.clock.Now().UTC(),
		Cities:    len(arts),
	}
	p.logger.Info("replay started", "run_id", runID, "cities", len(arts))

	for _, art := range arts {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		cs := cityStats{via: art.Source, raw: len(art.Readings)}
		records, dropped := p.normalizer.Normalize(art.Readings)
		cs.dropped = dropped

		res, err := p.loader.LoadBatch(ctx, records)
		if err != nil {
			return summary, err
		}
		cs.loaded = res.Inserted
		cs.duplicates = res.Duplicates
		cs.rowFailures = len(res.Failures)
		summary.add(cs)
	}

	summary.FinishedAt = p.clock.Now().UTC()
	p.finish(summary)
	return summary, nil
}

// cityStats accumulates one city's contribution to the run summary.
type cityStats struct {
	via         string
	raw         int
	dropped     int
	loaded      int
	duplicates  int
	rowFailures int
}

func (s *RunSummary) add(cs cityStats) {
	switch cs.via {
	case extract.ViaPrimary:
		s.ViaPrimary++
	case extract.ViaSecondary:
		s.ViaSecondary++
	default:
		s.FailedCities++
	}
	s.RawReadings += cs.raw
	s.Dropped += cs.dropped
	s.Loaded += cs.loaded
	s.Duplicates += cs.duplicates
	s.RowFailures += cs.rowFailures
}

// processCity runs one city end to end. Within a city the stages are
// strictly sequential; only cancellation is escalated as an error.
func (p *Pipeline) processCity(ctx context.Context, runID string, city domain.City, window source.Window) ([]domain.CanonicalRecord, cityStats, error) {
	res := p.extractor.ExtractCity(ctx, runID, city, window)
	if res.Err != nil {
		if ctx.Err() != nil {
			return nil, cityStats{}, ctx.Err()
		}
		return nil, cityStats{via: extract.Failed}, nil
	}

	cs := cityStats{via: res.Via, raw: len(res.Readings)}

	records, dropped := p.normalizer.Normalize(res.Readings)
	cs.dropped = dropped

	loadRes, err := p.loader.LoadBatch(ctx, records)
	if err != nil {
		return nil, cityStats{}, err
	}
	cs.loaded = loadRes.Inserted
	cs.duplicates = loadRes.Duplicates
	cs.rowFailures = len(loadRes.Failures)

	if p.publisher != nil && len(records) > 0 {
		if err := p.publisher.Publish(ctx, records); err != nil {
			// Publishing is best-effort enrichment for downstream consumers;
			// the store is the source of truth.
			p.logger.Warn("publish failed", "city", city.Name, "error", err)
		}
	}

	return records, cs, nil
}

func (p *Pipeline) finish(summary RunSummary) {
	p.mu.Lock()
	s := summary
	p.last = &s
	p.mu.Unlock()
	p.ready.Store(true)

	p.logger.Info("run finished",
		"run_id", summary.RunID,
		"via_primary", summary.ViaPrimary,
		"via_secondary", summary.ViaSecondary,
		"failed_cities", summary.FailedCities,
		"raw_readings", summary.RawReadings,
		"dropped", summary.Dropped,
		"loaded", summary.Loaded,
		"duplicates", summary.Duplicates,
		"row_failures", summary.RowFailures,
	)
}
