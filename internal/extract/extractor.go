// Package extract obtains one raw reading batch per configured city,
// tolerating transient and source-level failures. Retry, backoff, and
// primary→secondary fallback policy all live here; the source clients stay
// single-attempt primitives.
package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hazewatch/air-quality-etl/internal/domain"
	"github.com/hazewatch/air-quality-etl/internal/observability"
	"github.com/hazewatch/air-quality-etl/internal/source"
	"github.com/hazewatch/air-quality-etl/internal/staging"
)

// SourceClient is one fetchable readings endpoint.
type SourceClient interface {
	Name() string
	Fetch(ctx context.Context, city domain.City, window source.Window) ([]domain.RawReading, error)
}

// Extraction result labels.
const (
	ViaPrimary   = "primary"
	ViaSecondary = "secondary"
	Failed       = "failed"
)

// Result is the extraction outcome for one city. Either Readings is populated
// and Via names the source that served it, or Err holds the terminal failure
// and Via is Failed.
type Result struct {
	City        domain.City
	Via         string
	Readings    []domain.RawReading
	StagingPath string
	Err         error
}

// Policy bounds the per-source retry loop.
type Policy struct {
	// MaxAttempts is the total number of fetch attempts per source.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Extractor drives the primary and secondary source clients for each city.
type Extractor struct {
	primary   SourceClient
	secondary SourceClient
	policy    Policy
	staging   *staging.Store
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates an Extractor. Pass clockwork.NewRealClock() outside tests.
func New(primary, secondary SourceClient, policy Policy, store *staging.Store, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Extractor {
	return &Extractor{
		primary:   primary,
		secondary: secondary,
		policy:    policy,
		staging:   store,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// ExtractCity fetches one city's window, falling back from the primary to the
// secondary source. A city that exhausts both sources is a hard extraction
// failure for this run; the error is recorded on the Result, never escalated,
// so other cities keep processing.
func (e *Extractor) ExtractCity(ctx context.Context, runID string, city domain.City, window source.Window) Result {
	readings, err := e.fetchWithRetry(ctx, e.primary, city, window)
	via := ViaPrimary

	if err != nil {
		e.logger.Warn("primary source exhausted, falling back",
			"city", city.Name, "source", e.primary.Name(), "error", err)

		readings, err = e.fetchWithRetry(ctx, e.secondary, city, window)
		via = ViaSecondary
	}

	if err != nil {
		e.logger.Error("extraction failed on both sources", "city", city.Name, "error", err)
		e.metrics.CitiesExtracted.WithLabelValues(Failed).Inc()
		return Result{City: city, Via: Failed, Err: err}
	}

	e.metrics.CitiesExtracted.WithLabelValues(via).Inc()
	e.metrics.ReadingsExtracted.Add(float64(len(readings)))

	res := Result{City: city, Via: via, Readings: readings}

	path, err := e.staging.WriteRaw(staging.RawArtifact{
		RunID:     runID,
		City:      city.Name,
		Source:    via,
		FetchedAt: e.clock.Now().UTC(),
		Readings:  readings,
	})
	if err != nil {
		// The batch is still held in memory; the run proceeds, only replay
		// of this city is lost.
		e.logger.Error("staging write failed", "city", city.Name, "error", err)
	} else {
		res.StagingPath = path
	}

	e.logger.Info("city extracted", "city", city.Name, "via", via, "readings", len(readings))
	return res
}

// fetchWithRetry runs the bounded single-source retry loop: transient
// transport failures (timeout, unreachable) are retried with exponential
// backoff; data failures (malformed, rate limited) abort immediately so the
// caller can fall back.
func (e *Extractor) fetchWithRetry(ctx context.Context, client SourceClient, city domain.City, window source.Window) ([]domain.RawReading, error) {
	backoff := e.policy.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		readings, err := client.Fetch(ctx, city, window)
		if err == nil {
			return readings, nil
		}
		lastErr = err

		if !source.Retryable(err) {
			return nil, err
		}
		if attempt == e.policy.MaxAttempts {
			break
		}

		e.logger.Debug("retrying source",
			"city", city.Name, "source", client.Name(), "attempt", attempt, "backoff", backoff, "error", err)
		if !e.sleep(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = nextBackoff(backoff, e.policy.MaxBackoff)
	}

	return nil, lastErr
}

// sleep waits for d on the injected clock. Returns false if the context was
// cancelled first.
func (e *Extractor) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := e.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
