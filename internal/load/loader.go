package load

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hazewatch/air-quality-etl/internal/domain"
	"github.com/hazewatch/air-quality-etl/internal/observability"
)

const insertSQL = `
INSERT INTO air_quality_readings
	(city, time, pm10, pm2_5, carbon_monoxide, nitrogen_dioxide, sulphur_dioxide,
	 ozone, uv_index, severity_score, risk_flag, aqi_category, latitude, longitude)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (city, time) DO NOTHING`

// RowFailure reports one record that could not be persisted after bounded
// retries. The key identifies the record; the run continues without it.
type RowFailure struct {
	Key string
	Err error
}

// BatchResult summarizes one LoadBatch call. Duplicates are successes:
// a row with the same (city, time) key already exists and the record is a
// no-op, which is what makes re-running a pipeline over overlapping windows
// safe.
type BatchResult struct {
	Inserted   int
	Duplicates int
	Failures   []RowFailure
}

// Loader writes canonical records to the store in batches.
type Loader struct {
	db         DBTX
	batchSize  int
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates a Loader. batchSize caps the rows per round trip; maxRetries
// bounds the per-row retry loop after a failed insert.
func New(db DBTX, batchSize, maxRetries int, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{
		db:         db,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		retryDelay: 250 * time.Millisecond,
		logger:     logger,
		metrics:    metrics,
	}
}

// LoadBatch persists the records with insert-if-absent semantics. A failed
// insert is retried individually up to maxRetries times and then reported as
// a row-level failure; one bad row never aborts the rest of the batch. The
// returned error is non-nil only when the context is cancelled.
func (l *Loader) LoadBatch(ctx context.Context, records []domain.CanonicalRecord) (BatchResult, error) {
	var result BatchResult

	for start := 0; start < len(records); start += l.batchSize {
		end := min(start+l.batchSize, len(records))
		if err := l.loadChunk(ctx, records[start:end], &result); err != nil {
			return result, err
		}
	}

	l.metrics.RowsInserted.Add(float64(result.Inserted))
	l.metrics.DuplicatesSkipped.Add(float64(result.Duplicates))
	l.metrics.RowFailures.Add(float64(len(result.Failures)))

	return result, nil
}

// loadChunk sends one pgx batch and resolves each row's outcome. Rows whose
// queued insert failed are retried one at a time: batched execution is a
// throughput optimization and must not change per-row correctness.
func (l *Loader) loadChunk(ctx context.Context, records []domain.CanonicalRecord, result *BatchResult) error {
	start := time.Now()

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(insertSQL, insertArgs(rec)...)
	}

	var retry []domain.CanonicalRecord
	br := l.db.SendBatch(ctx, batch)
	for _, rec := range records {
		tag, err := br.Exec()
		switch {
		case err != nil:
			retry = append(retry, rec)
		case tag.RowsAffected() == 0:
			result.Duplicates++
		default:
			result.Inserted++
		}
	}
	if err := br.Close(); err != nil {
		l.logger.Warn("batch close failed", "error", err)
	}

	l.metrics.LoadBatchDuration.Observe(time.Since(start).Seconds())

	for _, rec := range retry {
		if err := l.retryRow(ctx, rec, result); err != nil {
			return err
		}
	}
	return nil
}

// retryRow retries a single failed insert up to maxRetries times, then
// records a row-level failure.
func (l *Loader) retryRow(ctx context.Context, rec domain.CanonicalRecord, result *BatchResult) error {
	var lastErr error

	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		tag, err := l.db.Exec(ctx, insertSQL, insertArgs(rec)...)
		if err == nil {
			if tag.RowsAffected() == 0 {
				result.Duplicates++
			} else {
				result.Inserted++
			}
			return nil
		}
		lastErr = err

		l.logger.Warn("row insert failed", "key", rec.Key(), "attempt", attempt, "error", err)
		if attempt < l.maxRetries && l.retryDelay > 0 {
			timer := time.NewTimer(l.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	l.logger.Error("row insert abandoned", "key", rec.Key(), "error", lastErr)
	result.Failures = append(result.Failures, RowFailure{Key: rec.Key(), Err: lastErr})
	return nil
}

func insertArgs(rec domain.CanonicalRecord) []any {
	return []any{
		rec.City,
		rec.Time.UTC(),
		rec.PM10,
		rec.PM25,
		rec.CarbonMonoxide,
		rec.NitrogenDioxide,
		rec.SulphurDioxide,
		rec.Ozone,
		rec.UVIndex,
		rec.SeverityScore,
		string(rec.RiskFlag),
		rec.AQICategory,
		rec.Latitude,
		rec.Longitude,
	}
}
