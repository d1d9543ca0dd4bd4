// Package normalize converts raw readings into canonical records, or drops
// them with a reason. All derivation rules live in the domain policy; this
// package adds the batch mechanics, drop accounting, and logging.
package normalize

import (
	"errors"
	"log/slog"

	"github.com/hazewatch/air-quality-etl/internal/domain"
	"github.com/hazewatch/air-quality-etl/internal/observability"
)

// Normalizer maps raw batches to canonical records under a fixed derivation
// policy. Normalization is pure computation; it never blocks.
type Normalizer struct {
	policy  domain.DerivationPolicy
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Normalizer with the given derivation policy.
func New(policy domain.DerivationPolicy, logger *slog.Logger, metrics *observability.Metrics) *Normalizer {
	return &Normalizer{policy: policy, logger: logger, metrics: metrics}
}

// Normalize canonicalizes a raw batch. Readings with no pollutant data are
// dropped and counted; the dropped count is surfaced to the caller so runs
// can report data-quality failures instead of silently shrinking.
func (n *Normalizer) Normalize(batch []domain.RawReading) (records []domain.CanonicalRecord, dropped int) {
	records = make([]domain.CanonicalRecord, 0, len(batch))

	for _, raw := range batch {
		rec, err := n.policy.Canonicalize(raw)
		if err != nil {
			if errors.Is(err, domain.ErrNoPollutants) {
				n.logger.Warn("dropping reading with no pollutant data",
					"city", raw.City, "time", raw.Time)
				n.metrics.RecordsDropped.Inc()
				dropped++
				continue
			}
			// Canonicalize only fails with ErrNoPollutants today; treat
			// anything else as a drop too rather than aborting the batch.
			n.logger.Error("normalization failed, dropping reading",
				"city", raw.City, "time", raw.Time, "error", err)
			n.metrics.RecordsDropped.Inc()
			dropped++
			continue
		}
		records = append(records, rec)
	}

	n.metrics.RecordsNormalized.Add(float64(len(records)))
	return records, dropped
}
