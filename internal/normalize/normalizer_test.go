package normalize

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazewatch/air-quality-etl/internal/domain"
	"github.com/hazewatch/air-quality-etl/internal/observability"
)

func fptr(v float64) *float64 { return &v }

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	return New(domain.DefaultPolicy(), slog.Default(), observability.NewMetricsForTesting())
}

func TestNormalize(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	t.Run("canonicalizes readings in order", func(t *testing.T) {
		batch := []domain.RawReading{
			{City: "Delhi", Time: ts, PM25: fptr(150), PM10: fptr(120), Ozone: fptr(40)},
			{City: "Lagos", Time: ts, Ozone: fptr(12)},
		}

		records, dropped := newTestNormalizer(t).Normalize(batch)

		assert.Zero(t, dropped)
		require.Len(t, records, 2)
		assert.Equal(t, "Delhi", records[0].City)
		assert.Equal(t, 410.0, records[0].SeverityScore)
		assert.Equal(t, domain.RiskSevere, records[0].RiskFlag)
		assert.Equal(t, "Lagos", records[1].City)
		assert.Equal(t, domain.RiskLow, records[1].RiskFlag)
	})

	t.Run("drops readings with no pollutant data", func(t *testing.T) {
		batch := []domain.RawReading{
			{City: "Delhi", Time: ts, PM25: fptr(10)},
			{City: "Delhi", Time: ts.Add(time.Hour), UVIndex: fptr(5)},
			{City: "Delhi", Time: ts.Add(2 * time.Hour)},
			{City: "Delhi", Time: ts.Add(3 * time.Hour), SulphurDioxide: fptr(0)},
		}

		records, dropped := newTestNormalizer(t).Normalize(batch)

		assert.Equal(t, 2, dropped)
		require.Len(t, records, 2)
		assert.Equal(t, ts, records[0].Time)
		assert.Equal(t, ts.Add(3*time.Hour), records[1].Time)
	})

	t.Run("empty batch", func(t *testing.T) {
		records, dropped := newTestNormalizer(t).Normalize(nil)

		assert.Zero(t, dropped)
		assert.Empty(t, records)
	})
}
