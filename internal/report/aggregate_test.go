package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazewatch/air-quality-etl/internal/domain"
)

func fptr(v float64) *float64 { return &v }

func rec(city string, hour int, pm25 *float64, severity float64, flag domain.RiskFlag) domain.CanonicalRecord {
	return domain.CanonicalRecord{
		City:          city,
		Time:          time.Date(2026, 3, 14, hour, 0, 0, 0, time.UTC),
		PM25:          pm25,
		SeverityScore: severity,
		RiskFlag:      flag,
		AQICategory:   domain.AQICategory(pm25),
	}
}

func TestSummarize(t *testing.T) {
	t.Run("computes headline metrics", func(t *testing.T) {
		records := []domain.CanonicalRecord{
			rec("Delhi", 8, fptr(150), 410, domain.RiskSevere),
			rec("Delhi", 9, fptr(130), 380, domain.RiskSevere),
			rec("Lagos", 8, fptr(30), 40, domain.RiskLow),
			rec("Lagos", 9, fptr(50), 60, domain.RiskModerate),
		}

		s := Summarize(records)

		assert.Equal(t, 4, s.TotalRows)
		assert.Equal(t, "Delhi", s.CityHighestAvgPM25)
		assert.Equal(t, "Delhi", s.CityHighestSeverity)
		assert.Equal(t, 8, s.WorstHourPM25)
		assert.Equal(t, 50.0, s.RiskPct[domain.RiskSevere])
		assert.Equal(t, 25.0, s.RiskPct[domain.RiskLow])
		assert.Equal(t, 25.0, s.RiskPct[domain.RiskModerate])
		assert.Zero(t, s.RiskPct[domain.RiskHigh])
	})

	t.Run("missing pm2_5 rows do not skew the averages", func(t *testing.T) {
		// Lagos has one huge reading and one missing one; averaging over
		// present values only must keep 200/1, not 200/2.
		records := []domain.CanonicalRecord{
			rec("Delhi", 8, fptr(150), 400, domain.RiskSevere),
			rec("Delhi", 9, fptr(150), 400, domain.RiskSevere),
			rec("Lagos", 8, fptr(200), 100, domain.RiskHigh),
			rec("Lagos", 9, nil, 100, domain.RiskHigh),
		}

		s := Summarize(records)

		assert.Equal(t, "Lagos", s.CityHighestAvgPM25)
		assert.Equal(t, "Delhi", s.CityHighestSeverity)
	})

	t.Run("all pm2_5 missing", func(t *testing.T) {
		records := []domain.CanonicalRecord{
			rec("Delhi", 8, nil, 100, domain.RiskHigh),
		}

		s := Summarize(records)

		assert.Empty(t, s.CityHighestAvgPM25)
		assert.Equal(t, "Delhi", s.CityHighestSeverity)
		assert.Equal(t, -1, s.WorstHourPM25)
	})

	t.Run("mean ties resolve to the lexicographically smaller city", func(t *testing.T) {
		records := []domain.CanonicalRecord{
			rec("Lagos", 8, fptr(100), 200, domain.RiskSevere),
			rec("Delhi", 9, fptr(100), 200, domain.RiskSevere),
		}

		s := Summarize(records)

		assert.Equal(t, "Delhi", s.CityHighestAvgPM25)
		assert.Equal(t, "Delhi", s.CityHighestSeverity)
	})

	t.Run("empty input", func(t *testing.T) {
		s := Summarize(nil)

		assert.Zero(t, s.TotalRows)
		assert.Empty(t, s.CityHighestAvgPM25)
		assert.Empty(t, s.CityHighestSeverity)
		assert.Empty(t, s.RiskPct)
		assert.Equal(t, -1, s.WorstHourPM25)
	})
}

func TestTrends(t *testing.T) {
	records := []domain.CanonicalRecord{
		rec("Delhi", 10, fptr(150), 400, domain.RiskSevere),
		rec("Lagos", 8, fptr(30), 40, domain.RiskLow),
		rec("Delhi", 9, nil, 100, domain.RiskHigh),
	}

	rows := Trends(records)

	require.Len(t, rows, 3)
	// Sorted by time regardless of input order.
	assert.Equal(t, "Lagos", rows[0].City)
	assert.Equal(t, "2026-03-14T08:00:00Z", rows[0].Time)
	assert.Equal(t, "Delhi", rows[1].City)
	assert.Nil(t, rows[1].PM25)
	assert.Equal(t, "Delhi", rows[2].City)
	require.NotNil(t, rows[2].PM25)
	assert.Equal(t, 150.0, *rows[2].PM25)
}

func TestRiskDistribution(t *testing.T) {
	records := []domain.CanonicalRecord{
		rec("Lagos", 8, fptr(30), 40, domain.RiskLow),
		rec("Delhi", 8, fptr(150), 400, domain.RiskSevere),
		rec("Delhi", 9, fptr(150), 400, domain.RiskSevere),
		rec("Delhi", 10, fptr(60), 80, domain.RiskModerate),
	}

	rows := RiskDistribution(records)

	require.Len(t, rows, 3)
	assert.Equal(t, RiskCount{City: "Delhi", RiskFlag: domain.RiskModerate, Count: 1}, rows[0])
	assert.Equal(t, RiskCount{City: "Delhi", RiskFlag: domain.RiskSevere, Count: 2}, rows[1])
	assert.Equal(t, RiskCount{City: "Lagos", RiskFlag: domain.RiskLow, Count: 1}, rows[2])
}
