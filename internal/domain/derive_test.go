package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

func testReading(city string) RawReading {
	return RawReading{
		City: city,
		Time: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestSeverityScore(t *testing.T) {
	policy := DefaultPolicy()

	t.Run("weighted sum normalized by non-missing count", func(t *testing.T) {
		r := testReading("Delhi")
		r.PM25 = fptr(150)
		r.PM10 = fptr(120)
		r.Ozone = fptr(40)

		score, ok := policy.SeverityScore(r)

		require.True(t, ok)
		// (150*5 + 120*3 + 40*3) / 3
		assert.Equal(t, 410.0, score)
	})

	t.Run("all pollutants present", func(t *testing.T) {
		r := testReading("Delhi")
		r.PM25 = fptr(10)
		r.PM10 = fptr(10)
		r.CarbonMonoxide = fptr(10)
		r.NitrogenDioxide = fptr(10)
		r.SulphurDioxide = fptr(10)
		r.Ozone = fptr(10)

		score, ok := policy.SeverityScore(r)

		require.True(t, ok)
		// 10 * (5+3+2+4+4+3) / 6
		assert.Equal(t, 35.0, score)
	})

	t.Run("zero counts, missing does not", func(t *testing.T) {
		withZero := testReading("Lagos")
		withZero.PM25 = fptr(0)
		withZero.Ozone = fptr(60)

		withMissing := testReading("Lagos")
		withMissing.Ozone = fptr(60)

		zeroScore, ok := policy.SeverityScore(withZero)
		require.True(t, ok)
		missingScore, ok := policy.SeverityScore(withMissing)
		require.True(t, ok)

		// Zero PM2.5 contributes nothing to the sum but divides the total.
		assert.Equal(t, 90.0, zeroScore)
		assert.Equal(t, 180.0, missingScore)
	})

	t.Run("uv index never contributes", func(t *testing.T) {
		r := testReading("Beijing")
		r.PM25 = fptr(20)
		r.UVIndex = fptr(11)

		score, ok := policy.SeverityScore(r)

		require.True(t, ok)
		assert.Equal(t, 100.0, score)
	})

	t.Run("all missing", func(t *testing.T) {
		r := testReading("Beijing")
		r.UVIndex = fptr(5)

		_, ok := policy.SeverityScore(r)

		assert.False(t, ok)
	})

	t.Run("deterministic", func(t *testing.T) {
		r := testReading("Delhi")
		r.PM25 = fptr(33.3)
		r.NitrogenDioxide = fptr(71.2)

		first, ok := policy.SeverityScore(r)
		require.True(t, ok)
		for range 10 {
			again, ok := policy.SeverityScore(r)
			require.True(t, ok)
			assert.Equal(t, first, again)
		}
	})
}

func TestRiskFor(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		score float64
		want  RiskFlag
	}{
		{0, RiskLow},
		{49.999, RiskLow},
		{50, RiskModerate},
		{99.999, RiskModerate},
		{100, RiskHigh},
		{149.999, RiskHigh},
		{150, RiskSevere},
		{410, RiskSevere},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, policy.RiskFor(tc.score), "score %v", tc.score)
	}
}

func TestAQICategory(t *testing.T) {
	tests := []struct {
		name string
		pm25 *float64
		want string
	}{
		{"missing", nil, AQIUnknown},
		{"zero", fptr(0), AQIGood},
		{"upper good", fptr(50), AQIGood},
		{"moderate", fptr(75), AQIModerate},
		{"upper moderate", fptr(100), AQIModerate},
		{"unhealthy", fptr(150), AQIUnhealthy},
		{"upper unhealthy", fptr(200), AQIUnhealthy},
		{"very unhealthy", fptr(250), AQIVeryUnhealthy},
		{"upper very unhealthy", fptr(300), AQIVeryUnhealthy},
		{"hazardous", fptr(300.1), AQIHazardous},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AQICategory(tc.pm25))
		})
	}
}

func TestCanonicalize(t *testing.T) {
	policy := DefaultPolicy()
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	defer SetClock(nil)

	t.Run("derives metrics and stamps processing time", func(t *testing.T) {
		r := testReading("Delhi")
		r.PM25 = fptr(150)
		r.PM10 = fptr(120)
		r.Ozone = fptr(40)
		r.Latitude = fptr(28.6139)
		r.Longitude = fptr(77.2090)

		rec, err := policy.Canonicalize(r)

		require.NoError(t, err)
		assert.Equal(t, "Delhi", rec.City)
		assert.Equal(t, r.Time, rec.Time)
		assert.Equal(t, 410.0, rec.SeverityScore)
		assert.Equal(t, RiskSevere, rec.RiskFlag)
		assert.Equal(t, AQIUnhealthy, rec.AQICategory)
		assert.Equal(t, now, rec.ProcessedAt)
		require.NotNil(t, rec.Latitude)
		assert.Equal(t, 28.6139, *rec.Latitude)
	})

	t.Run("preserves missing fields as nil", func(t *testing.T) {
		r := testReading("Lagos")
		r.Ozone = fptr(12)

		rec, err := policy.Canonicalize(r)

		require.NoError(t, err)
		assert.Nil(t, rec.PM25)
		assert.Nil(t, rec.PM10)
		assert.Nil(t, rec.CarbonMonoxide)
		assert.Equal(t, AQIUnknown, rec.AQICategory)
	})

	t.Run("all pollutants missing", func(t *testing.T) {
		r := testReading("Lagos")
		r.UVIndex = fptr(3)

		_, err := policy.Canonicalize(r)

		assert.ErrorIs(t, err, ErrNoPollutants)
	})

	t.Run("normalizes time to UTC", func(t *testing.T) {
		loc := time.FixedZone("IST", 5*3600+1800)
		r := testReading("Delhi")
		r.Time = time.Date(2026, 3, 14, 14, 30, 0, 0, loc)
		r.PM25 = fptr(10)

		rec, err := policy.Canonicalize(r)

		require.NoError(t, err)
		assert.Equal(t, time.UTC, rec.Time.Location())
		assert.Equal(t, time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC), rec.Time)
	})
}

func TestHasAnyPollutant(t *testing.T) {
	r := testReading("Beijing")
	assert.False(t, r.HasAnyPollutant())

	r.UVIndex = fptr(2)
	assert.False(t, r.HasAnyPollutant())

	r.SulphurDioxide = fptr(0)
	assert.True(t, r.HasAnyPollutant())
}

func TestCanonicalRecordKey(t *testing.T) {
	rec := CanonicalRecord{
		City: "Mexico City",
		Time: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "Mexico City|2026-03-14T09:00:00Z", rec.Key())
}
