package staging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazewatch/air-quality-etl/internal/domain"
)

func fptr(v float64) *float64 { return &v }

func TestRawArtifactRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	art := RawArtifact{
		RunID:     "20260314T100000Z",
		City:      "Mexico City",
		Source:    "secondary",
		FetchedAt: time.Date(2026, 3, 14, 10, 0, 5, 0, time.UTC),
		Readings: []domain.RawReading{
			{
				City:  "Mexico City",
				Time:  time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
				PM25:  fptr(42.5),
				Ozone: fptr(0),
			},
			{
				City: "Mexico City",
				Time: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
			},
		},
	}

	path, err := store.WriteRaw(art)
	require.NoError(t, err)
	assert.Equal(t, "mexico_city.json", filepath.Base(path))

	got, err := store.ReadRaw("20260314T100000Z", "Mexico City")
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(art, got))

	// Missing stays missing, zero stays zero.
	assert.Nil(t, got.Readings[0].PM10)
	require.NotNil(t, got.Readings[0].Ozone)
	assert.Equal(t, 0.0, *got.Readings[0].Ozone)
	assert.Nil(t, got.Readings[1].PM25)
}

func TestListRaw(t *testing.T) {
	store := NewStore(t.TempDir())
	runID := "20260314T100000Z"

	for _, city := range []string{"Delhi", "Lagos"} {
		_, err := store.WriteRaw(RawArtifact{RunID: runID, City: city, Source: "primary"})
		require.NoError(t, err)
	}
	// Artifacts from another run must not leak in.
	_, err := store.WriteRaw(RawArtifact{RunID: "20260315T100000Z", City: "Delhi", Source: "primary"})
	require.NoError(t, err)

	arts, err := store.ListRaw(runID)
	require.NoError(t, err)
	require.Len(t, arts, 2)
	for _, art := range arts {
		assert.Equal(t, runID, art.RunID)
	}

	_, err = store.ListRaw("no-such-run")
	assert.Error(t, err)
}

func TestCanonicalRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	runID := "20260314T100000Z"

	records := []domain.CanonicalRecord{
		{
			City:            "Delhi",
			Time:            time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
			PM25:            fptr(150),
			PM10:            fptr(120),
			Ozone:           fptr(40),
			SeverityScore:   410,
			RiskFlag:        domain.RiskSevere,
			AQICategory:     domain.AQIUnhealthy,
			Latitude:        fptr(28.6139),
			Longitude:       fptr(77.2090),
			ProcessedAt:     time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		},
		{
			City:          "Lagos",
			Time:          time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
			Ozone:         fptr(12.25),
			SeverityScore: 36.75,
			RiskFlag:      domain.RiskLow,
			AQICategory:   domain.AQIUnknown,
			ProcessedAt:   time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		},
	}

	path, err := store.WriteCanonical(runID, records)
	require.NoError(t, err)
	assert.Equal(t, runID+".csv", filepath.Base(path))

	got, err := store.ReadCanonical(runID)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(records, got))
}

func TestCanonicalMissingCellsStayEmpty(t *testing.T) {
	store := NewStore(t.TempDir())
	runID := "run"

	path, err := store.WriteCanonical(runID, []domain.CanonicalRecord{
		{
			City:          "Lagos",
			Time:          time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
			Ozone:         fptr(12),
			SeverityScore: 36,
			RiskFlag:      domain.RiskLow,
			AQICategory:   domain.AQIUnknown,
			ProcessedAt:   time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// A row with only ozone must serialize the other pollutants as empty
	// cells, not zeros.
	assert.Contains(t, string(data), "Lagos,2026-03-14T09:00:00Z,,,,,,12,,36,Low,Unknown,,,")
}

func TestReadCanonicalRejectsBadRows(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.WriteCanonical("run", nil)
	require.NoError(t, err)

	got, err := store.ReadCanonical("run")
	require.NoError(t, err)
	assert.Empty(t, got)

	dir := filepath.Join(t.TempDir(), "staged")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	badStore := NewStore(filepath.Dir(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.csv"),
		[]byte("city,time\nDelhi,notatime\n"), 0o644))

	_, err = badStore.ReadCanonical("bad")
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "mexico_city", slug("Mexico City"))
	assert.Equal(t, "delhi", slug(" Delhi "))
}
