package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazewatch/air-quality-etl/internal/domain"
)

func fptr(v float64) *float64 { return &v }

func TestSerializeToMessage(t *testing.T) {
	rec := domain.CanonicalRecord{
		City:          "Delhi",
		Time:          time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		PM25:          fptr(150),
		SeverityScore: 410,
		RiskFlag:      domain.RiskSevere,
		AQICategory:   domain.AQIUnhealthy,
		ProcessedAt:   time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("Delhi|2026-03-14T09:00:00Z"), msg.Key)

	var got domain.CanonicalRecord
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, rec, got)

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "risk_flag", msg.Headers[0].Key)
	assert.Equal(t, []byte("Severe"), msg.Headers[0].Value)
	assert.Equal(t, "processed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2026-03-14T10:00:00Z"), msg.Headers[1].Value)
}

func TestSerializeOmitsMissingPollutants(t *testing.T) {
	rec := domain.CanonicalRecord{
		City:        "Lagos",
		Time:        time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Ozone:       fptr(12),
		RiskFlag:    domain.RiskLow,
		AQICategory: domain.AQIUnknown,
	}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &raw))
	assert.Contains(t, raw, "ozone")
	assert.NotContains(t, raw, "pm2_5")
	assert.NotContains(t, raw, "pm10")
}
