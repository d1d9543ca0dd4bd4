package report

import (
	"context"
	"fmt"
	"time"

	"github.com/hazewatch/air-quality-etl/internal/domain"
	"github.com/hazewatch/air-quality-etl/internal/load"
)

const selectAllSQL = `
SELECT city, time, pm10, pm2_5, carbon_monoxide, nitrogen_dioxide,
       sulphur_dioxide, ozone, uv_index, severity_score, risk_flag,
       aqi_category, latitude, longitude
FROM air_quality_readings
ORDER BY city, time`

// Reader fetches persisted canonical records back out of the store.
type Reader struct {
	db load.DBTX
}

// NewReader creates a Reader backed by the given connection (pool or tx).
func NewReader(db load.DBTX) *Reader {
	return &Reader{db: db}
}

// SelectAll returns the full table contents ordered by (city, time).
func (r *Reader) SelectAll(ctx context.Context) ([]domain.CanonicalRecord, error) {
	rows, err := r.db.Query(ctx, selectAllSQL)
	if err != nil {
		return nil, fmt.Errorf("select readings: %w", err)
	}
	defer rows.Close()

	var records []domain.CanonicalRecord
	for rows.Next() {
		var rec domain.CanonicalRecord
		var ts time.Time
		var riskFlag string
		if err := rows.Scan(
			&rec.City, &ts,
			&rec.PM10, &rec.PM25, &rec.CarbonMonoxide, &rec.NitrogenDioxide,
			&rec.SulphurDioxide, &rec.Ozone, &rec.UVIndex,
			&rec.SeverityScore, &riskFlag, &rec.AQICategory,
			&rec.Latitude, &rec.Longitude,
		); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		rec.Time = ts.UTC()
		rec.RiskFlag = domain.RiskFlag(riskFlag)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}
	return records, nil
}
