package load

import (
	"context"
	"fmt"
)

// createTableSQL defines the persistent store table. The (city, time)
// primary key backs the loader's ON CONFLICT DO NOTHING discipline.
const createTableSQL = `
CREATE TABLE IF NOT EXISTS air_quality_readings (
	city             TEXT NOT NULL,
	time             TIMESTAMPTZ NOT NULL,
	pm10             DOUBLE PRECISION,
	pm2_5            DOUBLE PRECISION,
	carbon_monoxide  DOUBLE PRECISION,
	nitrogen_dioxide DOUBLE PRECISION,
	sulphur_dioxide  DOUBLE PRECISION,
	ozone            DOUBLE PRECISION,
	uv_index         DOUBLE PRECISION,
	severity_score   DOUBLE PRECISION NOT NULL,
	risk_flag        TEXT NOT NULL,
	aqi_category     TEXT NOT NULL,
	latitude         DOUBLE PRECISION,
	longitude        DOUBLE PRECISION,
	inserted_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (city, time)
)`

// Migrate creates the readings table if it does not exist.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create air_quality_readings table: %w", err)
	}
	return nil
}
