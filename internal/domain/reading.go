package domain

import (
	"fmt"
	"time"
)

// City is one configured extraction target. The name keys the store rows and
// the coordinates drive the source API query. Loaded once at startup, never
// mutated.
type City struct {
	Name      string  `validate:"required"`
	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`
}

// RawReading is one hourly observation exactly as a source reported it.
// Pollutant fields are pointers because "the source did not report this
// pollutant at this hour" and "the concentration was zero" are different
// facts: averages downstream must not count absent values as zeros.
type RawReading struct {
	City            string    `json:"city"`
	Time            time.Time `json:"time"`
	PM10            *float64  `json:"pm10,omitempty"`
	PM25            *float64  `json:"pm2_5,omitempty"`
	CarbonMonoxide  *float64  `json:"carbon_monoxide,omitempty"`
	NitrogenDioxide *float64  `json:"nitrogen_dioxide,omitempty"`
	SulphurDioxide  *float64  `json:"sulphur_dioxide,omitempty"`
	Ozone           *float64  `json:"ozone,omitempty"`
	UVIndex         *float64  `json:"uv_index,omitempty"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
}

// pollutantValues returns the weighted pollutant concentrations keyed by wire
// name. UV index is deliberately absent: it is an exposure index, not a
// concentration, and never contributes to severity.
func (r RawReading) pollutantValues() map[string]*float64 {
	return map[string]*float64{
		PollutantPM25: r.PM25,
		PollutantPM10: r.PM10,
		PollutantCO:   r.CarbonMonoxide,
		PollutantNO2:  r.NitrogenDioxide,
		PollutantSO2:  r.SulphurDioxide,
		PollutantO3:   r.Ozone,
	}
}

// HasAnyPollutant reports whether at least one pollutant concentration is
// present. Readings failing this check carry nothing to derive metrics from
// and are dropped before the load stage.
func (r RawReading) HasAnyPollutant() bool {
	for _, v := range r.pollutantValues() {
		if v != nil {
			return true
		}
	}
	return false
}

// RiskFlag is the categorical pollution-risk bucket derived from the severity
// score.
type RiskFlag string

const (
	RiskLow      RiskFlag = "Low"
	RiskModerate RiskFlag = "Moderate"
	RiskHigh     RiskFlag = "High"
	RiskSevere   RiskFlag = "Severe"
)

// CanonicalRecord is the normalized, load-ready representation of one
// city/hour reading. Identity is (City, Time); the store enforces at most one
// row per key. Created once by the normalizer and immutable afterwards.
type CanonicalRecord struct {
	City            string    `json:"city"`
	Time            time.Time `json:"time"`
	PM10            *float64  `json:"pm10,omitempty"`
	PM25            *float64  `json:"pm2_5,omitempty"`
	CarbonMonoxide  *float64  `json:"carbon_monoxide,omitempty"`
	NitrogenDioxide *float64  `json:"nitrogen_dioxide,omitempty"`
	SulphurDioxide  *float64  `json:"sulphur_dioxide,omitempty"`
	Ozone           *float64  `json:"ozone,omitempty"`
	UVIndex         *float64  `json:"uv_index,omitempty"`
	SeverityScore   float64   `json:"severity_score"`
	RiskFlag        RiskFlag  `json:"risk_flag"`
	AQICategory     string    `json:"aqi_category"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
	ProcessedAt     time.Time `json:"processed_at"`
}

// Key returns the record identity used for duplicate detection and as the
// partition key when records are published downstream.
func (c CanonicalRecord) Key() string {
	return fmt.Sprintf("%s|%s", c.City, c.Time.UTC().Format(time.RFC3339))
}
