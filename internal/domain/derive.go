package domain

import "errors"

// ErrNoPollutants marks a reading whose pollutant fields are all missing.
// Such readings are dropped before the load stage; they must never be
// persisted as rows of nulls.
var ErrNoPollutants = errors.New("no pollutant concentrations present")

// Wire/store names of the weighted pollutants.
const (
	PollutantPM25 = "pm2_5"
	PollutantPM10 = "pm10"
	PollutantCO   = "carbon_monoxide"
	PollutantNO2  = "nitrogen_dioxide"
	PollutantSO2  = "sulphur_dioxide"
	PollutantO3   = "ozone"
)

// Weights maps pollutant wire names to their contribution in the severity
// score. Particulates dominate; gases weigh less.
type Weights map[string]float64

// DefaultWeights returns the operational weighting table. The values are
// policy, not mechanism: deployments tune them via SEVERITY_WEIGHTS without
// touching derivation code.
func DefaultWeights() Weights {
	return Weights{
		PollutantPM25: 5,
		PollutantPM10: 3,
		PollutantNO2:  4,
		PollutantSO2:  4,
		PollutantCO:   2,
		PollutantO3:   3,
	}
}

// Thresholds are the ascending severity-score cut points for the risk ladder.
// Scores below Moderate are Low; a score equal to a cut point lands in the
// higher bracket.
type Thresholds struct {
	Moderate float64
	High     float64
	Severe   float64
}

// DefaultThresholds returns the operational risk cut points.
func DefaultThresholds() Thresholds {
	return Thresholds{Moderate: 50, High: 100, Severe: 150}
}

// DerivationPolicy bundles the tunable tables the normalizer derives metrics
// with. A zero policy is invalid; use DefaultPolicy or build one from config.
type DerivationPolicy struct {
	Weights    Weights
	Thresholds Thresholds
}

// DefaultPolicy returns the derivation policy with default weights and
// thresholds.
func DefaultPolicy() DerivationPolicy {
	return DerivationPolicy{
		Weights:    DefaultWeights(),
		Thresholds: DefaultThresholds(),
	}
}

// SeverityScore computes the weighted pollutant load of a reading, normalized
// by the count of non-missing inputs so a reading missing some pollutants is
// not rewarded for under-reporting. Returns ok=false when every pollutant is
// missing; such readings have no derivable severity and must be dropped.
func (p DerivationPolicy) SeverityScore(r RawReading) (score float64, ok bool) {
	var sum float64
	var n int
	for name, value := range r.pollutantValues() {
		if value == nil {
			continue
		}
		sum += p.Weights[name] * *value
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// RiskFor maps a severity score onto the four-level risk ladder.
func (p DerivationPolicy) RiskFor(score float64) RiskFlag {
	switch {
	case score < p.Thresholds.Moderate:
		return RiskLow
	case score < p.Thresholds.High:
		return RiskModerate
	case score < p.Thresholds.Severe:
		return RiskHigh
	default:
		return RiskSevere
	}
}

// AQI category labels derived from PM2.5 brackets.
const (
	AQIGood          = "Good"
	AQIModerate      = "Moderate"
	AQIUnhealthy     = "Unhealthy"
	AQIVeryUnhealthy = "Very Unhealthy"
	AQIHazardous     = "Hazardous"
	AQIUnknown       = "Unknown"
)

// Canonicalize maps a raw reading onto its canonical record, deriving the
// severity score, risk flag, and AQI category. Returns ErrNoPollutants when
// every pollutant field is missing. Canonicalization is pure except for the
// ProcessedAt stamp taken from the package clock.
func (p DerivationPolicy) Canonicalize(r RawReading) (CanonicalRecord, error) {
	score, ok := p.SeverityScore(r)
	if !ok {
		return CanonicalRecord{}, ErrNoPollutants
	}

	return CanonicalRecord{
		City:            r.City,
		Time:            r.Time.UTC(),
		PM10:            r.PM10,
		PM25:            r.PM25,
		CarbonMonoxide:  r.CarbonMonoxide,
		NitrogenDioxide: r.NitrogenDioxide,
		SulphurDioxide:  r.SulphurDioxide,
		Ozone:           r.Ozone,
		UVIndex:         r.UVIndex,
		SeverityScore:   score,
		RiskFlag:        p.RiskFor(score),
		AQICategory:     AQICategory(r.PM25),
		Latitude:        r.Latitude,
		Longitude:       r.Longitude,
		ProcessedAt:     clock.Now(),
	}, nil
}

// AQICategory buckets a PM2.5 concentration into its air-quality-index
// category. A missing PM2.5 yields Unknown rather than a guessed bracket.
func AQICategory(pm25 *float64) string {
	if pm25 == nil {
		return AQIUnknown
	}
	switch v := *pm25; {
	case v <= 50:
		return AQIGood
	case v <= 100:
		return AQIModerate
	case v <= 200:
		return AQIUnhealthy
	case v <= 300:
		return AQIVeryUnhealthy
	default:
		return AQIHazardous
	}
}
