// Package domain models hourly urban air-quality readings and the rules that
// turn them into load-ready canonical records.
//
// # Data Source
//
// Readings come from hourly air-quality measurement APIs (Open-Meteo style):
// one JSON object per city/hour carrying pollutant concentrations in µg/m³
// (CO in mg/m³ depending on provider), a UV index, coordinates, and an
// ISO-8601 observation timestamp. Any numeric field may be null or absent
// when the provider did not measure that pollutant at that hour.
//
// # Missing vs. zero
//
// Absent pollutant fields stay absent (*float64 nil) through the whole
// pipeline and become SQL NULLs in the store. They are never coerced to zero:
// downstream group-by averages must divide by the count of reported values.
// A reading with every pollutant missing is dropped as a data-quality
// failure before the load stage.
//
// # Severity score
//
// A weighted sum of the reported pollutant concentrations divided by the
// count of reported pollutants:
//
//	pm2_5×5 + pm10×3 + nitrogen_dioxide×4 + sulphur_dioxide×4 +
//	carbon_monoxide×2 + ozone×3, over non-missing fields only.
//
// The division keeps partially-reported readings comparable to complete
// ones. UV index is excluded: it is an exposure index, not a concentration.
//
// # Risk flag
//
// A step function over the severity score with named ascending thresholds
// (defaults 50/100/150):
//
//	score < T1          Low
//	T1 <= score < T2    Moderate
//	T2 <= score < T3    High
//	score >= T3         Severe
//
// Boundary scores belong to the higher bracket. Both weights and thresholds
// are deployment configuration, not constants scattered through derivation
// code.
//
// # AQI category
//
// Bucketed from PM2.5 alone: <=50 Good, <=100 Moderate, <=200 Unhealthy,
// <=300 Very Unhealthy, above Hazardous, Unknown when PM2.5 is missing.
//
// # Identity
//
// A canonical record is identified by (city, time). The store enforces the
// key with a primary key constraint, which makes re-running the pipeline
// over overlapping windows idempotent: duplicates are no-ops, not errors.
package domain
