// Package report computes aggregate summaries over the persisted canonical
// records. It sits outside the extract-normalize-load core: every input row
// already satisfies the canonical invariants, so this is arithmetic, not
// reconciliation.
package report

import (
	"sort"

	"github.com/hazewatch/air-quality-etl/internal/domain"
)

// Summary holds the run-over-run KPI metrics. Empty strings and -1 mean the
// metric was not computable (no rows, or every candidate value missing).
type Summary struct {
	TotalRows           int
	CityHighestAvgPM25  string
	CityHighestSeverity string
	RiskPct             map[domain.RiskFlag]float64
	WorstHourPM25       int
}

// Summarize computes the KPI metrics from the full store contents.
func Summarize(records []domain.CanonicalRecord) Summary {
	s := Summary{
		TotalRows:     len(records),
		RiskPct:       riskPct(records),
		WorstHourPM25: -1,
	}
	if len(records) == 0 {
		return s
	}

	s.CityHighestAvgPM25 = argmaxMean(records, func(r domain.CanonicalRecord) (string, *float64) {
		return r.City, r.PM25
	})
	s.CityHighestSeverity = argmaxMean(records, func(r domain.CanonicalRecord) (string, *float64) {
		v := r.SeverityScore
		return r.City, &v
	})

	if hour, ok := worstHour(records); ok {
		s.WorstHourPM25 = hour
	}

	return s
}

// TrendRow is one row of the pollution-trends report, ordered by time.
type TrendRow struct {
	City  string
	Time  string
	PM25  *float64
	PM10  *float64
	Ozone *float64
}

// Trends projects the per-reading pollutant trend columns, sorted by time.
func Trends(records []domain.CanonicalRecord) []TrendRow {
	sorted := make([]domain.CanonicalRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	rows := make([]TrendRow, len(sorted))
	for i, r := range sorted {
		rows[i] = TrendRow{
			City:  r.City,
			Time:  r.Time.UTC().Format("2006-01-02T15:04:05Z"),
			PM25:  r.PM25,
			PM10:  r.PM10,
			Ozone: r.Ozone,
		}
	}
	return rows
}

// RiskCount is one (city, risk_flag) bucket of the risk-distribution report.
type RiskCount struct {
	City     string
	RiskFlag domain.RiskFlag
	Count    int
}

// RiskDistribution counts rows per (city, risk_flag), sorted by city then flag.
func RiskDistribution(records []domain.CanonicalRecord) []RiskCount {
	type key struct {
		city string
		flag domain.RiskFlag
	}
	counts := make(map[key]int)
	for _, r := range records {
		counts[key{r.City, r.RiskFlag}]++
	}

	rows := make([]RiskCount, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, RiskCount{City: k.city, RiskFlag: k.flag, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].City != rows[j].City {
			return rows[i].City < rows[j].City
		}
		return rows[i].RiskFlag < rows[j].RiskFlag
	})
	return rows
}

// riskPct returns the percentage of rows per risk flag. Flags are always
// well-formed on persisted rows, so there is no Unknown bucket.
func riskPct(records []domain.CanonicalRecord) map[domain.RiskFlag]float64 {
	pct := make(map[domain.RiskFlag]float64)
	if len(records) == 0 {
		return pct
	}
	for _, r := range records {
		pct[r.RiskFlag]++
	}
	for flag, n := range pct {
		pct[flag] = n / float64(len(records)) * 100
	}
	return pct
}

// argmaxMean groups the projected value by key, averages non-missing values,
// and returns the key with the highest mean. Empty string when every value is
// missing.
func argmaxMean(records []domain.CanonicalRecord, project func(domain.CanonicalRecord) (string, *float64)) string {
	type acc struct {
		sum float64
		n   int
	}
	groups := make(map[string]*acc)
	for _, r := range records {
		key, v := project(r)
		if v == nil {
			continue
		}
		a, ok := groups[key]
		if !ok {
			a = &acc{}
			groups[key] = a
		}
		a.sum += *v
		a.n++
	}

	best := ""
	bestMean := 0.0
	for key, a := range groups {
		mean := a.sum / float64(a.n)
		// Ties resolve to the lexicographically smaller key for determinism.
		if best == "" || mean > bestMean || (mean == bestMean && key < best) {
			best = key
			bestMean = mean
		}
	}
	return best
}

// worstHour returns the hour of day (UTC) with the highest average PM2.5.
func worstHour(records []domain.CanonicalRecord) (int, bool) {
	var sums, counts [24]float64
	for _, r := range records {
		if r.PM25 == nil {
			continue
		}
		h := r.Time.UTC().Hour()
		sums[h] += *r.PM25
		counts[h]++
	}

	best, bestMean, found := -1, 0.0, false
	for h := 0; h < 24; h++ {
		if counts[h] == 0 {
			continue
		}
		mean := sums[h] / counts[h]
		if !found || mean > bestMean {
			best, bestMean, found = h, mean, true
		}
	}
	return best, found
}
