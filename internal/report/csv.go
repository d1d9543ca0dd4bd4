package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hazewatch/air-quality-etl/internal/domain"
)

// Report artifact file names under the processed directory.
const (
	SummaryFile   = "summary_metrics.csv"
	TrendsFile    = "pollution_trends.csv"
	RiskDistFile  = "city_risk_distribution.csv"
)

// WriteCSVs materializes the three report artifacts under dir, creating it
// if needed.
func WriteCSVs(dir string, records []domain.CanonicalRecord) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create processed dir: %w", err)
	}

	summary := Summarize(records)
	summaryRows := [][]string{
		{"total_rows", "city_highest_avg_pm2_5", "city_highest_severity",
			"low_risk_pct", "moderate_risk_pct", "high_risk_pct", "severe_risk_pct",
			"worst_hour_pm2_5"},
		{
			strconv.Itoa(summary.TotalRows),
			summary.CityHighestAvgPM25,
			summary.CityHighestSeverity,
			formatPct(summary.RiskPct[domain.RiskLow]),
			formatPct(summary.RiskPct[domain.RiskModerate]),
			formatPct(summary.RiskPct[domain.RiskHigh]),
			formatPct(summary.RiskPct[domain.RiskSevere]),
			strconv.Itoa(summary.WorstHourPM25),
		},
	}
	if err := writeCSV(filepath.Join(dir, SummaryFile), summaryRows); err != nil {
		return err
	}

	trendRows := [][]string{{"city", "time", "pm2_5", "pm10", "ozone"}}
	for _, t := range Trends(records) {
		trendRows = append(trendRows, []string{t.City, t.Time, formatOpt(t.PM25), formatOpt(t.PM10), formatOpt(t.Ozone)})
	}
	if err := writeCSV(filepath.Join(dir, TrendsFile), trendRows); err != nil {
		return err
	}

	distRows := [][]string{{"city", "risk_flag", "count"}}
	for _, d := range RiskDistribution(records) {
		distRows = append(distRows, []string{d.City, string(d.RiskFlag), strconv.Itoa(d.Count)})
	}
	return writeCSV(filepath.Join(dir, RiskDistFile), distRows)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatOpt(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
