// Command report reads the canonical air-quality records from PostgreSQL,
// computes the aggregate views (headline KPIs, hourly pollutant trends, and
// the per-city risk distribution), and writes them as CSV files.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hazewatch/air-quality-etl/internal/config"
	"github.com/hazewatch/air-quality-etl/internal/domain"
	"github.com/hazewatch/air-quality-etl/internal/observability"
	"github.com/hazewatch/air-quality-etl/internal/report"
)

func main() {
	outDir := flag.String("out", "", "output directory for CSV reports (defaults to PROCESSED_DIR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)

	dir := cfg.ProcessedDir
	if *outDir != "" {
		dir = *outDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open store pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	records, err := report.NewReader(pool).SelectAll(ctx)
	if err != nil {
		logger.Error("failed to read canonical records", "error", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		logger.Warn("no canonical records found, reports will be empty")
	}

	if err := report.WriteCSVs(dir, records); err != nil {
		logger.Error("failed to write reports", "error", err)
		os.Exit(1)
	}

	summary := report.Summarize(records)
	fmt.Printf("rows analyzed:          %d\n", summary.TotalRows)
	fmt.Printf("highest avg pm2_5:      %s\n", summary.CityHighestAvgPM25)
	fmt.Printf("highest avg severity:   %s\n", summary.CityHighestSeverity)
	if summary.WorstHourPM25 >= 0 {
		fmt.Printf("worst hour for pm2_5:   %02d:00 UTC\n", summary.WorstHourPM25)
	}
	for _, risk := range []domain.RiskFlag{domain.RiskLow, domain.RiskModerate, domain.RiskHigh, domain.RiskSevere} {
		fmt.Printf("risk %-9s %6.2f%%\n", string(risk)+":", summary.RiskPct[risk])
	}

	logger.Info("reports written", "dir", dir, "rows", summary.TotalRows)
}
