// Package staging persists intermediate pipeline artifacts to a local data
// directory so the normalize and load stages can be re-run without
// re-fetching. Layout:
//
//	<root>/raw/<run>/<city>.json   one raw batch per run per city
//	<root>/staged/<run>.csv        canonical rows for the whole run
package staging

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hazewatch/air-quality-etl/internal/domain"
)

// Store reads and writes staging artifacts under a root directory.
type Store struct {
	root string
}

// NewStore creates a staging store rooted at dir. Directories are created
// lazily on first write.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// RawArtifact is the on-disk envelope for one city's raw batch. Source
// records whether the batch came via the primary or the secondary, so the
// run summary survives a replay.
type RawArtifact struct {
	RunID     string              `json:"run_id"`
	City      string              `json:"city"`
	Source    string              `json:"source"`
	FetchedAt time.Time           `json:"fetched_at"`
	Readings  []domain.RawReading `json:"readings"`
}

// WriteRaw stores one city's raw batch for the run, returning the artifact path.
func (s *Store) WriteRaw(art RawArtifact) (string, error) {
	dir := filepath.Join(s.root, "raw", art.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create raw staging dir: %w", err)
	}

	path := filepath.Join(dir, slug(art.City)+".json")
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode raw artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write raw artifact: %w", err)
	}
	return path, nil
}

// ReadRaw loads one city's raw batch back from the run's staging area.
func (s *Store) ReadRaw(runID, city string) (RawArtifact, error) {
	path := filepath.Join(s.root, "raw", runID, slug(city)+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return RawArtifact{}, fmt.Errorf("read raw artifact: %w", err)
	}
	var art RawArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return RawArtifact{}, fmt.Errorf("decode raw artifact %s: %w", path, err)
	}
	return art, nil
}

// ListRaw returns the raw artifacts staged for a run, one per city.
func (s *Store) ListRaw(runID string) ([]RawArtifact, error) {
	dir := filepath.Join(s.root, "raw", runID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list raw staging dir: %w", err)
	}

	arts := make([]RawArtifact, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read raw artifact %s: %w", e.Name(), err)
		}
		var art RawArtifact
		if err := json.Unmarshal(data, &art); err != nil {
			return nil, fmt.Errorf("decode raw artifact %s: %w", e.Name(), err)
		}
		arts = append(arts, art)
	}
	return arts, nil
}

// canonicalHeader is the column order shared by the canonical CSV artifact
// and the store table. Missing numerics serialize as empty cells, never zero.
var canonicalHeader = []string{
	"city", "time",
	"pm10", "pm2_5", "carbon_monoxide", "nitrogen_dioxide", "sulphur_dioxide", "ozone", "uv_index",
	"severity_score", "risk_flag", "aqi_category",
	"latitude", "longitude", "processed_at",
}

// WriteCanonical stores the run's surviving canonical records as one CSV,
// returning the artifact path.
func (s *Store) WriteCanonical(runID string, records []domain.CanonicalRecord) (string, error) {
	dir := filepath.Join(s.root, "staged")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create canonical staging dir: %w", err)
	}

	path := filepath.Join(dir, runID+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create canonical artifact: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(canonicalHeader); err != nil {
		return "", fmt.Errorf("write canonical header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.City,
			rec.Time.UTC().Format(time.RFC3339),
			formatOpt(rec.PM10),
			formatOpt(rec.PM25),
			formatOpt(rec.CarbonMonoxide),
			formatOpt(rec.NitrogenDioxide),
			formatOpt(rec.SulphurDioxide),
			formatOpt(rec.Ozone),
			formatOpt(rec.UVIndex),
			strconv.FormatFloat(rec.SeverityScore, 'f', -1, 64),
			string(rec.RiskFlag),
			rec.AQICategory,
			formatOpt(rec.Latitude),
			formatOpt(rec.Longitude),
			rec.ProcessedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write canonical row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush canonical artifact: %w", err)
	}
	return path, nil
}

// ReadCanonical loads the run's canonical records back from the CSV artifact.
func (s *Store) ReadCanonical(runID string) ([]domain.CanonicalRecord, error) {
	path := filepath.Join(s.root, "staged", runID+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open canonical artifact: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read canonical artifact: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	records := make([]domain.CanonicalRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := parseCanonicalRow(row)
		if err != nil {
			return nil, fmt.Errorf("canonical artifact row %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseCanonicalRow(row []string) (domain.CanonicalRecord, error) {
	if len(row) != len(canonicalHeader) {
		return domain.CanonicalRecord{}, fmt.Errorf("want %d columns, got %d", len(canonicalHeader), len(row))
	}

	ts, err := time.Parse(time.RFC3339, row[1])
	if err != nil {
		return domain.CanonicalRecord{}, fmt.Errorf("parse time: %w", err)
	}
	score, err := strconv.ParseFloat(row[9], 64)
	if err != nil {
		return domain.CanonicalRecord{}, fmt.Errorf("parse severity_score: %w", err)
	}
	processedAt, err := time.Parse(time.RFC3339, row[14])
	if err != nil {
		return domain.CanonicalRecord{}, fmt.Errorf("parse processed_at: %w", err)
	}

	rec := domain.CanonicalRecord{
		City:          row[0],
		Time:          ts.UTC(),
		SeverityScore: score,
		RiskFlag:      domain.RiskFlag(row[10]),
		AQICategory:   row[11],
		ProcessedAt:   processedAt.UTC(),
	}

	opts := []struct {
		col  int
		dest **float64
	}{
		{2, &rec.PM10}, {3, &rec.PM25}, {4, &rec.CarbonMonoxide},
		{5, &rec.NitrogenDioxide}, {6, &rec.SulphurDioxide}, {7, &rec.Ozone},
		{8, &rec.UVIndex}, {12, &rec.Latitude}, {13, &rec.Longitude},
	}
	for _, o := range opts {
		v, err := parseOpt(row[o.col])
		if err != nil {
			return domain.CanonicalRecord{}, fmt.Errorf("parse %s: %w", canonicalHeader[o.col], err)
		}
		*o.dest = v
	}

	return rec, nil
}

func formatOpt(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseOpt(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// slug normalizes a city name for use as a file name: "Mexico City" -> "mexico_city".
func slug(city string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(city), " ", "_"))
}
