// Command mocksource serves a readings endpoint with deterministic synthetic
// air-quality data for local development and manual pipeline testing. The
// values are a hash of city name and hour, so repeated fetches for the same
// window return identical payloads.
//
// Failure injection flags make it useful for exercising the extractor's
// retry and fallback behavior:
//
//	go run ./cmd/mocksource -addr :8081
//	go run ./cmd/mocksource -addr :8082 -latency 2s
//	go run ./cmd/mocksource -addr :8081 -status 500
//	go run ./cmd/mocksource -addr :8081 -fail-every 3
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"net/http"
	"sync/atomic"
	"time"
)

type reading struct {
	City            string   `json:"city"`
	Time            string   `json:"time"`
	PM10            *float64 `json:"pm10"`
	PM25            *float64 `json:"pm2_5"`
	CarbonMonoxide  *float64 `json:"carbon_monoxide"`
	NitrogenDioxide *float64 `json:"nitrogen_dioxide"`
	SulphurDioxide  *float64 `json:"sulphur_dioxide"`
	Ozone           *float64 `json:"ozone"`
	UVIndex         *float64 `json:"uv_index"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	addr := flag.String("addr", ":8081", "listen address")
	status := flag.String("status", "", "always respond with this HTTP status code (e.g. 500, 429)")
	latency := flag.Duration("latency", 0, "artificial delay before responding")
	failEvery := flag.Int("fail-every", 0, "respond 500 to every Nth request (0 disables)")
	gaps := flag.Bool("gaps", true, "omit some pollutant fields to simulate missing sensor values")
	flag.Parse()

	var count atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/readings", func(w http.ResponseWriter, r *http.Request) {
		n := count.Add(1)

		if *latency > 0 {
			time.Sleep(*latency)
		}
		if *status != "" {
			code := 0
			fmt.Sscanf(*status, "%d", &code)
			http.Error(w, http.StatusText(code), code)
			log.Printf("%s -> forced %d", r.URL.RawQuery, code)
			return
		}
		if *failEvery > 0 && n%int64(*failEvery) == 0 {
			http.Error(w, "injected failure", http.StatusInternalServerError)
			log.Printf("%s -> injected 500 (request %d)", r.URL.RawQuery, n)
			return
		}

		city := r.URL.Query().Get("city")
		start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
		if err != nil {
			http.Error(w, "bad start: "+err.Error(), http.StatusBadRequest)
			return
		}
		end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
		if err != nil {
			http.Error(w, "bad end: "+err.Error(), http.StatusBadRequest)
			return
		}
		if city == "" || !end.After(start) {
			http.Error(w, "city, start, end are required and end must follow start", http.StatusBadRequest)
			return
		}

		readings := generate(city, start.UTC().Truncate(time.Hour), end.UTC(), *gaps)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"readings": readings}); err != nil {
			log.Printf("encode response: %v", err)
			return
		}
		log.Printf("%s -> %d readings", r.URL.RawQuery, len(readings))
	})

	log.Printf("mock readings source listening on %s", *addr)
	return http.ListenAndServe(*addr, mux)
}

// generate produces one reading per hour in [start, end). Values derive from
// a hash of city and hour so output is stable across calls.
func generate(city string, start, end time.Time, gaps bool) []reading {
	var out []reading
	for ts := start; ts.Before(end); ts = ts.Add(time.Hour) {
		seed := hashOf(city, ts)
		// Diurnal swing on top of a city-specific baseline.
		phase := math.Sin(2 * math.Pi * float64(ts.Hour()) / 24)
		base := 20 + float64(seed%80)

		r := reading{
			City:            city,
			Time:            ts.Format(time.RFC3339),
			PM25:            ptr(round1(base * (1.2 + 0.5*phase))),
			PM10:            ptr(round1(base * (1.8 + 0.4*phase))),
			CarbonMonoxide:  ptr(round1(200 + float64(seed%400))),
			NitrogenDioxide: ptr(round1(10 + float64(seed%50))),
			SulphurDioxide:  ptr(round1(5 + float64(seed%30))),
			Ozone:           ptr(round1(30 + float64(seed%60) - 20*phase)),
			UVIndex:         ptr(round1(math.Max(0, 6*phase))),
		}

		if gaps {
			// Drop a rotating subset of fields so nulls flow through
			// the pipeline regularly.
			switch seed % 7 {
			case 0:
				r.PM25 = nil
			case 1:
				r.Ozone = nil
			case 2:
				r.SulphurDioxide, r.CarbonMonoxide = nil, nil
			case 3:
				r.UVIndex = nil
			}
		}
		out = append(out, r)
	}
	return out
}

func hashOf(city string, ts time.Time) uint64 {
	h := fnv.New64a()
	h.Write([]byte(city))
	h.Write([]byte(ts.Format("2006010215")))
	return h.Sum64()
}

func ptr(v float64) *float64 { return &v }

func round1(v float64) float64 { return math.Round(v*10) / 10 }
