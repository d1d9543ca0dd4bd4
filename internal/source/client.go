package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/hazewatch/air-quality-etl/internal/domain"
	"github.com/hazewatch/air-quality-etl/internal/observability"
)

// Window is the half-open observation time range [Start, End) requested from
// a source.
type Window struct {
	Start time.Time
	End   time.Time
}

// Client performs single-attempt fetches against one readings endpoint.
// It holds no retry logic: one Fetch call is at most one outbound request,
// which keeps the retry/fallback policy entirely in the extractor and makes
// the client trivial to fake. A circuit breaker short-circuits requests to a
// source that has failed repeatedly; an open breaker surfaces as
// KindUnreachable without a network call.
type Client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a source client for one endpoint. name labels failures,
// metrics, and the breaker.
func NewClient(name, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Client{
		name:    name,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: cb,
		metrics: metrics,
		logger:  logger,
	}
}

// Name returns the configured source label ("primary", "secondary").
func (c *Client) Name() string { return c.name }

// Fetch issues one bounded-timeout request for the city's readings in the
// given window. Failures are always a *Error carrying the classified Kind.
func (c *Client) Fetch(ctx context.Context, city domain.City, window Window) ([]domain.RawReading, error) {
	params := url.Values{
		"city":      {city.Name},
		"latitude":  {strconv.FormatFloat(city.Latitude, 'f', 4, 64)},
		"longitude": {strconv.FormatFloat(city.Longitude, 'f', 4, 64)},
		"start":     {window.Start.UTC().Format(time.RFC3339)},
		"end":       {window.End.UTC().Format(time.RFC3339)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, c.fail(KindMalformedResponse, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		// 5xx counts against the breaker; classification happens below.
		if resp.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, fmt.Errorf("server error: status %d: %s", resp.StatusCode, body)
		}
		return resp, nil
	})
	c.metrics.SourceDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, c.classify(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, c.fail(KindRateLimited, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, c.fail(KindMalformedResponse, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body))
	}

	var payload struct {
		Readings []wireReading `json:"readings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, c.fail(KindMalformedResponse, fmt.Errorf("decode response: %w", err))
	}
	if len(payload.Readings) == 0 {
		return nil, c.fail(KindMalformedResponse, errors.New("empty readings payload"))
	}

	readings := make([]domain.RawReading, 0, len(payload.Readings))
	for i, w := range payload.Readings {
		r, err := w.toReading(city)
		if err != nil {
			return nil, c.fail(KindMalformedResponse, fmt.Errorf("reading %d: %w", i, err))
		}
		readings = append(readings, r)
	}

	c.metrics.SourceRequests.WithLabelValues(c.name, "success").Inc()
	return readings, nil
}

// classify maps transport-level failures onto the error taxonomy.
func (c *Client) classify(err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		return c.fail(KindUnreachable, fmt.Errorf("circuit open: %w", err))
	case errors.Is(err, context.DeadlineExceeded):
		return c.fail(KindTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.fail(KindTimeout, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return c.fail(KindTimeout, err)
	}

	return c.fail(KindUnreachable, err)
}

func (c *Client) fail(kind Kind, err error) error {
	c.metrics.SourceRequests.WithLabelValues(c.name, string(kind)).Inc()
	return &Error{Source: c.name, Kind: kind, Err: err}
}

// wireReading is the readings endpoint schema: every numeric field nullable
// or absent. Converting absent keys into typed nil pointers here keeps
// "missing" a first-class value from the ingestion boundary onward.
type wireReading struct {
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

// timeLayouts accepted on the wire. Some providers omit the zone suffix on
// hourly stamps; those are taken as UTC.
var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

func (w wireReading) toReading(city domain.City) (domain.RawReading, error) {
	if w.Time == "" {
		return domain.RawReading{}, errors.New("missing time")
	}

	var ts time.Time
	var err error
	for _, layout := range timeLayouts {
		if ts, err = time.ParseInLocation(layout, w.Time, time.UTC); err == nil {
			break
		}
	}
	if err != nil {
		return domain.RawReading{}, fmt.Errorf("parse time %q: %w", w.Time, err)
	}

	name := w.City
	if name == "" {
		name = city.Name
	}

	return domain.RawReading{
		City:            name,
		Time:            ts.UTC(),
		PM10:            w.PM10,
		PM25:            w.PM25,
		CarbonMonoxide:  w.CarbonMonoxide,
		NitrogenDioxide: w.NitrogenDioxide,
		SulphurDioxide:  w.SulphurDioxide,
		Ozone:           w.Ozone,
		UVIndex:         w.UVIndex,
		Latitude:        w.Latitude,
		Longitude:       w.Longitude,
	}, nil
}
