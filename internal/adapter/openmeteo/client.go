package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/flood-watch/internal/domain"
	"github.com/couchcryptid/flood-watch/internal/observability"
)

const (
	currentFields = "precipitation,temperature_2m,relative_humidity_2m,rain,showers,weather_code"
	hourlyFields  = "precipitation,precipitation_probability,rain,showers,weather_code"
	dailyFields   = "precipitation_sum,precipitation_hours,precipitation_probability_max"
)

// Client implements domain.WeatherSource using the Open-Meteo forecast API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timezone   string
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client. timeout bounds every request,
// including reading the body.
func NewClient(baseURL, timezone string, timeout time.Duration, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:  baseURL,
		timezone: timezone,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
	}
}

// Fetch returns the current conditions and today's forecast for a coordinate pair.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) (domain.WeatherSnapshot, error) {
	params := url.Values{
		"latitude":      {strconv.FormatFloat(lat, 'f', -1, 64)},
		"longitude":     {strconv.FormatFloat(lon, 'f', -1, 64)},
		"current":       {currentFields},
		"hourly":        {hourlyFields},
		"daily":         {dailyFields},
		"timezone":      {c.timezone},
		"forecast_days": {"2"},
	}
	fullURL := c.baseURL + "/v1/forecast?" + params.Encode()

	fetchedAt := c.clock.Now()
	snap, err := c.doRequest(ctx, fullURL, fetchedAt)
	c.metrics.WeatherAPIDuration.Observe(c.clock.Since(fetchedAt).Seconds())

	switch {
	case err == nil:
		c.metrics.WeatherRequests.WithLabelValues("success").Inc()
	case errors.Is(err, domain.ErrUpstreamMalformed):
		c.metrics.WeatherRequests.WithLabelValues("malformed").Inc()
		c.logger.Warn("malformed weather response", "lat", lat, "lon", lon, "error", err)
	default:
		c.metrics.WeatherRequests.WithLabelValues("unavailable").Inc()
		c.logger.Warn("weather request failed", "lat", lat, "lon", lon, "error", err)
	}
	return snap, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string, fetchedAt time.Time) (domain.WeatherSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("forecast request: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.WeatherSnapshot{}, fmt.Errorf("open-meteo API error: status %d: %s: %w", resp.StatusCode, body, domain.ErrUpstreamUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("read response: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	var fr forecastResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("decode response: %w: %w", domain.ErrUpstreamMalformed, err)
	}
	if fr.Current == nil || fr.Hourly == nil || fr.Daily == nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("response missing current/hourly/daily: %w", domain.ErrUpstreamMalformed)
	}

	return fr.toSnapshot(fetchedAt), nil
}

// Open-Meteo API response types. Nulls inside series decode as zero.

type forecastResponse struct {
	UTCOffsetSeconds int             `json:"utc_offset_seconds"`
	Current          *currentSection `json:"current"`
	Hourly           *hourlySection  `json:"hourly"`
	Daily            *dailySection   `json:"daily"`
}

type currentSection struct {
	Precipitation      float64 `json:"precipitation"`
	Temperature2m      float64 `json:"temperature_2m"`
	RelativeHumidity2m float64 `json:"relative_humidity_2m"`
	Rain               float64 `json:"rain"`
	Showers            float64 `json:"showers"`
	WeatherCode        float64 `json:"weather_code"`
}

type hourlySection struct {
	Precipitation            []float64 `json:"precipitation"`
	PrecipitationProbability []float64 `json:"precipitation_probability"`
}

type dailySection struct {
	PrecipitationSum            []float64 `json:"precipitation_sum"`
	PrecipitationHours          []float64 `json:"precipitation_hours"`
	PrecipitationProbabilityMax []float64 `json:"precipitation_probability_max"`
}

func (fr forecastResponse) toSnapshot(fetchedAt time.Time) domain.WeatherSnapshot {
	// The hourly series starts at local midnight of the location's time zone.
	loc := time.FixedZone("forecast", fr.UTCOffsetSeconds)
	hour := fetchedAt.In(loc).Hour()

	return domain.WeatherSnapshot{
		PrecipitationMM:        fr.Current.Precipitation,
		RainMM:                 fr.Current.Rain,
		ShowersMM:              fr.Current.Showers,
		TemperatureC:           fr.Current.Temperature2m,
		HumidityPct:            fr.Current.RelativeHumidity2m,
		WeatherCode:            int(fr.Current.WeatherCode),
		HourlyProbabilityPct:   roundPct(at(fr.Hourly.PrecipitationProbability, hour)),
		HourlyPrecipitationMM:  at(fr.Hourly.Precipitation, hour),
		DailyPrecipSumMM:       at(fr.Daily.PrecipitationSum, 0),
		DailyPrecipHours:       at(fr.Daily.PrecipitationHours, 0),
		DailyMaxProbabilityPct: roundPct(at(fr.Daily.PrecipitationProbabilityMax, 0)),
		FetchedAt:              fetchedAt,
	}
}

func at(series []float64, i int) float64 {
	if i < 0 || i >= len(series) {
		return 0
	}
	return series[i]
}

func roundPct(v float64) int {
	return int(math.Round(max(0, min(v, 100))))
}
