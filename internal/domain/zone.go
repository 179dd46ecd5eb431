package domain

import (
	"context"
	"time"
)

// Status is the rule-based, human-facing state of a zone.
type Status string

const (
	StatusNormal           Status = "Normal"
	StatusAttention        Status = "Attention"
	StatusWeatherRisk      Status = "WeatherRisk"
	StatusConfirmedFlooded Status = "CONFIRMED_FLOODED"
)

// RiskLevel is the four-level scale shared by the rule output and the score bands.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// Color maps a level onto the traffic-light palette used by map clients.
func (l RiskLevel) Color() string {
	switch l {
	case RiskLow:
		return "green"
	case RiskMedium:
		return "yellow"
	case RiskHigh:
		return "orange"
	case RiskCritical:
		return "red"
	default:
		return "gray"
	}
}

// Display states for a zone's weather data.
const (
	WeatherStateOK     = "ok"
	WeatherStateStale  = "stale"
	WeatherStateNoData = "no data"
)

// WeatherSnapshot is the normalized provider reading for one zone at fetch time.
// Snapshots are never mutated; a newer fetch replaces the whole value.
type WeatherSnapshot struct {
	PrecipitationMM        float64   `json:"precipitation_mm"`
	RainMM                 float64   `json:"rain_mm"`
	ShowersMM              float64   `json:"showers_mm"`
	TemperatureC           float64   `json:"temperature_c"`
	HumidityPct            float64   `json:"humidity_pct"`
	WeatherCode            int       `json:"weather_code"`
	HourlyProbabilityPct   int       `json:"hourly_probability_pct"`
	HourlyPrecipitationMM  float64   `json:"hourly_precipitation_mm"`
	DailyPrecipSumMM       float64   `json:"daily_precip_sum_mm"`
	DailyPrecipHours       float64   `json:"daily_precip_hours"`
	DailyMaxProbabilityPct int       `json:"daily_max_probability_pct"`
	FetchedAt              time.Time `json:"fetched_at"`
}

// Zone is a monitored geographic unit. ID, Name, Lat and Lon never change.
// Status, RiskLevel, Score and Severity are derived by RiskEngine and must only
// be written through Zone.Assess.
type Zone struct {
	ID      int              `json:"id"`
	Name    string           `json:"name"`
	Lat     float64          `json:"lat"`
	Lon     float64          `json:"lon"`
	Votes   int              `json:"votes"`
	Weather *WeatherSnapshot `json:"weather"`

	Status    Status    `json:"status"`
	RiskLevel RiskLevel `json:"risk_level"`
	Score     int       `json:"score"`
	Severity  RiskLevel `json:"severity"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Assess recomputes the derived fields from the zone's current weather and votes.
func (z Zone) Assess(engine RiskEngine) Zone {
	a := engine.Classify(z.Weather, z.Votes)
	z.Status = a.Status
	z.RiskLevel = a.RiskLevel
	z.Score = a.Score
	z.Severity = a.Severity
	return z
}

// WeatherState reports whether the zone has usable weather data at now.
// Snapshots older than maxAge are stale; maxAge <= 0 disables the check.
func (z Zone) WeatherState(now time.Time, maxAge time.Duration) string {
	if z.Weather == nil {
		return WeatherStateNoData
	}
	if maxAge > 0 && now.Sub(z.Weather.FetchedAt) > maxAge {
		return WeatherStateStale
	}
	return WeatherStateOK
}

// Event kinds published after a committed zone mutation.
const (
	EventVote    = "vote"
	EventReset   = "reset"
	EventWeather = "weather"
)

// ZoneEvent describes a committed change to a zone's classification inputs.
type ZoneEvent struct {
	EventID    string    `json:"event_id"`
	Kind       string    `json:"kind"`
	ZoneID     int       `json:"zone_id"`
	ZoneName   string    `json:"zone_name"`
	Votes      int       `json:"votes"`
	Status     Status    `json:"status"`
	RiskLevel  RiskLevel `json:"risk_level"`
	Score      int       `json:"score"`
	Severity   RiskLevel `json:"severity"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WeatherSource fetches a normalized snapshot for a coordinate pair.
type WeatherSource interface {
	Fetch(ctx context.Context, lat, lon float64) (WeatherSnapshot, error)
}
