package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestZone_Assess(t *testing.T) {
	z := Zone{
		ID:      1,
		Name:    "Pitangueiras",
		Votes:   1,
		Weather: &WeatherSnapshot{PrecipitationMM: 12, HumidityPct: 92},
		// stale derived fields must be overwritten
		Status:    StatusConfirmedFlooded,
		RiskLevel: RiskCritical,
		Score:     99,
	}

	got := z.Assess(NewRiskEngine(DefaultThresholds()))

	assert.Equal(t, StatusWeatherRisk, got.Status)
	assert.Equal(t, RiskHigh, got.RiskLevel)
	assert.Equal(t, 40, got.Score)
	assert.Equal(t, RiskHigh, got.Severity)
	assert.Equal(t, StatusConfirmedFlooded, z.Status, "Assess must not mutate the receiver")
}

func TestZone_WeatherState(t *testing.T) {
	now := time.Date(2024, time.March, 2, 15, 0, 0, 0, time.UTC)

	assert.Equal(t, WeatherStateNoData, Zone{}.WeatherState(now, time.Hour))

	fresh := Zone{Weather: &WeatherSnapshot{FetchedAt: now.Add(-10 * time.Minute)}}
	assert.Equal(t, WeatherStateOK, fresh.WeatherState(now, time.Hour))

	old := Zone{Weather: &WeatherSnapshot{FetchedAt: now.Add(-2 * time.Hour)}}
	assert.Equal(t, WeatherStateStale, old.WeatherState(now, time.Hour))
	assert.Equal(t, WeatherStateOK, old.WeatherState(now, 0))
}

func TestRiskLevel_Color(t *testing.T) {
	assert.Equal(t, "green", RiskLow.Color())
	assert.Equal(t, "yellow", RiskMedium.Color())
	assert.Equal(t, "orange", RiskHigh.Color())
	assert.Equal(t, "red", RiskCritical.Color())
	assert.Equal(t, "gray", RiskLevel("").Color())
}

func TestSetClock(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC))
	SetClock(fake)
	t.Cleanup(func() { SetClock(nil) })

	assert.Equal(t, fake.Now(), Now())
	fake.Advance(time.Minute)
	assert.Equal(t, time.Date(2024, time.April, 26, 15, 11, 0, 0, time.UTC), Now())
}
