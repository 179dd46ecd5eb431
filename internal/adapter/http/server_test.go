package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/flood-watch/internal/adapter/http"
	"github.com/couchcryptid/flood-watch/internal/domain"
	"github.com/couchcryptid/flood-watch/internal/refresh"
)

var fixedTime = time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)

// --- mocks ---

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockZones struct {
	zones []domain.Zone
	err   error
	reset int
}

func (m *mockZones) Snapshot() []domain.Zone { return m.zones }

func (m *mockZones) Get(id int) (domain.Zone, error) {
	for _, z := range m.zones {
		if z.ID == id {
			return z, nil
		}
	}
	return domain.Zone{}, fmt.Errorf("zone %d: %w", id, domain.ErrZoneNotFound)
}

func (m *mockZones) SubmitVote(_ context.Context, id int) (domain.Zone, error) {
	if m.err != nil {
		return domain.Zone{}, m.err
	}
	z, err := m.Get(id)
	if err != nil {
		return z, err
	}
	z.Votes++
	z.Status = domain.StatusAttention
	z.RiskLevel = domain.RiskMedium
	return z, nil
}

func (m *mockZones) ResetVotes(_ context.Context, id int) (domain.Zone, error) {
	if m.err != nil {
		return domain.Zone{}, m.err
	}
	z, err := m.Get(id)
	z.Votes = 0
	return z, err
}

func (m *mockZones) ResetAllVotes(_ context.Context) (int, error) {
	return m.reset, m.err
}

type mockRefresher struct {
	report refresh.Report
	err    error
}

func (m *mockRefresher) Trigger(_ context.Context) (refresh.Report, error) {
	return m.report, m.err
}

func testZones() []domain.Zone {
	return []domain.Zone{
		{
			ID: 1, Name: "Pitangueiras", Lat: -23.9930, Lon: -46.2564,
			Weather:   &domain.WeatherSnapshot{PrecipitationMM: 12, FetchedAt: fixedTime.Add(-5 * time.Minute)},
			Status:    domain.StatusWeatherRisk,
			RiskLevel: domain.RiskHigh,
			Score:     30,
			Severity:  domain.RiskMedium,
		},
		{
			ID: 2, Name: "Enseada", Lat: -23.9785, Lon: -46.2289,
			Weather:   &domain.WeatherSnapshot{FetchedAt: fixedTime.Add(-time.Hour)},
			Status:    domain.StatusNormal,
			RiskLevel: domain.RiskLow,
			Severity:  domain.RiskLow,
		},
		{ID: 3, Name: "Vicente de Carvalho", Lat: -23.9372, Lon: -46.3178, Status: domain.StatusNormal, RiskLevel: domain.RiskLow},
	}
}

func newTestServer(t *testing.T, zones *mockZones, refresher *mockRefresher, readyErr error) *httpadapter.Server {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(fixedTime))
	t.Cleanup(func() { domain.SetClock(nil) })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, zones, refresher, 20*time.Minute, logger)
}

func do(srv http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

type zoneBody struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Votes        int     `json:"votes"`
	Status       string  `json:"status"`
	RiskLevel    string  `json:"risk_level"`
	Color        string  `json:"color"`
	Score        int     `json:"score"`
	WeatherState string  `json:"weather_state"`
	Weather      *struct {
		PrecipitationMM float64 `json:"precipitation_mm"`
	} `json:"weather"`
}

// --- health ---

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(t, &mockZones{}, &mockRefresher{}, nil)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/healthz").Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(t, &mockZones{}, &mockRefresher{}, nil)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/readyz").Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(t, &mockZones{}, &mockRefresher{}, errors.New("no refresh cycle has completed yet"))
	assert.Equal(t, http.StatusServiceUnavailable, do(srv, http.MethodGet, "/readyz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &mockZones{}, &mockRefresher{}, nil)
	rec := do(srv, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- zones ---

func TestListZones(t *testing.T) {
	srv := newTestServer(t, &mockZones{zones: testZones()}, &mockRefresher{}, nil)
	rec := do(srv, http.MethodGet, "/api/zones")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Zones []zoneBody `json:"zones"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Zones, 3)

	assert.Equal(t, "Pitangueiras", body.Zones[0].Name)
	assert.Equal(t, "WeatherRisk", body.Zones[0].Status)
	assert.Equal(t, "orange", body.Zones[0].Color)
	assert.Equal(t, domain.WeatherStateOK, body.Zones[0].WeatherState)
	require.NotNil(t, body.Zones[0].Weather)
	assert.InDelta(t, 12, body.Zones[0].Weather.PrecipitationMM, 0)

	assert.Equal(t, domain.WeatherStateStale, body.Zones[1].WeatherState)
	assert.Equal(t, domain.WeatherStateNoData, body.Zones[2].WeatherState)
	assert.Nil(t, body.Zones[2].Weather)
}

func TestGetZone(t *testing.T) {
	srv := newTestServer(t, &mockZones{zones: testZones()}, &mockRefresher{}, nil)

	rec := do(srv, http.MethodGet, "/api/zones/2")
	require.Equal(t, http.StatusOK, rec.Code)
	var z zoneBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &z))
	assert.Equal(t, "Enseada", z.Name)
	assert.Equal(t, "green", z.Color)

	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodGet, "/api/zones/99").Code)
	assert.Equal(t, http.StatusBadRequest, do(srv, http.MethodGet, "/api/zones/abc").Code)
	assert.Equal(t, http.StatusBadRequest, do(srv, http.MethodGet, "/api/zones/0").Code)
}

func TestGeoJSON(t *testing.T) {
	srv := newTestServer(t, &mockZones{zones: testZones()}, &mockRefresher{}, nil)
	rec := do(srv, http.MethodGet, "/api/zones.geojson")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	f := fc.Features[0]
	pt, ok := f.Geometry.(orb.Point)
	require.True(t, ok)
	assert.InDelta(t, -46.2564, pt.Lon(), 1e-9)
	assert.InDelta(t, -23.9930, pt.Lat(), 1e-9)
	assert.Equal(t, "Pitangueiras", f.Properties.MustString("name"))
	assert.Equal(t, "WeatherRisk", f.Properties.MustString("status"))
	assert.Equal(t, "orange", f.Properties.MustString("color"))
	assert.Equal(t, domain.WeatherStateNoData, fc.Features[2].Properties.MustString("weather_state"))
}

// --- votes ---

func TestSubmitVote(t *testing.T) {
	srv := newTestServer(t, &mockZones{zones: testZones()}, &mockRefresher{}, nil)
	rec := do(srv, http.MethodPost, "/api/zones/3/votes")
	require.Equal(t, http.StatusOK, rec.Code)

	var z zoneBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &z))
	assert.Equal(t, 1, z.Votes)
	assert.Equal(t, "Attention", z.Status)
	assert.Equal(t, "yellow", z.Color)
}

func TestSubmitVote_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		path string
		want int
	}{
		{"unknown zone", nil, "/api/zones/42/votes", http.StatusNotFound},
		{"bad id", nil, "/api/zones/x/votes", http.StatusBadRequest},
		{"persistence", fmt.Errorf("save zones: %w", domain.ErrPersistence), "/api/zones/1/votes", http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), "/api/zones/1/votes", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &mockZones{zones: testZones(), err: tt.err}, &mockRefresher{}, nil)
			assert.Equal(t, tt.want, do(srv, http.MethodPost, tt.path).Code)
		})
	}
}

func TestSubmitVote_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &mockZones{zones: testZones()}, &mockRefresher{}, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, do(srv, http.MethodGet, "/api/zones/1/votes").Code)
}

func TestResetVotes(t *testing.T) {
	srv := newTestServer(t, &mockZones{zones: testZones()}, &mockRefresher{}, nil)
	rec := do(srv, http.MethodPost, "/api/zones/1/votes/reset")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodPost, "/api/zones/7/votes/reset").Code)
}

func TestResetAllVotes(t *testing.T) {
	srv := newTestServer(t, &mockZones{zones: testZones(), reset: 2}, &mockRefresher{}, nil)
	rec := do(srv, http.MethodPost, "/api/votes/reset")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body["reset"])
}

// --- refresh ---

func TestRefresh(t *testing.T) {
	snap := domain.WeatherSnapshot{FetchedAt: fixedTime}
	report := refresh.Report{
		Trigger:  refresh.TriggerManual,
		Started:  fixedTime,
		Finished: fixedTime.Add(2 * time.Second),
		Joined:   true,
		Results: map[int]refresh.Result{
			1: {ZoneID: 1, Snapshot: &snap, Applied: true},
			2: {ZoneID: 2, Err: domain.ErrUpstreamUnavailable},
		},
	}
	srv := newTestServer(t, &mockZones{zones: testZones()}, &mockRefresher{report: report}, nil)

	rec := do(srv, http.MethodPost, "/api/refresh")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Trigger string `json:"trigger"`
		Joined  bool   `json:"joined"`
		Failed  int    `json:"failed"`
		Results []struct {
			ZoneID  int    `json:"zone_id"`
			Applied bool   `json:"applied"`
			Error   string `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "manual", body.Trigger)
	assert.True(t, body.Joined)
	assert.Equal(t, 1, body.Failed)
	require.Len(t, body.Results, 2)
	assert.Equal(t, 1, body.Results[0].ZoneID)
	assert.True(t, body.Results[0].Applied)
	assert.Equal(t, domain.ErrUpstreamUnavailable.Error(), body.Results[1].Error)
}

func TestRefresh_CallerTimeout(t *testing.T) {
	srv := newTestServer(t, &mockZones{}, &mockRefresher{err: context.DeadlineExceeded}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(srv, http.MethodPost, "/api/refresh").Code)
}
