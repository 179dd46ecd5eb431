package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/flood-watch/internal/domain"
	"github.com/couchcryptid/flood-watch/internal/refresh"
)

// ZoneService is the zone store as seen by the API.
type ZoneService interface {
	Snapshot() []domain.Zone
	Get(id int) (domain.Zone, error)
	SubmitVote(ctx context.Context, id int) (domain.Zone, error)
	ResetVotes(ctx context.Context, id int) (domain.Zone, error)
	ResetAllVotes(ctx context.Context) (int, error)
}

// Refresher runs an on-demand refresh cycle.
type Refresher interface {
	Trigger(ctx context.Context) (refresh.Report, error)
}

// Server exposes the zone API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	zones      ZoneService
	refresher  Refresher
	staleAfter time.Duration
	logger     *slog.Logger
}

// NewServer creates an HTTP server. Zones whose weather is older than
// staleAfter are reported as stale.
func NewServer(addr string, ready sharedobs.ReadinessChecker, zones ZoneService, refresher Refresher, staleAfter time.Duration, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		zones:      zones,
		refresher:  refresher,
		staleAfter: staleAfter,
		logger:     logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/zones", s.handleListZones)
	mux.HandleFunc("GET /api/zones.geojson", s.handleGeoJSON)
	mux.HandleFunc("GET /api/zones/{id}", s.handleGetZone)
	mux.HandleFunc("POST /api/zones/{id}/votes", s.handleVote)
	mux.HandleFunc("POST /api/zones/{id}/votes/reset", s.handleResetVotes)
	mux.HandleFunc("POST /api/votes/reset", s.handleResetAllVotes)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type zoneView struct {
	ID           int                     `json:"id"`
	Name         string                  `json:"name"`
	Lat          float64                 `json:"lat"`
	Lon          float64                 `json:"lon"`
	Votes        int                     `json:"votes"`
	Status       domain.Status           `json:"status"`
	RiskLevel    domain.RiskLevel        `json:"risk_level"`
	Color        string                  `json:"color"`
	Score        int                     `json:"score"`
	Severity     domain.RiskLevel        `json:"severity"`
	WeatherState string                  `json:"weather_state"`
	Weather      *domain.WeatherSnapshot `json:"weather"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

func (s *Server) view(z domain.Zone, now time.Time) zoneView {
	return zoneView{
		ID:           z.ID,
		Name:         z.Name,
		Lat:          z.Lat,
		Lon:          z.Lon,
		Votes:        z.Votes,
		Status:       z.Status,
		RiskLevel:    z.RiskLevel,
		Color:        z.RiskLevel.Color(),
		Score:        z.Score,
		Severity:     z.Severity,
		WeatherState: z.WeatherState(now, s.staleAfter),
		Weather:      z.Weather,
		UpdatedAt:    z.UpdatedAt,
	}
}

func (s *Server) handleListZones(w http.ResponseWriter, _ *http.Request) {
	now := domain.Now()
	zones := s.zones.Snapshot()
	out := make([]zoneView, len(zones))
	for i, z := range zones {
		out[i] = s.view(z, now)
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"zones": out})
}

func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	id, ok := zoneID(w, r)
	if !ok {
		return
	}
	z, err := s.zones.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, s.view(z, domain.Now()))
}

// handleGeoJSON renders every zone as a point feature for map clients.
func (s *Server) handleGeoJSON(w http.ResponseWriter, _ *http.Request) {
	now := domain.Now()
	fc := geojson.NewFeatureCollection()
	for _, z := range s.zones.Snapshot() {
		f := geojson.NewFeature(orb.Point{z.Lon, z.Lat})
		f.ID = z.ID
		f.Properties["name"] = z.Name
		f.Properties["votes"] = z.Votes
		f.Properties["status"] = string(z.Status)
		f.Properties["risk_level"] = string(z.RiskLevel)
		f.Properties["color"] = z.RiskLevel.Color()
		f.Properties["score"] = z.Score
		f.Properties["severity"] = string(z.Severity)
		f.Properties["weather_state"] = z.WeatherState(now, s.staleAfter)
		if z.Weather != nil {
			f.Properties["precipitation_mm"] = z.Weather.PrecipitationMM
			f.Properties["hourly_probability_pct"] = z.Weather.HourlyProbabilityPct
		}
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	id, ok := zoneID(w, r)
	if !ok {
		return
	}
	z, err := s.zones.SubmitVote(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, s.view(z, domain.Now()))
}

func (s *Server) handleResetVotes(w http.ResponseWriter, r *http.Request) {
	id, ok := zoneID(w, r)
	if !ok {
		return
	}
	z, err := s.zones.ResetVotes(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, s.view(z, domain.Now()))
}

func (s *Server) handleResetAllVotes(w http.ResponseWriter, r *http.Request) {
	n, err := s.zones.ResetAllVotes(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]int{"reset": n})
}

type refreshResult struct {
	ZoneID  int    `json:"zone_id"`
	Applied bool   `json:"applied"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	report, err := s.refresher.Trigger(r.Context())
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "refresh still running: " + err.Error(),
		})
		return
	}

	results := make([]refreshResult, 0, len(report.Results))
	for _, z := range s.zones.Snapshot() {
		res, ok := report.Results[z.ID]
		if !ok {
			continue
		}
		rr := refreshResult{ZoneID: z.ID, Applied: res.Applied}
		if res.Err != nil {
			rr.Error = res.Err.Error()
		}
		results = append(results, rr)
	}

	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"trigger":  report.Trigger,
		"started":  report.Started,
		"finished": report.Finished,
		"joined":   report.Joined,
		"failed":   report.Failed(),
		"results":  results,
	})
}

func zoneID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid zone id"})
		return 0, false
	}
	return id, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrZoneNotFound):
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrPersistence):
		s.logger.Error("zone mutation not persisted", "error", err)
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
