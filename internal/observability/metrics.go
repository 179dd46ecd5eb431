package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "floodwatch"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Refresh cycle metrics.
	RefreshCycles   *prometheus.CounterVec // labels: trigger={periodic,manual}
	RefreshDuration prometheus.Histogram
	RefreshInFlight prometheus.Gauge
	ZoneFetches     *prometheus.CounterVec // labels: outcome={success,error}

	// Weather provider metrics.
	WeatherRequests    *prometheus.CounterVec // labels: outcome={success,unavailable,malformed}
	WeatherAPIDuration prometheus.Histogram
	WeatherCache       *prometheus.CounterVec // labels: result={hit,miss}

	// Zone store metrics.
	ZoneMutations  *prometheus.CounterVec // labels: kind={vote,reset,weather}
	PersistErrors  prometheus.Counter
	StaleSnapshots prometheus.Counter
	PublishErrors  prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RefreshCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "Completed weather refresh cycles by trigger.",
		}, []string{"trigger"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete refresh cycle across all zones.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RefreshInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_in_flight",
			Help:      "1 while a refresh cycle is running, 0 otherwise.",
		}),
		ZoneFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zone_fetches_total",
			Help:      "Per-zone weather fetches within refresh cycles by outcome.",
		}, []string{"outcome"}),
		WeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_requests_total",
			Help:      "Open-Meteo API requests by outcome.",
		}, []string{"outcome"}),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_api_duration_seconds",
			Help:      "Open-Meteo API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		WeatherCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_cache_total",
			Help:      "Weather cache lookups by result.",
		}, []string{"result"}),
		ZoneMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zone_mutations_total",
			Help:      "Committed zone mutations by kind.",
		}, []string{"kind"}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Zone collection saves that failed after all retries.",
		}),
		StaleSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_snapshots_total",
			Help:      "Weather snapshots dropped because a younger fetch was already applied.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Zone events that could not be published.",
		}),
	}

	prometheus.MustRegister(
		m.RefreshCycles,
		m.RefreshDuration,
		m.RefreshInFlight,
		m.ZoneFetches,
		m.WeatherRequests,
		m.WeatherAPIDuration,
		m.WeatherCache,
		m.ZoneMutations,
		m.PersistErrors,
		m.StaleSnapshots,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with unregistered collectors to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RefreshCycles:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "refresh_cycles_total"}, []string{"trigger"}),
		RefreshDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "refresh_duration_seconds"}),
		RefreshInFlight:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "refresh_in_flight"}),
		ZoneFetches:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "zone_fetches_total"}, []string{"outcome"}),
		WeatherRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "weather_requests_total"}, []string{"outcome"}),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "weather_api_duration_seconds"}),
		WeatherCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "weather_cache_total"}, []string{"result"}),
		ZoneMutations:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "zone_mutations_total"}, []string{"kind"}),
		PersistErrors:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "persist_errors_total"}),
		StaleSnapshots:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "stale_snapshots_total"}),
		PublishErrors:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "publish_errors_total"}),
	}
}
