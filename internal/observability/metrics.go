package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flood_monitor"

// Metrics holds the Prometheus counters, histograms, and gauges for the risk monitor.
type Metrics struct {
	MonitorRunning prometheus.Gauge

	// Cycle metrics.
	Cycles          *prometheus.CounterVec // labels: outcome={completed,interrupted,failed}
	CyclesSkipped   prometheus.Counter
	CycleDuration   prometheus.Histogram
	AreasConsidered prometheus.Gauge
	AreasChanged    prometheus.Counter
	AreaFailures    *prometheus.CounterVec // labels: stage={fetch,write}
	AreasSkipped    *prometheus.CounterVec // labels: reason={geometry}

	// Weather provider metrics.
	WeatherRequests    *prometheus.CounterVec // labels: outcome={success,error,unavailable}
	WeatherCache       *prometheus.CounterVec // labels: result={hit,miss}
	WeatherAPIDuration prometheus.Histogram

	// Change notification metrics.
	Notifications *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all monitor metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		MonitorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_running",
			Help:      "1 while the scheduler is armed, 0 when stopped.",
		}),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Monitor cycles by outcome.",
		}, []string{"outcome"}),
		CyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_skipped_total",
			Help:      "Timer ticks dropped because the previous cycle was still running.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete monitor cycle.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		AreasConsidered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "areas_considered",
			Help:      "Areas considered by the most recent cycle.",
		}),
		AreasChanged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "areas_changed_total",
			Help:      "Areas whose risk level changed and was written back.",
		}),
		AreaFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "area_failures_total",
			Help:      "Per-area failures by stage.",
		}, []string{"stage"}),
		AreasSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "areas_skipped_total",
			Help:      "Areas skipped before processing, by reason.",
		}, []string{"reason"}),
		WeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_requests_total",
			Help:      "Weather provider requests by outcome.",
		}, []string{"outcome"}),
		WeatherCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_cache_total",
			Help:      "Weather cache lookups by result.",
		}, []string{"result"}),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_api_duration_seconds",
			Help:      "Weather provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Risk change notifications by outcome.",
		}, []string{"outcome"}),
	}

	prometheus.MustRegister(
		m.MonitorRunning,
		m.Cycles,
		m.CyclesSkipped,
		m.CycleDuration,
		m.AreasConsidered,
		m.AreasChanged,
		m.AreaFailures,
		m.AreasSkipped,
		m.WeatherRequests,
		m.WeatherCache,
		m.WeatherAPIDuration,
		m.Notifications,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		MonitorRunning:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "monitor_running"}),
		Cycles:             prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "cycles_total"}, []string{"outcome"}),
		CyclesSkipped:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "cycles_skipped_total"}),
		CycleDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "cycle_duration_seconds"}),
		AreasConsidered:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "areas_considered"}),
		AreasChanged:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "areas_changed_total"}),
		AreaFailures:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "area_failures_total"}, []string{"stage"}),
		AreasSkipped:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "areas_skipped_total"}, []string{"reason"}),
		WeatherRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "weather_requests_total"}, []string{"outcome"}),
		WeatherCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "weather_cache_total"}, []string{"result"}),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "weather_api_duration_seconds"}),
		Notifications:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "notifications_total"}, []string{"outcome"}),
	}
}
