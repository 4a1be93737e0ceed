package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the Prometheus collectors for the scan engine. A nil *Registry
// is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	IndicatorCalls *prometheus.CounterVec
	LimiterWaits   prometheus.Counter
	Predictions    *prometheus.CounterVec
	Alerts         *prometheus.CounterVec
	TokenErrors    *prometheus.CounterVec
	Notifications  *prometheus.CounterVec

	Scans        *prometheus.CounterVec
	ScanDuration prometheus.Histogram
	ActiveScans  prometheus.Gauge
}

// New creates a registry with all collectors registered
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		IndicatorCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dexalert_indicator_calls_total",
				Help: "Indicator backfill requests by result",
			},
			[]string{"result"},
		),

		LimiterWaits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dexalert_indicator_limiter_waits_total",
				Help: "Times the indicator budget was exhausted and the gateway cooled down",
			},
		),

		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dexalert_predictions_total",
				Help: "Predictions served by source (model or fallback)",
			},
			[]string{"source"},
		),

		Alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dexalert_alerts_fired_total",
				Help: "Alerts fired by kind and preset",
			},
			[]string{"kind", "preset"},
		),

		TokenErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dexalert_token_errors_total",
				Help: "Per-token scan failures by stage",
			},
			[]string{"stage"},
		),

		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dexalert_notifications_total",
				Help: "Notification deliveries by channel and status",
			},
			[]string{"channel", "status"},
		),

		Scans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dexalert_scans_total",
				Help: "Scan cycles by result",
			},
			[]string{"result"},
		),

		ScanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dexalert_scan_duration_seconds",
				Help:    "Duration of a full scan cycle in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		ActiveScans: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dexalert_active_scans",
				Help: "Number of scan cycles currently running",
			},
		),
	}

	r.reg.MustRegister(
		r.IndicatorCalls,
		r.LimiterWaits,
		r.Predictions,
		r.Alerts,
		r.TokenErrors,
		r.Notifications,
		r.Scans,
		r.ScanDuration,
		r.ActiveScans,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) RecordIndicatorCall(result string) {
	if r == nil {
		return
	}
	r.IndicatorCalls.WithLabelValues(result).Inc()
}

func (r *Registry) RecordLimiterWait() {
	if r == nil {
		return
	}
	r.LimiterWaits.Inc()
}

func (r *Registry) RecordPrediction(source string) {
	if r == nil {
		return
	}
	r.Predictions.WithLabelValues(source).Inc()
}

func (r *Registry) RecordAlert(kind, preset string) {
	if r == nil {
		return
	}
	r.Alerts.WithLabelValues(kind, preset).Inc()
}

func (r *Registry) RecordTokenError(stage string) {
	if r == nil {
		return
	}
	r.TokenErrors.WithLabelValues(stage).Inc()
}

func (r *Registry) RecordNotification(channel, status string) {
	if r == nil {
		return
	}
	r.Notifications.WithLabelValues(channel, status).Inc()
}

// RecordSkippedScan counts a tick that found a cycle already running
func (r *Registry) RecordSkippedScan() {
	if r == nil {
		return
	}
	r.Scans.WithLabelValues("skipped").Inc()
}

// StartScan marks a cycle as running. The returned func records its result and duration.
func (r *Registry) StartScan() func(result string) {
	if r == nil {
		return func(string) {}
	}
	start := time.Now()
	r.ActiveScans.Inc()
	return func(result string) {
		r.ActiveScans.Dec()
		r.ScanDuration.Observe(time.Since(start).Seconds())
		r.Scans.WithLabelValues(result).Inc()
	}
}
