package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksTotal   prometheus.Counter
	errorsTotal  *prometheus.CounterVec
	lastPrice    prometheus.Gauge
	trapEvents   *prometheus.CounterVec
	hfModeActive prometheus.Gauge
	hfMultiplier prometheus.Gauge
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "trapflow_ticks_total",
				Help: "Total number of accepted trade ticks",
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trapflow_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "trapflow_last_price",
				Help: "Last observed trade price",
			},
		),
		trapEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trapflow_trap_events_total",
				Help: "Total number of registered trap events",
			},
			[]string{"kind"},
		),
		hfModeActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "trapflow_hf_mode_active",
				Help: "Whether high-frequency trap mode is active (0/1)",
			},
		),
		hfMultiplier: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "trapflow_hf_multiplier",
				Help: "Current high-frequency trap threshold multiplier",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trapflow_operation_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordTick records one accepted tick.
func (r *Recorder) RecordTick() {
	r.ticksTotal.Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last observed price.
func (r *Recorder) RecordLastPrice(price float64) {
	r.lastPrice.Set(price)
}

// RecordTrapEvent records a registered trap event by kind.
func (r *Recorder) RecordTrapEvent(kind string) {
	r.trapEvents.WithLabelValues(kind).Inc()
}

// RecordHFMode records the current HF mode state and multiplier.
func (r *Recorder) RecordHFMode(active bool, multiplier float64) {
	if active {
		r.hfModeActive.Set(1)
	} else {
		r.hfModeActive.Set(0)
	}
	r.hfMultiplier.Set(multiplier)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
