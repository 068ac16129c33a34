// Package metrics exposes Prometheus instrumentation for backtest runs.
// A sweep host scrapes these while grinding through parameter sets.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	barsProcessed    prometheus.Counter
	signalsGenerated *prometheus.CounterVec
	signalsExpired   *prometheus.CounterVec
	tradesTotal      *prometheus.CounterVec
	breakerTrips     prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fractal_runs_total",
				Help: "Total number of backtest runs",
			},
			[]string{"strategy", "status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fractal_run_duration_seconds",
				Help:    "Backtest run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		barsProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fractal_bars_processed_total",
				Help: "Total number of bars fed through the engine",
			},
		),
		signalsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fractal_signals_generated_total",
				Help: "Total number of entry signals generated",
			},
			[]string{"strategy", "direction"},
		),
		signalsExpired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fractal_signals_expired_total",
				Help: "Total number of pending signals expired unfilled",
			},
			[]string{"strategy"},
		),
		tradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fractal_trades_total",
				Help: "Total number of closed trades",
			},
			[]string{"strategy", "exit_reason"},
		),
		breakerTrips: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fractal_breaker_trips_total",
				Help: "Total number of circuit breaker activations",
			},
		),
	}

	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runDuration)
	reg.MustRegister(r.barsProcessed)
	reg.MustRegister(r.signalsGenerated)
	reg.MustRegister(r.signalsExpired)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.breakerTrips)

	return r
}

// RecordRun increments the run counter.
func (r *Registry) RecordRun(strategy, status string) {
	r.runsTotal.WithLabelValues(strategy, status).Inc()
}

// ObserveRunDuration records a run's wall time.
func (r *Registry) ObserveRunDuration(seconds float64) {
	r.runDuration.Observe(seconds)
}

// RecordBar increments the processed-bar counter.
func (r *Registry) RecordBar() {
	r.barsProcessed.Inc()
}

// RecordSignal increments the signal counter.
func (r *Registry) RecordSignal(strategy, direction string) {
	r.signalsGenerated.WithLabelValues(strategy, direction).Inc()
}

// RecordExpiry increments the expired-signal counter.
func (r *Registry) RecordExpiry(strategy string) {
	r.signalsExpired.WithLabelValues(strategy).Inc()
}

// RecordTrade increments the closed-trade counter.
func (r *Registry) RecordTrade(strategy, exitReason string) {
	r.tradesTotal.WithLabelValues(strategy, exitReason).Inc()
}

// RecordBreakerTrip increments the breaker activation counter.
func (r *Registry) RecordBreakerTrip() {
	r.breakerTrips.Inc()
}
