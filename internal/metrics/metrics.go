// Package metrics exposes Prometheus instrumentation for the live trading
// loop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry holds the live-loop metrics.
type Registry struct {
	EntriesSubmitted *prometheus.CounterVec
	EntriesFilled    *prometheus.CounterVec
	EntriesCancelled *prometheus.CounterVec
	ExitsSubmitted   *prometheus.CounterVec
	PollErrors       *prometheus.CounterVec
	OpenPositions    prometheus.Gauge
	PollCycles       prometheus.Counter
}

// NewRegistry creates the metric set.
func NewRegistry() *Registry {
	return &Registry{
		EntriesSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intradayrun_entries_submitted_total",
				Help: "Entry orders submitted, by symbol",
			},
			[]string{"symbol"},
		),
		EntriesFilled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intradayrun_entries_filled_total",
				Help: "Entry orders filled, by symbol",
			},
			[]string{"symbol"},
		),
		EntriesCancelled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intradayrun_entries_cancelled_total",
				Help: "Entry orders cancelled (stale or end of day), by symbol",
			},
			[]string{"symbol"},
		),
		ExitsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intradayrun_exits_submitted_total",
				Help: "Exit orders submitted, by symbol and reason",
			},
			[]string{"symbol", "reason"},
		),
		PollErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intradayrun_poll_errors_total",
				Help: "Failed symbol poll cycles, by symbol",
			},
			[]string{"symbol"},
		),
		OpenPositions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "intradayrun_open_positions",
				Help: "Currently open positions",
			},
		),
		PollCycles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "intradayrun_poll_cycles_total",
				Help: "Completed poll cycles over all symbols",
			},
		),
	}
}

// Register adds all metrics to a Prometheus registerer.
func (r *Registry) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		r.EntriesSubmitted, r.EntriesFilled, r.EntriesCancelled,
		r.ExitsSubmitted, r.PollErrors, r.OpenPositions, r.PollCycles,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Serve exposes /metrics on addr in a background goroutine.
func (r *Registry) Serve(addr string) {
	reg := prometheus.NewRegistry()
	if err := r.Register(reg); err != nil {
		log.Error().Err(err).Msg("Failed to register metrics")
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("Metrics server listening")
}
