package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Registry holds the Prometheus metrics for a generation run. Each
// Registry carries its own prometheus.Registry so runs and tests never
// collide on global collector registration.
type Registry struct {
	reg *prometheus.Registry

	TicksGenerated  *prometheus.CounterVec
	SessionDuration prometheus.Histogram
	SessionsTotal   *prometheus.CounterVec
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	FetchErrors     *prometheus.CounterVec
	ActiveWorkers   prometheus.Gauge
}

// NewRegistry creates and registers all collectors
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		TicksGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticksynth_ticks_generated_total",
				Help: "Total number of synthesized ticks by ticker",
			},
			[]string{"ticker"},
		),

		SessionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ticksynth_session_duration_seconds",
				Help:    "Wall time spent generating one ticker-date session",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		),

		SessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticksynth_sessions_total",
				Help: "Total number of generated sessions by outcome",
			},
			[]string{"status"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticksynth_cache_hits_total",
				Help: "Total number of candle cache hits by cache type",
			},
			[]string{"cache_type"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticksynth_cache_misses_total",
				Help: "Total number of candle cache misses by cache type",
			},
			[]string{"cache_type"},
		),

		FetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticksynth_fetch_errors_total",
				Help: "Total number of market data fetch errors by source",
			},
			[]string{"source"},
		),

		ActiveWorkers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ticksynth_active_workers",
				Help: "Number of generation workers currently busy",
			},
		),
	}

	r.reg.MustRegister(
		r.TicksGenerated,
		r.SessionDuration,
		r.SessionsTotal,
		r.CacheHits,
		r.CacheMisses,
		r.FetchErrors,
		r.ActiveWorkers,
	)

	return r
}

// SessionTimer tracks the wall time of one session generation
type SessionTimer struct {
	metrics *Registry
	ticker  string
	start   time.Time
}

// StartSession begins timing one ticker-date generation
func (r *Registry) StartSession(ticker string) *SessionTimer {
	r.ActiveWorkers.Inc()
	return &SessionTimer{
		metrics: r,
		ticker:  ticker,
		start:   time.Now(),
	}
}

// Done records the session outcome and tick count
func (st *SessionTimer) Done(status string, ticks int) {
	duration := time.Since(st.start)
	st.metrics.ActiveWorkers.Dec()
	st.metrics.SessionDuration.Observe(duration.Seconds())
	st.metrics.SessionsTotal.WithLabelValues(status).Inc()
	st.metrics.TicksGenerated.WithLabelValues(st.ticker).Add(float64(ticks))

	log.Debug().
		Str("ticker", st.ticker).
		Str("status", status).
		Int("ticks", ticks).
		Dur("duration", duration).
		Msg("Session recorded")
}

// RecordCacheHit records a candle cache hit
func (r *Registry) RecordCacheHit(cacheType string) {
	r.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a candle cache miss
func (r *Registry) RecordCacheMiss(cacheType string) {
	r.CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordFetchError records a market data fetch failure
func (r *Registry) RecordFetchError(source string) {
	r.FetchErrors.WithLabelValues(source).Inc()
}
