// Package metrics provides Prometheus instrumentation for the bubble engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal counts simulation ticks that advanced a non-empty arena.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bubbles_ticks_total",
		Help: "Total number of simulation ticks",
	})

	// TickDuration tracks wall time spent inside one tick.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bubbles_tick_duration_seconds",
		Help:    "Time spent computing one simulation tick",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016},
	})

	// Bodies tracks the number of live bodies in the arena.
	Bodies = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bubbles_bodies",
		Help: "Number of bodies in the arena",
	})

	// PairSeparations counts overlapping pairs pushed apart.
	PairSeparations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bubbles_pair_separations_total",
		Help: "Overlapping body pairs separated by the relaxation pass",
	})

	// CoincidentPairs counts pairs whose centers coincided exactly.
	CoincidentPairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bubbles_coincident_pairs_total",
		Help: "Body pairs with identical centers encountered during separation",
	})

	// LoadsTotal counts entity list loads by outcome.
	LoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bubbles_loads_total",
		Help: "Entity list loads partitioned by result",
	}, []string{"result"})

	// FetchLatency tracks upstream market fetch latency.
	FetchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bubbles_fetch_latency_seconds",
		Help:    "Market source fetch latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bubbles_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// FramesDropped counts frames not delivered because the broadcast buffer was full.
	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bubbles_frames_dropped_total",
		Help: "Frames dropped because the broadcast buffer was full",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bubbles_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bubbles_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Load outcomes used as the LoadsTotal label.
const (
	LoadApplied = "applied"
	LoadCached  = "cached"
	LoadStale   = "stale"
	LoadError   = "error"
)

// ObserveTick records one tick's duration and separation stats.
func ObserveTick(d time.Duration, bodies, separated, coincident int) {
	TicksTotal.Inc()
	TickDuration.Observe(d.Seconds())
	Bodies.Set(float64(bodies))
	PairSeparations.Add(float64(separated))
	CoincidentPairs.Add(float64(coincident))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
// The wrapped writer keeps http.Hijacker so WebSocket upgrades still work.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		duration := time.Since(start).Seconds()

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		// Prefer the route pattern to keep label cardinality bounded.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}
