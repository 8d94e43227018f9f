package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RoundsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathdash_rounds_started_total",
			Help: "Rounds started",
		},
		[]string{"difficulty", "mode"},
	)

	RoundsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathdash_rounds_ended_total",
			Help: "Rounds ended through play",
		},
		[]string{"reason"},
	)

	Answers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathdash_answers_total",
			Help: "Judged answers",
		},
		[]string{"operator", "result"},
	)

	AchievementsUnlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathdash_achievements_unlocked_total",
			Help: "Achievements unlocked",
		},
		[]string{"rarity"},
	)

	Connections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mathdash_ws_connections",
			Help: "Open game websocket connections",
		},
	)

	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"method", "endpoint"},
	)
)

var once sync.Once

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			RoundsStarted,
			RoundsEnded,
			Answers,
			AchievementsUnlocked,
			Connections,
			RequestCounter,
			RequestDuration,
		)
	})
}

// Middleware records request count and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		RequestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
