package http

import (
	"net/http"

	"math-dash-service/internal/app"
	"math-dash-service/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter wires the websocket endpoint, the JSON API, health and metrics.
func NewRouter(service *app.GameService, limit RateLimit, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	ws := NewWSHandler(service, limit, log)
	api := NewAPIHandler(service, log)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/ws", ws.ServeWS)
	api.Routes(r)
	return r
}
