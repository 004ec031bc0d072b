package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the control-plane router. The notify endpoints sit
// behind shared-secret auth; health and metrics are open, as they carry no
// tenant data and sit behind the deployment's network boundary.
func NewRouter(notify *NotifyHandler, secret string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", Liveness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/notify", func(r chi.Router) {
		r.Use(SharedSecretAuth(secret))
		r.Post("/confirmation", notify.Confirmation)
		r.Post("/update", notify.Update)
		r.Post("/broadcast", notify.Broadcast)
	})

	return r
}
