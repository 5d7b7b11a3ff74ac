package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aitraveller/trip-bookings/internal/observability"
	"github.com/aitraveller/trip-bookings/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(AuthMiddleware)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(rl))
		r.Post("/v1/bookings", h.CreateBooking)
	})

	r.Get("/v1/bookings/{id}", h.GetBooking)
	r.Post("/v1/payments/webhook", h.PaymentWebhook)
	r.Get("/v1/share/trips/{id}", h.ShareTrip)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
