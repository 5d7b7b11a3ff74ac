package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trips_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trips_bookings_created_total",
			Help: "Total bookings written in pending_payment state",
		},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trips_webhook_events_total",
			Help: "Provider webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	GatewayRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trips_gateway_request_seconds",
			Help:    "Duration of payment gateway calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trips_rate_limit_exceeded_total",
			Help: "Total booking requests rejected by the rate limiter",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trips_notifications_sent_total",
			Help: "Confirmation email dispatch attempts by result",
		},
		[]string{"result"},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trips_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox record",
		},
	)
)
