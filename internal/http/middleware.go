package http

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelhttp "go.opentelemetry.io/otel/propagation"

	"github.com/aitraveller/trip-bookings/internal/observability"
	"github.com/aitraveller/trip-bookings/internal/rateLimit"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller, resolved by the upstream auth layer
// and forwarded in trusted headers. The core never verifies credentials
// itself.
type Identity struct {
	UserID string
	Email  string
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

func RequestIDMiddleware(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

func LoggerMiddleware(logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := middleware.GetReqID(r.Context())
			entry := logger.WithField("request_id", reqID)
			ctx := context.WithValue(r.Context(), contextKey("logger"), entry)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthMiddleware lifts the upstream-resolved identity into the request
// context. Routes that require it reject anonymous requests with 401.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			UserID: r.Header.Get("X-User-Id"),
			Email:  r.Header.Get("X-User-Email"),
		}
		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimitMiddleware gates booking creation. Keying prefers the
// authenticated user; anonymous requests fall back to the client IP and are
// rejected by the handler's auth check anyway.
func RateLimitMiddleware(rl *rateLimit.RateLimiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r)
			if id, ok := IdentityFromContext(r.Context()); ok {
				key = "user:" + id.UserID
			}

			decision, err := rl.Allow(r.Context(), key)
			if err != nil {
				writeErrorJSON(w, http.StatusInternalServerError, "Rate limiter unavailable", "RATE_LIMITER_ERROR")
				return
			}
			if !decision.Allowed {
				observability.RateLimitExceeded.Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds()+0.5)))
				writeErrorJSON(w, http.StatusTooManyRequests, "Too many booking requests, please try again later", "RATE_LIMITED")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), otelhttp.HeaderCarrier(r.Header))
		tracer := otel.Tracer("http")
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
