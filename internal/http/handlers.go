package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	redisadapter "github.com/aitraveller/trip-bookings/internal/adapters/redis"
	"github.com/aitraveller/trip-bookings/internal/booking"
	"github.com/aitraveller/trip-bookings/internal/domain"
	"github.com/aitraveller/trip-bookings/internal/observability"
)

const maxWebhookBody = 1 << 20

type BookingCreator interface {
	Create(ctx context.Context, req booking.CreateRequest) (*booking.CreateResult, error)
}

type BookingReader interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	GetPublicTrip(ctx context.Context, id uuid.UUID) (*domain.PublicTrip, error)
}

type EventProcessor interface {
	Process(ctx context.Context, payload []byte, sigHeader string) error
}

type IdempotencyCache interface {
	Get(ctx context.Context, key string) (*redisadapter.IdempResponse, error)
	Set(ctx context.Context, key string, resp redisadapter.IdempResponse) error
}

type Handlers struct {
	svc       BookingCreator
	store     BookingReader
	processor EventProcessor
	idemp     IdempotencyCache
	logger    observability.Logger
}

func NewHandlers(svc BookingCreator, store BookingReader, processor EventProcessor, idemp IdempotencyCache, logger observability.Logger) *Handlers {
	return &Handlers{svc: svc, store: store, processor: processor, idemp: idemp, logger: logger}
}

type createBookingBody struct {
	Trip  booking.TripRequest `json:"trip"`
	Email string              `json:"email"`
}

type bookingSummary struct {
	ID               string    `json:"id"`
	BookingReference string    `json:"bookingReference"`
	Destination      string    `json:"destination"`
	TotalPrice       int64     `json:"totalPrice"`
	Status           string    `json:"status"`
	PaymentStatus    string    `json:"paymentStatus"`
	Email            string    `json:"email"`
	CreatedAt        time.Time `json:"createdAt"`
}

type paymentInfo struct {
	CheckoutURL     string `json:"checkoutUrl,omitempty"`
	SessionID       string `json:"sessionId,omitempty"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeErrorJSON(w, http.StatusUnauthorized, "Please log in to book a trip", "UNAUTHORIZED")
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idemp != nil {
		existing, err := h.idemp.Get(r.Context(), key)
		if err != nil {
			h.logger.Error("idempotency lookup failed: ", err)
		} else if existing != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(existing.Status)
			w.Write(existing.Result)
			return
		}
	}

	var body createBookingBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "Malformed request body", "BAD_REQUEST")
		return
	}

	result, err := h.svc.Create(r.Context(), booking.CreateRequest{
		UserID: id.UserID,
		Email:  body.Email,
		Trip:   body.Trip,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"success": true,
		"message": "Booking created successfully",
		"booking": bookingSummary{
			ID:               result.Booking.ID.String(),
			BookingReference: result.Booking.BookingReference,
			Destination:      result.Booking.Destination,
			TotalPrice:       result.Booking.TotalPrice,
			Status:           string(result.Booking.Status),
			PaymentStatus:    string(result.Booking.PaymentStatus),
			Email:            result.Booking.Email,
			CreatedAt:        result.Booking.CreatedAt,
		},
		"code": "BOOKING_SUCCESS",
	}
	if result.PaymentUnavailable {
		resp["payment"] = nil
	} else {
		resp["payment"] = paymentInfo{
			CheckoutURL:     result.CheckoutURL,
			SessionID:       result.SessionID,
			PaymentIntentID: result.PaymentIntentID,
		}
	}

	data, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	if key != "" && h.idemp != nil {
		if err := h.idemp.Set(r.Context(), key, redisadapter.IdempResponse{Status: http.StatusCreated, Result: data}); err != nil {
			h.logger.Error("idempotency store failed: ", err)
		}
	}
}

// PaymentWebhook accepts provider deliveries. The body is read raw and never
// parsed before signature verification. 200 means "accepted"; anything else
// makes the provider retry.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "Could not read body", "BAD_REQUEST")
		return
	}

	err = h.processor.Process(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, domain.ErrInvalidSignature) {
		writeErrorJSON(w, http.StatusBadRequest, "Webhook signature verification failed", "SIGNATURE_ERROR")
		return
	}
	if err != nil {
		// Transient processing failure: non-200 triggers provider redelivery,
		// which the compare-and-set transition absorbs.
		writeErrorJSON(w, http.StatusInternalServerError, "Event processing failed", "INTERNAL_ERROR")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"received":true}`))
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeErrorJSON(w, http.StatusUnauthorized, "Please log in", "UNAUTHORIZED")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "Invalid booking id", "BAD_REQUEST")
		return
	}

	b, err := h.store.GetBooking(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	// Owners only; respond as not-found so ids cannot be probed.
	if b.UserID != identity.UserID {
		writeErrorJSON(w, http.StatusNotFound, "Booking not found", "NOT_FOUND")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":               b.ID,
		"bookingReference": b.BookingReference,
		"destination":      b.Destination,
		"duration":         b.Duration,
		"startDate":        b.StartDate,
		"endDate":          b.EndDate,
		"basePrice":        b.BasePrice,
		"totalPrice":       b.TotalPrice,
		"passengers":       b.Passengers,
		"status":           b.Status,
		"paymentStatus":    b.PaymentStatus,
		"paidAt":           b.PaidAt,
		"createdAt":        b.CreatedAt,
	})
}

// ShareTrip serves the public projection for shared trip pages.
func (h *Handlers) ShareTrip(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "Invalid trip id", "BAD_REQUEST")
		return
	}

	trip, err := h.store.GetPublicTrip(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trip)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

func (h *Handlers) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingData):
		writeErrorJSON(w, http.StatusBadRequest, "Missing required booking data", "MISSING_DATA")
	case errors.Is(err, domain.ErrValidation):
		writeErrorJSON(w, http.StatusBadRequest, "Invalid booking data", "VALIDATION_ERROR")
	case errors.Is(err, domain.ErrUnauthorized):
		writeErrorJSON(w, http.StatusUnauthorized, "Please log in", "UNAUTHORIZED")
	case errors.Is(err, domain.ErrDuplicateBooking):
		writeErrorJSON(w, http.StatusConflict, "A booking with these details already exists", "DUPLICATE_BOOKING")
	case errors.Is(err, domain.ErrNotFound):
		writeErrorJSON(w, http.StatusNotFound, "Not found", "NOT_FOUND")
	case errors.Is(err, domain.ErrGatewayUnavailable):
		writeErrorJSON(w, http.StatusServiceUnavailable, "External service temporarily unavailable", "SERVICE_UNAVAILABLE")
	default:
		// Internals stay in the logs, keyed by request id, not in the response.
		h.logger.WithField("path", r.URL.Path).Error("request failed: ", err)
		writeErrorJSON(w, http.StatusInternalServerError, "An unexpected error occurred", "INTERNAL_ERROR")
	}
}

func writeErrorJSON(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
