package booking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/aitraveller/trip-bookings/internal/adapters/stripe"
	"github.com/aitraveller/trip-bookings/internal/domain"
	"github.com/aitraveller/trip-bookings/internal/observability"
)

type Store interface {
	CreateBooking(ctx context.Context, b *domain.Booking) error
	AttachPaymentRef(ctx context.Context, id uuid.UUID, sessionID, intentID string) error
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, amount int64, currency, description string, md stripe.Metadata) (*stripe.CheckoutSession, error)
}

type Catalog interface {
	BasePrice(ctx context.Context, destination string) (int64, error)
}

// TripRequest is the client's trip descriptor. Flight, Hotel and Activities
// are stored as-is; the core only reads Destination, prices and passenger
// counts.
type TripRequest struct {
	Destination        string             `json:"Destination"`
	Month              string             `json:"Month"`
	Reason             string             `json:"Reason"`
	Duration           string             `json:"Duration"`
	StartDate          *time.Time         `json:"StartDate"`
	EndDate            *time.Time         `json:"EndDate"`
	Flight             json.RawMessage    `json:"Flight"`
	Hotel              json.RawMessage    `json:"Hotel"`
	Activities         json.RawMessage    `json:"Activities"`
	SelectedActivities []domain.Activity  `json:"selectedActivities"`
	BasePrice          int64              `json:"basePrice"`
	Price              string             `json:"Price"`
	Passengers         *domain.Passengers `json:"passengers"`
}

type CreateRequest struct {
	UserID string
	Email  string
	Trip   TripRequest
}

type CreateResult struct {
	Booking         *domain.Booking
	CheckoutURL     string
	SessionID       string
	PaymentIntentID string
	// PaymentUnavailable marks the deliberate at-least-once path: the
	// booking exists but the gateway call failed, so the client retries
	// payment setup instead of re-booking.
	PaymentUnavailable bool
}

type Service struct {
	store    Store
	gateway  Gateway
	catalog  Catalog
	currency string
	logger   observability.Logger
}

func NewService(store Store, gateway Gateway, catalog Catalog, logger observability.Logger) *Service {
	return &Service{store: store, gateway: gateway, catalog: catalog, currency: "usd", logger: logger}
}

// Create validates the trip, computes the price, persists the booking in
// (pending_payment, pending) and asks the gateway for a checkout session.
// The booking is never rolled back because the gateway was unreachable.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if req.Trip.Destination == "" || req.Email == "" {
		return nil, domain.ErrMissingData
	}
	if req.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	basePrice, err := s.resolveBasePrice(ctx, req.Trip)
	if err != nil {
		return nil, err
	}
	for _, a := range req.Trip.SelectedActivities {
		if a.Price < 0 {
			return nil, errors.Wrapf(domain.ErrValidation, "activity %q has negative price", a.Name)
		}
	}
	totalPrice := domain.TotalPrice(basePrice, req.Trip.SelectedActivities)

	passengers := domain.DefaultPassengers()
	if req.Trip.Passengers != nil {
		passengers = *req.Trip.Passengers
	}

	now := time.Now().UTC()
	b := &domain.Booking{
		ID:                 uuid.New(),
		UserID:             req.UserID,
		Email:              req.Email,
		BookingReference:   domain.NewBookingReference(now),
		Destination:        req.Trip.Destination,
		Month:              orDefault(req.Trip.Month, "TBD"),
		Reason:             orDefault(req.Trip.Reason, "Travel"),
		Duration:           orDefault(req.Trip.Duration, "1 week"),
		StartDate:          req.Trip.StartDate,
		EndDate:            req.Trip.EndDate,
		Flight:             req.Trip.Flight,
		Hotel:              req.Trip.Hotel,
		Activities:         req.Trip.Activities,
		SelectedActivities: req.Trip.SelectedActivities,
		Passengers:         passengers,
		BasePrice:          basePrice,
		TotalPrice:         totalPrice,
		Status:             domain.StatusPendingPayment,
		PaymentStatus:      domain.PaymentPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.store.CreateBooking(ctx, b); err != nil {
		return nil, err
	}
	observability.BookingsCreated.Inc()

	result := &CreateResult{Booking: b}

	session, err := s.gateway.CreateCheckoutSession(ctx, totalPrice, s.currency, "Trip to "+b.Destination, stripe.Metadata{
		"bookingId":        b.ID.String(),
		"bookingReference": b.BookingReference,
		"userEmail":        b.Email,
		"destination":      b.Destination,
	})
	if err != nil {
		// At-least-once by design: the booking stays in pending_payment and
		// the client may retry payment setup against it.
		s.logger.WithField("booking_reference", b.BookingReference).Warn("checkout session creation failed: ", err)
		result.PaymentUnavailable = true
		return result, nil
	}

	if err := s.store.AttachPaymentRef(ctx, b.ID, session.ID, session.PaymentIntentID); err != nil {
		s.logger.WithField("booking_reference", b.BookingReference).Error("failed to attach payment ref: ", err)
	} else {
		b.CheckoutSessionID = session.ID
		b.PaymentIntentID = session.PaymentIntentID
	}

	result.CheckoutURL = session.URL
	result.SessionID = session.ID
	result.PaymentIntentID = session.PaymentIntentID
	return result, nil
}

// resolveBasePrice follows the descriptor first, then the formatted price
// string, then the destination catalog, then the default.
func (s *Service) resolveBasePrice(ctx context.Context, trip TripRequest) (int64, error) {
	if trip.BasePrice < 0 {
		return 0, errors.Wrap(domain.ErrValidation, "base price is negative")
	}
	if trip.BasePrice > 0 {
		return trip.BasePrice, nil
	}
	if price, ok := domain.ParsePriceString(trip.Price); ok {
		return price, nil
	}
	if s.catalog != nil {
		price, err := s.catalog.BasePrice(ctx, trip.Destination)
		if err == nil {
			return price, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("catalog lookup failed, using default base price: ", err)
		}
	}
	return domain.DefaultBasePrice, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
