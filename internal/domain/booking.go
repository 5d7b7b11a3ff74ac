package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	StatusPendingPayment BookingStatus = "pending_payment"
	StatusConfirmed      BookingStatus = "confirmed"
	StatusCancelled      BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentExpired PaymentStatus = "expired"
	PaymentFailed  PaymentStatus = "failed"
)

// Terminal reports whether no further transition may leave this status.
func (s BookingStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// ConsistentWith enforces the status pairing invariant: confirmed implies
// paid, cancelled implies expired or failed, pending_payment implies pending.
func (s BookingStatus) ConsistentWith(p PaymentStatus) bool {
	switch s {
	case StatusPendingPayment:
		return p == PaymentPending
	case StatusConfirmed:
		return p == PaymentPaid
	case StatusCancelled:
		return p == PaymentExpired || p == PaymentFailed
	}
	return false
}

type Passengers struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

// DefaultPassengers is applied when a trip descriptor carries no counts.
func DefaultPassengers() Passengers {
	return Passengers{Adults: 2}
}

type Activity struct {
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	ChildFriendly bool   `json:"childFriendly,omitempty"`
}

// Booking is the central entity. Flight, Hotel and Activities are opaque
// snapshots of what the client booked; the core never interprets them.
// Monetary amounts are integer currency minor units.
type Booking struct {
	ID               uuid.UUID
	UserID           string
	Email            string
	BookingReference string

	Destination string
	Month       string
	Reason      string
	Duration    string
	StartDate   *time.Time
	EndDate     *time.Time

	Flight             json.RawMessage
	Hotel              json.RawMessage
	Activities         json.RawMessage
	SelectedActivities []Activity
	Passengers         Passengers

	BasePrice  int64
	TotalPrice int64

	CheckoutSessionID string
	PaymentIntentID   string
	ProviderPaymentID string

	Status        BookingStatus
	PaymentStatus PaymentStatus
	PaidAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicTrip is the read-only sharing projection: no contact details, no
// owner identity, no payment references, no prices.
type PublicTrip struct {
	ID          uuid.UUID       `json:"id"`
	Destination string          `json:"destination"`
	Month       string          `json:"month,omitempty"`
	Duration    string          `json:"duration,omitempty"`
	StartDate   *time.Time      `json:"startDate,omitempty"`
	EndDate     *time.Time      `json:"endDate,omitempty"`
	Hotel       json.RawMessage `json:"hotel,omitempty"`
	Activities  json.RawMessage `json:"activities,omitempty"`
}

type PaymentEventOutcome string

const (
	EventOutcomeConfirmed      PaymentEventOutcome = "confirmed"
	EventOutcomeCancelled      PaymentEventOutcome = "cancelled"
	EventOutcomeNoop           PaymentEventOutcome = "noop"
	EventOutcomeUnknownBooking PaymentEventOutcome = "unknown_booking"
	EventOutcomeIgnored        PaymentEventOutcome = "ignored"
	EventOutcomeFailed         PaymentEventOutcome = "failed"
)

// PaymentEvent is the audit-trail record of one provider webhook delivery.
type PaymentEvent struct {
	ProviderEventID string
	Type            string
	BookingID       string
	SignatureValid  bool
	Outcome         PaymentEventOutcome
	Error           string
	ReceivedAt      time.Time
}
