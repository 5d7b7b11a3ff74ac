package webhook

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/aitraveller/trip-bookings/internal/adapters/stripe"
	"github.com/aitraveller/trip-bookings/internal/domain"
	"github.com/aitraveller/trip-bookings/internal/observability"
)

// Provider event types the state machine understands. Anything else is
// accepted and ignored so new provider events never break the endpoint.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

type Store interface {
	ConfirmBooking(ctx context.Context, id uuid.UUID, providerPaymentID string, paidAt time.Time) (bool, error)
	CancelBooking(ctx context.Context, id uuid.UUID, ps domain.PaymentStatus) (bool, error)
}

type Verifier interface {
	VerifyEvent(payload []byte, sigHeader string) (*stripe.Event, error)
}

type Auditor interface {
	Record(ctx context.Context, e domain.PaymentEvent) error
}

// Processor reconciles booking state with provider events. Transitions are
// compare-and-set in the store, so duplicate and out-of-order deliveries
// collapse to the first-writer-wins outcome; everything here is retryable.
type Processor struct {
	store    Store
	verifier Verifier
	audit    Auditor
	logger   observability.Logger
}

func NewProcessor(store Store, verifier Verifier, audit Auditor, logger observability.Logger) *Processor {
	return &Processor{store: store, verifier: verifier, audit: audit, logger: logger}
}

// Process verifies and applies one delivery. It returns
// domain.ErrInvalidSignature for rejected payloads; any other error means
// the provider should redeliver.
func (p *Processor) Process(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := p.verifier.VerifyEvent(payload, sigHeader)
	if err != nil {
		p.logger.Warn("webhook signature verification failed: ", err)
		observability.WebhookEvents.WithLabelValues("unverified", "rejected").Inc()
		p.recordAudit(ctx, domain.PaymentEvent{
			SignatureValid: false,
			Outcome:        domain.EventOutcomeFailed,
			Error:          err.Error(),
			ReceivedAt:     time.Now().UTC(),
		})
		return domain.ErrInvalidSignature
	}

	outcome, procErr := p.apply(ctx, event)

	audit := domain.PaymentEvent{
		ProviderEventID: event.ID,
		Type:            event.Type,
		SignatureValid:  true,
		Outcome:         outcome,
		ReceivedAt:      time.Now().UTC(),
	}
	if obj, err := event.Object(); err == nil {
		audit.BookingID = obj.Metadata["bookingId"]
	}
	if procErr != nil {
		audit.Error = procErr.Error()
	}
	p.recordAudit(ctx, audit)

	observability.WebhookEvents.WithLabelValues(event.Type, string(outcome)).Inc()
	return procErr
}

func (p *Processor) apply(ctx context.Context, event *stripe.Event) (domain.PaymentEventOutcome, error) {
	log := p.logger.WithField("event_id", event.ID).WithField("event_type", event.Type)

	switch event.Type {
	case EventCheckoutCompleted:
		obj, id, outcome, err := p.resolveBooking(event, log)
		if outcome != "" {
			return outcome, err
		}
		won, err := p.store.ConfirmBooking(ctx, id, obj.PaymentIntent, time.Now().UTC())
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("completed event for unknown booking ", obj.Metadata["bookingId"])
			return domain.EventOutcomeUnknownBooking, nil
		}
		if err != nil {
			return domain.EventOutcomeFailed, err
		}
		if !won {
			// Redelivery or a lost race against another terminal event.
			return domain.EventOutcomeNoop, nil
		}
		log.Info("booking confirmed")
		return domain.EventOutcomeConfirmed, nil

	case EventCheckoutExpired:
		obj, id, outcome, err := p.resolveBooking(event, log)
		if outcome != "" {
			return outcome, err
		}
		won, err := p.store.CancelBooking(ctx, id, domain.PaymentExpired)
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("expired event for unknown booking ", obj.Metadata["bookingId"])
			return domain.EventOutcomeUnknownBooking, nil
		}
		if err != nil {
			return domain.EventOutcomeFailed, err
		}
		if !won {
			return domain.EventOutcomeNoop, nil
		}
		log.Info("booking cancelled after session expiry")
		return domain.EventOutcomeCancelled, nil

	case EventPaymentFailed:
		// Observability only; the session may still complete or expire.
		obj, err := event.Object()
		if err != nil {
			return domain.EventOutcomeFailed, errors.Wrap(err, "decode failed-payment object")
		}
		log.Warn("payment failed for intent ", obj.ID)
		return domain.EventOutcomeNoop, nil

	default:
		log.Info("ignoring unhandled event type")
		return domain.EventOutcomeIgnored, nil
	}
}

// resolveBooking extracts and parses the booking id from event metadata. A
// non-empty outcome short-circuits the caller.
func (p *Processor) resolveBooking(event *stripe.Event, log observability.Logger) (*stripe.EventObject, uuid.UUID, domain.PaymentEventOutcome, error) {
	obj, err := event.Object()
	if err != nil {
		return nil, uuid.Nil, domain.EventOutcomeFailed, errors.Wrap(err, "decode event object")
	}
	raw := obj.Metadata["bookingId"]
	if raw == "" {
		log.Warn("event carries no booking id metadata")
		return obj, uuid.Nil, domain.EventOutcomeUnknownBooking, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		log.Warn("event carries malformed booking id ", raw)
		return obj, uuid.Nil, domain.EventOutcomeUnknownBooking, nil
	}
	return obj, id, "", nil
}

func (p *Processor) recordAudit(ctx context.Context, e domain.PaymentEvent) {
	if p.audit == nil {
		return
	}
	// Best-effort: the audit trail never blocks or fails a transition.
	if err := p.audit.Record(ctx, e); err != nil {
		p.logger.Error("failed to record payment event audit entry: ", err)
	}
}
