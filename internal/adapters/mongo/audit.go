package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/aitraveller/trip-bookings/internal/domain"
	"github.com/aitraveller/trip-bookings/internal/observability"
)

// AuditLogger keeps the operator-facing trail of every webhook delivery:
// what arrived, whether the signature held, and what the state machine did
// with it. It never participates in the transition itself.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("payment_events"),
		logger: logger,
	}
}

type paymentEventDoc struct {
	ID              uuid.UUID `bson:"_id"`
	ProviderEventID string    `bson:"provider_event_id"`
	EventType       string    `bson:"event_type"`
	BookingID       string    `bson:"booking_id,omitempty"`
	SignatureValid  bool      `bson:"signature_valid"`
	Outcome         string    `bson:"outcome"`
	Error           string    `bson:"error,omitempty"`
	ReceivedAt      time.Time `bson:"received_at"`
}

func (a *AuditLogger) Record(ctx context.Context, e domain.PaymentEvent) error {
	doc := paymentEventDoc{
		ID:              uuid.New(),
		ProviderEventID: e.ProviderEventID,
		EventType:       e.Type,
		BookingID:       e.BookingID,
		SignatureValid:  e.SignatureValid,
		Outcome:         string(e.Outcome),
		Error:           e.Error,
		ReceivedAt:      e.ReceivedAt,
	}
	_, err := a.coll.InsertOne(ctx, doc)
	if err != nil {
		a.logger.Error("failed to insert payment event audit record", err)
		return err
	}
	return nil
}
