package main

import (
	"context"
	"encoding/json"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/aitraveller/trip-bookings/internal/adapters/postgres"
	"github.com/aitraveller/trip-bookings/internal/adapters/rabbit"
	"github.com/aitraveller/trip-bookings/internal/config"
	"github.com/aitraveller/trip-bookings/internal/domain"
	"github.com/aitraveller/trip-bookings/internal/notifier"
	"github.com/aitraveller/trip-bookings/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := postgres.NewRepository(pool)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	consumer, err := rabbit.NewConsumer(rabbitConn, rabbit.NotifierQueue)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	sender := notifier.NewResendClient(cfg.ResendAPIKey, cfg.EmailFrom, "https://api.resend.com", 10*time.Second)

	worker := NewNotifierWorker(repo, sender, logger)

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	logger.Info("notifier worker started")
	worker.Run(ctx, deliveries)
	logger.Info("notifier worker exiting")
}

type BookingLoader interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
}

type NotifierWorker struct {
	store  BookingLoader
	sender notifier.Notifier
	logger observability.Logger
}

func NewNotifierWorker(store BookingLoader, sender notifier.Notifier, logger observability.Logger) *NotifierWorker {
	return &NotifierWorker{store: store, sender: sender, logger: logger}
}

func (w *NotifierWorker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			w.handle(ctx, d)
		}
	}
}

// handle sends the confirmation for one booking.confirmed event. Email is
// best-effort: after the retries are spent the message is acked anyway so a
// dead email provider cannot wedge the queue.
func (w *NotifierWorker) handle(ctx context.Context, d amqp.Delivery) {
	var msg struct {
		BookingID string `json:"booking_id"`
	}
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		w.logger.Error("malformed notification payload: ", err)
		d.Ack(false)
		return
	}
	id, err := uuid.Parse(msg.BookingID)
	if err != nil {
		w.logger.Error("malformed booking id in notification: ", err)
		d.Ack(false)
		return
	}

	b, err := w.store.GetBooking(ctx, id)
	if err != nil {
		w.logger.WithField("booking_id", msg.BookingID).Error("failed to load booking: ", err)
		d.Nack(false, true)
		return
	}

	if err := w.sendWithRetry(ctx, b); err != nil {
		observability.NotificationsSent.WithLabelValues("error").Inc()
		w.logger.WithField("booking_reference", b.BookingReference).Error("failed to send confirmation: ", err)
	} else {
		observability.NotificationsSent.WithLabelValues("ok").Inc()
	}
	d.Ack(false)
}

func (w *NotifierWorker) sendWithRetry(ctx context.Context, b *domain.Booking) error {
	var err error
	for i := 0; i < 3; i++ {
		if err = w.sender.SendBookingConfirmation(ctx, b); err == nil {
			return nil
		}
		backoff := time.Duration(1<<i) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
