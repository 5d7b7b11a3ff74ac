package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aitraveller/trip-bookings/internal/adapters/postgres"
	"github.com/aitraveller/trip-bookings/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		email TEXT NOT NULL,
		booking_reference TEXT NOT NULL,
		destination TEXT NOT NULL,
		month TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		duration TEXT NOT NULL DEFAULT '',
		start_date TIMESTAMPTZ,
		end_date TIMESTAMPTZ,
		flight JSONB,
		hotel JSONB,
		activities JSONB,
		selected_activities JSONB,
		adults INT NOT NULL DEFAULT 2,
		children INT NOT NULL DEFAULT 0,
		infants INT NOT NULL DEFAULT 0,
		base_price BIGINT NOT NULL,
		total_price BIGINT NOT NULL,
		checkout_session_id TEXT NOT NULL DEFAULT '',
		payment_intent_id TEXT NOT NULL DEFAULT '',
		provider_payment_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL CHECK (status IN ('pending_payment', 'confirmed', 'cancelled')),
		payment_status TEXT NOT NULL CHECK (payment_status IN ('pending', 'paid', 'expired', 'failed')),
		paid_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS bookings_reference_key ON bookings (booking_reference);
	CREATE TABLE IF NOT EXISTS user_stats (
		user_id TEXT PRIMARY KEY,
		total_bookings BIGINT NOT NULL,
		last_booking_date TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id UUID NOT NULL,
		event_type TEXT NOT NULL,
		payload_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ,
		status TEXT NOT NULL,
		dedupe_key TEXT NOT NULL
	);
`

func setupRepo(t *testing.T) (*postgres.Repository, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			Env:          map[string]string{"POSTGRES_PASSWORD": "test", "POSTGRES_DB": "trips"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, "postgresql://postgres:test@"+host+":"+port.Port()+"/trips?sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatal(err)
	}

	return postgres.NewRepository(pool), pool
}

func pendingBooking(userID string) *domain.Booking {
	now := time.Now().UTC()
	return &domain.Booking{
		ID:               uuid.New(),
		UserID:           userID,
		Email:            "alice@example.com",
		BookingReference: domain.NewBookingReference(now),
		Destination:      "Paris",
		Month:            "June",
		Reason:           "Travel",
		Duration:         "1 week",
		BasePrice:        1000,
		TotalPrice:       1050,
		Passengers:       domain.DefaultPassengers(),
		Status:           domain.StatusPendingPayment,
		PaymentStatus:    domain.PaymentPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestRepository_DuplicateReference(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	first := pendingBooking("user-1")
	if err := repo.CreateBooking(ctx, first); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	second := pendingBooking("user-2")
	second.BookingReference = first.BookingReference
	err := repo.CreateBooking(ctx, second)
	if !errors.Is(err, domain.ErrDuplicateBooking) {
		t.Fatalf("expected ErrDuplicateBooking, got %v", err)
	}

	got, err := repo.GetBookingByReference(ctx, first.BookingReference)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != first.ID {
		t.Errorf("reference resolves to the wrong booking: %s", got.ID)
	}
}

func TestRepository_ConfirmWinsExactlyOnce(t *testing.T) {
	repo, pool := setupRepo(t)
	ctx := context.Background()

	b := pendingBooking("user-1")
	if err := repo.CreateBooking(ctx, b); err != nil {
		t.Fatal(err)
	}

	paidAt := time.Now().UTC()
	won, err := repo.ConfirmBooking(ctx, b.ID, "pi_1", paidAt)
	if err != nil || !won {
		t.Fatalf("first confirm should win, got won=%v err=%v", won, err)
	}

	// Redelivery: the compare-and-set must lose without touching anything.
	for i := 0; i < 3; i++ {
		won, err = repo.ConfirmBooking(ctx, b.ID, "pi_1", paidAt)
		if err != nil {
			t.Fatal(err)
		}
		if won {
			t.Fatal("replayed confirm must be a no-op")
		}
	}

	got, err := repo.GetBooking(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusConfirmed || got.PaymentStatus != domain.PaymentPaid {
		t.Errorf("expected (confirmed, paid), got (%s, %s)", got.Status, got.PaymentStatus)
	}
	if got.ProviderPaymentID != "pi_1" || got.PaidAt == nil {
		t.Errorf("provider payment details not recorded: %+v", got)
	}

	total, last, err := repo.GetUserStats(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Errorf("expected exactly one stat increment, got %d", total)
	}
	if last == nil {
		t.Error("last booking date not set")
	}

	var outboxCount int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM outbox WHERE aggregate_id = $1`, b.ID).Scan(&outboxCount); err != nil {
		t.Fatal(err)
	}
	if outboxCount != 1 {
		t.Errorf("expected exactly one outbox record, got %d", outboxCount)
	}
}

func TestRepository_ExpiredAfterConfirmedIsNoop(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	b := pendingBooking("user-1")
	if err := repo.CreateBooking(ctx, b); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.ConfirmBooking(ctx, b.ID, "pi_1", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	won, err := repo.CancelBooking(ctx, b.ID, domain.PaymentExpired)
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Fatal("cancel after confirm must lose the compare-and-set")
	}

	got, err := repo.GetBooking(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusConfirmed {
		t.Errorf("confirmed booking was overridden to %s", got.Status)
	}
}

func TestRepository_CancelPendingBooking(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	b := pendingBooking("user-1")
	if err := repo.CreateBooking(ctx, b); err != nil {
		t.Fatal(err)
	}

	won, err := repo.CancelBooking(ctx, b.ID, domain.PaymentExpired)
	if err != nil || !won {
		t.Fatalf("cancel of pending booking should win, got won=%v err=%v", won, err)
	}

	got, err := repo.GetBooking(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusCancelled || got.PaymentStatus != domain.PaymentExpired {
		t.Errorf("expected (cancelled, expired), got (%s, %s)", got.Status, got.PaymentStatus)
	}

	// A late confirm must not resurrect the booking.
	won, err = repo.ConfirmBooking(ctx, b.ID, "pi_late", time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Fatal("confirm after cancel must lose the compare-and-set")
	}

	total, _, err := repo.GetUserStats(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Errorf("cancelled booking must not increment user stats, got %d", total)
	}
}

func TestRepository_UnknownBooking(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	_, err := repo.ConfirmBooking(ctx, uuid.New(), "pi_x", time.Now())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = repo.CancelBooking(ctx, uuid.New(), domain.PaymentExpired)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = repo.GetBooking(ctx, uuid.New())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepository_PublicTripProjection(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	b := pendingBooking("user-1")
	if err := repo.CreateBooking(ctx, b); err != nil {
		t.Fatal(err)
	}

	trip, err := repo.GetPublicTrip(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if trip.Destination != "Paris" || trip.Duration != "1 week" {
		t.Errorf("unexpected projection: %+v", trip)
	}
}
