package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aitraveller/trip-bookings/internal/domain"
)

const UniqueViolationCode = "23505"

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CreateBooking inserts the booking in (pending_payment, pending). The
// unique index on booking_reference is the only collision defense; a
// violation maps to ErrDuplicateBooking and the caller decides whether to
// retry with a fresh reference.
func (r *Repository) CreateBooking(ctx context.Context, b *domain.Booking) error {
	selected, err := json.Marshal(b.SelectedActivities)
	if err != nil {
		return errors.Wrap(err, "marshal selected activities")
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO bookings (
			id, user_id, email, booking_reference,
			destination, month, reason, duration, start_date, end_date,
			flight, hotel, activities, selected_activities,
			adults, children, infants,
			base_price, total_price,
			status, payment_status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17,
			$18, $19,
			'pending_payment', 'pending', $20, $20
		)
	`, b.ID, b.UserID, b.Email, b.BookingReference,
		b.Destination, b.Month, b.Reason, b.Duration, b.StartDate, b.EndDate,
		b.Flight, b.Hotel, b.Activities, selected,
		b.Passengers.Adults, b.Passengers.Children, b.Passengers.Infants,
		b.BasePrice, b.TotalPrice, b.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == UniqueViolationCode {
			return domain.ErrDuplicateBooking
		}
		return err
	}
	return nil
}

// AttachPaymentRef records the external payment references once the gateway
// call succeeded. Safe to call again on client retry.
func (r *Repository) AttachPaymentRef(ctx context.Context, id uuid.UUID, sessionID, intentID string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET checkout_session_id = $2, payment_intent_id = $3, updated_at = now()
		WHERE id = $1
	`, id, sessionID, intentID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ConfirmBooking is the compare-and-set transition out of pending_payment.
// The guard lives in the WHERE clause: only the first event to observe
// pending_payment wins; every later delivery affects zero rows. The user
// aggregate increment and the notification outbox row commit in the same
// transaction, so they happen exactly when the transition happens.
func (r *Repository) ConfirmBooking(ctx context.Context, id uuid.UUID, providerPaymentID string, paidAt time.Time) (bool, error) {
	var won bool
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		var userID, reference string
		err := tx.QueryRow(ctx, `
			UPDATE bookings
			SET status = 'confirmed', payment_status = 'paid',
			    provider_payment_id = $2, paid_at = $3, updated_at = now()
			WHERE id = $1 AND status = 'pending_payment'
			RETURNING user_id, booking_reference
		`, id, providerPaymentID, paidAt).Scan(&userID, &reference)
		if err == pgx.ErrNoRows {
			return r.checkExists(ctx, tx, id)
		}
		if err != nil {
			return err
		}
		won = true

		_, err = tx.Exec(ctx, `
			INSERT INTO user_stats (user_id, total_bookings, last_booking_date)
			VALUES ($1, 1, $2)
			ON CONFLICT (user_id) DO UPDATE
			SET total_bookings = user_stats.total_bookings + 1, last_booking_date = $2
		`, userID, paidAt)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(map[string]string{
			"booking_id":        id.String(),
			"booking_reference": reference,
		})
		if err != nil {
			return err
		}
		return insertOutbox(ctx, tx, OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "booking",
			AggregateID:   id,
			EventType:     "booking.confirmed",
			Payload:       payload,
			DedupeKey:     "booking.confirmed:" + id.String(),
		})
	})
	return won, err
}

// CancelBooking moves a pending booking to cancelled with the given payment
// status (expired or failed). Same compare-and-set guard as ConfirmBooking.
func (r *Repository) CancelBooking(ctx context.Context, id uuid.UUID, ps domain.PaymentStatus) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET status = 'cancelled', payment_status = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending_payment'
	`, id, ps)
	if err != nil {
		return false, err
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
			return false, err
		}
		if !exists {
			return false, domain.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (r *Repository) checkExists(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return nil
}

const bookingColumns = `
	id, user_id, email, booking_reference,
	destination, month, reason, duration, start_date, end_date,
	flight, hotel, activities, selected_activities,
	adults, children, infants,
	base_price, total_price,
	checkout_session_id, payment_intent_id, provider_payment_id,
	status, payment_status, paid_at, created_at, updated_at`

func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	return scanBooking(row)
}

func (r *Repository) GetBookingByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_reference = $1`, reference)
	return scanBooking(row)
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	var selected []byte
	err := row.Scan(
		&b.ID, &b.UserID, &b.Email, &b.BookingReference,
		&b.Destination, &b.Month, &b.Reason, &b.Duration, &b.StartDate, &b.EndDate,
		&b.Flight, &b.Hotel, &b.Activities, &selected,
		&b.Passengers.Adults, &b.Passengers.Children, &b.Passengers.Infants,
		&b.BasePrice, &b.TotalPrice,
		&b.CheckoutSessionID, &b.PaymentIntentID, &b.ProviderPaymentID,
		&b.Status, &b.PaymentStatus, &b.PaidAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(selected) > 0 {
		if err := json.Unmarshal(selected, &b.SelectedActivities); err != nil {
			return nil, errors.Wrap(err, "unmarshal selected activities")
		}
	}
	return &b, nil
}

// GetPublicTrip returns the sharing projection. The column list IS the
// privacy contract: email, user id, prices and payment references never
// leave this query.
func (r *Repository) GetPublicTrip(ctx context.Context, id uuid.UUID) (*domain.PublicTrip, error) {
	var t domain.PublicTrip
	err := r.pool.QueryRow(ctx, `
		SELECT id, destination, month, duration, start_date, end_date, hotel, activities
		FROM bookings WHERE id = $1
	`, id).Scan(&t.ID, &t.Destination, &t.Month, &t.Duration, &t.StartDate, &t.EndDate, &t.Hotel, &t.Activities)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetUserStats reads the user aggregate. Used by tests and the admin surface.
func (r *Repository) GetUserStats(ctx context.Context, userID string) (int64, *time.Time, error) {
	var total int64
	var last *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT total_bookings, last_booking_date FROM user_stats WHERE user_id = $1
	`, userID).Scan(&total, &last)
	if err == pgx.ErrNoRows {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return total, last, nil
}
