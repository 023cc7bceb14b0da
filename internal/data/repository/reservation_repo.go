package repository

import (
	"context"
	"fmt"
	"time"

	"villa-booking/internal/data/entity"
	"villa-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type ReservationRepository interface {
	Create(ctx context.Context, res *entity.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Reservation, error)
	FindByGuestID(ctx context.Context, guestID string, limit, offset int) ([]*entity.Reservation, error)
	CountByGuestID(ctx context.Context, guestID string) (int64, error)
	Update(ctx context.Context, res *entity.Reservation) error

	// ConfirmPending flips pending to confirmed/paid only while the hold is
	// still valid. Liveness is judged by the database clock, not a caller
	// timestamp, so a confirm racing the expiry sweep cannot win with a
	// reading taken before the hold lapsed. Returns false when the
	// conditional write matched nothing, which covers both "already
	// confirmed" and "no longer live".
	ConfirmPending(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkExpired is the reaper's conditional write; it only fires on a
	// pending reservation whose hold has lapsed, so overlapping reaper
	// instances converge.
	MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// MarkCompleted moves a confirmed reservation past its check-out to the
	// completed terminal state.
	MarkCompleted(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entity.Reservation, error)
	FindFinishedConfirmed(ctx context.Context, now time.Time, limit int) ([]*entity.Reservation, error)

	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status entity.PaymentStatus) error
}

type reservationRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewReservationRepository(db database.PgxIface, log *zap.Logger) ReservationRepository {
	return &reservationRepository{
		db:  db,
		log: log.With(zap.String("repository", "reservation")),
	}
}

const reservationColumns = `id, guest_id, check_in, check_out, guest_count, status, payment_status,
	total_amount_cents, refunded_amount_cents, hold_expires_at, created_at, updated_at`

func scanReservation(row pgx.Row) (*entity.Reservation, error) {
	var res entity.Reservation
	err := row.Scan(
		&res.ID,
		&res.GuestID,
		&res.CheckIn,
		&res.CheckOut,
		&res.GuestCount,
		&res.Status,
		&res.PaymentStatus,
		&res.TotalAmountCents,
		&res.RefundedAmountCents,
		&res.HoldExpiresAt,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) Create(ctx context.Context, res *entity.Reservation) error {
	query := `
		INSERT INTO reservations (` + reservationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Exec(ctx, query,
		res.ID,
		res.GuestID,
		res.CheckIn,
		res.CheckOut,
		res.GuestCount,
		res.Status,
		res.PaymentStatus,
		res.TotalAmountCents,
		res.RefundedAmountCents,
		res.HoldExpiresAt,
		res.CreatedAt,
		res.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create reservation",
			zap.Error(err),
			zap.String("reservation_id", res.ID.String()),
			zap.String("guest_id", res.GuestID),
		)
		return fmt.Errorf("create reservation %s: %w", res.ID.String(), err)
	}

	return nil
}

func (r *reservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	res, err := scanReservation(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find reservation by ID",
			zap.Error(err),
			zap.String("reservation_id", id.String()),
		)
		return nil, fmt.Errorf("find reservation by ID %s: %w", id.String(), err)
	}

	return res, nil
}

func (r *reservationRepository) FindByGuestID(ctx context.Context, guestID string, limit, offset int) ([]*entity.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE guest_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, guestID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find reservations by guest ID",
			zap.Error(err),
			zap.String("guest_id", guestID),
		)
		return nil, fmt.Errorf("find reservations by guest ID %s: %w", guestID, err)
	}
	defer rows.Close()

	var reservations []*entity.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			r.log.Error("Failed to scan reservation row", zap.Error(err))
			return nil, fmt.Errorf("scan reservation row: %w", err)
		}
		reservations = append(reservations, res)
	}

	return reservations, nil
}

func (r *reservationRepository) CountByGuestID(ctx context.Context, guestID string) (int64, error) {
	query := `SELECT COUNT(*) FROM reservations WHERE guest_id = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, guestID).Scan(&count); err != nil {
		r.log.Error("Failed to count reservations by guest ID",
			zap.Error(err),
			zap.String("guest_id", guestID),
		)
		return 0, fmt.Errorf("count reservations by guest ID %s: %w", guestID, err)
	}

	return count, nil
}

func (r *reservationRepository) Update(ctx context.Context, res *entity.Reservation) error {
	query := `
		UPDATE reservations
		SET check_in = $2, check_out = $3, guest_count = $4, status = $5,
		    payment_status = $6, refunded_amount_cents = $7, hold_expires_at = $8, updated_at = $9
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		res.ID,
		res.CheckIn,
		res.CheckOut,
		res.GuestCount,
		res.Status,
		res.PaymentStatus,
		res.RefundedAmountCents,
		res.HoldExpiresAt,
		res.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update reservation",
			zap.Error(err),
			zap.String("reservation_id", res.ID.String()),
		)
		return fmt.Errorf("update reservation %s: %w", res.ID.String(), err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reservation %s not found", res.ID.String())
	}

	return nil
}

func (r *reservationRepository) ConfirmPending(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE reservations
		SET status = 'confirmed', payment_status = 'paid', hold_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND hold_expires_at > NOW()
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to confirm reservation",
			zap.Error(err),
			zap.String("reservation_id", id.String()),
		)
		return false, fmt.Errorf("confirm reservation %s: %w", id.String(), err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *reservationRepository) MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE reservations
		SET status = 'expired', hold_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND hold_expires_at <= $2
	`

	tag, err := r.db.Exec(ctx, query, id, now)
	if err != nil {
		r.log.Error("Failed to mark reservation expired",
			zap.Error(err),
			zap.String("reservation_id", id.String()),
		)
		return false, fmt.Errorf("mark reservation %s expired: %w", id.String(), err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *reservationRepository) MarkCompleted(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE reservations
		SET status = 'completed', updated_at = NOW()
		WHERE id = $1 AND status = 'confirmed' AND check_out <= $2
	`

	tag, err := r.db.Exec(ctx, query, id, now)
	if err != nil {
		r.log.Error("Failed to mark reservation completed",
			zap.Error(err),
			zap.String("reservation_id", id.String()),
		)
		return false, fmt.Errorf("mark reservation %s completed: %w", id.String(), err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *reservationRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entity.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = 'pending' AND hold_expires_at <= $1
		ORDER BY hold_expires_at
		LIMIT $2
	`

	return r.findBatch(ctx, query, now, limit)
}

func (r *reservationRepository) FindFinishedConfirmed(ctx context.Context, now time.Time, limit int) ([]*entity.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = 'confirmed' AND check_out <= $1
		ORDER BY check_out
		LIMIT $2
	`

	return r.findBatch(ctx, query, now, limit)
}

func (r *reservationRepository) findBatch(ctx context.Context, query string, now time.Time, limit int) ([]*entity.Reservation, error) {
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		r.log.Error("Failed to query reservation batch", zap.Error(err))
		return nil, fmt.Errorf("query reservation batch: %w", err)
	}
	defer rows.Close()

	var reservations []*entity.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			r.log.Error("Failed to scan reservation row", zap.Error(err))
			return nil, fmt.Errorf("scan reservation row: %w", err)
		}
		reservations = append(reservations, res)
	}

	return reservations, nil
}

func (r *reservationRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status entity.PaymentStatus) error {
	query := `UPDATE reservations SET payment_status = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		r.log.Error("Failed to update payment status",
			zap.Error(err),
			zap.String("reservation_id", id.String()),
			zap.String("payment_status", string(status)),
		)
		return fmt.Errorf("update reservation %s payment status to %s: %w", id.String(), string(status), err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reservation %s not found", id.String())
	}

	return nil
}
