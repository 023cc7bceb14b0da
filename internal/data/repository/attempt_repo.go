package repository

import (
	"context"
	"fmt"

	"villa-booking/internal/data/entity"
	"villa-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type AttemptRepository interface {
	Create(ctx context.Context, attempt *entity.PaymentAttempt) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.PaymentAttempt, error)
	FindBySessionID(ctx context.Context, sessionID string) (*entity.PaymentAttempt, error)
	FindByReservationID(ctx context.Context, reservationID uuid.UUID) ([]*entity.PaymentAttempt, error)
	FindLastByReservationID(ctx context.Context, reservationID uuid.UUID) (*entity.PaymentAttempt, error)

	// SettleStatus moves an unsettled attempt to a terminal status.
	// Conditional on the attempt still being open, so a stale duplicate
	// event cannot flip an already-settled attempt.
	SettleStatus(ctx context.Context, id uuid.UUID, status entity.AttemptStatus) (bool, error)

	// OverrideFailed flips a failed attempt to succeeded. Succeeded
	// dominates failed when the gateway reports contradictory outcomes for
	// the same attempt.
	OverrideFailed(ctx context.Context, id uuid.UUID) (bool, error)
}

type attemptRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewAttemptRepository(db database.PgxIface, log *zap.Logger) AttemptRepository {
	return &attemptRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment_attempt")),
	}
}

const attemptColumns = `id, reservation_id, attempt_number, external_session_id, checkout_url,
	status, amount_cents, attempt_expires_at, created_at`

func scanAttempt(row pgx.Row) (*entity.PaymentAttempt, error) {
	var a entity.PaymentAttempt
	err := row.Scan(
		&a.ID,
		&a.ReservationID,
		&a.AttemptNumber,
		&a.ExternalSessionID,
		&a.CheckoutURL,
		&a.Status,
		&a.AmountCents,
		&a.AttemptExpiresAt,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *attemptRepository) Create(ctx context.Context, attempt *entity.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		attempt.ID,
		attempt.ReservationID,
		attempt.AttemptNumber,
		attempt.ExternalSessionID,
		attempt.CheckoutURL,
		attempt.Status,
		attempt.AmountCents,
		attempt.AttemptExpiresAt,
		attempt.CreatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create payment attempt",
			zap.Error(err),
			zap.String("reservation_id", attempt.ReservationID.String()),
			zap.Int("attempt_number", attempt.AttemptNumber),
		)
		return fmt.Errorf("create payment attempt %s: %w", attempt.ID.String(), err)
	}

	return nil
}

func (r *attemptRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE id = $1`

	attempt, err := scanAttempt(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find attempt by ID",
			zap.Error(err),
			zap.String("attempt_id", id.String()),
		)
		return nil, fmt.Errorf("find attempt by ID %s: %w", id.String(), err)
	}

	return attempt, nil
}

func (r *attemptRepository) FindBySessionID(ctx context.Context, sessionID string) (*entity.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE external_session_id = $1`

	attempt, err := scanAttempt(r.db.QueryRow(ctx, query, sessionID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find attempt by session ID",
			zap.Error(err),
			zap.String("external_session_id", sessionID),
		)
		return nil, fmt.Errorf("find attempt by session ID %s: %w", sessionID, err)
	}

	return attempt, nil
}

func (r *attemptRepository) FindByReservationID(ctx context.Context, reservationID uuid.UUID) ([]*entity.PaymentAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM payment_attempts
		WHERE reservation_id = $1
		ORDER BY attempt_number
	`

	rows, err := r.db.Query(ctx, query, reservationID)
	if err != nil {
		r.log.Error("Failed to find attempts by reservation ID",
			zap.Error(err),
			zap.String("reservation_id", reservationID.String()),
		)
		return nil, fmt.Errorf("find attempts by reservation ID %s: %w", reservationID.String(), err)
	}
	defer rows.Close()

	var attempts []*entity.PaymentAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			r.log.Error("Failed to scan attempt row", zap.Error(err))
			return nil, fmt.Errorf("scan attempt row: %w", err)
		}
		attempts = append(attempts, attempt)
	}

	return attempts, nil
}

func (r *attemptRepository) FindLastByReservationID(ctx context.Context, reservationID uuid.UUID) (*entity.PaymentAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM payment_attempts
		WHERE reservation_id = $1
		ORDER BY attempt_number DESC
		LIMIT 1
	`

	attempt, err := scanAttempt(r.db.QueryRow(ctx, query, reservationID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find last attempt",
			zap.Error(err),
			zap.String("reservation_id", reservationID.String()),
		)
		return nil, fmt.Errorf("find last attempt for reservation %s: %w", reservationID.String(), err)
	}

	return attempt, nil
}

func (r *attemptRepository) SettleStatus(ctx context.Context, id uuid.UUID, status entity.AttemptStatus) (bool, error) {
	query := `
		UPDATE payment_attempts
		SET status = $2
		WHERE id = $1 AND status IN ('created', 'processing')
	`

	tag, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		r.log.Error("Failed to settle attempt status",
			zap.Error(err),
			zap.String("attempt_id", id.String()),
			zap.String("status", string(status)),
		)
		return false, fmt.Errorf("settle attempt %s to %s: %w", id.String(), string(status), err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *attemptRepository) OverrideFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE payment_attempts SET status = 'succeeded' WHERE id = $1 AND status = 'failed'`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to override failed attempt",
			zap.Error(err),
			zap.String("attempt_id", id.String()),
		)
		return false, fmt.Errorf("override failed attempt %s: %w", id.String(), err)
	}

	return tag.RowsAffected() > 0, nil
}
