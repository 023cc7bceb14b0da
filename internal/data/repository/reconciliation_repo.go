package repository

import (
	"context"
	"fmt"

	"villa-booking/internal/data/entity"
	"villa-booking/pkg/database"

	"go.uber.org/zap"
)

type ReconciliationRepository interface {
	Create(ctx context.Context, conflict *entity.ReconciliationConflict) error
}

type reconciliationRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewReconciliationRepository(db database.PgxIface, log *zap.Logger) ReconciliationRepository {
	return &reconciliationRepository{
		db:  db,
		log: log.With(zap.String("repository", "reconciliation")),
	}
}

func (r *reconciliationRepository) Create(ctx context.Context, conflict *entity.ReconciliationConflict) error {
	query := `
		INSERT INTO reconciliation_conflicts (id, reservation_id, attempt_id, event_key, reason, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		conflict.ID,
		conflict.ReservationID,
		conflict.AttemptID,
		conflict.EventKey,
		conflict.Reason,
		conflict.Details,
		conflict.CreatedAt,
	)

	if err != nil {
		r.log.Error("Failed to record reconciliation conflict",
			zap.Error(err),
			zap.String("reservation_id", conflict.ReservationID.String()),
			zap.String("event_key", conflict.EventKey),
			zap.String("reason", conflict.Reason),
		)
		return fmt.Errorf("record reconciliation conflict %s: %w", conflict.EventKey, err)
	}

	r.log.Warn("Reconciliation conflict recorded",
		zap.String("reservation_id", conflict.ReservationID.String()),
		zap.String("attempt_id", conflict.AttemptID.String()),
		zap.String("event_key", conflict.EventKey),
		zap.String("reason", conflict.Reason),
	)
	return nil
}
