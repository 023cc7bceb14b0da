package repository

import (
	"context"
	"fmt"

	"villa-booking/internal/data/entity"
	"villa-booking/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// IdempotencyRepository is the dedup gate for payment events and retried
// client commands. The unique key on the insert is the serialization point:
// whichever channel inserts first wins, every later arrival gets the stored
// record back and must not mutate state.
type IdempotencyRepository interface {
	// RecordIfNew inserts the record. When the key already exists the
	// previously stored record is returned and inserted is false.
	RecordIfNew(ctx context.Context, rec *entity.IdempotencyRecord) (existing *entity.IdempotencyRecord, inserted bool, err error)

	// UpdateResult fills in the outcome computed after a winning insert.
	UpdateResult(ctx context.Context, key, resultingStatus, outcome string) error

	// Delete removes a claimed key whose effect did not land, handing the
	// slot back so a redelivery of the same event gets to retry.
	Delete(ctx context.Context, key string) error

	Find(ctx context.Context, key string) (*entity.IdempotencyRecord, error)
}

type idempotencyRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewIdempotencyRepository(db database.PgxIface, log *zap.Logger) IdempotencyRepository {
	return &idempotencyRepository{
		db:  db,
		log: log.With(zap.String("repository", "idempotency")),
	}
}

func (r *idempotencyRepository) RecordIfNew(ctx context.Context, rec *entity.IdempotencyRecord) (*entity.IdempotencyRecord, bool, error) {
	query := `
		INSERT INTO idempotency_records (key, reservation_id, resulting_status, outcome, processed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query,
		rec.Key,
		rec.ReservationID,
		rec.ResultingStatus,
		rec.Outcome,
		rec.ProcessedAt,
	)
	if err != nil {
		r.log.Error("Failed to insert idempotency record",
			zap.Error(err),
			zap.String("key", rec.Key),
		)
		return nil, false, fmt.Errorf("insert idempotency record %s: %w", rec.Key, err)
	}

	if tag.RowsAffected() > 0 {
		return rec, true, nil
	}

	existing, err := r.Find(ctx, rec.Key)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// Should not happen: key conflicted but the row is gone.
		return nil, false, fmt.Errorf("idempotency record %s vanished after conflict", rec.Key)
	}

	return existing, false, nil
}

func (r *idempotencyRepository) UpdateResult(ctx context.Context, key, resultingStatus, outcome string) error {
	query := `
		UPDATE idempotency_records
		SET resulting_status = $2, outcome = $3
		WHERE key = $1
	`

	_, err := r.db.Exec(ctx, query, key, resultingStatus, outcome)
	if err != nil {
		r.log.Error("Failed to update idempotency result",
			zap.Error(err),
			zap.String("key", key),
		)
		return fmt.Errorf("update idempotency result %s: %w", key, err)
	}

	return nil
}

func (r *idempotencyRepository) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM idempotency_records WHERE key = $1`

	_, err := r.db.Exec(ctx, query, key)
	if err != nil {
		r.log.Error("Failed to delete idempotency record",
			zap.Error(err),
			zap.String("key", key),
		)
		return fmt.Errorf("delete idempotency record %s: %w", key, err)
	}

	return nil
}

func (r *idempotencyRepository) Find(ctx context.Context, key string) (*entity.IdempotencyRecord, error) {
	query := `
		SELECT key, reservation_id, resulting_status, outcome, processed_at
		FROM idempotency_records
		WHERE key = $1
	`

	var rec entity.IdempotencyRecord
	err := r.db.QueryRow(ctx, query, key).Scan(
		&rec.Key,
		&rec.ReservationID,
		&rec.ResultingStatus,
		&rec.Outcome,
		&rec.ProcessedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find idempotency record",
			zap.Error(err),
			zap.String("key", key),
		)
		return nil, fmt.Errorf("find idempotency record %s: %w", key, err)
	}

	return &rec, nil
}
