package repository

import (
	"villa-booking/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Ledger         LedgerRepository
	Reservation    ReservationRepository
	Attempt        AttemptRepository
	Idempotency    IdempotencyRepository
	Reconciliation ReconciliationRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Ledger:         NewLedgerRepository(db, log),
		Reservation:    NewReservationRepository(db, log),
		Attempt:        NewAttemptRepository(db, log),
		Idempotency:    NewIdempotencyRepository(db, log),
		Reconciliation: NewReconciliationRepository(db, log),
	}
}
