package entity

import (
	"github.com/google/uuid"
)

// Conflict reasons recorded for operator follow-up. A captured payment must
// never vanish without a compensating action, so these are never dropped.
const (
	ConflictReasonLateSuccess    = "late_success_after_expiry"
	ConflictReasonAmountMismatch = "amount_mismatch"
	ConflictReasonContradiction  = "contradictory_outcome"
)

// ReconciliationConflict is the audit record for a late or contradictory
// payment outcome arriving against a reservation that has left the live
// state set. The ledger is never mutated from this path.
type ReconciliationConflict struct {
	BaseSimple
	ReservationID uuid.UUID `db:"reservation_id"`
	AttemptID     uuid.UUID `db:"attempt_id"`
	EventKey      string    `db:"event_key"`
	Reason        string    `db:"reason"`
	Details       string    `db:"details"`
}
