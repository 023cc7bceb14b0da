package entity

import (
	"time"

	"github.com/google/uuid"
)

type AttemptStatus string

const (
	AttemptStatusCreated    AttemptStatus = "created"
	AttemptStatusProcessing AttemptStatus = "processing"
	AttemptStatusSucceeded  AttemptStatus = "succeeded"
	AttemptStatusFailed     AttemptStatus = "failed"
	AttemptStatusExpired    AttemptStatus = "expired"
)

// MaxPaymentAttempts caps how many checkout sessions a single reservation
// may open before it becomes un-payable.
const MaxPaymentAttempts = 3

// PaymentAttempt is one bounded try at collecting payment for a reservation.
// AmountCents is snapshotted from the reservation at creation and never
// re-priced mid-flight.
type PaymentAttempt struct {
	BaseSimple
	ReservationID     uuid.UUID     `db:"reservation_id"`
	AttemptNumber     int           `db:"attempt_number"`
	ExternalSessionID string        `db:"external_session_id"`
	CheckoutURL       string        `db:"checkout_url"`
	Status            AttemptStatus `db:"status"`
	AmountCents       int64         `db:"amount_cents"`
	AttemptExpiresAt  time.Time     `db:"attempt_expires_at"`
}

func (a *PaymentAttempt) Settled() bool {
	switch a.Status {
	case AttemptStatusSucceeded, AttemptStatusFailed, AttemptStatusExpired:
		return true
	}
	return false
}
