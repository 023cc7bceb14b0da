package response

import (
	"time"

	"villa-booking/internal/data/entity"
)

type PaymentAttemptResponse struct {
	ID                string               `json:"id"`
	ReservationID     string               `json:"reservation_id"`
	AttemptNumber     int                  `json:"attempt_number"`
	ExternalSessionID string               `json:"external_session_id"`
	CheckoutURL       string               `json:"checkout_url,omitempty"`
	Status            entity.AttemptStatus `json:"status"`
	AmountCents       int64                `json:"amount_cents"`
	AttemptExpiresAt  time.Time            `json:"attempt_expires_at"`
	CreatedAt         time.Time            `json:"created_at"`
}

// ReconcileResult reports what an ingested payment event did. Duplicate
// means the event key was already recorded and nothing changed.
type ReconcileResult struct {
	EventKey          string                   `json:"event_key"`
	Duplicate         bool                     `json:"duplicate"`
	Outcome           string                   `json:"outcome"`
	ReservationStatus entity.ReservationStatus `json:"reservation_status"`
}

func AttemptToResponse(a *entity.PaymentAttempt) PaymentAttemptResponse {
	return PaymentAttemptResponse{
		ID:                a.ID.String(),
		ReservationID:     a.ReservationID.String(),
		AttemptNumber:     a.AttemptNumber,
		ExternalSessionID: a.ExternalSessionID,
		CheckoutURL:       a.CheckoutURL,
		Status:            a.Status,
		AmountCents:       a.AmountCents,
		AttemptExpiresAt:  a.AttemptExpiresAt,
		CreatedAt:         a.CreatedAt,
	}
}
