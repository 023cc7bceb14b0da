package response

import (
	"time"

	"villa-booking/internal/data/entity"
)

type DateRangeResponse struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

type ReservationResponse struct {
	ID                  string                   `json:"id"`
	GuestID             string                   `json:"guest_id"`
	CheckIn             string                   `json:"check_in"`
	CheckOut            string                   `json:"check_out"`
	Nights              int                      `json:"nights"`
	GuestCount          int                      `json:"guest_count"`
	Status              entity.ReservationStatus `json:"status"`
	PaymentStatus       entity.PaymentStatus     `json:"payment_status"`
	TotalAmountCents    int64                    `json:"total_amount_cents"`
	RefundedAmountCents int64                    `json:"refunded_amount_cents,omitempty"`
	HoldExpiresAt       *time.Time               `json:"hold_expires_at,omitempty"`
	CreatedAt           time.Time                `json:"created_at"`
}

type ReservationStatusResponse struct {
	ReservationResponse
	Attempts []PaymentAttemptResponse `json:"attempts"`
}

type ConflictResponse struct {
	ConflictingDates []string            `json:"conflicting_dates"`
	Suggestions      []DateRangeResponse `json:"suggestions,omitempty"`
}

// Helper converters
func ReservationToResponse(res *entity.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:                  res.ID.String(),
		GuestID:             res.GuestID,
		CheckIn:             res.CheckIn.Format(entity.DateLayout),
		CheckOut:            res.CheckOut.Format(entity.DateLayout),
		Nights:              res.Range().Nights(),
		GuestCount:          res.GuestCount,
		Status:              res.Status,
		PaymentStatus:       res.PaymentStatus,
		TotalAmountCents:    res.TotalAmountCents,
		RefundedAmountCents: res.RefundedAmountCents,
		HoldExpiresAt:       res.HoldExpiresAt,
		CreatedAt:           res.CreatedAt,
	}
}

func RangeToResponse(r entity.DateRange) DateRangeResponse {
	return DateRangeResponse{
		CheckIn:  r.CheckIn.Format(entity.DateLayout),
		CheckOut: r.CheckOut.Format(entity.DateLayout),
	}
}
