package usecase

import (
	"time"

	"villa-booking/internal/data/entity"
)

// PricingFunc quotes a stay in integer cents. The engine treats pricing as
// an external collaborator: the quote is snapshotted onto the reservation at
// creation and never re-evaluated from live rates mid-flight.
type PricingFunc func(r entity.DateRange) int64

// NewStandardPricing prices a stay as nights*rate + cleaning fee, all in
// integer cents. No floats anywhere in the money path.
func NewStandardPricing(nightlyRateCents, cleaningFeeCents int64) PricingFunc {
	return func(r entity.DateRange) int64 {
		return int64(r.Nights())*nightlyRateCents + cleaningFeeCents
	}
}

// RefundPolicyFunc computes the refund in cents for a paid reservation being
// cancelled at the given time.
type RefundPolicyFunc func(res *entity.Reservation, now time.Time) int64

// StandardRefundPolicy: full refund a week or more before check-in, half
// inside the final week, nothing once the stay has started.
func StandardRefundPolicy(res *entity.Reservation, now time.Time) int64 {
	if !now.Before(res.CheckIn) {
		return 0
	}
	if res.CheckIn.Sub(now) >= 7*24*time.Hour {
		return res.TotalAmountCents
	}
	return res.TotalAmountCents / 2
}
