package entity

import (
	"time"
)

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
	ReservationStatusCompleted ReservationStatus = "completed"
)

type PaymentStatus string

const (
	PaymentStatusNone     PaymentStatus = "none"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type Reservation struct {
	Base
	GuestID             string            `db:"guest_id"`
	CheckIn             time.Time         `db:"check_in"`
	CheckOut            time.Time         `db:"check_out"`
	GuestCount          int               `db:"guest_count"`
	Status              ReservationStatus `db:"status"`
	PaymentStatus       PaymentStatus     `db:"payment_status"`
	TotalAmountCents    int64             `db:"total_amount_cents"`
	RefundedAmountCents int64             `db:"refunded_amount_cents"`
	HoldExpiresAt       *time.Time        `db:"hold_expires_at"`
}

func (r *Reservation) Range() DateRange {
	return DateRange{CheckIn: r.CheckIn, CheckOut: r.CheckOut}
}

// Live reports whether the reservation still legitimately occupies its date
// cells: confirmed, or pending with an unexpired hold.
func (r *Reservation) Live(now time.Time) bool {
	switch r.Status {
	case ReservationStatusConfirmed:
		return true
	case ReservationStatusPending:
		return r.HoldExpiresAt != nil && r.HoldExpiresAt.After(now)
	default:
		return false
	}
}

func (r *Reservation) Terminal() bool {
	switch r.Status {
	case ReservationStatusCancelled, ReservationStatusExpired, ReservationStatusCompleted:
		return true
	}
	return false
}
