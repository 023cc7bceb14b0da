package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"villa-booking/internal/data/entity"
)

// Domain error taxonomy. Handlers map these with errors.Is / errors.As;
// nothing here retries automatically except gateway transients, which the
// gateway client handles itself.
var (
	ErrNotFound       = errors.New("reservation not found")
	ErrUnauthorized   = errors.New("reservation belongs to a different guest")
	ErrExpiredHold    = errors.New("hold has expired")
	ErrNotPending     = errors.New("reservation is not awaiting payment")
	ErrNotCancellable = errors.New("reservation can no longer be cancelled")
	ErrNotModifiable  = errors.New("reservation can no longer be modified")

	// ErrMaxAttempts is terminal and never auto-retried.
	ErrMaxAttempts = errors.New("maximum payment attempts exceeded, contact support to complete this booking")
)

// ConflictError reports unavailable dates plus nearest free alternatives of
// equal length.
type ConflictError struct {
	ConflictingDates []time.Time
	Suggestions      []entity.DateRange
}

func (e *ConflictError) Error() string {
	dates := make([]string, len(e.ConflictingDates))
	for i, d := range e.ConflictingDates {
		dates[i] = d.Format(entity.DateLayout)
	}
	return fmt.Sprintf("dates unavailable: %s", strings.Join(dates, ", "))
}

// AmountMismatchError flags a gateway-reported amount that differs from the
// attempt's snapshot.
type AmountMismatchError struct {
	ExpectedCents int64
	ReportedCents int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("reported amount %d differs from attempt snapshot %d", e.ReportedCents, e.ExpectedCents)
}

// ReconciliationConflictError marks a late or contradictory payment outcome
// against a reservation that is no longer live. The money side was captured,
// so the conflict is recorded for compensating action, never dropped.
type ReconciliationConflictError struct {
	Reason            string
	ReservationStatus entity.ReservationStatus
}

func (e *ReconciliationConflictError) Error() string {
	return fmt.Sprintf("payment outcome cannot be applied (%s): reservation is %s", e.Reason, e.ReservationStatus)
}
