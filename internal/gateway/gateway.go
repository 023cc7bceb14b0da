// Package gateway talks to the external payment provider. The engine only
// consumes two shapes: checkout-session creation and a status pull; outcome
// pushes arrive separately through the webhook adaptor.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrGatewayUnavailable marks a transient provider failure that survived the
// client's bounded retries.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomePending   Outcome = "pending"
)

// CheckoutSession is the provider's handle for one payment attempt.
type CheckoutSession struct {
	ExternalSessionID string    `json:"external_session_id"`
	CheckoutURL       string    `json:"checkout_url"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// PaymentEvent is a provider-reported outcome, delivered by webhook push or
// returned by an explicit status pull. EventKey is the dedup identifier.
type PaymentEvent struct {
	EventKey          string  `json:"event_key"`
	ExternalSessionID string  `json:"external_session_id"`
	Outcome           Outcome `json:"outcome"`
	AmountCents       int64   `json:"amount_cents"`
}

type CheckoutGateway interface {
	// CreateCheckoutSession opens a session for the amount. Transient
	// provider errors are retried with bounded backoff before surfacing
	// ErrGatewayUnavailable.
	CreateCheckoutSession(ctx context.Context, reservationID uuid.UUID, amountCents int64, currency string) (*CheckoutSession, error)

	// GetStatus pulls the current outcome for a session. A still-processing
	// session reports OutcomePending.
	GetStatus(ctx context.Context, externalSessionID string) (*PaymentEvent, error)
}
