package request

// PaymentEventRequest is the webhook payload pushed by the payment gateway.
// Delivery is at-least-once, so EventKey drives deduplication.
type PaymentEventRequest struct {
	EventKey          string `json:"event_key" validate:"required"`
	ExternalSessionID string `json:"external_session_id" validate:"required"`
	Outcome           string `json:"outcome" validate:"required,oneof=succeeded failed"`
	AmountCents       int64  `json:"amount_cents" validate:"required,min=1"`
}
