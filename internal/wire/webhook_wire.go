package wire

import (
	"villa-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireWebhook(r chi.Router, webhookHandler *adaptor.WebhookHandler) {
	// The gateway authenticates out of band, not with a guest identity.
	// POST /api/webhooks/payment - Gateway payment outcome delivery
	r.Post("/api/webhooks/payment", webhookHandler.PaymentEvent)
}
