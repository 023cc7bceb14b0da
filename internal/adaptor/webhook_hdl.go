package adaptor

import (
	"encoding/json"
	"net/http"

	"villa-booking/internal/dto/request"
	"villa-booking/internal/usecase"
	"villa-booking/pkg/utils"

	"go.uber.org/zap"
)

type WebhookHandler struct {
	reconciler usecase.ReconcilerService
	log        *zap.Logger
}

func NewWebhookHandler(reconciler usecase.ReconcilerService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		log:        log.With(zap.String("handler", "webhook")),
	}
}

// PaymentEvent handles POST /api/webhooks/payment. The gateway delivers
// at-least-once, so a duplicate delivery gets a 200 with the recorded
// result rather than an error; anything else invites endless redelivery.
func (h *WebhookHandler) PaymentEvent(w http.ResponseWriter, r *http.Request) {
	var req request.PaymentEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	result, err := h.reconciler.IngestEvent(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "ingest payment event")
		return
	}

	utils.ResponseSuccess(w, "success", result)
}
