package adaptor

import (
	"villa-booking/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Reservation *ReservationHandler
	Payment     *PaymentHandler
	Webhook     *WebhookHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Reservation: NewReservationHandler(service.Reservation, log),
		Payment:     NewPaymentHandler(service.Payment, service.Reconciler, log),
		Webhook:     NewWebhookHandler(service.Reconciler, log),
	}
}
