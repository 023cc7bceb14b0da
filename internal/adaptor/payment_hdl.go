package adaptor

import (
	"net/http"

	"villa-booking/internal/usecase"
	"villa-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	payment    usecase.PaymentService
	reconciler usecase.ReconcilerService
	log        *zap.Logger
}

func NewPaymentHandler(payment usecase.PaymentService, reconciler usecase.ReconcilerService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payment:    payment,
		reconciler: reconciler,
		log:        log.With(zap.String("handler", "payment")),
	}
}

// CreateAttempt handles POST /api/reservations/{id}/payment-attempts
func (h *PaymentHandler) CreateAttempt(w http.ResponseWriter, r *http.Request) {
	guestID, ok := utils.GetGuestIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Guest identity required")
		return
	}

	reservationID := chi.URLParam(r, "id")
	if reservationID == "" {
		utils.ResponseBadRequest(w, "Reservation ID is required", nil)
		return
	}

	attempt, err := h.payment.CreateAttempt(r.Context(), guestID, reservationID)
	if err != nil {
		handleServiceError(w, h.log, err, "create payment attempt")
		return
	}

	utils.ResponseCreated(w, "success", attempt)
}

// Status handles GET /api/reservations/{id}. The read doubles as the status
// poll: an unsettled attempt triggers a rate-bounded gateway pull before the
// stored state is returned.
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	guestID, ok := utils.GetGuestIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Guest identity required")
		return
	}

	reservationID := chi.URLParam(r, "id")
	if reservationID == "" {
		utils.ResponseBadRequest(w, "Reservation ID is required", nil)
		return
	}

	status, err := h.reconciler.Poll(r.Context(), guestID, reservationID)
	if err != nil {
		handleServiceError(w, h.log, err, "poll reservation status")
		return
	}

	utils.ResponseSuccess(w, "success", status)
}
