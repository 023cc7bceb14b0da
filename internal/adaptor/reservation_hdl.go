package adaptor

import (
	"encoding/json"
	"net/http"

	"villa-booking/internal/dto/request"
	"villa-booking/internal/usecase"
	"villa-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ReservationHandler struct {
	service usecase.ReservationService
	log     *zap.Logger
}

func NewReservationHandler(service usecase.ReservationService, log *zap.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		log:     log.With(zap.String("handler", "reservation")),
	}
}

// Create handles POST /api/reservations
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	guestID, ok := utils.GetGuestIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Guest identity required")
		return
	}

	var req request.CreateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	res, err := h.service.Create(r.Context(), guestID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create reservation")
		return
	}

	utils.ResponseCreated(w, "success", res)
}

// List handles GET /api/reservations
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	guestID, ok := utils.GetGuestIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Guest identity required")
		return
	}

	query := r.URL.Query()
	req := &request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}

	reservations, err := h.service.ListByGuest(r.Context(), guestID, req)
	if err != nil {
		handleServiceError(w, h.log, err, "list reservations")
		return
	}

	utils.ResponseSuccess(w, "success", reservations)
}

// Modify handles PUT /api/reservations/{id}/dates
func (h *ReservationHandler) Modify(w http.ResponseWriter, r *http.Request) {
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

	var req request.ModifyReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	res, err := h.service.Modify(r.Context(), guestID, reservationID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "modify reservation")
		return
	}

	utils.ResponseSuccess(w, "success", res)
}

// Cancel handles DELETE /api/reservations/{id}
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
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

	// The body is optional on cancel.
	var req request.CancelReservationRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.service.Cancel(r.Context(), guestID, reservationID, req.Reason); err != nil {
		handleServiceError(w, h.log, err, "cancel reservation")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}
