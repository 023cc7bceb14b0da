package wire

import (
	"villa-booking/internal/adaptor"
	"villa-booking/pkg/middleware"
	"villa-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireReservation(
	r chi.Router,
	reservationHandler *adaptor.ReservationHandler,
	paymentHandler *adaptor.PaymentHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	// All reservation routes require a verified guest identity.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity(log))

		// POST /api/reservations - Place a hold on a date range
		r.Post("/api/reservations", reservationHandler.Create)

		// GET /api/reservations - List the caller's reservations
		r.Get("/api/reservations", reservationHandler.List)

		// PUT /api/reservations/{id}/dates - Move a reservation to new dates
		r.Put("/api/reservations/{id}/dates", reservationHandler.Modify)

		// DELETE /api/reservations/{id} - Cancel a reservation
		r.Delete("/api/reservations/{id}", reservationHandler.Cancel)

		// POST /api/reservations/{id}/payment-attempts - Open a payment attempt
		r.Post("/api/reservations/{id}/payment-attempts", paymentHandler.CreateAttempt)

		// GET /api/reservations/{id} - Status read doubling as a gateway
		// poll, so it carries a per-guest minimum interval.
		r.Group(func(r chi.Router) {
			r.Use(middleware.PollRate(config.Booking.PollMinInterval(), log))
			r.Get("/api/reservations/{id}", paymentHandler.Status)
		})
	})
}
