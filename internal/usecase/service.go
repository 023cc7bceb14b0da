package usecase

import (
	"villa-booking/internal/data/repository"
	"villa-booking/internal/gateway"
	"villa-booking/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Reservation ReservationService
	Payment     PaymentService
	Reconciler  ReconcilerService
	Reaper      ReaperService
}

func NewService(repo *repository.Repository, gw gateway.CheckoutGateway, config *utils.Config, log *zap.Logger) *Service {
	pricing := NewStandardPricing(config.Booking.NightlyRateCents, config.Booking.CleaningFeeCents)

	reservation := NewReservationService(repo, config.Booking, pricing, StandardRefundPolicy, log)
	payment := NewPaymentService(repo, reservation, gw, config.Booking, log)
	reconciler := NewReconcilerService(repo, payment, reservation, gw, log)

	return &Service{
		Reservation: reservation,
		Payment:     payment,
		Reconciler:  reconciler,
		Reaper:      NewReaperService(repo, config, log),
	}
}
