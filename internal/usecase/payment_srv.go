package usecase

import (
	"context"
	"fmt"
	"time"

	"villa-booking/internal/data/entity"
	"villa-booking/internal/data/repository"
	"villa-booking/internal/dto/response"
	"villa-booking/internal/gateway"
	"villa-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PaymentService interface {
	// CreateAttempt opens a bounded payment attempt for a pending
	// reservation: snapshots the amount, requests a checkout session from
	// the gateway, and enforces the attempt cap.
	CreateAttempt(ctx context.Context, guestID, reservationID string) (*response.PaymentAttemptResponse, error)

	// ApplyOutcome applies a settled gateway outcome to the attempt and, on
	// success, confirms the reservation. Callers are expected to have passed
	// the idempotency gate already.
	ApplyOutcome(ctx context.Context, attempt *entity.PaymentAttempt, outcome gateway.Outcome) (entity.ReservationStatus, error)
}

type paymentService struct {
	repo        *repository.Repository
	reservation ReservationService
	gw          gateway.CheckoutGateway
	booking     utils.BookingConfig
	log         *zap.Logger
}

func NewPaymentService(
	repo *repository.Repository,
	reservation ReservationService,
	gw gateway.CheckoutGateway,
	booking utils.BookingConfig,
	log *zap.Logger,
) PaymentService {
	return &paymentService{
		repo:        repo,
		reservation: reservation,
		gw:          gw,
		booking:     booking,
		log:         log.With(zap.String("service", "payment")),
	}
}

func (s *paymentService) CreateAttempt(ctx context.Context, guestID, reservationID string) (*response.PaymentAttemptResponse, error) {
	res, err := s.reservation.GetByID(ctx, guestID, reservationID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if res.Status != entity.ReservationStatusPending {
		return nil, fmt.Errorf("%w: status is %s", ErrNotPending, res.Status)
	}
	if res.HoldExpiresAt == nil || !res.HoldExpiresAt.After(now) {
		return nil, ErrExpiredHold
	}

	last, err := s.repo.Attempt.FindLastByReservationID(ctx, res.ID)
	if err != nil {
		return nil, fmt.Errorf("find last attempt: %w", err)
	}

	nextNumber := 1
	if last != nil {
		// An attempt that is still open is simply handed back: retrying the
		// command must not burn a slot. A stale open attempt is settled as
		// expired first.
		if !last.Settled() {
			if last.AttemptExpiresAt.After(now) {
				resp := response.AttemptToResponse(last)
				return &resp, nil
			}
			if _, err := s.repo.Attempt.SettleStatus(ctx, last.ID, entity.AttemptStatusExpired); err != nil {
				return nil, err
			}
		}

		if last.AttemptNumber >= s.booking.MaxPaymentAttempts {
			s.log.Warn("Payment attempt cap reached",
				zap.String("reservation_id", reservationID),
				zap.Int("attempts", last.AttemptNumber),
			)
			return nil, ErrMaxAttempts
		}
		nextNumber = last.AttemptNumber + 1
	}

	// The charge is always the creation-time snapshot, never a re-quote.
	amountCents := res.TotalAmountCents

	session, err := s.gw.CreateCheckoutSession(ctx, res.ID, amountCents, s.booking.Currency)
	if err != nil {
		s.log.Error("Checkout session creation failed",
			zap.Error(err),
			zap.String("reservation_id", reservationID),
			zap.Int("attempt_number", nextNumber),
		)
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	expiresAt := session.ExpiresAt
	if expiresAt.IsZero() || expiresAt.After(*res.HoldExpiresAt) {
		// An attempt never outlives the hold it pays for.
		expiresAt = *res.HoldExpiresAt
	}

	attempt := &entity.PaymentAttempt{
		BaseSimple: entity.BaseSimple{
			ID:        uuid.New(),
			CreatedAt: now,
		},
		ReservationID:     res.ID,
		AttemptNumber:     nextNumber,
		ExternalSessionID: session.ExternalSessionID,
		CheckoutURL:       session.CheckoutURL,
		Status:            entity.AttemptStatusCreated,
		AmountCents:       amountCents,
		AttemptExpiresAt:  expiresAt,
	}

	if err := s.repo.Attempt.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("create payment attempt: %w", err)
	}

	// Payment status moves to pending, whether from none or from failed.
	if res.PaymentStatus != entity.PaymentStatusPending {
		if err := s.repo.Reservation.UpdatePaymentStatus(ctx, res.ID, entity.PaymentStatusPending); err != nil {
			return nil, err
		}
	}

	s.log.Info("Payment attempt created",
		zap.String("reservation_id", reservationID),
		zap.String("attempt_id", attempt.ID.String()),
		zap.Int("attempt_number", nextNumber),
		zap.Int64("amount_cents", amountCents),
		zap.String("external_session_id", session.ExternalSessionID),
	)

	resp := response.AttemptToResponse(attempt)
	return &resp, nil
}

func (s *paymentService) ApplyOutcome(ctx context.Context, attempt *entity.PaymentAttempt, outcome gateway.Outcome) (entity.ReservationStatus, error) {
	switch outcome {
	case gateway.OutcomeSucceeded:
		return s.applySuccess(ctx, attempt)
	case gateway.OutcomeFailed:
		return s.applyFailure(ctx, attempt)
	default:
		return "", fmt.Errorf("outcome %q is not settleable", outcome)
	}
}

func (s *paymentService) applySuccess(ctx context.Context, attempt *entity.PaymentAttempt) (entity.ReservationStatus, error) {
	if err := s.reservation.ConfirmFromPayment(ctx, attempt.ReservationID, attempt.ID); err != nil {
		return "", err
	}

	settled, err := s.repo.Attempt.SettleStatus(ctx, attempt.ID, entity.AttemptStatusSucceeded)
	if err != nil {
		return "", err
	}
	if !settled {
		// Succeeded dominates a previously recorded failure for the same
		// attempt when the gateway contradicts itself.
		if _, err := s.repo.Attempt.OverrideFailed(ctx, attempt.ID); err != nil {
			return "", err
		}
	}

	s.log.Info("Payment succeeded",
		zap.String("reservation_id", attempt.ReservationID.String()),
		zap.String("attempt_id", attempt.ID.String()),
		zap.Int64("amount_cents", attempt.AmountCents),
	)
	return entity.ReservationStatusConfirmed, nil
}

func (s *paymentService) applyFailure(ctx context.Context, attempt *entity.PaymentAttempt) (entity.ReservationStatus, error) {
	settled, err := s.repo.Attempt.SettleStatus(ctx, attempt.ID, entity.AttemptStatusFailed)
	if err != nil {
		return "", err
	}
	if !settled {
		// Already settled; a stale failure must not regress the attempt.
		current, err := s.repo.Attempt.FindByID(ctx, attempt.ID)
		if err != nil {
			return "", err
		}
		if current != nil && current.Status == entity.AttemptStatusSucceeded {
			return entity.ReservationStatusConfirmed, nil
		}
	}

	res, err := s.repo.Reservation.FindByID(ctx, attempt.ReservationID)
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", ErrNotFound
	}

	// The reservation stays pending: a further attempt may be issued until
	// the cap or the hold expiry ends the story.
	if res.Status == entity.ReservationStatusPending && res.PaymentStatus == entity.PaymentStatusPending {
		if err := s.repo.Reservation.UpdatePaymentStatus(ctx, res.ID, entity.PaymentStatusFailed); err != nil {
			return "", err
		}
		res.PaymentStatus = entity.PaymentStatusFailed
	}

	s.log.Info("Payment failed",
		zap.String("reservation_id", attempt.ReservationID.String()),
		zap.String("attempt_id", attempt.ID.String()),
		zap.Int("attempt_number", attempt.AttemptNumber),
	)
	return res.Status, nil
}
