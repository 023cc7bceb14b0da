package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"villa-booking/internal/data/entity"
	"villa-booking/internal/data/repository"
	"villa-booking/internal/dto/request"
	"villa-booking/internal/dto/response"
	"villa-booking/internal/gateway"
	"villa-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconcilerService merges the two channels that can report a payment
// outcome, the gateway webhook push and the client status poll, into one
// authoritative transition. The idempotency-key insert is the tie-break:
// whichever channel records an event key first is the only one that mutates
// state, the rest replay the recorded result.
type ReconcilerService interface {
	IngestEvent(ctx context.Context, req *request.PaymentEventRequest) (*response.ReconcileResult, error)

	// Poll serves a client status check. It pulls the gateway for an
	// in-flight attempt and funnels any settled outcome through the same
	// ingestion path as the webhook. Polling is advisory: a gateway
	// hiccup degrades to returning the current stored state.
	Poll(ctx context.Context, guestID, reservationID string) (*response.ReservationStatusResponse, error)
}

type reconcilerService struct {
	repo        *repository.Repository
	payment     PaymentService
	reservation ReservationService
	gw          gateway.CheckoutGateway
	log         *zap.Logger
}

func NewReconcilerService(
	repo *repository.Repository,
	payment PaymentService,
	reservation ReservationService,
	gw gateway.CheckoutGateway,
	log *zap.Logger,
) ReconcilerService {
	return &reconcilerService{
		repo:        repo,
		payment:     payment,
		reservation: reservation,
		gw:          gw,
		log:         log.With(zap.String("service", "reconciler")),
	}
}

func (s *reconcilerService) IngestEvent(ctx context.Context, req *request.PaymentEventRequest) (*response.ReconcileResult, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Payment event validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	attempt, err := s.repo.Attempt.FindBySessionID(ctx, req.ExternalSessionID)
	if err != nil {
		return nil, fmt.Errorf("find attempt for session %s: %w", req.ExternalSessionID, err)
	}
	if attempt == nil {
		return nil, fmt.Errorf("%w: no attempt for session %s", ErrNotFound, req.ExternalSessionID)
	}

	res, err := s.repo.Reservation.FindByID(ctx, attempt.ReservationID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrNotFound
	}

	// First insertion wins regardless of channel; every later arrival of
	// this key is a guaranteed no-op returning the recorded result.
	rec, inserted, err := s.repo.Idempotency.RecordIfNew(ctx, &entity.IdempotencyRecord{
		Key:             req.EventKey,
		ReservationID:   &res.ID,
		ResultingStatus: string(res.Status),
		Outcome:         req.Outcome,
		ProcessedAt:     time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		s.log.Info("Duplicate payment event ignored",
			zap.String("event_key", req.EventKey),
			zap.String("recorded_outcome", rec.Outcome),
		)
		return &response.ReconcileResult{
			EventKey:          req.EventKey,
			Duplicate:         true,
			Outcome:           rec.Outcome,
			ReservationStatus: entity.ReservationStatus(rec.ResultingStatus),
		}, nil
	}

	finalStatus, applyErr := s.apply(ctx, req, attempt, res)
	if finalStatus != "" {
		if err := s.repo.Idempotency.UpdateResult(ctx, req.EventKey, string(finalStatus), req.Outcome); err != nil {
			s.log.Warn("Failed to update idempotency result", zap.Error(err), zap.String("event_key", req.EventKey))
		}
	} else if applyErr != nil {
		// The transition did not land, so keeping the key would answer the
		// gateway's redelivery with a stale pre-apply status and a captured
		// payment could be lost. Hand the key back and let the redelivery
		// retry from scratch.
		if delErr := s.repo.Idempotency.Delete(ctx, req.EventKey); delErr != nil {
			s.log.Error("Failed to unclaim event key after apply failure",
				zap.Error(delErr),
				zap.String("event_key", req.EventKey),
			)
		}
	}
	if applyErr != nil {
		return nil, applyErr
	}

	return &response.ReconcileResult{
		EventKey:          req.EventKey,
		Outcome:           req.Outcome,
		ReservationStatus: finalStatus,
	}, nil
}

// apply performs the single authoritative transition for a freshly recorded
// event.
func (s *reconcilerService) apply(ctx context.Context, req *request.PaymentEventRequest, attempt *entity.PaymentAttempt, res *entity.Reservation) (entity.ReservationStatus, error) {
	// The gateway must echo the snapshot exactly.
	if req.AmountCents != attempt.AmountCents {
		s.recordConflict(ctx, attempt, req.EventKey, entity.ConflictReasonAmountMismatch,
			fmt.Sprintf("gateway reported %d cents, attempt snapshot is %d cents", req.AmountCents, attempt.AmountCents))
		return res.Status, &AmountMismatchError{
			ExpectedCents: attempt.AmountCents,
			ReportedCents: req.AmountCents,
		}
	}

	outcome := gateway.Outcome(req.Outcome)

	// Late success against a dead reservation: the money was captured but
	// the dates may be gone. Never re-confirm, never touch the ledger from
	// here; record the conflict for compensating action instead.
	if outcome == gateway.OutcomeSucceeded && res.Terminal() {
		s.recordConflict(ctx, attempt, req.EventKey, entity.ConflictReasonLateSuccess,
			fmt.Sprintf("captured payment for reservation in status %s", res.Status))

		// The attempt still reflects the captured charge. A store failure
		// here is transient and reported with no final status, so the
		// event key is handed back for redelivery.
		if settled, err := s.repo.Attempt.SettleStatus(ctx, attempt.ID, entity.AttemptStatusSucceeded); err != nil {
			return "", err
		} else if !settled {
			if _, err := s.repo.Attempt.OverrideFailed(ctx, attempt.ID); err != nil {
				return "", err
			}
		}

		return res.Status, &ReconciliationConflictError{
			Reason:            entity.ConflictReasonLateSuccess,
			ReservationStatus: res.Status,
		}
	}

	// A failure reported after the reservation confirmed contradicts a
	// prior success. Confirmed state never regresses; audit and move on.
	if outcome == gateway.OutcomeFailed && res.Status == entity.ReservationStatusConfirmed {
		s.recordConflict(ctx, attempt, req.EventKey, entity.ConflictReasonContradiction,
			"failure reported for an already confirmed reservation")
		return res.Status, nil
	}

	finalStatus, err := s.payment.ApplyOutcome(ctx, attempt, outcome)
	if err != nil {
		if errors.Is(err, ErrExpiredHold) {
			// Expired between the liveness read and the conditional
			// confirm; same conflict, discovered one step later.
			s.recordConflict(ctx, attempt, req.EventKey, entity.ConflictReasonLateSuccess,
				"hold expired while applying captured payment")
			return entity.ReservationStatusExpired, &ReconciliationConflictError{
				Reason:            entity.ConflictReasonLateSuccess,
				ReservationStatus: entity.ReservationStatusExpired,
			}
		}
		return "", err
	}

	return finalStatus, nil
}

func (s *reconcilerService) Poll(ctx context.Context, guestID, reservationID string) (*response.ReservationStatusResponse, error) {
	res, err := s.reservation.GetByID(ctx, guestID, reservationID)
	if err != nil {
		return nil, err
	}

	last, err := s.repo.Attempt.FindLastByReservationID(ctx, res.ID)
	if err != nil {
		return nil, err
	}

	if last != nil && !last.Settled() {
		s.pullOutcome(ctx, last)

		// Re-read: the pull may have settled the attempt and moved the
		// reservation.
		if res, err = s.repo.Reservation.FindByID(ctx, res.ID); err != nil {
			return nil, err
		}
		if res == nil {
			return nil, ErrNotFound
		}
	}

	attempts, err := s.repo.Attempt.FindByReservationID(ctx, res.ID)
	if err != nil {
		return nil, err
	}

	resp := &response.ReservationStatusResponse{
		ReservationResponse: response.ReservationToResponse(res),
		Attempts:            make([]response.PaymentAttemptResponse, len(attempts)),
	}
	for i, a := range attempts {
		resp.Attempts[i] = response.AttemptToResponse(a)
	}

	return resp, nil
}

// pullOutcome asks the gateway for the session's state and funnels a settled
// outcome through the same idempotent path the webhook uses. Errors are
// logged, not surfaced: the poll answer falls back to stored state.
func (s *reconcilerService) pullOutcome(ctx context.Context, attempt *entity.PaymentAttempt) {
	event, err := s.gw.GetStatus(ctx, attempt.ExternalSessionID)
	if err != nil {
		s.log.Warn("Status pull failed",
			zap.Error(err),
			zap.String("external_session_id", attempt.ExternalSessionID),
		)
		return
	}
	if event.Outcome != gateway.OutcomeSucceeded && event.Outcome != gateway.OutcomeFailed {
		return
	}

	eventKey := event.EventKey
	if eventKey == "" {
		// Pulls do not always carry a provider event id; derive a stable
		// one so push and pull of the same settlement deduplicate.
		eventKey = fmt.Sprintf("pull:%s:%s", attempt.ExternalSessionID, event.Outcome)
	}

	_, err = s.IngestEvent(ctx, &request.PaymentEventRequest{
		EventKey:          eventKey,
		ExternalSessionID: attempt.ExternalSessionID,
		Outcome:           string(event.Outcome),
		AmountCents:       event.AmountCents,
	})
	if err != nil {
		var conflictErr *ReconciliationConflictError
		if errors.As(err, &conflictErr) {
			// Recorded; the poll response reports the terminal state.
			return
		}
		s.log.Warn("Pulled outcome could not be applied",
			zap.Error(err),
			zap.String("external_session_id", attempt.ExternalSessionID),
		)
	}
}

func (s *reconcilerService) recordConflict(ctx context.Context, attempt *entity.PaymentAttempt, eventKey, reason, details string) {
	err := s.repo.Reconciliation.Create(ctx, &entity.ReconciliationConflict{
		BaseSimple: entity.BaseSimple{
			ID:        uuid.New(),
			CreatedAt: time.Now(),
		},
		ReservationID: attempt.ReservationID,
		AttemptID:     attempt.ID,
		EventKey:      eventKey,
		Reason:        reason,
		Details:       details,
	})
	if err != nil {
		// Money safety: if the audit write fails the error still surfaces
		// to the caller, and at-least-once delivery will bring the event
		// back.
		s.log.Error("Failed to persist reconciliation conflict",
			zap.Error(err),
			zap.String("event_key", eventKey),
			zap.String("reason", reason),
		)
	}
}
