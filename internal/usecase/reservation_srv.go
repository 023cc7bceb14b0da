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
	"villa-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxSuggestions = 3

type ReservationService interface {
	Create(ctx context.Context, guestID string, req *request.CreateReservationRequest) (*response.ReservationResponse, error)
	Modify(ctx context.Context, guestID, reservationID string, req *request.ModifyReservationRequest) (*response.ReservationResponse, error)
	Cancel(ctx context.Context, guestID, reservationID, reason string) error
	GetByID(ctx context.Context, guestID, reservationID string) (*entity.Reservation, error)
	ListByGuest(ctx context.Context, guestID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.ReservationResponse], error)

	// ConfirmFromPayment flips pending to confirmed once a payment attempt
	// succeeds. Idempotent: confirming an already-confirmed reservation is
	// a no-op success.
	ConfirmFromPayment(ctx context.Context, reservationID, attemptID uuid.UUID) error
}

type reservationService struct {
	repo    *repository.Repository
	booking utils.BookingConfig
	pricing PricingFunc
	refund  RefundPolicyFunc
	log     *zap.Logger
}

func NewReservationService(
	repo *repository.Repository,
	booking utils.BookingConfig,
	pricing PricingFunc,
	refund RefundPolicyFunc,
	log *zap.Logger,
) ReservationService {
	return &reservationService{
		repo:    repo,
		booking: booking,
		pricing: pricing,
		refund:  refund,
		log:     log.With(zap.String("service", "reservation")),
	}
}

func (s *reservationService) Create(ctx context.Context, guestID string, req *request.CreateReservationRequest) (*response.ReservationResponse, error) {
	// Validate request
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create reservation validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	rng, err := parseRange(req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, err
	}

	// Client command retry? Replay the recorded outcome instead of
	// re-acquiring dates.
	cmdKey, hasKey := commandKey(ctx, "create", guestID)
	if hasKey {
		if res, err := s.replay(ctx, cmdKey); err != nil || res != nil {
			if res != nil {
				resp := response.ReservationToResponse(res)
				return &resp, err
			}
			return nil, err
		}
	}

	// Snapshot the price once, in integer cents. Never recomputed from live
	// rates after this point.
	totalCents := s.pricing(rng)

	now := time.Now()
	holdExpiry := now.Add(s.booking.HoldDuration())
	res := &entity.Reservation{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		GuestID:          guestID,
		CheckIn:          rng.CheckIn,
		CheckOut:         rng.CheckOut,
		GuestCount:       req.GuestCount,
		Status:           entity.ReservationStatusPending,
		PaymentStatus:    entity.PaymentStatusNone,
		TotalAmountCents: totalCents,
		HoldExpiresAt:    &holdExpiry,
	}

	// The ledger is the only arbiter of availability: the hold either
	// covers the whole range or nothing.
	conflicts, err := s.repo.Ledger.AcquireHold(ctx, rng, res.ID)
	if err != nil {
		return nil, fmt.Errorf("acquire hold %s: %w", rng.String(), err)
	}
	if len(conflicts) > 0 {
		suggestions := s.suggestAlternatives(ctx, rng)
		s.log.Info("Reservation conflict",
			zap.String("guest_id", guestID),
			zap.String("range", rng.String()),
			zap.Int("conflicting_dates", len(conflicts)),
			zap.Int("suggestions", len(suggestions)),
		)
		return nil, &ConflictError{ConflictingDates: conflicts, Suggestions: suggestions}
	}

	if err := s.repo.Reservation.Create(ctx, res); err != nil {
		// Compensate: never leave an orphaned hold behind.
		if relErr := s.repo.Ledger.Release(ctx, rng, res.ID); relErr != nil {
			s.log.Error("Failed to release hold after create failure",
				zap.Error(relErr),
				zap.String("reservation_id", res.ID.String()),
			)
		}
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	if hasKey {
		s.record(ctx, cmdKey, res.ID, string(res.Status), "created")
	}

	s.log.Info("Reservation created",
		zap.String("reservation_id", res.ID.String()),
		zap.String("guest_id", guestID),
		zap.String("range", rng.String()),
		zap.Int("guest_count", req.GuestCount),
		zap.Int64("total_amount_cents", totalCents),
		zap.Time("hold_expires_at", holdExpiry),
	)

	resp := response.ReservationToResponse(res)
	return &resp, nil
}

func (s *reservationService) Modify(ctx context.Context, guestID, reservationID string, req *request.ModifyReservationRequest) (*response.ReservationResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Modify reservation validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	newRng, err := parseRange(req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, err
	}

	res, err := s.GetByID(ctx, guestID, reservationID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if !res.Live(now) {
		if res.Status == entity.ReservationStatusPending {
			return nil, ErrExpiredHold
		}
		return nil, ErrNotModifiable
	}

	oldRng := res.Range()
	if oldRng == newRng {
		resp := response.ReservationToResponse(res)
		return &resp, nil
	}

	// Repricing only applies while no money is in flight. A confirmed stay
	// may still move to a range of equal length at an unchanged amount.
	repriceable := res.PaymentStatus == entity.PaymentStatusNone || res.PaymentStatus == entity.PaymentStatusFailed
	if !repriceable && newRng.Nights() != oldRng.Nights() {
		return nil, fmt.Errorf("%w: paid reservations can only move to a stay of equal length", ErrNotModifiable)
	}

	// Phase one: claim the new dates under a throwaway marker so the
	// original hold is never at risk. Dates the reservation already holds
	// are carried over, which lets overlapping moves work.
	marker := uuid.New()
	fresh := datesOutside(newRng, oldRng)

	conflicts, err := s.repo.Ledger.AcquireDates(ctx, fresh, marker)
	if err != nil {
		return nil, fmt.Errorf("acquire new range %s: %w", newRng.String(), err)
	}
	if len(conflicts) > 0 {
		suggestions := s.suggestAlternatives(ctx, newRng)
		return nil, &ConflictError{ConflictingDates: conflicts, Suggestions: suggestions}
	}

	// Phase two: the new dates are secured, drop what the move leaves
	// behind and repoint the marker cells at the reservation. Every
	// failure from here walks the ledger back so no cell stays claimed
	// under the throwaway marker.
	stale := datesOutside(oldRng, newRng)
	if err := s.repo.Ledger.ReleaseDates(ctx, stale, res.ID); err != nil {
		s.undoMove(ctx, res, oldRng, fresh, nil, marker)
		return nil, fmt.Errorf("release old range %s: %w", oldRng.String(), err)
	}
	if err := s.repo.Ledger.Repoint(ctx, fresh, marker, res.ID); err != nil {
		s.undoMove(ctx, res, oldRng, fresh, stale, marker)
		return nil, fmt.Errorf("repoint new range %s: %w", newRng.String(), err)
	}
	if res.Status == entity.ReservationStatusConfirmed {
		if err := s.repo.Ledger.Confirm(ctx, newRng, res.ID); err != nil {
			s.undoMove(ctx, res, oldRng, fresh, stale, res.ID)
			return nil, fmt.Errorf("book moved range %s: %w", newRng.String(), err)
		}
	}

	res.CheckIn = newRng.CheckIn
	res.CheckOut = newRng.CheckOut
	if repriceable {
		res.TotalAmountCents = s.pricing(newRng)
	}
	res.UpdatedAt = now
	if err := s.repo.Reservation.Update(ctx, res); err != nil {
		s.undoMove(ctx, res, oldRng, fresh, stale, res.ID)
		return nil, fmt.Errorf("update reservation dates: %w", err)
	}

	s.log.Info("Reservation moved",
		zap.String("reservation_id", res.ID.String()),
		zap.String("from", oldRng.String()),
		zap.String("to", newRng.String()),
	)

	resp := response.ReservationToResponse(res)
	return &resp, nil
}

func (s *reservationService) Cancel(ctx context.Context, guestID, reservationID, reason string) error {
	res, err := s.GetByID(ctx, guestID, reservationID)
	if err != nil {
		return err
	}

	if res.Status == entity.ReservationStatusCancelled {
		return nil
	}
	if res.Status != entity.ReservationStatusPending && res.Status != entity.ReservationStatusConfirmed {
		return fmt.Errorf("%w: status is %s", ErrNotCancellable, res.Status)
	}

	now := time.Now()
	if res.Status == entity.ReservationStatusConfirmed && res.PaymentStatus == entity.PaymentStatusPaid {
		res.RefundedAmountCents = s.refund(res, now)
		res.PaymentStatus = entity.PaymentStatusRefunded
	}

	if err := s.repo.Ledger.Release(ctx, res.Range(), res.ID); err != nil {
		return fmt.Errorf("release cancelled range: %w", err)
	}

	res.Status = entity.ReservationStatusCancelled
	res.HoldExpiresAt = nil
	res.UpdatedAt = now
	if err := s.repo.Reservation.Update(ctx, res); err != nil {
		return fmt.Errorf("cancel reservation %s: %w", reservationID, err)
	}

	s.log.Info("Reservation cancelled",
		zap.String("reservation_id", reservationID),
		zap.String("guest_id", guestID),
		zap.String("reason", reason),
		zap.Int64("refunded_amount_cents", res.RefundedAmountCents),
	)

	return nil
}

func (s *reservationService) GetByID(ctx context.Context, guestID, reservationID string) (*entity.Reservation, error) {
	id, err := uuid.Parse(reservationID)
	if err != nil {
		return nil, fmt.Errorf("invalid reservation ID format %s: %w", reservationID, err)
	}

	res, err := s.repo.Reservation.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find reservation %s: %w", reservationID, err)
	}
	if res == nil {
		return nil, ErrNotFound
	}
	if res.GuestID != guestID {
		s.log.Warn("Guest mismatch on reservation access",
			zap.String("reservation_id", reservationID),
			zap.String("guest_id", guestID),
		)
		return nil, ErrUnauthorized
	}

	return res, nil
}

func (s *reservationService) ListByGuest(ctx context.Context, guestID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.ReservationResponse], error) {
	reservations, err := s.repo.Reservation.FindByGuestID(ctx, guestID, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("list reservations for guest %s: %w", guestID, err)
	}

	total, err := s.repo.Reservation.CountByGuestID(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("count reservations for guest %s: %w", guestID, err)
	}

	items := make([]response.ReservationResponse, len(reservations))
	for i, res := range reservations {
		items[i] = response.ReservationToResponse(res)
	}

	return response.NewPaginatedResponse(items, req.Page, req.PerPage, total), nil
}

func (s *reservationService) ConfirmFromPayment(ctx context.Context, reservationID, attemptID uuid.UUID) error {
	res, err := s.repo.Reservation.FindByID(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("find reservation %s: %w", reservationID.String(), err)
	}
	if res == nil {
		return ErrNotFound
	}

	if res.Status == entity.ReservationStatusConfirmed {
		return nil
	}

	if !res.Live(time.Now()) {
		return ErrExpiredHold
	}

	if err := s.repo.Ledger.Confirm(ctx, res.Range(), res.ID); err != nil {
		if errors.Is(err, repository.ErrNotHolder) {
			// The cells are no longer ours: the expiry sweep released them
			// or another channel already moved the reservation.
			return s.lostConfirm(ctx, res)
		}
		return fmt.Errorf("book confirmed range: %w", err)
	}

	confirmed, err := s.repo.Reservation.ConfirmPending(ctx, res.ID)
	if err != nil {
		return err
	}
	if !confirmed {
		return s.lostConfirm(ctx, res)
	}

	s.log.Info("Reservation confirmed",
		zap.String("reservation_id", reservationID.String()),
		zap.String("attempt_id", attemptID.String()),
	)

	return nil
}

// lostConfirm resolves a confirm whose conditional write matched nothing.
// Another channel confirming first counts as success. Anything else means
// the hold lapsed mid-confirm, so any cells this path booked are handed
// back before reporting the expiry; a confirmed reservation must never
// exist without its cells, and cells must never stay booked for a
// reservation that will not confirm.
func (s *reservationService) lostConfirm(ctx context.Context, res *entity.Reservation) error {
	current, err := s.repo.Reservation.FindByID(ctx, res.ID)
	if err != nil {
		return err
	}
	if current != nil && current.Status == entity.ReservationStatusConfirmed {
		return nil
	}

	if err := s.repo.Ledger.Release(ctx, res.Range(), res.ID); err != nil {
		s.log.Error("Failed to release cells after losing confirm race",
			zap.Error(err),
			zap.String("reservation_id", res.ID.String()),
		)
	}
	return ErrExpiredHold
}

// undoMove walks the ledger back toward the pre-move state after a
// phase-two failure: the freshly claimed dates are released from whichever
// holder owns them, and dates the move already gave up are re-claimed for
// the reservation. Best effort; each step logs on failure and the orphan
// sweep reclaims anything still stranded under the marker.
func (s *reservationService) undoMove(ctx context.Context, res *entity.Reservation, oldRng entity.DateRange, fresh, lost []time.Time, holder uuid.UUID) {
	if err := s.repo.Ledger.ReleaseDates(ctx, fresh, holder); err != nil {
		s.log.Error("Failed to release claimed dates while rolling back a move",
			zap.Error(err),
			zap.String("reservation_id", res.ID.String()),
		)
	}

	if len(lost) == 0 {
		return
	}
	conflicts, err := s.repo.Ledger.AcquireDates(ctx, lost, res.ID)
	if err != nil || len(conflicts) > 0 {
		s.log.Error("Failed to reclaim original dates while rolling back a move",
			zap.Error(err),
			zap.String("reservation_id", res.ID.String()),
			zap.Int("conflicting_dates", len(conflicts)),
		)
		return
	}
	if res.Status == entity.ReservationStatusConfirmed {
		if err := s.repo.Ledger.Confirm(ctx, oldRng, res.ID); err != nil {
			s.log.Error("Failed to re-book original dates while rolling back a move",
				zap.Error(err),
				zap.String("reservation_id", res.ID.String()),
			)
		}
	}
}

// suggestAlternatives finds the nearest free ranges of equal length around
// the requested stay. Best effort: a lookup failure just means no
// suggestions.
func (s *reservationService) suggestAlternatives(ctx context.Context, rng entity.DateRange) []entity.DateRange {
	window := s.booking.SuggestionWindowDays
	from := rng.CheckIn.AddDate(0, 0, -window)
	to := rng.CheckOut.AddDate(0, 0, window)

	occupied, err := s.repo.Ledger.OccupiedDates(ctx, from, to)
	if err != nil {
		s.log.Warn("Failed to load occupancy for suggestions", zap.Error(err))
		return nil
	}

	taken := make(map[time.Time]bool, len(occupied))
	for _, d := range occupied {
		taken[d] = true
	}

	today := entity.Midnight(time.Now())
	free := func(cand entity.DateRange) bool {
		if cand.CheckIn.Before(today) {
			return false
		}
		for _, d := range cand.Dates() {
			if taken[d] {
				return false
			}
		}
		return true
	}

	var suggestions []entity.DateRange
	for off := 1; off <= window && len(suggestions) < maxSuggestions; off++ {
		for _, cand := range []entity.DateRange{rng.Shift(off), rng.Shift(-off)} {
			if free(cand) {
				suggestions = append(suggestions, cand)
				if len(suggestions) == maxSuggestions {
					break
				}
			}
		}
	}

	return suggestions
}

// replay returns the reservation a previously processed command produced.
func (s *reservationService) replay(ctx context.Context, cmdKey string) (*entity.Reservation, error) {
	rec, err := s.repo.Idempotency.Find(ctx, cmdKey)
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.ReservationID == nil {
		return nil, fmt.Errorf("request %s already processed without a reservation", cmdKey)
	}

	res, err := s.repo.Reservation.FindByID(ctx, *rec.ReservationID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("request %s was processed but reservation is gone", cmdKey)
	}

	s.log.Info("Replayed command result",
		zap.String("key", cmdKey),
		zap.String("reservation_id", res.ID.String()),
	)
	return res, nil
}

func (s *reservationService) record(ctx context.Context, cmdKey string, reservationID uuid.UUID, status, outcome string) {
	_, _, err := s.repo.Idempotency.RecordIfNew(ctx, &entity.IdempotencyRecord{
		Key:             cmdKey,
		ReservationID:   &reservationID,
		ResultingStatus: status,
		Outcome:         outcome,
		ProcessedAt:     time.Now(),
	})
	if err != nil {
		// Dedup bookkeeping must not fail the command itself.
		s.log.Warn("Failed to record command idempotency key",
			zap.Error(err),
			zap.String("key", cmdKey),
		)
	}
}

// commandKey namespaces a caller-supplied idempotency key per guest and
// operation so keys cannot collide across guests.
func commandKey(ctx context.Context, op, guestID string) (string, bool) {
	key, ok := utils.GetRequestKeyFromContext(ctx)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("cmd:%s:%s:%s", op, guestID, key), true
}

func parseRange(checkIn, checkOut string) (entity.DateRange, error) {
	in, err := time.Parse(entity.DateLayout, checkIn)
	if err != nil {
		return entity.DateRange{}, fmt.Errorf("invalid check-in date %s: %w", checkIn, err)
	}
	out, err := time.Parse(entity.DateLayout, checkOut)
	if err != nil {
		return entity.DateRange{}, fmt.Errorf("invalid check-out date %s: %w", checkOut, err)
	}
	return entity.NewDateRange(in, out)
}

// datesOutside returns the dates of r not covered by other.
func datesOutside(r, other entity.DateRange) []time.Time {
	var dates []time.Time
	for _, d := range r.Dates() {
		if !other.Contains(d) {
			dates = append(dates, d)
		}
	}
	return dates
}
