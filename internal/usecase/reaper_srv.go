package usecase

import (
	"context"
	"time"

	"villa-booking/internal/data/repository"
	"villa-booking/pkg/utils"

	"go.uber.org/zap"
)

const sweepBatchSize = 100

// ReaperService is the background sweep that frees dates held by
// reservations whose hold lapsed without payment, and rolls finished stays
// to completed. Every write is conditional on the state it expects, so
// overlapping sweeps and sweeps racing a confirm converge on the same
// result.
type ReaperService interface {
	// Run blocks, sweeping on the configured interval until ctx is done.
	Run(ctx context.Context)

	// SweepOnce performs a single pass at the given instant and reports
	// how many reservations were expired and completed.
	SweepOnce(ctx context.Context, now time.Time) (expired, completed int)
}

type reaperService struct {
	repo     *repository.Repository
	interval time.Duration
	grace    time.Duration
	log      *zap.Logger
}

func NewReaperService(repo *repository.Repository, config *utils.Config, log *zap.Logger) ReaperService {
	return &reaperService{
		repo: repo,
		// A legitimate hold never lives longer than the hold window, so
		// held cells older than that with no pending owner are debris.
		grace:    config.Booking.HoldDuration(),
		interval: config.Booking.ReaperInterval(),
		log:      log.With(zap.String("service", "reaper")),
	}
}

func (s *reaperService) Run(ctx context.Context) {
	s.log.Info("Reaper started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Reaper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx, time.Now())
		}
	}
}

func (s *reaperService) SweepOnce(ctx context.Context, now time.Time) (int, int) {
	expired := s.sweepExpired(ctx, now)
	completed := s.sweepCompleted(ctx, now)
	s.sweepOrphans(ctx, now)

	if expired > 0 || completed > 0 {
		s.log.Info("Sweep finished",
			zap.Int("expired", expired),
			zap.Int("completed", completed),
		)
	}
	return expired, completed
}

// sweepExpired releases the dates first, then flips the reservation. If the
// process dies between the two, the next sweep finds the reservation still
// pending and releasing already-free dates is a no-op. Only held cells are
// released: a cell a racing payment already booked stays booked, and that
// payment then wins or loses on the reservation row's conditional writes
// alone. A payment landing in the gap loses to MarkExpired's condition or
// wins ConfirmPending's; never both.
func (s *reaperService) sweepExpired(ctx context.Context, now time.Time) int {
	batch, err := s.repo.Reservation.FindExpiredPending(ctx, now, sweepBatchSize)
	if err != nil {
		s.log.Error("Failed to list expired holds", zap.Error(err))
		return 0
	}

	count := 0
	for _, res := range batch {
		if err := s.repo.Ledger.ReleaseHeld(ctx, res.Range(), res.ID); err != nil {
			s.log.Error("Failed to release expired hold",
				zap.Error(err),
				zap.String("reservation_id", res.ID.String()),
			)
			continue
		}

		marked, err := s.repo.Reservation.MarkExpired(ctx, res.ID, now)
		if err != nil {
			s.log.Error("Failed to mark reservation expired",
				zap.Error(err),
				zap.String("reservation_id", res.ID.String()),
			)
			continue
		}
		if !marked {
			// Confirmed or swept by someone else since the listing.
			continue
		}

		// Expired is terminal, so nothing owned by this reservation can
		// legitimately stay claimed. This also reclaims cells a crashed
		// confirm booked before losing the reservation row's conditional
		// write.
		if err := s.repo.Ledger.Release(ctx, res.Range(), res.ID); err != nil {
			s.log.Error("Failed to release cells of expired reservation",
				zap.Error(err),
				zap.String("reservation_id", res.ID.String()),
			)
		}

		count++
		s.log.Info("Hold expired",
			zap.String("reservation_id", res.ID.String()),
			zap.String("guest_id", res.GuestID),
			zap.String("range", res.Range().String()),
		)
	}
	return count
}

// sweepOrphans frees aged held cells whose holder is no pending
// reservation. The two-phase modify claims dates under a throwaway marker;
// a crash before the repoint leaves those cells stranded with a holder no
// reservation row references, and this is the only path that gets them
// back.
func (s *reaperService) sweepOrphans(ctx context.Context, now time.Time) {
	released, err := s.repo.Ledger.ReleaseOrphans(ctx, now.Add(-s.grace))
	if err != nil {
		s.log.Error("Failed to sweep orphaned holds", zap.Error(err))
		return
	}
	if released > 0 {
		s.log.Warn("Orphaned held cells released", zap.Int64("cells", released))
	}
}

// sweepCompleted rolls confirmed stays past check-out to completed. Booked
// cells for past dates are left as they are; past availability is history,
// not inventory.
func (s *reaperService) sweepCompleted(ctx context.Context, now time.Time) int {
	batch, err := s.repo.Reservation.FindFinishedConfirmed(ctx, now, sweepBatchSize)
	if err != nil {
		s.log.Error("Failed to list finished stays", zap.Error(err))
		return 0
	}

	count := 0
	for _, res := range batch {
		marked, err := s.repo.Reservation.MarkCompleted(ctx, res.ID, now)
		if err != nil {
			s.log.Error("Failed to mark reservation completed",
				zap.Error(err),
				zap.String("reservation_id", res.ID.String()),
			)
			continue
		}
		if marked {
			count++
		}
	}
	return count
}
