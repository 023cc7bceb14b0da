package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"villa-booking/internal/data/entity"
	"villa-booking/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotHolder is returned when a confirm touches cells held by someone else.
var ErrNotHolder = errors.New("reservation is not the holder of the date range")

// LedgerRepository owns the per-date availability cells. Every mutation is a
// conditional write executed inside a single database transaction, so
// acquisition across a range is all-or-nothing and safe across multiple
// engine instances without any process-local locking.
type LedgerRepository interface {
	// AcquireHold claims every date in the range for the holder. On any
	// conflict nothing is claimed and the conflicting dates are returned.
	AcquireHold(ctx context.Context, r entity.DateRange, holder uuid.UUID) ([]time.Time, error)

	// AcquireDates is AcquireHold over an explicit date set. The two-phase
	// modify uses it to claim only the dates the reservation does not
	// already hold.
	AcquireDates(ctx context.Context, dates []time.Time, holder uuid.UUID) ([]time.Time, error)

	// Confirm transitions held cells to booked for the matching holder.
	// Confirming an already-booked range held by the same reservation is a
	// no-op success.
	Confirm(ctx context.Context, r entity.DateRange, holder uuid.UUID) error

	// Release frees held or booked cells whose holder matches. Releasing an
	// already-free range is a no-op.
	Release(ctx context.Context, r entity.DateRange, holder uuid.UUID) error

	// ReleaseDates is Release over an explicit date set.
	ReleaseDates(ctx context.Context, dates []time.Time, holder uuid.UUID) error

	// ReleaseHeld frees only held cells whose holder matches, leaving booked
	// cells alone. The expiry sweep uses it so a cell booked by a payment
	// that just confirmed is never freed out from under the reservation.
	ReleaseHeld(ctx context.Context, r entity.DateRange, holder uuid.UUID) error

	// ReleaseOrphans frees held cells not touched since olderThan whose
	// holder is no pending reservation. A crashed two-phase modify can leave
	// cells behind under a marker that no reservation row references; this
	// is the sweep that reclaims them. Returns how many cells were freed.
	ReleaseOrphans(ctx context.Context, olderThan time.Time) (int64, error)

	// Repoint atomically moves ownership of the given dates from one holder
	// to another, keeping their status. Used by the two-phase modify.
	Repoint(ctx context.Context, dates []time.Time, from, to uuid.UUID) error

	// OccupiedDates returns held/booked dates in [from, to). Snapshot read,
	// takes no locks.
	OccupiedDates(ctx context.Context, from, to time.Time) ([]time.Time, error)
}

type ledgerRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewLedgerRepository(db database.PgxIface, log *zap.Logger) LedgerRepository {
	return &ledgerRepository{
		db:  db,
		log: log.With(zap.String("repository", "ledger")),
	}
}

func (r *ledgerRepository) AcquireHold(ctx context.Context, rng entity.DateRange, holder uuid.UUID) ([]time.Time, error) {
	return r.AcquireDates(ctx, rng.Dates(), holder)
}

func (r *ledgerRepository) AcquireDates(ctx context.Context, dates []time.Time, holder uuid.UUID) ([]time.Time, error) {
	if len(dates) == 0 {
		return nil, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin acquire hold tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Seed missing cells as free so the conditional update below sees every
	// date in the range. The primary key on date makes concurrent seeding
	// race-free.
	seed := `
		INSERT INTO date_cells (date, status, holder_reservation_id, updated_at)
		SELECT d, 'free', NULL, NOW() FROM unnest($1::date[]) AS d
		ON CONFLICT (date) DO NOTHING
	`
	if _, err := tx.Exec(ctx, seed, dates); err != nil {
		r.log.Error("Failed to seed date cells", zap.Error(err), zap.String("span", spanString(dates)))
		return nil, fmt.Errorf("seed date cells %s: %w", spanString(dates), err)
	}

	// Conditional multi-row write: only free cells flip to held. Anything
	// short of the full range means a conflict, and the rollback undoes the
	// partial claim in one shot.
	claim := `
		UPDATE date_cells
		SET status = 'held', holder_reservation_id = $2, updated_at = NOW()
		WHERE date = ANY($1::date[]) AND status = 'free'
	`
	tag, err := tx.Exec(ctx, claim, dates, holder)
	if err != nil {
		r.log.Error("Failed to claim date cells",
			zap.Error(err),
			zap.String("span", spanString(dates)),
			zap.String("holder", holder.String()),
		)
		return nil, fmt.Errorf("claim date cells %s: %w", spanString(dates), err)
	}

	if int(tag.RowsAffected()) != len(dates) {
		conflicts, err := r.conflictingDates(ctx, tx, dates, holder)
		if err != nil {
			return nil, err
		}
		// Rollback via defer releases the partially claimed cells.
		return conflicts, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit acquire hold %s: %w", spanString(dates), err)
	}

	r.log.Info("Hold acquired",
		zap.String("span", spanString(dates)),
		zap.String("holder", holder.String()),
		zap.Int("nights", len(dates)),
	)
	return nil, nil
}

// conflictingDates lists range dates not claimable by the holder, for
// alternative-date suggestions.
func (r *ledgerRepository) conflictingDates(ctx context.Context, q database.Querier, dates []time.Time, holder uuid.UUID) ([]time.Time, error) {
	query := `
		SELECT date FROM date_cells
		WHERE date = ANY($1::date[])
		  AND status <> 'free'
		  AND (holder_reservation_id IS NULL OR holder_reservation_id <> $2)
		ORDER BY date
	`
	rows, err := q.Query(ctx, query, dates, holder)
	if err != nil {
		r.log.Error("Failed to list conflicting dates", zap.Error(err))
		return nil, fmt.Errorf("list conflicting dates: %w", err)
	}
	defer rows.Close()

	var conflicts []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan conflicting date: %w", err)
		}
		conflicts = append(conflicts, entity.Midnight(d))
	}
	return conflicts, nil
}

func (r *ledgerRepository) Confirm(ctx context.Context, rng entity.DateRange, holder uuid.UUID) error {
	dates := rng.Dates()

	query := `
		UPDATE date_cells
		SET status = 'booked', updated_at = NOW()
		WHERE date = ANY($1::date[])
		  AND holder_reservation_id = $2
		  AND status IN ('held', 'booked')
	`
	tag, err := r.db.Exec(ctx, query, dates, holder)
	if err != nil {
		r.log.Error("Failed to confirm date cells",
			zap.Error(err),
			zap.String("range", rng.String()),
			zap.String("holder", holder.String()),
		)
		return fmt.Errorf("confirm date cells %s: %w", rng.String(), err)
	}

	if int(tag.RowsAffected()) != len(dates) {
		return fmt.Errorf("confirm %s for %s: %w", rng.String(), holder.String(), ErrNotHolder)
	}

	return nil
}

func (r *ledgerRepository) Release(ctx context.Context, rng entity.DateRange, holder uuid.UUID) error {
	return r.ReleaseDates(ctx, rng.Dates(), holder)
}

func (r *ledgerRepository) ReleaseDates(ctx context.Context, dates []time.Time, holder uuid.UUID) error {
	if len(dates) == 0 {
		return nil
	}

	query := `
		UPDATE date_cells
		SET status = 'free', holder_reservation_id = NULL, updated_at = NOW()
		WHERE date = ANY($1::date[]) AND holder_reservation_id = $2
	`
	_, err := r.db.Exec(ctx, query, dates, holder)
	if err != nil {
		r.log.Error("Failed to release date cells",
			zap.Error(err),
			zap.String("span", spanString(dates)),
			zap.String("holder", holder.String()),
		)
		return fmt.Errorf("release date cells %s: %w", spanString(dates), err)
	}

	return nil
}

func (r *ledgerRepository) ReleaseHeld(ctx context.Context, rng entity.DateRange, holder uuid.UUID) error {
	query := `
		UPDATE date_cells
		SET status = 'free', holder_reservation_id = NULL, updated_at = NOW()
		WHERE date = ANY($1::date[]) AND holder_reservation_id = $2 AND status = 'held'
	`
	_, err := r.db.Exec(ctx, query, rng.Dates(), holder)
	if err != nil {
		r.log.Error("Failed to release held date cells",
			zap.Error(err),
			zap.String("range", rng.String()),
			zap.String("holder", holder.String()),
		)
		return fmt.Errorf("release held date cells %s: %w", rng.String(), err)
	}

	return nil
}

func (r *ledgerRepository) ReleaseOrphans(ctx context.Context, olderThan time.Time) (int64, error) {
	// Held cells legitimately belong only to pending reservations; anything
	// else past the age cutoff is debris from an interrupted request.
	query := `
		UPDATE date_cells
		SET status = 'free', holder_reservation_id = NULL, updated_at = NOW()
		WHERE status = 'held'
		  AND updated_at <= $1
		  AND NOT EXISTS (
			SELECT 1 FROM reservations res
			WHERE res.id = date_cells.holder_reservation_id AND res.status = 'pending'
		  )
	`
	tag, err := r.db.Exec(ctx, query, olderThan)
	if err != nil {
		r.log.Error("Failed to release orphaned date cells", zap.Error(err))
		return 0, fmt.Errorf("release orphaned date cells: %w", err)
	}

	return tag.RowsAffected(), nil
}

// spanString renders a date set compactly for logs and errors.
func spanString(dates []time.Time) string {
	if len(dates) == 0 {
		return "[]"
	}
	return fmt.Sprintf("[%s..%s]",
		dates[0].Format(entity.DateLayout),
		dates[len(dates)-1].Format(entity.DateLayout))
}

func (r *ledgerRepository) Repoint(ctx context.Context, dates []time.Time, from, to uuid.UUID) error {
	if len(dates) == 0 {
		return nil
	}

	query := `
		UPDATE date_cells
		SET holder_reservation_id = $3, updated_at = NOW()
		WHERE date = ANY($1::date[]) AND holder_reservation_id = $2
	`
	tag, err := r.db.Exec(ctx, query, dates, from, to)
	if err != nil {
		r.log.Error("Failed to repoint date cells",
			zap.Error(err),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		return fmt.Errorf("repoint date cells: %w", err)
	}

	if int(tag.RowsAffected()) != len(dates) {
		return fmt.Errorf("repoint %d dates from %s: %w", len(dates), from.String(), ErrNotHolder)
	}

	return nil
}

func (r *ledgerRepository) OccupiedDates(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	query := `
		SELECT date FROM date_cells
		WHERE date >= $1 AND date < $2 AND status <> 'free'
		ORDER BY date
	`
	rows, err := r.db.Query(ctx, query, entity.Midnight(from), entity.Midnight(to))
	if err != nil {
		r.log.Error("Failed to list occupied dates", zap.Error(err))
		return nil, fmt.Errorf("list occupied dates: %w", err)
	}
	defer rows.Close()

	var occupied []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan occupied date: %w", err)
		}
		occupied = append(occupied, entity.Midnight(d))
	}
	return occupied, nil
}
