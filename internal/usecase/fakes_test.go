package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"villa-booking/internal/data/entity"
	"villa-booking/internal/data/repository"
	"villa-booking/internal/gateway"
	"villa-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// In-memory repository fakes. Each one guards its state with a mutex and
// performs the same conditional checks the SQL repositories express in WHERE
// clauses, so the race-sensitive tests exercise the real decision points.

type ledgerCell struct {
	status  entity.CellStatus
	holder  uuid.UUID
	updated time.Time
}

type fakeLedger struct {
	mu      sync.Mutex
	cells   map[time.Time]*ledgerCell
	resRepo *fakeReservationRepo

	// Injected failures, consumed on first use.
	repointErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{cells: make(map[time.Time]*ledgerCell)}
}

func (f *fakeLedger) AcquireHold(ctx context.Context, r entity.DateRange, holder uuid.UUID) ([]time.Time, error) {
	return f.AcquireDates(ctx, r.Dates(), holder)
}

func (f *fakeLedger) AcquireDates(_ context.Context, dates []time.Time, holder uuid.UUID) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var conflicts []time.Time
	for _, d := range dates {
		if cell, ok := f.cells[d]; ok && cell.status != entity.CellStatusFree && cell.holder != holder {
			conflicts = append(conflicts, d)
		}
	}
	if len(conflicts) > 0 {
		return conflicts, nil
	}

	for _, d := range dates {
		f.cells[d] = &ledgerCell{status: entity.CellStatusHeld, holder: holder, updated: time.Now()}
	}
	return nil, nil
}

func (f *fakeLedger) Confirm(_ context.Context, r entity.DateRange, holder uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, d := range r.Dates() {
		cell, ok := f.cells[d]
		if !ok || cell.holder != holder || cell.status == entity.CellStatusFree {
			return repository.ErrNotHolder
		}
	}
	for _, d := range r.Dates() {
		f.cells[d].status = entity.CellStatusBooked
		f.cells[d].updated = time.Now()
	}
	return nil
}

func (f *fakeLedger) Release(ctx context.Context, r entity.DateRange, holder uuid.UUID) error {
	return f.ReleaseDates(ctx, r.Dates(), holder)
}

func (f *fakeLedger) ReleaseDates(_ context.Context, dates []time.Time, holder uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, d := range dates {
		if cell, ok := f.cells[d]; ok && cell.holder == holder {
			cell.status = entity.CellStatusFree
			cell.holder = uuid.Nil
			cell.updated = time.Now()
		}
	}
	return nil
}

func (f *fakeLedger) ReleaseHeld(_ context.Context, r entity.DateRange, holder uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, d := range r.Dates() {
		if cell, ok := f.cells[d]; ok && cell.holder == holder && cell.status == entity.CellStatusHeld {
			cell.status = entity.CellStatusFree
			cell.holder = uuid.Nil
			cell.updated = time.Now()
		}
	}
	return nil
}

func (f *fakeLedger) ReleaseOrphans(ctx context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var released int64
	for _, cell := range f.cells {
		if cell.status != entity.CellStatusHeld || cell.updated.After(olderThan) {
			continue
		}
		res, _ := f.resRepo.FindByID(ctx, cell.holder)
		if res != nil && res.Status == entity.ReservationStatusPending {
			continue
		}
		cell.status = entity.CellStatusFree
		cell.holder = uuid.Nil
		cell.updated = time.Now()
		released++
	}
	return released, nil
}

func (f *fakeLedger) Repoint(_ context.Context, dates []time.Time, from, to uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.repointErr != nil {
		err := f.repointErr
		f.repointErr = nil
		return err
	}

	for _, d := range dates {
		if cell, ok := f.cells[d]; ok && cell.holder == from {
			cell.holder = to
			cell.updated = time.Now()
		}
	}
	return nil
}

func (f *fakeLedger) OccupiedDates(_ context.Context, from, to time.Time) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var dates []time.Time
	for d, cell := range f.cells {
		if cell.status != entity.CellStatusFree && !d.Before(from) && d.Before(to) {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// cellStatus reports the stored state of one date, for assertions.
func (f *fakeLedger) cellStatus(d time.Time) (entity.CellStatus, uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cell, ok := f.cells[d]
	if !ok {
		return entity.CellStatusFree, uuid.Nil
	}
	return cell.status, cell.holder
}

// backdate rewinds every cell's last-touched time, to age holds past the
// orphan sweep's cutoff.
func (f *fakeLedger) backdate(to time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cell := range f.cells {
		cell.updated = to
	}
}

type fakeReservationRepo struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]*entity.Reservation

	// Injected failure for ConfirmPending, consumed on first use.
	confirmErr error
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{reservations: make(map[uuid.UUID]*entity.Reservation)}
}

func cloneReservation(res *entity.Reservation) *entity.Reservation {
	c := *res
	if res.HoldExpiresAt != nil {
		t := *res.HoldExpiresAt
		c.HoldExpiresAt = &t
	}
	return &c
}

func (f *fakeReservationRepo) Create(_ context.Context, res *entity.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reservations[res.ID] = cloneReservation(res)
	return nil
}

func (f *fakeReservationRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[id]
	if !ok {
		return nil, nil
	}
	return cloneReservation(res), nil
}

func (f *fakeReservationRepo) FindByGuestID(_ context.Context, guestID string, limit, offset int) ([]*entity.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var all []*entity.Reservation
	for _, res := range f.reservations {
		if res.GuestID == guestID {
			all = append(all, cloneReservation(res))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeReservationRepo) CountByGuestID(_ context.Context, guestID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for _, res := range f.reservations {
		if res.GuestID == guestID {
			n++
		}
	}
	return n, nil
}

func (f *fakeReservationRepo) Update(_ context.Context, res *entity.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reservations[res.ID]; !ok {
		return fmt.Errorf("reservation %s not found", res.ID)
	}
	f.reservations[res.ID] = cloneReservation(res)
	return nil
}

func (f *fakeReservationRepo) ConfirmPending(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.confirmErr != nil {
		err := f.confirmErr
		f.confirmErr = nil
		return false, err
	}

	now := time.Now()
	res, ok := f.reservations[id]
	if !ok || res.Status != entity.ReservationStatusPending {
		return false, nil
	}
	if res.HoldExpiresAt == nil || !res.HoldExpiresAt.After(now) {
		return false, nil
	}
	res.Status = entity.ReservationStatusConfirmed
	res.PaymentStatus = entity.PaymentStatusPaid
	res.HoldExpiresAt = nil
	res.UpdatedAt = now
	return true, nil
}

func (f *fakeReservationRepo) MarkExpired(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	res, ok := f.reservations[id]
	if !ok || res.Status != entity.ReservationStatusPending {
		return false, nil
	}
	if res.HoldExpiresAt == nil || res.HoldExpiresAt.After(now) {
		return false, nil
	}
	res.Status = entity.ReservationStatusExpired
	res.UpdatedAt = now
	return true, nil
}

func (f *fakeReservationRepo) MarkCompleted(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	res, ok := f.reservations[id]
	if !ok || res.Status != entity.ReservationStatusConfirmed || res.CheckOut.After(now) {
		return false, nil
	}
	res.Status = entity.ReservationStatusCompleted
	res.UpdatedAt = now
	return true, nil
}

func (f *fakeReservationRepo) FindExpiredPending(_ context.Context, now time.Time, limit int) ([]*entity.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var batch []*entity.Reservation
	for _, res := range f.reservations {
		if len(batch) >= limit {
			break
		}
		if res.Status == entity.ReservationStatusPending && res.HoldExpiresAt != nil && !res.HoldExpiresAt.After(now) {
			batch = append(batch, cloneReservation(res))
		}
	}
	return batch, nil
}

func (f *fakeReservationRepo) FindFinishedConfirmed(_ context.Context, now time.Time, limit int) ([]*entity.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var batch []*entity.Reservation
	for _, res := range f.reservations {
		if len(batch) >= limit {
			break
		}
		if res.Status == entity.ReservationStatusConfirmed && !res.CheckOut.After(now) {
			batch = append(batch, cloneReservation(res))
		}
	}
	return batch, nil
}

func (f *fakeReservationRepo) UpdatePaymentStatus(_ context.Context, id uuid.UUID, status entity.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	res, ok := f.reservations[id]
	if !ok {
		return fmt.Errorf("reservation %s not found", id)
	}
	res.PaymentStatus = status
	return nil
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*entity.PaymentAttempt
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{attempts: make(map[uuid.UUID]*entity.PaymentAttempt)}
}

func cloneAttempt(a *entity.PaymentAttempt) *entity.PaymentAttempt {
	c := *a
	return &c
}

func (f *fakeAttemptRepo) Create(_ context.Context, attempt *entity.PaymentAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[attempt.ID] = cloneAttempt(attempt)
	return nil
}

func (f *fakeAttemptRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.PaymentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok {
		return nil, nil
	}
	return cloneAttempt(a), nil
}

func (f *fakeAttemptRepo) FindBySessionID(_ context.Context, sessionID string) (*entity.PaymentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.ExternalSessionID == sessionID {
			return cloneAttempt(a), nil
		}
	}
	return nil, nil
}

func (f *fakeAttemptRepo) FindByReservationID(_ context.Context, reservationID uuid.UUID) ([]*entity.PaymentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var list []*entity.PaymentAttempt
	for _, a := range f.attempts {
		if a.ReservationID == reservationID {
			list = append(list, cloneAttempt(a))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].AttemptNumber < list[j].AttemptNumber })
	return list, nil
}

func (f *fakeAttemptRepo) FindLastByReservationID(ctx context.Context, reservationID uuid.UUID) (*entity.PaymentAttempt, error) {
	list, err := f.FindByReservationID(ctx, reservationID)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[len(list)-1], nil
}

func (f *fakeAttemptRepo) SettleStatus(_ context.Context, id uuid.UUID, status entity.AttemptStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.attempts[id]
	if !ok || a.Settled() {
		return false, nil
	}
	a.Status = status
	return true, nil
}

func (f *fakeAttemptRepo) OverrideFailed(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.attempts[id]
	if !ok || a.Status != entity.AttemptStatusFailed {
		return false, nil
	}
	a.Status = entity.AttemptStatusSucceeded
	return true, nil
}

type fakeIdempotencyRepo struct {
	mu      sync.Mutex
	records map[string]*entity.IdempotencyRecord
}

func newFakeIdempotencyRepo() *fakeIdempotencyRepo {
	return &fakeIdempotencyRepo{records: make(map[string]*entity.IdempotencyRecord)}
}

func cloneRecord(rec *entity.IdempotencyRecord) *entity.IdempotencyRecord {
	c := *rec
	if rec.ReservationID != nil {
		id := *rec.ReservationID
		c.ReservationID = &id
	}
	return &c
}

func (f *fakeIdempotencyRepo) RecordIfNew(_ context.Context, rec *entity.IdempotencyRecord) (*entity.IdempotencyRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.records[rec.Key]; ok {
		return cloneRecord(existing), false, nil
	}
	f.records[rec.Key] = cloneRecord(rec)
	return cloneRecord(rec), true, nil
}

func (f *fakeIdempotencyRepo) UpdateResult(_ context.Context, key, resultingStatus, outcome string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[key]
	if !ok {
		return fmt.Errorf("idempotency record %s not found", key)
	}
	rec.ResultingStatus = resultingStatus
	rec.Outcome = outcome
	return nil
}

func (f *fakeIdempotencyRepo) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, key)
	return nil
}

func (f *fakeIdempotencyRepo) Find(_ context.Context, key string) (*entity.IdempotencyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[key]
	if !ok {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

type fakeReconciliationRepo struct {
	mu        sync.Mutex
	conflicts []*entity.ReconciliationConflict
}

func newFakeReconciliationRepo() *fakeReconciliationRepo {
	return &fakeReconciliationRepo{}
}

func (f *fakeReconciliationRepo) Create(_ context.Context, conflict *entity.ReconciliationConflict) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *conflict
	f.conflicts = append(f.conflicts, &c)
	return nil
}

func (f *fakeReconciliationRepo) all() []*entity.ReconciliationConflict {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entity.ReconciliationConflict, len(f.conflicts))
	copy(out, f.conflicts)
	return out
}

// fakeGateway hands out sequential session IDs and serves scripted status
// pulls.
type fakeGateway struct {
	mu        sync.Mutex
	counter   int
	statuses  map[string]*gateway.PaymentEvent
	createErr error
	pullErr   error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: make(map[string]*gateway.PaymentEvent)}
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, _ uuid.UUID, _ int64, _ string) (*gateway.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, f.createErr
	}
	f.counter++
	id := fmt.Sprintf("cs_test_%03d", f.counter)
	return &gateway.CheckoutSession{
		ExternalSessionID: id,
		CheckoutURL:       "https://pay.example.com/" + id,
	}, nil
}

func (f *fakeGateway) GetStatus(_ context.Context, externalSessionID string) (*gateway.PaymentEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pullErr != nil {
		return nil, f.pullErr
	}
	if event, ok := f.statuses[externalSessionID]; ok {
		e := *event
		return &e, nil
	}
	return &gateway.PaymentEvent{
		ExternalSessionID: externalSessionID,
		Outcome:           gateway.OutcomePending,
	}, nil
}

func (f *fakeGateway) setStatus(sessionID string, event *gateway.PaymentEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event.ExternalSessionID = sessionID
	f.statuses[sessionID] = event
}

// fixture wires the full service stack over in-memory fakes.
type fixture struct {
	repo    *repository.Repository
	ledger  *fakeLedger
	resRepo *fakeReservationRepo
	attRepo *fakeAttemptRepo
	idemp   *fakeIdempotencyRepo
	recon   *fakeReconciliationRepo
	gw      *fakeGateway
	svc     *Service
	config  *utils.Config
}

func newFixture() *fixture {
	f := &fixture{
		ledger:  newFakeLedger(),
		resRepo: newFakeReservationRepo(),
		attRepo: newFakeAttemptRepo(),
		idemp:   newFakeIdempotencyRepo(),
		recon:   newFakeReconciliationRepo(),
		gw:      newFakeGateway(),
	}
	f.ledger.resRepo = f.resRepo
	f.repo = &repository.Repository{
		Ledger:         f.ledger,
		Reservation:    f.resRepo,
		Attempt:        f.attRepo,
		Idempotency:    f.idemp,
		Reconciliation: f.recon,
	}
	f.config = &utils.Config{
		Booking: utils.BookingConfig{
			HoldMinutes:           30,
			MaxPaymentAttempts:    3,
			ReaperIntervalSeconds: 60,
			NightlyRateCents:      22000,
			CleaningFeeCents:      2500,
			Currency:              "usd",
			SuggestionWindowDays:  14,
			PollMinIntervalSecs:   2,
		},
	}
	f.svc = NewService(f.repo, f.gw, f.config, zap.NewNop())
	return f
}

func date(s string) time.Time {
	t, err := time.Parse(entity.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func mustRange(in, out string) entity.DateRange {
	r, err := entity.NewDateRange(date(in), date(out))
	if err != nil {
		panic(err)
	}
	return r
}
