package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"villa-booking/internal/data/entity"
	"villa-booking/internal/dto/request"
	"villa-booking/internal/gateway"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAttempt(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.svc.Reservation.Create(ctx, "guest-1", createReq(20, 2, 2))
	require.NoError(t, err)

	attempt, err := f.svc.Payment.CreateAttempt(ctx, "guest-1", created.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, attempt.AttemptNumber)
	assert.Equal(t, entity.AttemptStatusCreated, attempt.Status)
	assert.NotEmpty(t, attempt.ExternalSessionID)
	assert.NotEmpty(t, attempt.CheckoutURL)
	// The charge is the creation-time snapshot.
	assert.Equal(t, created.TotalAmountCents, attempt.AmountCents)
	// An attempt never outlives the hold it pays for.
	require.NotNil(t, created.HoldExpiresAt)
	assert.True(t, !attempt.AttemptExpiresAt.After(*created.HoldExpiresAt))

	res, err := f.resRepo.FindByID(ctx, uuid.MustParse(created.ID))
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusPending, res.PaymentStatus)
}

func TestCreateAttempt_ReusesOpenAttempt(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.svc.Reservation.Create(ctx, "guest-1", createReq(20, 2, 2))
	require.NoError(t, err)

	first, err := f.svc.Payment.CreateAttempt(ctx, "guest-1", created.ID)
	require.NoError(t, err)

	// Retrying while the attempt is still open hands back the same session
	// instead of burning a slot.
	second, err := f.svc.Payment.CreateAttempt(ctx, "guest-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ExternalSessionID, second.ExternalSessionID)
	assert.Equal(t, 1, second.AttemptNumber)
}

func TestCreateAttempt_CapAfterThreeFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.svc.Reservation.Create(ctx, "guest-1", createReq(20, 2, 2))
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		attempt, err := f.svc.Payment.CreateAttempt(ctx, "guest-1", created.ID)
		require.NoError(t, err)
		assert.Equal(t, i, attempt.AttemptNumber)

		failAttempt(t, f, attempt.ExternalSessionID, attempt.AmountCents, i)

		res, err := f.resRepo.FindByID(ctx, uuid.MustParse(created.ID))
		require.NoError(t, err)
		assert.Equal(t, entity.ReservationStatusPending, res.Status, "failed payment keeps the reservation pending")
		assert.Equal(t, entity.PaymentStatusFailed, res.PaymentStatus)
	}

	_, err = f.svc.Payment.CreateAttempt(ctx, "guest-1", created.ID)
	require.ErrorIs(t, err, ErrMaxAttempts)
	assert.Contains(t, err.Error(), "contact support")
}

func TestCreateAttempt_RequiresPending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.svc.Reservation.Create(ctx, "guest-1", createReq(20, 2, 2))
	require.NoError(t, err)
	confirmReservation(t, f, uuid.MustParse(created.ID))

	_, err = f.svc.Payment.CreateAttempt(ctx, "guest-1", created.ID)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestCreateAttempt_ExpiredHold(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.svc.Reservation.Create(ctx, "guest-1", createReq(20, 2, 2))
	require.NoError(t, err)

	expireHold(t, f, uuid.MustParse(created.ID))

	_, err = f.svc.Payment.CreateAttempt(ctx, "guest-1", created.ID)
	assert.ErrorIs(t, err, ErrExpiredHold)
}

func TestCreateAttempt_GatewayUnavailable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.svc.Reservation.Create(ctx, "guest-1", createReq(20, 2, 2))
	require.NoError(t, err)

	f.gw.createErr = gateway.ErrGatewayUnavailable

	_, err = f.svc.Payment.CreateAttempt(ctx, "guest-1", created.ID)
	require.ErrorIs(t, err, gateway.ErrGatewayUnavailable)

	// No slot was burned by the provider outage.
	f.gw.createErr = nil
	attempt, err := f.svc.Payment.CreateAttempt(ctx, "guest-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, attempt.AttemptNumber)
}

// failAttempt delivers a failed outcome through the webhook path.
func failAttempt(t *testing.T, f *fixture, sessionID string, amountCents int64, seq int) {
	t.Helper()

	_, err := f.svc.Reconciler.IngestEvent(context.Background(), &request.PaymentEventRequest{
		EventKey:          fmt.Sprintf("evt-fail-%s-%d", sessionID, seq),
		ExternalSessionID: sessionID,
		Outcome:           "failed",
		AmountCents:       amountCents,
	})
	require.NoError(t, err)
}

// expireHold rewinds a pending reservation's hold into the past.
func expireHold(t *testing.T, f *fixture, id uuid.UUID) {
	t.Helper()

	res, err := f.resRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, res)

	past := time.Now().Add(-time.Minute)
	res.HoldExpiresAt = &past
	require.NoError(t, f.resRepo.Update(context.Background(), res))
}
