package service

import (
	"context"
	"testing"
	"time"

	"hotelier/internal/database"
	"hotelier/internal/events"
	"hotelier/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateSoftHoldDefaults(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	booking, err := f.svc.CreateSoftHold(ctx, f.request())
	require.NoError(t, err)

	require.NotNil(t, booking.SoftHoldExpiresAt)
	want := f.clock.Now().Add(models.DefaultHoldMinutes * time.Minute)
	assert.Equal(t, want, booking.SoftHoldExpiresAt.UTC())
	assert.Equal(t, models.StatusPending, booking.Status)
}

func TestCreateSoftHoldCustomDuration(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	req := f.request()
	req.HoldMinutes = 45
	booking, err := f.svc.CreateSoftHold(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(45*time.Minute), booking.SoftHoldExpiresAt.UTC())

	req.HoldMinutes = 61
	_, err = f.svc.CreateSoftHold(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidHoldWindow)
}

func TestSoftHoldOccupiesInventory(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.svc.CreateSoftHold(ctx, f.request())
	require.NoError(t, err)

	// Пока бронь жива, номер занят для конкурентов.
	_, err = f.svc.CreateBooking(ctx, f.request())
	assert.ErrorIs(t, err, database.ErrNoAvailability)
}

func TestExtendSoftHold(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	booking, err := f.svc.CreateSoftHold(ctx, f.request())
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)

	// Минуты прибавляются к прежнему сроку, а не отсчитываются от "сейчас".
	extended, err := f.svc.ExtendSoftHold(ctx, booking.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, booking.SoftHoldExpiresAt.Add(20*time.Minute).UTC(), extended.SoftHoldExpiresAt.UTC())
	assert.Greater(t, extended.Version, booking.Version)
}

func TestExtendNeverShortensHold(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	booking, err := f.svc.CreateSoftHold(ctx, f.request())
	require.NoError(t, err)

	// До истечения 14 минут; минимальное продление обязано сдвинуть срок вперед.
	f.clock.Advance(time.Minute)

	extended, err := f.svc.ExtendSoftHold(ctx, booking.ID, 1)
	require.NoError(t, err)
	assert.True(t, extended.SoftHoldExpiresAt.After(*booking.SoftHoldExpiresAt))
	assert.Equal(t, booking.SoftHoldExpiresAt.Add(time.Minute).UTC(), extended.SoftHoldExpiresAt.UTC())
}

func TestExtendExpiredHold(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	booking, err := f.svc.CreateSoftHold(ctx, f.request())
	require.NoError(t, err)

	// Срок по умолчанию 15 минут; через 16 продление уже невозможно.
	f.clock.Advance(16 * time.Minute)

	_, err = f.svc.ExtendSoftHold(ctx, booking.ID, 10)
	assert.ErrorIs(t, err, ErrHoldExpired)
}

func TestExtendRejectsNonHolds(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	plain, err := f.svc.CreateBooking(ctx, f.request())
	require.NoError(t, err)
	_, err = f.svc.ExtendSoftHold(ctx, plain.ID, 10)
	assert.ErrorIs(t, err, ErrNotAHold)

	hold, err := f.svc.CreateSoftHold(ctx, f.request())
	require.NoError(t, err)
	_, err = f.svc.ConfirmBooking(ctx, hold.ID, "pay_1")
	require.NoError(t, err)

	// Оплата снимает срок мягкой брони, бронь перестает быть холдом.
	_, err = f.svc.ExtendSoftHold(ctx, hold.ID, 10)
	assert.ErrorIs(t, err, ErrNotAHold)

	_, err = f.svc.ExtendSoftHold(ctx, plain.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidHoldWindow)
	_, err = f.svc.ExtendSoftHold(ctx, plain.ID, 31)
	assert.ErrorIs(t, err, ErrInvalidHoldWindow)
}

func TestReleaseSoftHold(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	booking, err := f.svc.CreateSoftHold(ctx, f.request())
	require.NoError(t, err)

	require.NoError(t, f.svc.ReleaseSoftHold(ctx, booking.ID))

	_, err = f.db.GetBooking(ctx, booking.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)

	// Номер снова доступен сразу после снятия.
	_, err = f.svc.CreateBooking(ctx, f.request())
	assert.NoError(t, err)

	f.bus.AssertCalled(t, "PublishJSON", events.EventHoldReleased, mock.Anything)
}

func TestReleaseRejectsConfirmed(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	booking, err := f.svc.CreateSoftHold(ctx, f.request())
	require.NoError(t, err)
	_, err = f.svc.ConfirmBooking(ctx, booking.ID, "pay_1")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.ReleaseSoftHold(ctx, booking.ID), ErrNotAHold)
}

func TestReleaseRejectsExpired(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	booking, err := f.svc.CreateSoftHold(ctx, f.request())
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.svc.ExpireOverdueHolds(ctx)
	require.NoError(t, err)

	// Истекшая бронь сохраняет срок, но статус уже не pending.
	assert.ErrorIs(t, f.svc.ReleaseSoftHold(ctx, booking.ID), ErrHoldNotPending)
	_, err = f.svc.ExtendSoftHold(ctx, booking.ID, 10)
	assert.ErrorIs(t, err, ErrHoldNotPending)
}

func TestExpireOverdueHolds(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	first, err := f.svc.CreateSoftHold(ctx, f.request())
	require.NoError(t, err)
	second, err := f.svc.CreateSoftHold(ctx, f.request())
	require.NoError(t, err)

	// Третья бронь оплачена и истечению не подлежит.
	third, err := f.svc.CreateSoftHold(ctx, f.request())
	require.NoError(t, err)
	_, err = f.svc.ConfirmBooking(ctx, third.ID, "pay_1")
	require.NoError(t, err)

	f.clock.Advance(20 * time.Minute)

	expired, err := f.svc.ExpireOverdueHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, expired)

	for _, id := range []int64{first.ID, second.ID} {
		b, err := f.db.GetBooking(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusExpired, b.Status)
	}

	confirmed, err := f.db.GetBooking(ctx, third.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)

	// Повторный обход ничего не находит.
	expired, err = f.svc.ExpireOverdueHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)

	// Истекшие брони освобождают инвентарь.
	_, err = f.svc.CreateBooking(ctx, f.request())
	assert.NoError(t, err)
}
