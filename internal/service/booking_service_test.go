package service

import (
	"context"
	"io"
	"testing"
	"time"

	"hotelier/internal/availability"
	"hotelier/internal/database"
	"hotelier/internal/events"
	"hotelier/internal/lifecycle"
	"hotelier/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type serviceFixture struct {
	svc      *BookingService
	db       *database.DB
	rt       *models.RoomType
	clock    *testClock
	bus      *mockPublisher
	notifier *mockNotifier
}

// newFixture поднимает сервис на реальном in-memory хранилище с фиксированными
// часами и моками шины/уведомлений.
func newFixture(t *testing.T, numRooms int) *serviceFixture {
	t.Helper()

	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	rt := &models.RoomType{
		HotelID:           1,
		Name:              "Standard",
		BasePriceCents:    10000,
		Currency:          "USD",
		MaxAdultOccupancy: 2,
		MaxChildOccupancy: 1,
		IsActive:          true,
	}
	require.NoError(t, db.CreateRoomType(ctx, rt))
	for i := 0; i < numRooms; i++ {
		room := &models.Room{
			HotelID:    1,
			RoomTypeID: rt.ID,
			RoomNumber: string(rune('1'+i)) + "01",
			Status:     models.RoomAvailable,
			IsActive:   true,
		}
		require.NoError(t, db.CreateRoom(ctx, room))
	}

	clock := &testClock{now: time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)}
	bus := &mockPublisher{}
	notifier := &mockNotifier{}
	bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)
	notifier.On("EnqueueTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	calc := availability.NewCalculator(db, &logger)
	svc := NewBookingService(db, calc, bus, notifier, nil, nil, &logger).WithClock(clock.Now)

	return &serviceFixture{svc: svc, db: db, rt: rt, clock: clock, bus: bus, notifier: notifier}
}

func (f *serviceFixture) request() CreateBookingRequest {
	return CreateBookingRequest{
		HotelID:         1,
		RoomTypeID:      f.rt.ID,
		CheckIn:         time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC),
		CheckOut:        time.Date(2025, 12, 17, 0, 0, 0, 0, time.UTC),
		NumAdults:       2,
		TotalPriceCents: 22400,
		TaxCents:        2400,
	}
}

func TestCreateBooking(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	booking, err := f.svc.CreateBooking(ctx, f.request())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, booking.Status)
	assert.Equal(t, models.PaymentUnpaid, booking.PaymentStatus)
	assert.Len(t, booking.ConfirmationCode, models.ConfirmationCodeLength)
	assert.Equal(t, "USD", booking.Currency)
	assert.Nil(t, booking.SoftHoldExpiresAt)

	// Назначается первый по номеру комнаты свободный номер.
	rooms, err := f.db.ListActiveRooms(ctx, f.rt.ID)
	require.NoError(t, err)
	assert.Equal(t, rooms[0].ID, booking.RoomID)

	entries, err := f.db.ListStateLog(ctx, booking.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "CREATE", entries[0].Event)
	assert.Equal(t, "system", entries[0].Actor)

	f.bus.AssertCalled(t, "PublishJSON", events.EventBookingCreated, mock.Anything)
	f.notifier.AssertCalled(t, "EnqueueTask", mock.Anything, events.EventBookingCreated, booking.ID, mock.Anything)
}

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	t.Run("inverted dates", func(t *testing.T) {
		req := f.request()
		req.CheckIn, req.CheckOut = req.CheckOut, req.CheckIn
		_, err := f.svc.CreateBooking(ctx, req)
		assert.ErrorIs(t, err, availability.ErrInvalidDateRange)
	})

	t.Run("no adults", func(t *testing.T) {
		req := f.request()
		req.NumAdults = 0
		_, err := f.svc.CreateBooking(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidGuests)
	})

	t.Run("occupancy exceeded", func(t *testing.T) {
		req := f.request()
		req.NumAdults = 3
		_, err := f.svc.CreateBooking(ctx, req)
		assert.ErrorIs(t, err, ErrOccupancyExceeded)

		req = f.request()
		req.NumChildren = 2
		_, err = f.svc.CreateBooking(ctx, req)
		assert.ErrorIs(t, err, ErrOccupancyExceeded)
	})

	t.Run("negative price", func(t *testing.T) {
		req := f.request()
		req.TotalPriceCents = -1
		_, err := f.svc.CreateBooking(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidPrice)
	})

	t.Run("unknown room type", func(t *testing.T) {
		req := f.request()
		req.RoomTypeID = 999
		_, err := f.svc.CreateBooking(ctx, req)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}

func TestCreateBookingNoAvailability(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, f.request())
	require.NoError(t, err)

	_, err = f.svc.CreateBooking(ctx, f.request())
	assert.ErrorIs(t, err, database.ErrNoAvailability)

	// Смежные даты не пересекаются: выезд одного — заезд другого.
	req := f.request()
	req.CheckIn = time.Date(2025, 12, 17, 0, 0, 0, 0, time.UTC)
	req.CheckOut = time.Date(2025, 12, 19, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.CreateBooking(ctx, req)
	assert.NoError(t, err)
}

func TestConfirmBooking(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	booking, err := f.svc.CreateBooking(ctx, f.request())
	require.NoError(t, err)

	confirmed, err := f.svc.ConfirmBooking(ctx, booking.ID, "pay_abc123")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)
	assert.Equal(t, models.PaymentPaid, confirmed.PaymentStatus)
	assert.Equal(t, "pay_abc123", confirmed.PaymentReference)
	assert.Greater(t, confirmed.Version, booking.Version)

	entries, err := f.db.ListStateLog(ctx, booking.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, lifecycle.EventPaymentReceived, entries[1].Event)
	assert.Equal(t, models.StatusPending, entries[1].FromState)
	assert.Equal(t, models.StatusConfirmed, entries[1].ToState)

	f.bus.AssertCalled(t, "PublishJSON", events.EventBookingConfirmed, mock.Anything)
}

func TestConfirmRequiresPaymentReference(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	booking, err := f.svc.CreateBooking(ctx, f.request())
	require.NoError(t, err)

	_, err = f.svc.ConfirmBooking(ctx, booking.ID, "")
	assert.ErrorIs(t, err, ErrPaymentReferenceRequired)
}

func TestInvalidTransitionLeavesBookingUntouched(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	booking, err := f.svc.CreateBooking(ctx, f.request())
	require.NoError(t, err)

	_, err = f.svc.CheckOutGuest(ctx, booking.ID)
	var invalid *lifecycle.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.StatusPending, invalid.State)
	assert.Contains(t, invalid.ValidEvents, lifecycle.EventPaymentReceived)

	reloaded, err := f.db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, reloaded.Status)
	assert.Equal(t, booking.Version, reloaded.Version)

	// Отклоненный переход не оставляет следа в журнале.
	entries, err := f.db.ListStateLog(ctx, booking.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCancelPaidBookingRefunds(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	booking, err := f.svc.CreateBooking(ctx, f.request())
	require.NoError(t, err)
	_, err = f.svc.ConfirmBooking(ctx, booking.ID, "pay_1")
	require.NoError(t, err)

	cancelled, err := f.svc.CancelBooking(ctx, booking.ID, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, models.PaymentRefunded, cancelled.PaymentStatus)
	assert.Equal(t, "plans changed", cancelled.CancellationReason)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, f.clock.Now(), cancelled.CancelledAt.UTC())
}

func TestCancelRequiresReason(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	booking, err := f.svc.CreateBooking(ctx, f.request())
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(ctx, booking.ID, "")
	assert.ErrorIs(t, err, ErrReasonRequired)
}

func TestFullLifecycleToCheckout(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	booking, err := f.svc.CreateBooking(ctx, f.request())
	require.NoError(t, err)

	_, err = f.svc.ConfirmBooking(ctx, booking.ID, "pay_1")
	require.NoError(t, err)

	checkedIn, err := f.svc.CheckInGuest(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedIn, checkedIn.Status)
	require.NotNil(t, checkedIn.ActualCheckInAt)

	checkedOut, err := f.svc.CheckOutGuest(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedOut, checkedOut.Status)
	require.NotNil(t, checkedOut.ActualCheckOutAt)

	// Терминальное состояние не принимает больше никаких событий.
	_, err = f.svc.CancelBooking(ctx, booking.ID, "too late")
	var invalid *lifecycle.InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)

	entries, err := f.db.ListStateLog(ctx, booking.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestMarkNoShow(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	booking, err := f.svc.CreateBooking(ctx, f.request())
	require.NoError(t, err)
	_, err = f.svc.ConfirmBooking(ctx, booking.ID, "pay_1")
	require.NoError(t, err)

	noShow, err := f.svc.MarkNoShow(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShow, noShow.Status)
	// Неявка не возвращает деньги.
	assert.Equal(t, models.PaymentPaid, noShow.PaymentStatus)
}

func TestGetBookingByConfirmationCode(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	booking, err := f.svc.CreateBooking(ctx, f.request())
	require.NoError(t, err)

	found, err := f.svc.GetBookingByConfirmationCode(ctx, 1, booking.ConfirmationCode)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, found.ID)

	_, err = f.svc.GetBookingByConfirmationCode(ctx, 2, booking.ConfirmationCode)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
