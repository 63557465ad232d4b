package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hotelier/internal/availability"
	"hotelier/internal/database"
	"hotelier/internal/domain"
	"hotelier/internal/events"
	"hotelier/internal/lifecycle"
	"hotelier/internal/metrics"
	"hotelier/internal/models"

	"github.com/rs/zerolog"
)

const maxCodeAttempts = 5

// CreateBookingRequest — входные данные создания бронирования. Итоговую
// стоимость передает вызывающий: он обязан предварительно получить ее у
// движка цен.
type CreateBookingRequest struct {
	HotelID           int64
	RoomTypeID        int64
	GuestID           *int64
	CheckIn           time.Time
	CheckOut          time.Time
	NumAdults         int
	NumChildren       int
	TotalPriceCents   int64
	TaxCents          int64
	AppliedRatePlanID *int64
	// HoldMinutes > 0 превращает бронирование в мягкую бронь с истечением.
	HoldMinutes int
}

// TransitionOptions — метаданные события жизненного цикла.
type TransitionOptions struct {
	Reason           string
	PaymentReference string
	Actor            string
}

// BookingService — оркестратор жизненного цикла: создает бронирования и
// проводит внешние события через машину состояний с побочными эффектами.
type BookingService struct {
	store    domain.Store
	calc     *availability.Calculator
	eventBus domain.EventPublisher
	notifier domain.NotifyWorker
	auth     domain.AuthProvider
	cache    domain.AvailabilityCache
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewBookingService(
	store domain.Store,
	calc *availability.Calculator,
	eventBus domain.EventPublisher,
	notifier domain.NotifyWorker,
	auth domain.AuthProvider,
	cache domain.AvailabilityCache,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		store:    store,
		calc:     calc,
		eventBus: eventBus,
		notifier: notifier,
		auth:     auth,
		cache:    cache,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock подменяет источник времени (для тестов).
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// CreateBooking находит свободный номер, создает pending-бронирование и пишет
// запись аудита о создании. Доступность перед вставкой — лишь предварительная
// оценка: финальный арбитраж делает хранилище.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	checkIn := models.DateOnly(req.CheckIn)
	checkOut := models.DateOnly(req.CheckOut)
	if !checkOut.After(checkIn) {
		return nil, availability.ErrInvalidDateRange
	}
	if req.NumAdults < 1 {
		return nil, ErrInvalidGuests
	}
	if req.TotalPriceCents < 0 || req.TaxCents < 0 {
		return nil, ErrInvalidPrice
	}
	if req.HoldMinutes != 0 && (req.HoldMinutes < models.MinHoldMinutes || req.HoldMinutes > models.MaxHoldMinutes) {
		return nil, ErrInvalidHoldWindow
	}

	roomType, err := s.store.GetRoomType(ctx, req.RoomTypeID)
	if err != nil {
		return nil, err
	}
	if req.NumAdults > roomType.MaxAdultOccupancy || req.NumChildren > roomType.MaxChildOccupancy {
		return nil, ErrOccupancyExceeded
	}

	freeRooms, err := s.calc.FreeRoomIDs(ctx, req.RoomTypeID, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	if len(freeRooms) == 0 {
		return nil, database.ErrNoAvailability
	}

	booking := &models.Booking{
		HotelID:           req.HotelID,
		RoomID:            freeRooms[0],
		RoomTypeID:        req.RoomTypeID,
		GuestID:           req.GuestID,
		CheckIn:           checkIn,
		CheckOut:          checkOut,
		NumAdults:         req.NumAdults,
		NumChildren:       req.NumChildren,
		Status:            models.StatusPending,
		PaymentStatus:     models.PaymentUnpaid,
		TotalPriceCents:   req.TotalPriceCents,
		TaxCents:          req.TaxCents,
		Currency:          roomType.Currency,
		AppliedRatePlanID: req.AppliedRatePlanID,
	}
	if req.HoldMinutes > 0 {
		expires := s.now().Add(time.Duration(req.HoldMinutes) * time.Minute)
		booking.SoftHoldExpiresAt = &expires
	}

	if err := s.insertWithFreshCode(ctx, booking); err != nil {
		return nil, err
	}

	metrics.IncBookingCreated()
	s.appendAudit(ctx, booking, models.StatusPending, models.StatusPending, "CREATE", "")
	s.publishEvent(ctx, events.EventBookingCreated, booking, "")
	s.enqueueNotify(ctx, events.EventBookingCreated, booking)
	s.invalidateCache(ctx, booking.RoomTypeID)

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("room_id", booking.RoomID).
		Str("confirmation_code", booking.ConfirmationCode).
		Msg("booking created")

	return booking, nil
}

// insertWithFreshCode перегенерирует код подтверждения при конфликте
// уникальности в рамках отеля.
func (s *BookingService) insertWithFreshCode(ctx context.Context, booking *models.Booking) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := newConfirmationCode()
		if err != nil {
			return err
		}
		booking.ConfirmationCode = code

		err = s.store.CreateBookingWithLock(ctx, booking)
		if errors.Is(err, database.ErrDuplicateConfirmationCode) {
			continue
		}
		return err
	}
	return fmt.Errorf("failed to generate a unique confirmation code after %d attempts", maxCodeAttempts)
}

// UpdateBookingStatus проводит событие через машину состояний. Недопустимый
// переход отклоняется до любых записей; конкурирующее изменение приводит к
// ErrVersionConflict, и проигравший не перезаписывает победителя.
func (s *BookingService) UpdateBookingStatus(ctx context.Context, bookingID int64, event string, opts TransitionOptions) (*models.Booking, error) {
	if lifecycle.RequiresReason(event) && opts.Reason == "" {
		return nil, ErrReasonRequired
	}
	if lifecycle.RequiresPaymentReference(event) && opts.PaymentReference == "" {
		return nil, ErrPaymentReferenceRequired
	}

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	fromState := booking.Status
	nextState, err := lifecycle.Next(fromState, event)
	if err != nil {
		metrics.IncTransition(event, "rejected")
		return nil, err
	}

	now := s.now()
	booking.Status = nextState
	s.applySideEffects(booking, event, opts, now)

	if err := s.store.UpdateBookingFieldsWithVersion(ctx, booking, booking.Version); err != nil {
		metrics.IncTransition(event, "conflict")
		return nil, err
	}

	metrics.IncTransition(event, "applied")

	eventType := events.TypeForStatus(nextState)
	s.appendAudit(ctx, booking, fromState, nextState, event, opts.Reason)
	s.publishEvent(ctx, eventType, booking, opts.Reason)
	s.enqueueNotify(ctx, eventType, booking)
	s.invalidateCache(ctx, booking.RoomTypeID)

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("event", event).
		Str("from", fromState).
		Str("to", nextState).
		Msg("booking transition applied")

	return booking, nil
}

// applySideEffects выставляет поля, сопутствующие событию. Сама машина
// состояний про них не знает.
func (s *BookingService) applySideEffects(booking *models.Booking, event string, opts TransitionOptions, now time.Time) {
	switch event {
	case lifecycle.EventPaymentReceived:
		booking.PaymentStatus = models.PaymentPaid
		booking.PaymentReference = opts.PaymentReference
		booking.SoftHoldExpiresAt = nil
	case lifecycle.EventPaymentFailed:
		booking.PaymentStatus = models.PaymentFailed
		booking.CancelledAt = &now
		booking.CancellationReason = opts.Reason
	case lifecycle.EventCancel:
		booking.CancelledAt = &now
		booking.CancellationReason = opts.Reason
		if booking.PaymentStatus == models.PaymentPaid {
			booking.PaymentStatus = models.PaymentRefunded
		}
	case lifecycle.EventCheckIn:
		booking.ActualCheckInAt = &now
	case lifecycle.EventCheckOut:
		booking.ActualCheckOutAt = &now
	case lifecycle.EventPaymentTimeout, lifecycle.EventExpire, lifecycle.EventMarkNoShow:
		// Только смена статуса.
	}
}

// Именованные обертки над UpdateBookingStatus. Поведение не отличается.

func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID int64, paymentReference string) (*models.Booking, error) {
	return s.UpdateBookingStatus(ctx, bookingID, lifecycle.EventPaymentReceived, TransitionOptions{PaymentReference: paymentReference})
}

func (s *BookingService) CancelBooking(ctx context.Context, bookingID int64, reason string) (*models.Booking, error) {
	return s.UpdateBookingStatus(ctx, bookingID, lifecycle.EventCancel, TransitionOptions{Reason: reason})
}

func (s *BookingService) CheckInGuest(ctx context.Context, bookingID int64) (*models.Booking, error) {
	return s.UpdateBookingStatus(ctx, bookingID, lifecycle.EventCheckIn, TransitionOptions{})
}

func (s *BookingService) CheckOutGuest(ctx context.Context, bookingID int64) (*models.Booking, error) {
	return s.UpdateBookingStatus(ctx, bookingID, lifecycle.EventCheckOut, TransitionOptions{})
}

func (s *BookingService) MarkNoShow(ctx context.Context, bookingID int64) (*models.Booking, error) {
	return s.UpdateBookingStatus(ctx, bookingID, lifecycle.EventMarkNoShow, TransitionOptions{})
}

func (s *BookingService) ExpireBooking(ctx context.Context, bookingID int64) (*models.Booking, error) {
	return s.UpdateBookingStatus(ctx, bookingID, lifecycle.EventExpire, TransitionOptions{})
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

func (s *BookingService) GetBookingByConfirmationCode(ctx context.Context, hotelID int64, code string) (*models.Booking, error) {
	return s.store.GetBookingByConfirmationCode(ctx, hotelID, code)
}

func (s *BookingService) GetStateLog(ctx context.Context, bookingID int64) ([]*models.BookingStateLogEntry, error) {
	return s.store.ListStateLog(ctx, bookingID)
}

// appendAudit пишет запись аудита. Сбой журнала логируется и проглатывается:
// он не должен откатывать основной переход.
func (s *BookingService) appendAudit(ctx context.Context, booking *models.Booking, from, to, event, reason string) {
	entry := &models.BookingStateLogEntry{
		BookingID: booking.ID,
		FromState: from,
		ToState:   to,
		Event:     event,
		Actor:     s.actor(ctx),
		Reason:    reason,
	}
	if err := s.store.AppendStateLog(ctx, entry); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("event", event).Msg("audit log write failed")
	}
}

func (s *BookingService) actor(ctx context.Context) string {
	if s.auth != nil {
		if userID := s.auth.CurrentUserID(ctx); userID != nil {
			return fmt.Sprintf("user:%d", *userID)
		}
	}
	return "system"
}

func (s *BookingService) publishEvent(ctx context.Context, eventType string, booking *models.Booking, reason string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:        booking.ID,
		HotelID:          booking.HotelID,
		RoomID:           booking.RoomID,
		RoomTypeID:       booking.RoomTypeID,
		GuestID:          booking.GuestID,
		Status:           booking.Status,
		PaymentStatus:    booking.PaymentStatus,
		CheckIn:          booking.CheckIn,
		CheckOut:         booking.CheckOut,
		TotalPriceCents:  booking.TotalPriceCents,
		ConfirmationCode: booking.ConfirmationCode,
		Reason:           reason,
		Actor:            s.actor(ctx),
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueNotify(ctx context.Context, taskType string, booking *models.Booking) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.EnqueueTask(ctx, taskType, booking.ID, booking); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("task", taskType).Msg("notify enqueue error")
	}
}

func (s *BookingService) invalidateCache(ctx context.Context, roomTypeID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, roomTypeID); err != nil {
		s.logger.Warn().Err(err).Int64("room_type_id", roomTypeID).Msg("availability cache invalidation failed")
	}
}
