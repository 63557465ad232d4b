package service

import (
	"context"
	"time"

	"hotelier/internal/events"
	"hotelier/internal/lifecycle"
	"hotelier/internal/metrics"
	"hotelier/internal/models"
)

// CreateSoftHold создает pending-бронирование с истечением. Нулевая
// длительность означает срок по умолчанию.
func (s *BookingService) CreateSoftHold(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	if req.HoldMinutes == 0 {
		req.HoldMinutes = models.DefaultHoldMinutes
	}
	if req.HoldMinutes < models.MinHoldMinutes || req.HoldMinutes > models.MaxHoldMinutes {
		return nil, ErrInvalidHoldWindow
	}
	return s.CreateBooking(ctx, req)
}

// ExtendSoftHold прибавляет минуты к текущему сроку мягкой брони.
// Продлить можно только pending-бронь с неистекшим сроком.
func (s *BookingService) ExtendSoftHold(ctx context.Context, bookingID int64, minutes int) (*models.Booking, error) {
	if minutes < models.MinExtendMinutes || minutes > models.MaxExtendMinutes {
		return nil, ErrInvalidHoldWindow
	}

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.SoftHoldExpiresAt == nil {
		return nil, ErrNotAHold
	}
	if booking.Status != models.StatusPending {
		return nil, ErrHoldNotPending
	}

	now := s.now()
	if !booking.SoftHoldExpiresAt.After(now) {
		return nil, ErrHoldExpired
	}

	expires := booking.SoftHoldExpiresAt.Add(time.Duration(minutes) * time.Minute)
	booking.SoftHoldExpiresAt = &expires

	if err := s.store.UpdateBookingFieldsWithVersion(ctx, booking, booking.Version); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Time("expires_at", expires).
		Msg("soft hold extended")

	return booking, nil
}

// ReleaseSoftHold снимает мягкую бронь по запросу гостя. Запись удаляется
// физически: в отличие от истечения, добровольный отказ не оставляет следа
// в инвентаре.
func (s *BookingService) ReleaseSoftHold(ctx context.Context, bookingID int64) error {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.SoftHoldExpiresAt == nil {
		return ErrNotAHold
	}
	if booking.Status != models.StatusPending {
		return ErrHoldNotPending
	}

	if err := s.store.DeleteBooking(ctx, bookingID); err != nil {
		return err
	}

	s.publishEvent(ctx, events.EventHoldReleased, booking, "released by guest")
	s.invalidateCache(ctx, booking.RoomTypeID)

	s.logger.Info().Int64("booking_id", bookingID).Msg("soft hold released")
	return nil
}

// ExpireOverdueHolds проводит все просроченные мягкие брони через событие
// EXPIRE. Сбой по одной брони не прерывает обход; повторный запуск по тем же
// данным ничего не меняет.
func (s *BookingService) ExpireOverdueHolds(ctx context.Context) (int, error) {
	overdue, err := s.store.ListExpiredPendingBookings(ctx, s.now())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, booking := range overdue {
		if _, err := s.UpdateBookingStatus(ctx, booking.ID, lifecycle.EventExpire, TransitionOptions{}); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("hold expiry failed")
			continue
		}
		expired++
		metrics.IncHoldExpired()
	}

	if expired > 0 {
		s.logger.Info().Int("count", expired).Msg("overdue holds expired")
	}

	return expired, nil
}
