package service

import "errors"

var (
	// ErrHoldExpired — операция над мягкой бронью с истекшим сроком.
	ErrHoldExpired = errors.New("soft hold has already expired")

	// ErrHoldNotPending — мягкая бронь уже перешла в другой статус.
	ErrHoldNotPending = errors.New("booking is not a pending soft hold")

	// ErrNotAHold — у бронирования нет срока мягкой брони.
	ErrNotAHold = errors.New("booking has no soft hold expiry")

	ErrReasonRequired           = errors.New("a reason is required for this event")
	ErrPaymentReferenceRequired = errors.New("payment reference metadata is required for this event")

	ErrInvalidGuests     = errors.New("at least one adult guest is required")
	ErrOccupancyExceeded = errors.New("party size exceeds room type occupancy")
	ErrInvalidHoldWindow = errors.New("hold duration is out of the allowed range")
	ErrInvalidPrice      = errors.New("total price must not be negative")
)
