package models

import "time"

// Статусы бронирования.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusCheckedIn  = "checked_in"
	StatusCheckedOut = "checked_out"
	StatusCancelled  = "cancelled"
	StatusNoShow     = "no_show"
	StatusExpired    = "expired"
)

// Статусы оплаты. Отдельная ось от статуса бронирования.
const (
	PaymentUnpaid   = "unpaid"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
	PaymentFailed   = "failed"
)

// Операционные статусы номера.
const (
	RoomAvailable    = "available"
	RoomMaintenance  = "maintenance"
	RoomOutOfService = "out_of_service"
)

const (
	// DefaultHoldMinutes срок мягкой брони по умолчанию
	DefaultHoldMinutes = 15

	// MinHoldMinutes / MaxHoldMinutes допустимый диапазон при создании
	MinHoldMinutes = 1
	MaxHoldMinutes = 60

	// MinExtendMinutes / MaxExtendMinutes допустимый диапазон при продлении
	MinExtendMinutes = 1
	MaxExtendMinutes = 30

	// DefaultTaxRateBasisPoints платформенная ставка налога (12%)
	DefaultTaxRateBasisPoints = 1200

	// ConfirmationCodeLength длина кода подтверждения
	ConfirmationCodeLength = 8

	// DefaultSweepInterval период обхода просроченных мягких броней
	DefaultSweepInterval = time.Minute

	// NotifierQueueSize размер очереди воркера уведомлений
	NotifierQueueSize = 1000

	// AvailabilityCacheTTL время жизни кэша доступности
	AvailabilityCacheTTL = 60 // секунды
)

// DateOnly нормализует время к полуночи UTC. Все даты заезда/выезда в движке
// хранятся именно в таком виде.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
