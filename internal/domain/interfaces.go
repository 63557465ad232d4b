package domain

import (
	"context"
	"time"

	"hotelier/internal/models"
)

// Store — договор с долговременным хранилищем инвентаря и бронирований.
type Store interface {
	InsertBooking(ctx context.Context, booking *models.Booking) error
	// CreateBookingWithLock atomically re-checks room availability and
	// inserts the booking in a single write transaction. This is the
	// store-level guard against double booking; callers treat prior
	// availability reads as best-effort.
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	UpdateBookingFieldsWithVersion(ctx context.Context, booking *models.Booking, expectedVersion int64) error
	DeleteBooking(ctx context.Context, id int64) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByConfirmationCode(ctx context.Context, hotelID int64, code string) (*models.Booking, error)
	ListExpiredPendingBookings(ctx context.Context, cutoff time.Time) ([]*models.Booking, error)

	CountActiveRoomsByType(ctx context.Context, roomTypeID int64) (int64, error)
	CountOverlappingBookings(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time, statuses []string) (int64, error)
	ListOverlappingBookingRoomIDs(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time, statuses []string) ([]int64, error)
	ListActiveRooms(ctx context.Context, roomTypeID int64) ([]*models.Room, error)

	GetRoomType(ctx context.Context, id int64) (*models.RoomType, error)
	ListActiveRatePlans(ctx context.Context, roomTypeID int64) ([]*models.RatePlan, error)

	AppendStateLog(ctx context.Context, entry *models.BookingStateLogEntry) error
	ListStateLog(ctx context.Context, bookingID int64) ([]*models.BookingStateLogEntry, error)
}

// AvailabilityCache хранит снимки доступности для витрины. Допускает
// устаревание: источником истины остается Store.
type AvailabilityCache interface {
	Get(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time) (*models.Availability, error)
	Set(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time, snapshot *models.Availability) error
	Invalidate(ctx context.Context, roomTypeID int64) error
}

// EventPublisher публикует доменные события после успешных переходов.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// NotifyWorker ставит задачи на доставку исходящих уведомлений.
type NotifyWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID int64, booking *models.Booking) error
}

// AuthProvider отдает идентификатор текущего пользователя, если он известен.
type AuthProvider interface {
	CurrentUserID(ctx context.Context) *int64
}
