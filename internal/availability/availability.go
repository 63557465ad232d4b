package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"hotelier/internal/models"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidDateRange = errors.New("check-out date must be after check-in date")
	// ErrNoRoomsFound — у типа номера нет ни одного активного физического
	// номера. Отличается от нулевой доступности (всё распродано).
	ErrNoRoomsFound = errors.New("no active rooms exist for room type")
)

// activeStatuses — статусы бронирований, занимающие номер.
var activeStatuses = []string{
	models.StatusPending,
	models.StatusConfirmed,
	models.StatusCheckedIn,
}

// ActiveStatuses returns the booking statuses that occupy a room.
func ActiveStatuses() []string {
	return append([]string(nil), activeStatuses...)
}

// Inventory — срез хранилища, нужный калькулятору доступности.
type Inventory interface {
	CountActiveRoomsByType(ctx context.Context, roomTypeID int64) (int64, error)
	CountOverlappingBookings(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time, statuses []string) (int64, error)
	ListOverlappingBookingRoomIDs(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time, statuses []string) ([]int64, error)
	ListActiveRooms(ctx context.Context, roomTypeID int64) ([]*models.Room, error)
}

// Result — итог проверки доступности типа номера на интервал.
type Result struct {
	IsAvailable    bool  `json:"is_available"`
	AvailableCount int64 `json:"available_count"`
	TotalRooms     int64 `json:"total_rooms"`
	BookedRooms    int64 `json:"booked_rooms"`
}

// Calculator считает свободные номера, вычитая активные бронирования из
// общего инвентаря. Его чтения — предварительная оценка; окончательный
// арбитраж выполняет хранилище при вставке.
type Calculator struct {
	store  Inventory
	logger *zerolog.Logger
}

func NewCalculator(store Inventory, logger *zerolog.Logger) *Calculator {
	return &Calculator{store: store, logger: logger}
}

// CheckAvailability возвращает количество свободных номеров типа на интервал
// [checkIn, checkOut).
func (c *Calculator) CheckAvailability(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time) (*Result, error) {
	checkIn = models.DateOnly(checkIn)
	checkOut = models.DateOnly(checkOut)
	if !checkOut.After(checkIn) {
		return nil, ErrInvalidDateRange
	}

	total, err := c.store.CountActiveRoomsByType(ctx, roomTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to count rooms for type %d: %w", roomTypeID, err)
	}
	if total == 0 {
		return nil, ErrNoRoomsFound
	}

	booked, err := c.store.CountOverlappingBookings(ctx, roomTypeID, checkIn, checkOut, activeStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to count overlapping bookings for type %d: %w", roomTypeID, err)
	}

	available := total - booked
	if available < 0 {
		available = 0
	}

	return &Result{
		IsAvailable:    available > 0,
		AvailableCount: available,
		TotalRooms:     total,
		BookedRooms:    booked,
	}, nil
}

// FreeRoomIDs возвращает идентификаторы свободных номеров типа на интервал,
// отсортированные по возрастанию номера комнаты. Первый id — кандидат на
// назначение.
func (c *Calculator) FreeRoomIDs(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time) ([]int64, error) {
	checkIn = models.DateOnly(checkIn)
	checkOut = models.DateOnly(checkOut)
	if !checkOut.After(checkIn) {
		return nil, ErrInvalidDateRange
	}

	rooms, err := c.store.ListActiveRooms(ctx, roomTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms for type %d: %w", roomTypeID, err)
	}
	if len(rooms) == 0 {
		return nil, ErrNoRoomsFound
	}

	busy, err := c.store.ListOverlappingBookingRoomIDs(ctx, roomTypeID, checkIn, checkOut, activeStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to list busy rooms for type %d: %w", roomTypeID, err)
	}

	busySet := make(map[int64]bool, len(busy))
	for _, id := range busy {
		busySet[id] = true
	}

	sorted := make([]*models.Room, len(rooms))
	copy(sorted, rooms)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].RoomNumber != sorted[j].RoomNumber {
			return sorted[i].RoomNumber < sorted[j].RoomNumber
		}
		return sorted[i].ID < sorted[j].ID
	})

	var free []int64
	for _, room := range sorted {
		if room.Status == models.RoomOutOfService {
			continue
		}
		if !busySet[room.ID] {
			free = append(free, room.ID)
		}
	}
	return free, nil
}

// IsRoomAvailable проверяет один конкретный номер по тем же половинчато
// открытым правилам пересечения.
func (c *Calculator) IsRoomAvailable(ctx context.Context, roomTypeID, roomID int64, checkIn, checkOut time.Time) (bool, error) {
	free, err := c.FreeRoomIDs(ctx, roomTypeID, checkIn, checkOut)
	if err != nil {
		return false, err
	}
	for _, id := range free {
		if id == roomID {
			return true, nil
		}
	}
	return false, nil
}

// Calendar возвращает доступность по дням для интервала [from, to).
func (c *Calculator) Calendar(ctx context.Context, roomTypeID int64, from, to time.Time) ([]*models.Availability, error) {
	from = models.DateOnly(from)
	to = models.DateOnly(to)
	if !to.After(from) {
		return nil, ErrInvalidDateRange
	}

	total, err := c.store.CountActiveRoomsByType(ctx, roomTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to count rooms for type %d: %w", roomTypeID, err)
	}
	if total == 0 {
		return nil, ErrNoRoomsFound
	}

	var days []*models.Availability
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		next := day.AddDate(0, 0, 1)
		booked, err := c.store.CountOverlappingBookings(ctx, roomTypeID, day, next, activeStatuses)
		if err != nil {
			return nil, fmt.Errorf("failed to count bookings on %s: %w", day.Format("2006-01-02"), err)
		}
		available := total - booked
		if available < 0 {
			available = 0
		}
		days = append(days, &models.Availability{
			Date:       day,
			RoomTypeID: roomTypeID,
			Booked:     booked,
			Available:  available,
			TotalRooms: total,
		})
	}
	return days, nil
}

// MinAvailable возвращает минимальную дневную доступность на окне — именно
// она определяет, можно ли забронировать многодневное проживание.
func (c *Calculator) MinAvailable(ctx context.Context, roomTypeID int64, from, to time.Time) (int64, error) {
	days, err := c.Calendar(ctx, roomTypeID, from, to)
	if err != nil {
		return 0, err
	}

	min := days[0].Available
	for _, day := range days[1:] {
		if day.Available < min {
			min = day.Available
		}
	}
	return min, nil
}
