package models

import "time"

// BookingStateLogEntry append-only запись аудита перехода статуса.
// Никогда не изменяется и не удаляется.
type BookingStateLogEntry struct {
	ID        int64     `json:"id"`
	BookingID int64     `json:"booking_id"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	Event     string    `json:"event"`
	Actor     string    `json:"actor"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
