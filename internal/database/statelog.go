package database

import (
	"context"
	"fmt"
	"time"

	"hotelier/internal/models"
)

// AppendStateLog добавляет запись аудита перехода. Журнал append-only:
// записи никогда не изменяются и не удаляются.
func (db *DB) AppendStateLog(ctx context.Context, entry *models.BookingStateLogEntry) error {
	query := `INSERT INTO booking_state_log (booking_id, from_state, to_state, event, actor, reason, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		entry.BookingID,
		entry.FromState,
		entry.ToState,
		entry.Event,
		entry.Actor,
		nullString(entry.Reason),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to append state log for booking %d: %w", entry.BookingID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	entry.CreatedAt = now
	return nil
}

// ListStateLog возвращает историю переходов бронирования в порядке записи.
func (db *DB) ListStateLog(ctx context.Context, bookingID int64) ([]*models.BookingStateLogEntry, error) {
	query := `SELECT id, booking_id, from_state, to_state, event, actor, COALESCE(reason, ''), created_at
              FROM booking_state_log WHERE booking_id = ? ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list state log for booking %d: %w", bookingID, err)
	}
	defer rows.Close()

	var entries []*models.BookingStateLogEntry
	for rows.Next() {
		var e models.BookingStateLogEntry
		err := rows.Scan(&e.ID, &e.BookingID, &e.FromState, &e.ToState, &e.Event, &e.Actor, &e.Reason, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan state log entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
