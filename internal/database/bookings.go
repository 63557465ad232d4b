package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hotelier/internal/models"
)

const bookingColumns = `id, hotel_id, room_id, room_type_id, guest_id, check_in, check_out,
       num_adults, num_children, status, payment_status, payment_reference,
       total_price_cents, tax_cents, currency, applied_rate_plan_id,
       soft_hold_expires_at, cancelled_at, cancellation_reason,
       actual_check_in_at, actual_check_out_at, confirmation_code,
       created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var guestID, planID sql.NullInt64
	var paymentRef, cancelReason sql.NullString
	var holdExpires, cancelledAt, actualIn, actualOut sql.NullTime

	err := row.Scan(
		&b.ID,
		&b.HotelID,
		&b.RoomID,
		&b.RoomTypeID,
		&guestID,
		&b.CheckIn,
		&b.CheckOut,
		&b.NumAdults,
		&b.NumChildren,
		&b.Status,
		&b.PaymentStatus,
		&paymentRef,
		&b.TotalPriceCents,
		&b.TaxCents,
		&b.Currency,
		&planID,
		&holdExpires,
		&cancelledAt,
		&cancelReason,
		&actualIn,
		&actualOut,
		&b.ConfirmationCode,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.Version,
	)
	if err != nil {
		return nil, err
	}

	if guestID.Valid {
		b.GuestID = &guestID.Int64
	}
	if planID.Valid {
		b.AppliedRatePlanID = &planID.Int64
	}
	if paymentRef.Valid {
		b.PaymentReference = paymentRef.String
	}
	if cancelReason.Valid {
		b.CancellationReason = cancelReason.String
	}
	if holdExpires.Valid {
		t := holdExpires.Time
		b.SoftHoldExpiresAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		b.CancelledAt = &t
	}
	if actualIn.Valid {
		t := actualIn.Time
		b.ActualCheckInAt = &t
	}
	if actualOut.Valid {
		t := actualOut.Time
		b.ActualCheckOutAt = &t
	}

	b.CheckIn = models.DateOnly(b.CheckIn)
	b.CheckOut = models.DateOnly(b.CheckOut)

	return &b, nil
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// InsertBooking вставляет бронирование без проверки пересечений. Для
// создания пользовательских броней используйте CreateBookingWithLock.
func (db *DB) InsertBooking(ctx context.Context, booking *models.Booking) error {
	return db.insertBooking(ctx, db.DB, booking)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (db *DB) insertBooking(ctx context.Context, ex execer, booking *models.Booking) error {
	query := `INSERT INTO bookings (
                hotel_id, room_id, room_type_id, guest_id, check_in, check_out,
                num_adults, num_children, status, payment_status, payment_reference,
                total_price_cents, tax_cents, currency, applied_rate_plan_id,
                soft_hold_expires_at, confirmation_code, created_at, updated_at, version
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := ex.ExecContext(ctx, query,
		booking.HotelID,
		booking.RoomID,
		booking.RoomTypeID,
		nullInt64(booking.GuestID),
		booking.CheckIn.Format(dateLayout),
		booking.CheckOut.Format(dateLayout),
		booking.NumAdults,
		booking.NumChildren,
		booking.Status,
		booking.PaymentStatus,
		nullString(booking.PaymentReference),
		booking.TotalPriceCents,
		booking.TaxCents,
		booking.Currency,
		nullInt64(booking.AppliedRatePlanID),
		nullTime(booking.SoftHoldExpiresAt),
		booking.ConfirmationCode,
		now,
		now,
		1,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateConfirmationCode
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return nil
}

// CreateBookingWithLock атомарно перепроверяет занятость номера и вставляет
// бронирование в одной транзакции записи. Это и есть гарантия отсутствия
// двойного бронирования: из двух конкурентов выигрывает ровно один,
// проигравший получает ErrNoAvailability.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 1. Номер всё еще свободен на интервал?
	queryCount := `SELECT COUNT(*) FROM bookings
        WHERE room_id = ?
        AND status IN ('pending', 'confirmed', 'checked_in')
        AND check_in < ? AND check_out > ?`
	var overlapping int
	err = tx.QueryRowContext(ctx, queryCount,
		booking.RoomID,
		booking.CheckOut.Format(dateLayout),
		booking.CheckIn.Format(dateLayout),
	).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("failed to check room occupancy in tx: %w", err)
	}
	if overlapping > 0 {
		return ErrNoAvailability
	}

	// 2. Вставляем бронирование.
	if err := db.insertBooking(ctx, tx, booking); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	return nil
}

// GetBooking возвращает бронирование по ID.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %d: %w", id, err)
	}
	return booking, nil
}

// GetBookingByConfirmationCode возвращает бронирование по коду подтверждения
// в рамках отеля.
func (db *DB) GetBookingByConfirmationCode(ctx context.Context, hotelID int64, code string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE hotel_id = ? AND confirmation_code = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, hotelID, strings.ToUpper(strings.TrimSpace(code))))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by code %s: %w", code, err)
	}
	return booking, nil
}

// UpdateBookingFieldsWithVersion сохраняет изменяемые поля бронирования при
// совпадении версии. Конкурирующий переход, успевший раньше, приводит к
// ErrVersionConflict — проигравший обязан перечитать состояние.
func (db *DB) UpdateBookingFieldsWithVersion(ctx context.Context, booking *models.Booking, expectedVersion int64) error {
	query := `UPDATE bookings SET
            status = ?,
            payment_status = ?,
            payment_reference = ?,
            total_price_cents = ?,
            tax_cents = ?,
            applied_rate_plan_id = ?,
            soft_hold_expires_at = ?,
            cancelled_at = ?,
            cancellation_reason = ?,
            actual_check_in_at = ?,
            actual_check_out_at = ?,
            updated_at = ?,
            version = version + 1
        WHERE id = ? AND version = ?`

	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		booking.Status,
		booking.PaymentStatus,
		nullString(booking.PaymentReference),
		booking.TotalPriceCents,
		booking.TaxCents,
		nullInt64(booking.AppliedRatePlanID),
		nullTime(booking.SoftHoldExpiresAt),
		nullTime(booking.CancelledAt),
		nullString(booking.CancellationReason),
		nullTime(booking.ActualCheckInAt),
		nullTime(booking.ActualCheckOutAt),
		now,
		booking.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking %d: %w", booking.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		// Либо бронирования нет, либо версия устарела.
		var exists int
		checkErr := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE id = ?`, booking.ID).Scan(&exists)
		if checkErr == nil && exists == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	booking.UpdatedAt = now
	booking.Version = expectedVersion + 1
	return nil
}

// DeleteBooking физически удаляет бронирование. Используется только при
// снятии неоплаченной мягкой брони.
func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountOverlappingBookings считает бронирования типа номера в указанных
// статусах, чей интервал пересекает [checkIn, checkOut).
func (db *DB) CountOverlappingBookings(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time, statuses []string) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings
        WHERE room_type_id = ?
        AND status IN (` + placeholders(len(statuses)) + `)
        AND check_in < ? AND check_out > ?`

	args := []any{roomTypeID}
	for _, s := range statuses {
		args = append(args, s)
	}
	args = append(args, checkOut.Format(dateLayout), checkIn.Format(dateLayout))

	var count int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count overlapping bookings: %w", err)
	}
	return count, nil
}

// ListOverlappingBookingRoomIDs возвращает номера, занятые пересекающимися
// бронированиями.
func (db *DB) ListOverlappingBookingRoomIDs(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time, statuses []string) ([]int64, error) {
	query := `SELECT DISTINCT room_id FROM bookings
        WHERE room_type_id = ?
        AND status IN (` + placeholders(len(statuses)) + `)
        AND check_in < ? AND check_out > ?`

	args := []any{roomTypeID}
	for _, s := range statuses {
		args = append(args, s)
	}
	args = append(args, checkOut.Format(dateLayout), checkIn.Format(dateLayout))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list overlapping booking rooms: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan room id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListExpiredPendingBookings возвращает pending-бронирования с истекшей
// мягкой бронью на момент cutoff.
func (db *DB) ListExpiredPendingBookings(ctx context.Context, cutoff time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
        WHERE status = 'pending'
        AND soft_hold_expires_at IS NOT NULL
        AND soft_hold_expires_at < ?
        ORDER BY soft_hold_expires_at ASC`

	rows, err := db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired pending bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
