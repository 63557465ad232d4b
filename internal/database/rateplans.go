package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hotelier/internal/models"
)

// CreateRatePlan создает тарифный план.
func (db *DB) CreateRatePlan(ctx context.Context, plan *models.RatePlan) error {
	query := `INSERT INTO rate_plans (
                room_type_id, name, price_cents, priority, valid_from, valid_to,
                min_stay_nights, max_stay_nights, min_advance_booking_days,
                max_advance_booking_days, allowed_weekdays, refundable, is_active, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		plan.RoomTypeID,
		plan.Name,
		plan.PriceCents,
		plan.Priority,
		plan.ValidFrom.Format(dateLayout),
		plan.ValidTo.Format(dateLayout),
		plan.MinStayNights,
		nullIntPtr(plan.MaxStayNights),
		plan.MinAdvanceBookingDays,
		nullIntPtr(plan.MaxAdvanceBookingDays),
		encodeWeekdays(plan.AllowedWeekdays),
		plan.Refundable,
		plan.IsActive,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create rate plan: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	plan.ID = id
	plan.CreatedAt = now
	return nil
}

// DeactivateRatePlan снимает план с продажи. Планы не удаляются.
func (db *DB) DeactivateRatePlan(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `UPDATE rate_plans SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate rate plan %d: %w", id, err)
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

// ListActiveRatePlans возвращает активные планы типа номера, упорядоченные по
// убыванию приоритета; при равенстве — по порядку создания.
func (db *DB) ListActiveRatePlans(ctx context.Context, roomTypeID int64) ([]*models.RatePlan, error) {
	query := `SELECT id, room_type_id, name, price_cents, priority, valid_from, valid_to,
                     min_stay_nights, max_stay_nights, min_advance_booking_days,
                     max_advance_booking_days, allowed_weekdays, refundable, is_active, created_at
              FROM rate_plans
              WHERE room_type_id = ? AND is_active = 1
              ORDER BY priority DESC, id ASC`

	rows, err := db.QueryContext(ctx, query, roomTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rate plans for type %d: %w", roomTypeID, err)
	}
	defer rows.Close()

	var plans []*models.RatePlan
	for rows.Next() {
		var plan models.RatePlan
		var maxStay, maxAdvance sql.NullInt64
		var weekdays sql.NullString
		err := rows.Scan(
			&plan.ID,
			&plan.RoomTypeID,
			&plan.Name,
			&plan.PriceCents,
			&plan.Priority,
			&plan.ValidFrom,
			&plan.ValidTo,
			&plan.MinStayNights,
			&maxStay,
			&plan.MinAdvanceBookingDays,
			&maxAdvance,
			&weekdays,
			&plan.Refundable,
			&plan.IsActive,
			&plan.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rate plan: %w", err)
		}
		if maxStay.Valid {
			v := int(maxStay.Int64)
			plan.MaxStayNights = &v
		}
		if maxAdvance.Valid {
			v := int(maxAdvance.Int64)
			plan.MaxAdvanceBookingDays = &v
		}
		if weekdays.Valid {
			plan.AllowedWeekdays = decodeWeekdays(weekdays.String)
		}
		plans = append(plans, &plan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return plans, nil
}

func nullIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// encodeWeekdays сериализует дни недели как CSV чисел (0=воскресенье).
func encodeWeekdays(days []time.Weekday) any {
	if len(days) == 0 {
		return nil
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(raw string) []time.Weekday {
	if raw == "" {
		return nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > 6 {
			continue
		}
		days = append(days, time.Weekday(n))
	}
	return days
}
