package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hotelier/internal/models"
)

// CreateRoomType создает тип номера.
func (db *DB) CreateRoomType(ctx context.Context, rt *models.RoomType) error {
	query := `INSERT INTO room_types (
                hotel_id, name, base_price_cents, currency,
                max_adult_occupancy, max_child_occupancy, is_active, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		rt.HotelID,
		rt.Name,
		rt.BasePriceCents,
		rt.Currency,
		rt.MaxAdultOccupancy,
		rt.MaxChildOccupancy,
		rt.IsActive,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create room type: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rt.ID = id
	rt.CreatedAt = now
	rt.UpdatedAt = now
	return nil
}

// GetRoomType возвращает тип номера по ID.
func (db *DB) GetRoomType(ctx context.Context, id int64) (*models.RoomType, error) {
	query := `SELECT id, hotel_id, name, base_price_cents, currency,
                     max_adult_occupancy, max_child_occupancy, is_active, created_at, updated_at
              FROM room_types WHERE id = ?`

	var rt models.RoomType
	err := db.QueryRowContext(ctx, query, id).Scan(
		&rt.ID,
		&rt.HotelID,
		&rt.Name,
		&rt.BasePriceCents,
		&rt.Currency,
		&rt.MaxAdultOccupancy,
		&rt.MaxChildOccupancy,
		&rt.IsActive,
		&rt.CreatedAt,
		&rt.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room type %d: %w", id, err)
	}
	return &rt, nil
}

// UpdateRoomType обновляет цену, вместимость и активность типа. Идентичность
// типа неизменна; типы не удаляются, только деактивируются.
func (db *DB) UpdateRoomType(ctx context.Context, rt *models.RoomType) error {
	query := `UPDATE room_types SET
            name = ?, base_price_cents = ?, currency = ?,
            max_adult_occupancy = ?, max_child_occupancy = ?, is_active = ?, updated_at = ?
        WHERE id = ?`
	_, err := db.ExecContext(ctx, query,
		rt.Name,
		rt.BasePriceCents,
		rt.Currency,
		rt.MaxAdultOccupancy,
		rt.MaxChildOccupancy,
		rt.IsActive,
		time.Now(),
		rt.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update room type %d: %w", rt.ID, err)
	}
	return nil
}

// CreateRoom создает физический номер.
func (db *DB) CreateRoom(ctx context.Context, room *models.Room) error {
	query := `INSERT INTO rooms (hotel_id, room_type_id, room_number, status, is_active, created_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		room.HotelID,
		room.RoomTypeID,
		room.RoomNumber,
		room.Status,
		room.IsActive,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	room.ID = id
	room.CreatedAt = now
	return nil
}

// UpdateRoomStatus переводит номер между операционными статусами.
func (db *DB) UpdateRoomStatus(ctx context.Context, roomID int64, status string) error {
	result, err := db.ExecContext(ctx, `UPDATE rooms SET status = ? WHERE id = ?`, status, roomID)
	if err != nil {
		return fmt.Errorf("failed to update room %d status: %w", roomID, err)
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

// CountActiveRoomsByType считает активные номера типа, не выведенные из
// эксплуатации. Номера на обслуживании остаются в инвентаре.
func (db *DB) CountActiveRoomsByType(ctx context.Context, roomTypeID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM rooms
        WHERE room_type_id = ? AND is_active = 1 AND status != ?`
	var count int64
	err := db.QueryRowContext(ctx, query, roomTypeID, models.RoomOutOfService).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rooms for type %d: %w", roomTypeID, err)
	}
	return count, nil
}

// ListActiveRooms возвращает активные номера типа по возрастанию номера.
func (db *DB) ListActiveRooms(ctx context.Context, roomTypeID int64) ([]*models.Room, error) {
	query := `SELECT id, hotel_id, room_type_id, room_number, status, is_active, created_at
              FROM rooms WHERE room_type_id = ? AND is_active = 1
              ORDER BY room_number ASC`

	rows, err := db.QueryContext(ctx, query, roomTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms for type %d: %w", roomTypeID, err)
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		var room models.Room
		err := rows.Scan(
			&room.ID,
			&room.HotelID,
			&room.RoomTypeID,
			&room.RoomNumber,
			&room.Status,
			&room.IsActive,
			&room.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, &room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rooms, nil
}
