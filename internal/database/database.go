package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

// DB — хранилище инвентаря и бронирований поверх SQLite.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// _txlock=immediate: транзакции записи берут блокировку сразу, это
	// сериализует конкурирующие вставки бронирований на уровне хранилища.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on", path)
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Общий in-memory инстанс живет, пока открыто хотя бы одно соединение.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Типы номеров
		`CREATE TABLE IF NOT EXISTS room_types (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            hotel_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            base_price_cents INTEGER NOT NULL,
            currency TEXT NOT NULL DEFAULT 'USD',
            max_adult_occupancy INTEGER NOT NULL DEFAULT 2,
            max_child_occupancy INTEGER NOT NULL DEFAULT 0,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		// Физические номера
		`CREATE TABLE IF NOT EXISTS rooms (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            hotel_id INTEGER NOT NULL,
            room_type_id INTEGER NOT NULL REFERENCES room_types(id),
            room_number TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'available',
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            UNIQUE(hotel_id, room_number)
        )`,
		// Тарифные планы
		`CREATE TABLE IF NOT EXISTS rate_plans (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            room_type_id INTEGER NOT NULL REFERENCES room_types(id),
            name TEXT NOT NULL,
            price_cents INTEGER NOT NULL,
            priority INTEGER NOT NULL DEFAULT 0,
            valid_from DATE NOT NULL,
            valid_to DATE NOT NULL,
            min_stay_nights INTEGER NOT NULL DEFAULT 0,
            max_stay_nights INTEGER,
            min_advance_booking_days INTEGER NOT NULL DEFAULT 0,
            max_advance_booking_days INTEGER,
            allowed_weekdays TEXT,
            refundable BOOLEAN NOT NULL DEFAULT 1,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		// Бронирования
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            hotel_id INTEGER NOT NULL,
            room_id INTEGER NOT NULL REFERENCES rooms(id),
            room_type_id INTEGER NOT NULL REFERENCES room_types(id),
            guest_id INTEGER,
            check_in DATE NOT NULL,
            check_out DATE NOT NULL,
            num_adults INTEGER NOT NULL DEFAULT 1,
            num_children INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'pending',
            payment_status TEXT NOT NULL DEFAULT 'unpaid',
            payment_reference TEXT,
            total_price_cents INTEGER NOT NULL DEFAULT 0,
            tax_cents INTEGER NOT NULL DEFAULT 0,
            currency TEXT NOT NULL DEFAULT 'USD',
            applied_rate_plan_id INTEGER,
            soft_hold_expires_at DATETIME,
            cancelled_at DATETIME,
            cancellation_reason TEXT,
            actual_check_in_at DATETIME,
            actual_check_out_at DATETIME,
            confirmation_code TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            version INTEGER NOT NULL DEFAULT 1,
            UNIQUE(hotel_id, confirmation_code)
        )`,
		// Журнал переходов статуса (append-only)
		`CREATE TABLE IF NOT EXISTS booking_state_log (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL,
            from_state TEXT NOT NULL,
            to_state TEXT NOT NULL,
            event TEXT NOT NULL,
            actor TEXT NOT NULL DEFAULT 'system',
            reason TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		// Исходящие уведомления
		`CREATE TABLE IF NOT EXISTS notify_outbox (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            booking_id INTEGER NOT NULL,
            payload TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_rooms_type ON rooms(room_type_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rate_plans_type ON rate_plans(room_type_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_room ON bookings(room_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_type ON bookings(room_type_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_dates ON bookings(check_in, check_out)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_hold ON bookings(status, soft_hold_expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_state_log_booking ON booking_state_log(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_status ON notify_outbox(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

const dateLayout = "2006-01-02"
