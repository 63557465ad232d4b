package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hotelier/internal/models"
)

// CreateNotifyTask добавляет задачу уведомления в outbox.
func (db *DB) CreateNotifyTask(ctx context.Context, task *models.NotifyTask) error {
	query := `INSERT INTO notify_outbox (task_type, booking_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		task.TaskType,
		task.BookingID,
		task.Payload,
		task.Status,
		task.RetryCount,
		nullString(task.LastError),
		now,
		nullTime(task.NextRetryAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create notify task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

// GetPendingNotifyTasks возвращает задачи, готовые к доставке.
func (db *DB) GetPendingNotifyTasks(ctx context.Context, limit int) ([]models.NotifyTask, error) {
	query := `SELECT id, task_type, booking_id, COALESCE(payload, ''), status, retry_count,
                     COALESCE(last_error, ''), created_at, processed_at, next_retry_at
              FROM notify_outbox
              WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending notify tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.NotifyTask
	for rows.Next() {
		var task models.NotifyTask
		var processedAt, nextRetryAt sql.NullTime
		err := rows.Scan(
			&task.ID,
			&task.TaskType,
			&task.BookingID,
			&task.Payload,
			&task.Status,
			&task.RetryCount,
			&task.LastError,
			&task.CreatedAt,
			&processedAt,
			&nextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notify task: %w", err)
		}
		if processedAt.Valid {
			t := processedAt.Time
			task.ProcessedAt = &t
		}
		if nextRetryAt.Valid {
			t := nextRetryAt.Time
			task.NextRetryAt = &t
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// MarkNotifyTaskDone помечает задачу доставленной.
func (db *DB) MarkNotifyTaskDone(ctx context.Context, id int64) error {
	query := `UPDATE notify_outbox SET status = 'done', processed_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark notify task %d done: %w", id, err)
	}
	return nil
}

// MarkNotifyTaskRetry планирует повтор задачи после ошибки доставки.
func (db *DB) MarkNotifyTaskRetry(ctx context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	query := `UPDATE notify_outbox SET status = 'retry', retry_count = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, retryCount, lastError, nextRetryAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark notify task %d for retry: %w", id, err)
	}
	return nil
}

// MarkNotifyTaskFailed окончательно отбраковывает задачу после исчерпания
// повторов.
func (db *DB) MarkNotifyTaskFailed(ctx context.Context, id int64, lastError string) error {
	query := `UPDATE notify_outbox SET status = 'failed', last_error = ?, processed_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, lastError, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark notify task %d failed: %w", id, err)
	}
	return nil
}
