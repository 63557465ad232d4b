package models

import "time"

// Статусы задач исходящих уведомлений.
const (
	TaskStatusPending = "pending"
	TaskStatusRetry   = "retry"
	TaskStatusDone    = "done"
	TaskStatusFailed  = "failed"
)

// NotifyTask — задача доставки исходящего уведомления. Пишется в outbox в
// той же операции, что и переход, и доставляется воркером с повторами.
type NotifyTask struct {
	ID          int64      `json:"id"`
	TaskType    string     `json:"task_type"`
	BookingID   int64      `json:"booking_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}
