package domain

import "time"

type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	// TaskSending marks a row claimed by a dispatcher pass. A crash mid-send
	// leaves the row here until startup recovery returns it to pending.
	TaskSending TaskStatus = "sending"
	TaskSent    TaskStatus = "sent"
	TaskFailed  TaskStatus = "failed"
)

// NotificationTask is one row of the durable outbox. Status moves
// pending -> sending -> {sent | failed | pending (retry)}; sent and failed
// are absorbing, and attempts never exceeds the configured maximum.
type NotificationTask struct {
	ID             int64      `json:"id"`
	RecipientEmail string     `json:"recipient_email"`
	RecipientName  string     `json:"recipient_name"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body"`
	Attempts       int        `json:"attempts"`
	NextRetryAt    time.Time  `json:"next_retry_at"`
	Status         TaskStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
}
