package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nammaooru/civic-reports/pkg/logger"
)

// Publisher is the observability-side event channel. Publishing is best
// effort; nothing load-bearing may depend on an event being delivered.
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (n *NATSPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSPublisher) Close() error {
	n.conn.Close()
	return nil
}

// NopPublisher discards events; used when NATS is not configured and in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (NopPublisher) Close() error                                       { return nil }

// Subjects
const (
	ReportCreated       = "report.created"
	ReportStatusChanged = "report.status.changed"
	UserVerified        = "user.verified"
	NotificationSent    = "notification.sent"
	NotificationFailed  = "notification.failed"
)

type ReportCreatedEvent struct {
	ReportID  int64     `json:"report_id"`
	Category  string    `json:"category"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type ReportStatusChangedEvent struct {
	ReportID  int64     `json:"report_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	ChangedBy int64     `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}

type UserVerifiedEvent struct {
	UserID     int64     `json:"user_id"`
	Email      string    `json:"email"`
	VerifiedAt time.Time `json:"verified_at"`
}

type NotificationResultEvent struct {
	TaskID    int64  `json:"task_id"`
	Recipient string `json:"recipient"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error,omitempty"`
}
