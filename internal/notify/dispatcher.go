package notify

import (
	"context"
	"time"

	"github.com/nammaooru/civic-reports/internal/domain"
	"github.com/nammaooru/civic-reports/internal/mailer"
	"github.com/nammaooru/civic-reports/internal/repo/postgres"
	"github.com/nammaooru/civic-reports/pkg/config"
	"github.com/nammaooru/civic-reports/pkg/events"
	"github.com/nammaooru/civic-reports/pkg/logger"
)

// Dispatcher drains the notification outbox on a timer. One logical worker
// runs per process; scaling out is safe because claiming is an atomic
// conditional update in the repository. Delivery is at-least-once: a crash
// after a send but before the sent mark means one duplicate email after
// stale-claim recovery.
type Dispatcher struct {
	outbox    postgres.OutboxRepository
	mailer    mailer.Mailer
	publisher events.Publisher
	cfg       config.OutboxConfig
}

func NewDispatcher(outbox postgres.OutboxRepository, m mailer.Mailer, publisher events.Publisher, cfg config.OutboxConfig) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 30 * time.Second
	}
	if cfg.ClaimGrace <= 0 {
		// Without a grace period RecoverStale would reclaim rows a live
		// peer is still sending, double-delivering them.
		cfg.ClaimGrace = 5 * time.Minute
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		outbox:    outbox,
		mailer:    m,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Run blocks until ctx is canceled, draining due tasks every poll interval.
// Tasks claimed but not yet attempted when ctx ends are released back to
// pending for a future pass.
func (d *Dispatcher) Run(ctx context.Context) error {
	// A previous process may have died mid-send and left claims behind.
	if n, err := d.outbox.RecoverStale(ctx, d.cfg.ClaimGrace); err != nil {
		logger.Error("Failed to recover stale outbox claims", "error", err)
	} else if n > 0 {
		logger.Info("Recovered stale outbox claims", "count", n)
	}

	logger.Info("Notification dispatcher started",
		"poll_interval", d.cfg.PollInterval, "batch_size", d.cfg.BatchSize, "max_attempts", d.cfg.MaxAttempts)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.runOnce(ctx)
		case <-ctx.Done():
			logger.Info("Notification dispatcher stopped")
			return ctx.Err()
		}
	}
}

// runOnce claims a batch of due tasks and attempts each in due order.
func (d *Dispatcher) runOnce(ctx context.Context) {
	tasks, err := d.outbox.ClaimDue(ctx, d.cfg.BatchSize)
	if err != nil {
		logger.Error("Failed to claim due notification tasks", "error", err)
		return
	}
	if len(tasks) == 0 {
		return
	}

	logger.Debug("Claimed notification tasks", "count", len(tasks))

	for i, task := range tasks {
		if ctx.Err() != nil {
			d.release(tasks[i:])
			return
		}
		d.attempt(ctx, task)
	}
}

func (d *Dispatcher) attempt(ctx context.Context, task domain.NotificationTask) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout())
	err := d.mailer.Send(sendCtx, task.RecipientEmail, task.RecipientName, task.Subject, task.Body, "")
	cancel()

	if err == nil {
		if err := d.outbox.MarkSent(ctx, task.ID); err != nil {
			logger.Error("Failed to mark notification sent", "error", err, "task_id", task.ID)
			return
		}
		logger.Info("Notification delivered", "task_id", task.ID, "recipient", task.RecipientEmail)
		d.publishResult(ctx, events.NotificationSent, task, task.Attempts+1, nil)
		return
	}

	attempts := task.Attempts + 1
	if attempts >= d.cfg.MaxAttempts {
		if err := d.outbox.MarkFailed(ctx, task.ID, attempts); err != nil {
			logger.Error("Failed to mark notification failed", "error", err, "task_id", task.ID)
			return
		}
		logger.Error("Notification permanently failed",
			"task_id", task.ID, "recipient", task.RecipientEmail, "attempts", attempts, "error", err)
		d.publishResult(ctx, events.NotificationFailed, task, attempts, err)
		return
	}

	nextRetryAt := time.Now().Add(backoff(d.cfg.BackoffBase, attempts))
	if err := d.outbox.MarkRetry(ctx, task.ID, attempts, nextRetryAt); err != nil {
		logger.Error("Failed to schedule notification retry", "error", err, "task_id", task.ID)
		return
	}
	logger.Warn("Notification attempt failed; scheduled retry",
		"task_id", task.ID, "attempts", attempts, "next_retry_at", nextRetryAt, "error", err)
}

func (d *Dispatcher) release(tasks []domain.NotificationTask) {
	if len(tasks) == 0 {
		return
	}

	ids := make([]int64, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}

	// The loop context is gone; use a short independent deadline so the
	// release itself cannot hang shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.outbox.Release(ctx, ids); err != nil {
		logger.Error("Failed to release claimed notification tasks", "error", err, "count", len(ids))
		return
	}
	logger.Info("Released claimed notification tasks for a future pass", "count", len(ids))
}

func (d *Dispatcher) publishResult(ctx context.Context, subject string, task domain.NotificationTask, attempts int, sendErr error) {
	ev := events.NotificationResultEvent{
		TaskID:    task.ID,
		Recipient: task.RecipientEmail,
		Attempts:  attempts,
	}
	if sendErr != nil {
		ev.Error = sendErr.Error()
	}
	if err := d.publisher.Publish(ctx, subject, ev); err != nil {
		logger.Debug("Failed to publish notification result event", "error", err, "task_id", task.ID)
	}
}

func (d *Dispatcher) sendTimeout() time.Duration {
	// Keep each attempt comfortably shorter than the poll interval.
	if d.cfg.PollInterval < d.cfg.SendTimeout {
		return d.cfg.PollInterval
	}
	return d.cfg.SendTimeout
}

// backoff doubles the base delay per recorded attempt.
func backoff(base time.Duration, attempts int) time.Duration {
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d > time.Hour {
			return time.Hour
		}
	}
	return d
}
