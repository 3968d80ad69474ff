package postgres

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nammaooru/civic-reports/internal/domain"
)

// OutboxRepository is the durable notification queue. The request path only
// ever inserts; the dispatcher owns every other mutation.
type OutboxRepository interface {
	// Enqueue inserts a pending task due immediately. Never touches the
	// network, so a slow mail server cannot stall a status update.
	Enqueue(ctx context.Context, recipientEmail, recipientName, subject, body string) (int64, error)
	// ClaimDue atomically moves up to limit due pending tasks to sending and
	// returns them oldest-due first. SKIP LOCKED keeps two dispatcher
	// processes from claiming the same row.
	ClaimDue(ctx context.Context, limit int) ([]domain.NotificationTask, error)
	MarkSent(ctx context.Context, id int64) error
	// MarkRetry records a failed attempt and reschedules the task.
	MarkRetry(ctx context.Context, id int64, attempts int, nextRetryAt time.Time) error
	MarkFailed(ctx context.Context, id int64, attempts int) error
	// Release returns claimed-but-unattempted tasks to pending, used on
	// graceful shutdown mid-batch.
	Release(ctx context.Context, ids []int64) error
	// RecoverStale requeues sending rows older than the grace period; a
	// process that crashed mid-send left them behind.
	RecoverStale(ctx context.Context, grace time.Duration) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.NotificationTask, error)
}

type outboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) OutboxRepository {
	return &outboxRepository{pool: pool}
}

const taskCols = `id, recipient_email, recipient_name, subject, body, attempts,
	next_retry_at, status, created_at, sent_at, last_attempt_at`

func (r *outboxRepository) Enqueue(ctx context.Context, recipientEmail, recipientName, subject, body string) (int64, error) {
	const q = `
		INSERT INTO notification_tasks (recipient_email, recipient_name, subject, body, attempts, next_retry_at, status)
		VALUES ($1, $2, $3, $4, 0, now(), 'pending')
		RETURNING id`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id int64
	err := r.pool.QueryRow(ctx, q, recipientEmail, recipientName, subject, body).Scan(&id)
	return id, err
}

func (r *outboxRepository) ClaimDue(ctx context.Context, limit int) ([]domain.NotificationTask, error) {
	if limit <= 0 {
		limit = 25
	}

	const q = `
		UPDATE notification_tasks
		SET status = 'sending', updated_at = now()
		WHERE id IN (
			SELECT id FROM notification_tasks
			WHERE status = 'pending' AND next_retry_at <= now()
			ORDER BY next_retry_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + taskCols

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.NotificationTask
	for rows.Next() {
		var t domain.NotificationTask
		if err := rows.Scan(
			&t.ID, &t.RecipientEmail, &t.RecipientName, &t.Subject, &t.Body,
			&t.Attempts, &t.NextRetryAt, &t.Status, &t.CreatedAt, &t.SentAt, &t.LastAttemptAt,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The UPDATE does not order its RETURNING set; restore oldest-due first.
	sortTasksByDue(tasks)
	return tasks, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id int64) error {
	const q = `
		UPDATE notification_tasks
		SET status = 'sent', sent_at = now(), last_attempt_at = now()
		WHERE id = $1 AND status = 'sending'`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id)
	return err
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id int64, attempts int, nextRetryAt time.Time) error {
	const q = `
		UPDATE notification_tasks
		SET status = 'pending', attempts = $2, next_retry_at = $3, last_attempt_at = now()
		WHERE id = $1 AND status = 'sending'`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, attempts, nextRetryAt)
	return err
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id int64, attempts int) error {
	const q = `
		UPDATE notification_tasks
		SET status = 'failed', attempts = $2, last_attempt_at = now()
		WHERE id = $1 AND status = 'sending'`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, attempts)
	return err
}

func (r *outboxRepository) Release(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	const q = `
		UPDATE notification_tasks
		SET status = 'pending'
		WHERE id = ANY($1) AND status = 'sending'`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, ids)
	return err
}

func (r *outboxRepository) RecoverStale(ctx context.Context, grace time.Duration) (int64, error) {
	const q = `
		UPDATE notification_tasks
		SET status = 'pending'
		WHERE status = 'sending' AND updated_at < now() - $1::interval`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, grace)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (r *outboxRepository) GetByID(ctx context.Context, id int64) (*domain.NotificationTask, error) {
	const q = `SELECT ` + taskCols + ` FROM notification_tasks WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var t domain.NotificationTask
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&t.ID, &t.RecipientEmail, &t.RecipientName, &t.Subject, &t.Body,
		&t.Attempts, &t.NextRetryAt, &t.Status, &t.CreatedAt, &t.SentAt, &t.LastAttemptAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func sortTasksByDue(tasks []domain.NotificationTask) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].NextRetryAt.Before(tasks[j].NextRetryAt)
	})
}
