package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nammaooru/civic-reports/internal/domain"
)

type ReportRepository interface {
	Create(ctx context.Context, userID int64, req *domain.CreateReportRequest) (*domain.Report, error)
	GetByID(ctx context.Context, id int64) (*domain.Report, error)
	List(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, int64, error)
	// UpdateStatus applies the new status guarded by "not yet closed" so a
	// transition racing a close loses cleanly. Returns nil when the guard
	// rejected the write.
	UpdateStatus(ctx context.Context, id int64, status domain.ReportStatus, actorID int64, setResolvedAt bool) (*domain.Report, error)
}

type reportRepository struct {
	pool *pgxpool.Pool
}

func NewReportRepository(pool *pgxpool.Pool) ReportRepository {
	return &reportRepository{pool: pool}
}

const reportCols = `id, title, description, category, location_address, status, priority,
	created_by_user_id, assigned_to_user_id, updated_by_user_id, created_at, updated_at, resolved_at`

func scanReport(row pgx.Row) (*domain.Report, error) {
	var rep domain.Report
	err := row.Scan(
		&rep.ID, &rep.Title, &rep.Description, &rep.Category, &rep.LocationAddress,
		&rep.Status, &rep.Priority, &rep.CreatedByUserID, &rep.AssignedToUserID,
		&rep.UpdatedByUserID, &rep.CreatedAt, &rep.UpdatedAt, &rep.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *reportRepository) Create(ctx context.Context, userID int64, req *domain.CreateReportRequest) (*domain.Report, error) {
	const q = `
		INSERT INTO reports (title, description, category, location_address, status, priority, created_by_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + reportCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanReport(r.pool.QueryRow(ctx, q,
		req.Title, req.Description, req.Category, req.LocationAddress,
		domain.StatusSubmitted, req.Priority, userID,
	))
}

func (r *reportRepository) GetByID(ctx context.Context, id int64) (*domain.Report, error) {
	const q = `SELECT ` + reportCols + ` FROM reports WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rep, err := scanReport(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rep, err
}

func (r *reportRepository) List(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, int64, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	where := ` WHERE true`
	args := []interface{}{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM reports`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	q := `SELECT ` + reportCols + ` FROM reports` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var reports []domain.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, *rep)
	}
	return reports, total, rows.Err()
}

func (r *reportRepository) UpdateStatus(ctx context.Context, id int64, status domain.ReportStatus, actorID int64, setResolvedAt bool) (*domain.Report, error) {
	const q = `
		UPDATE reports
		SET status = $2,
		    updated_at = now(),
		    updated_by_user_id = $3,
		    resolved_at = CASE WHEN $4 AND resolved_at IS NULL THEN now() ELSE resolved_at END
		WHERE id = $1
		  AND status <> 'closed'
		RETURNING ` + reportCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rep, err := scanReport(r.pool.QueryRow(ctx, q, id, status, actorID, setResolvedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rep, err
}
