package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nammaooru/civic-reports/internal/domain"
)

type OtpRepository interface {
	// InvalidateUnused marks every live challenge for the email as used so
	// that only the challenge inserted next can verify.
	InvalidateUnused(ctx context.Context, email string) error
	Create(ctx context.Context, email, codeHash string, userID *int64, expiresAt time.Time) (*domain.OtpChallenge, error)
	// FindLatestUnused returns the newest unconsumed challenge for the email
	// regardless of expiry, so the caller can tell "never issued" from
	// "issued but stale". Returns nil when none exists.
	FindLatestUnused(ctx context.Context, email string) (*domain.OtpChallenge, error)
	// Consume marks a challenge used only if it is still unused. The
	// conditional write is the single compare-and-swap in the system; of two
	// concurrent verifications exactly one sees consumed=true.
	Consume(ctx context.Context, id int64) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type otpRepository struct {
	pool *pgxpool.Pool
}

func NewOtpRepository(pool *pgxpool.Pool) OtpRepository {
	return &otpRepository{pool: pool}
}

const otpCols = `id, email, code_hash, user_id, created_at, expires_at, used_at`

func (r *otpRepository) InvalidateUnused(ctx context.Context, email string) error {
	const q = `
		UPDATE otp_challenges
		SET used_at = now()
		WHERE email = $1
		  AND used_at IS NULL`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, email)
	return err
}

func (r *otpRepository) Create(ctx context.Context, email, codeHash string, userID *int64, expiresAt time.Time) (*domain.OtpChallenge, error) {
	const q = `
		INSERT INTO otp_challenges (email, code_hash, user_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + otpCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var c domain.OtpChallenge
	err := r.pool.QueryRow(ctx, q, email, codeHash, userID, expiresAt).Scan(
		&c.ID, &c.Email, &c.CodeHash, &c.UserID, &c.CreatedAt, &c.ExpiresAt, &c.UsedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *otpRepository) FindLatestUnused(ctx context.Context, email string) (*domain.OtpChallenge, error) {
	const q = `
		SELECT ` + otpCols + `
		FROM otp_challenges
		WHERE email = $1
		  AND used_at IS NULL
		ORDER BY id DESC
		LIMIT 1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var c domain.OtpChallenge
	err := r.pool.QueryRow(ctx, q, email).Scan(
		&c.ID, &c.Email, &c.CodeHash, &c.UserID, &c.CreatedAt, &c.ExpiresAt, &c.UsedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *otpRepository) Consume(ctx context.Context, id int64) (bool, error) {
	const q = `
		UPDATE otp_challenges
		SET used_at = now()
		WHERE id = $1
		  AND used_at IS NULL`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *otpRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const q = `
		DELETE FROM otp_challenges
		WHERE (used_at IS NOT NULL AND used_at < now() - interval '7 days')
		   OR (used_at IS NULL AND expires_at < now() - interval '1 day')`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
