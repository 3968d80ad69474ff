package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nammaooru/civic-reports/internal/domain"
	"github.com/nammaooru/civic-reports/internal/repo/postgres"
	"github.com/nammaooru/civic-reports/pkg/logger"
)

// OtpService issues and validates one-time codes for an email address. It
// never sends mail itself; callers deliver the returned code out of band.
type OtpService interface {
	// Issue invalidates any live challenge for the email, then creates a
	// fresh one. Only the most recent code can ever verify.
	Issue(ctx context.Context, email string) (code string, err error)
	// Verify consumes a challenge at most once. Two concurrent calls with
	// the same valid code race on a conditional update; exactly one wins.
	Verify(ctx context.Context, email, code string) (*domain.UserLink, error)
	ValidateFormat(code string) bool
}

type otpService struct {
	otpRepo  postgres.OtpRepository
	userRepo postgres.UserRepository
	ttl      time.Duration
}

func NewOtpService(otpRepo postgres.OtpRepository, userRepo postgres.UserRepository, ttl time.Duration) OtpService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &otpService{
		otpRepo:  otpRepo,
		userRepo: userRepo,
		ttl:      ttl,
	}
}

func (s *otpService) Issue(ctx context.Context, email string) (string, error) {
	email = domain.NormalizeEmail(email)
	if !domain.IsValidEmail(email) {
		return "", fmt.Errorf("%w: invalid email format", domain.ErrInvalidInput)
	}

	code, err := generateCode(domain.OtpCodeLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash code: %w", err)
	}

	// A challenge may precede the account it eventually verifies.
	var userID *int64
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user != nil {
		userID = &user.ID
	}

	if err := s.otpRepo.InvalidateUnused(ctx, email); err != nil {
		return "", fmt.Errorf("failed to invalidate prior challenges: %w", err)
	}

	expiresAt := time.Now().Add(s.ttl)
	if _, err := s.otpRepo.Create(ctx, email, string(codeHash), userID, expiresAt); err != nil {
		return "", fmt.Errorf("failed to store challenge: %w", err)
	}

	logger.DebugContext(ctx, "OTP challenge issued", "email", email, "expires_at", expiresAt)
	return code, nil
}

func (s *otpService) Verify(ctx context.Context, email, code string) (*domain.UserLink, error) {
	email = domain.NormalizeEmail(email)
	if !s.ValidateFormat(code) {
		return nil, fmt.Errorf("%w: code must be %d digits", domain.ErrInvalidInput, domain.OtpCodeLength)
	}

	challenge, err := s.otpRepo.FindLatestUnused(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if challenge == nil {
		return nil, domain.ErrOTPNotFound
	}
	if challenge.Expired(time.Now()) {
		return nil, domain.ErrOTPExpired
	}

	if bcrypt.CompareHashAndPassword([]byte(challenge.CodeHash), []byte(code)) != nil {
		return nil, domain.ErrOTPNotFound
	}

	consumed, err := s.otpRepo.Consume(ctx, challenge.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !consumed {
		// Lost the race to a concurrent verification.
		return nil, domain.ErrOTPNotFound
	}

	return &domain.UserLink{Email: challenge.Email, UserID: challenge.UserID}, nil
}

func (s *otpService) ValidateFormat(code string) bool {
	if len(code) != domain.OtpCodeLength {
		return false
	}
	for _, c := range []byte(code) {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func generateCode(length int) (string, error) {
	const digits = "0123456789"
	// Reject bytes >= 250 so the modulo cannot skew toward low digits.
	const limit = 250

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, digits[int(b)%len(digits)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
