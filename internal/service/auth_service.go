package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/nammaooru/civic-reports/internal/domain"
	"github.com/nammaooru/civic-reports/internal/repo/postgres"
	"github.com/nammaooru/civic-reports/pkg/auth"
	"github.com/nammaooru/civic-reports/pkg/config"
	"github.com/nammaooru/civic-reports/pkg/events"
	"github.com/nammaooru/civic-reports/pkg/logger"
)

type AuthService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.UserInfo, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.SessionGrant, error)
	// IssueOtp creates a challenge and queues the code email. It succeeds
	// whether or not an account exists for the address, so callers learn
	// nothing about registered emails.
	IssueOtp(ctx context.Context, email string) error
	VerifyOtp(ctx context.Context, email, code string) (*domain.SessionGrant, error)
	UpdateUserRole(ctx context.Context, userID int64, role string) error
}

type authService struct {
	userRepo   postgres.UserRepository
	outboxRepo postgres.OutboxRepository
	otp        OtpService
	publisher  events.Publisher
	config     *config.Config
}

func NewAuthService(
	userRepo postgres.UserRepository,
	outboxRepo postgres.OutboxRepository,
	otp OtpService,
	publisher events.Publisher,
	config *config.Config,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		outboxRepo: outboxRepo,
		otp:        otp,
		publisher:  publisher,
		config:     config,
	}
}

func (s *authService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.UserInfo, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrEmailExists
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, req, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Kick off verification right away so the caller only has to ask for a
	// resend if the first code never arrives.
	if err := s.issueAndQueueCode(ctx, user.Email, user.FirstName); err != nil {
		logger.ErrorContext(ctx, "Failed to issue verification code after registration",
			"error", err, "user_id", user.ID)
	}

	return user.ToUserInfo(), nil
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.SessionGrant, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.Active {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return nil, domain.ErrNotVerified
	}

	valid, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, domain.ErrInvalidCredentials
	}

	return s.grantSession(user)
}

func (s *authService) IssueOtp(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if !domain.IsValidEmail(email) {
		return fmt.Errorf("%w: invalid email format", domain.ErrInvalidInput)
	}

	firstName := ""
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if user != nil {
		firstName = user.FirstName
	}

	return s.issueAndQueueCode(ctx, email, firstName)
}

func (s *authService) VerifyOtp(ctx context.Context, email, code string) (*domain.SessionGrant, error) {
	link, err := s.otp.Verify(ctx, email, code)
	if err != nil {
		return nil, err
	}

	// A challenge issued before registration has no account behind it, so
	// there is no identity to grant a session for.
	if link.UserID == nil {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.userRepo.FindByID(ctx, *link.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || !user.Active {
		return nil, domain.ErrInvalidCredentials
	}

	if !user.EmailVerified {
		if err := s.userRepo.MarkVerified(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to mark user verified: %w", err)
		}
		user.EmailVerified = true

		if err := s.publisher.Publish(ctx, events.UserVerified, events.UserVerifiedEvent{
			UserID:     user.ID,
			Email:      user.Email,
			VerifiedAt: time.Now(),
		}); err != nil {
			logger.WarnContext(ctx, "Failed to publish user verified event", "error", err, "user_id", user.ID)
		}

		subject, body := renderWelcomeEmail(user.FirstName)
		if _, err := s.outboxRepo.Enqueue(ctx, user.Email, user.FirstName, subject, body); err != nil {
			logger.ErrorContext(ctx, "Failed to enqueue welcome email", "error", err, "user_id", user.ID)
		}
	}

	return s.grantSession(user)
}

func (s *authService) UpdateUserRole(ctx context.Context, userID int64, role string) error {
	parsed, ok := domain.ParseRole(role)
	if !ok {
		return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return domain.ErrNotFound
	}

	if err := s.userRepo.UpdateRole(ctx, userID, parsed); err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}

	logger.InfoContext(ctx, "User role updated", "user_id", userID, "role", parsed)
	return nil
}

func (s *authService) issueAndQueueCode(ctx context.Context, email, firstName string) error {
	code, err := s.otp.Issue(ctx, email)
	if err != nil {
		return err
	}

	subject, body := renderOtpEmail(firstName, code, s.config.Auth.OtpTTL)
	if _, err := s.outboxRepo.Enqueue(ctx, email, firstName, subject, body); err != nil {
		return fmt.Errorf("failed to enqueue code email: %w", err)
	}
	return nil
}

func (s *authService) grantSession(user *domain.User) (*domain.SessionGrant, error) {
	ttl := s.config.Auth.SessionTokenTTL
	token, err := auth.NewSessionToken(user.ID, user.Email, user.Role, user.FirstName, s.config.Auth.JWTSecret, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	return &domain.SessionGrant{
		Token:     token,
		ExpiresIn: int64(ttl.Seconds()),
		User:      user.ToUserInfo(),
	}, nil
}
