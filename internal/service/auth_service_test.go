package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nammaooru/civic-reports/internal/domain"
	"github.com/nammaooru/civic-reports/internal/service"
	"github.com/nammaooru/civic-reports/pkg/auth"
	"github.com/nammaooru/civic-reports/pkg/config"
	"github.com/nammaooru/civic-reports/pkg/events"
)

const testSecret = "test-secret-0123456789"

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       testSecret,
			SessionTokenTTL: time.Hour,
			OtpTTL:          10 * time.Minute,
		},
	}
}

func newAuthFixture() (service.AuthService, service.OtpService, *mockUserRepo, *mockOutboxRepo) {
	userRepo := newMockUserRepo()
	otpRepo := newMockOtpRepo()
	outboxRepo := newMockOutboxRepo()
	otpSvc := service.NewOtpService(otpRepo, userRepo, 10*time.Minute)
	authSvc := service.NewAuthService(userRepo, outboxRepo, otpSvc, events.NopPublisher{}, testConfig())
	return authSvc, otpSvc, userRepo, outboxRepo
}

func TestRegisterQueuesVerificationCode(t *testing.T) {
	authSvc, _, _, outboxRepo := newAuthFixture()

	user, err := authSvc.Register(context.Background(), &domain.RegisterRequest{
		Email:     "New@Example.com",
		Password:  "correct-horse-battery",
		FirstName: "Asha",
		LastName:  "Kumar",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "new@example.com" {
		t.Errorf("email = %s, want lower-cased", user.Email)
	}

	if len(outboxRepo.enqueued) != 1 {
		t.Fatalf("enqueued %d tasks, want 1 verification code email", len(outboxRepo.enqueued))
	}
	if outboxRepo.enqueued[0].recipientEmail != "new@example.com" {
		t.Errorf("recipient = %s", outboxRepo.enqueued[0].recipientEmail)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	authSvc, _, userRepo, _ := newAuthFixture()
	userRepo.add("taken@example.com", domain.RoleCitizen, true)

	_, err := authSvc.Register(context.Background(), &domain.RegisterRequest{
		Email:     "taken@example.com",
		Password:  "correct-horse-battery",
		FirstName: "Asha",
	})
	if !errors.Is(err, domain.ErrEmailExists) {
		t.Errorf("err = %v, want ErrEmailExists", err)
	}
}

func TestVerifyOtpGrantsSessionAndMarksVerified(t *testing.T) {
	authSvc, _, userRepo, outboxRepo := newAuthFixture()

	if _, err := authSvc.Register(context.Background(), &domain.RegisterRequest{
		Email:     "citizen@example.com",
		Password:  "correct-horse-battery",
		FirstName: "Asha",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	code := extractCode(t, outboxRepo.enqueued[0].body)

	grant, err := authSvc.VerifyOtp(context.Background(), "citizen@example.com", code)
	if err != nil {
		t.Fatalf("VerifyOtp: %v", err)
	}
	if grant.Token == "" {
		t.Error("grant has no token")
	}
	if !grant.User.EmailVerified {
		t.Error("user not marked verified in grant")
	}

	claims, err := auth.Parse(grant.Token, testSecret)
	if err != nil {
		t.Fatalf("Parse granted token: %v", err)
	}
	if claims.Sub != grant.User.ID {
		t.Errorf("claims.Sub = %d, want %d", claims.Sub, grant.User.ID)
	}

	u := userRepo.byEmail["citizen@example.com"]
	if !u.EmailVerified {
		t.Error("user record not marked verified")
	}

	// Verification code + welcome email.
	if len(outboxRepo.enqueued) != 2 {
		t.Errorf("enqueued %d tasks, want 2", len(outboxRepo.enqueued))
	}
}

func TestVerifyOtpWithoutAccount(t *testing.T) {
	authSvc, otpSvc, _, _ := newAuthFixture()

	code, err := otpSvc.Issue(context.Background(), "stranger@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// The challenge is valid but no account exists behind it.
	if _, err := authSvc.VerifyOtp(context.Background(), "stranger@example.com", code); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestIssueOtpUnknownEmailSucceeds(t *testing.T) {
	authSvc, _, _, outboxRepo := newAuthFixture()

	if err := authSvc.IssueOtp(context.Background(), "unknown@example.com"); err != nil {
		t.Fatalf("IssueOtp: %v", err)
	}
	if len(outboxRepo.enqueued) != 1 {
		t.Errorf("enqueued %d tasks, want 1", len(outboxRepo.enqueued))
	}
}

func TestLoginUnverifiedEmail(t *testing.T) {
	authSvc, _, _, _ := newAuthFixture()

	if _, err := authSvc.Register(context.Background(), &domain.RegisterRequest{
		Email:     "citizen@example.com",
		Password:  "correct-horse-battery",
		FirstName: "Asha",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := authSvc.Login(context.Background(), &domain.LoginRequest{
		Email:    "citizen@example.com",
		Password: "correct-horse-battery",
	})
	if !errors.Is(err, domain.ErrNotVerified) {
		t.Errorf("err = %v, want ErrNotVerified", err)
	}
}

func TestLoginRoundTrip(t *testing.T) {
	authSvc, _, userRepo, outboxRepo := newAuthFixture()

	if _, err := authSvc.Register(context.Background(), &domain.RegisterRequest{
		Email:     "citizen@example.com",
		Password:  "correct-horse-battery",
		FirstName: "Asha",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	code := extractCode(t, outboxRepo.enqueued[0].body)
	if _, err := authSvc.VerifyOtp(context.Background(), "citizen@example.com", code); err != nil {
		t.Fatalf("VerifyOtp: %v", err)
	}

	grant, err := authSvc.Login(context.Background(), &domain.LoginRequest{
		Email:    "Citizen@Example.com",
		Password: "correct-horse-battery",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if grant.User.ID != userRepo.byEmail["citizen@example.com"].ID {
		t.Errorf("granted wrong user: %d", grant.User.ID)
	}

	_, err = authSvc.Login(context.Background(), &domain.LoginRequest{
		Email:    "citizen@example.com",
		Password: "wrong-password",
	})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestUpdateUserRole(t *testing.T) {
	authSvc, _, userRepo, _ := newAuthFixture()
	user := userRepo.add("citizen@example.com", domain.RoleCitizen, true)

	if err := authSvc.UpdateUserRole(context.Background(), user.ID, "moderator"); err != nil {
		t.Fatalf("UpdateUserRole: %v", err)
	}
	if user.Role != domain.RoleModerator {
		t.Errorf("role = %s, want moderator", user.Role)
	}

	if err := authSvc.UpdateUserRole(context.Background(), user.ID, "superuser"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("unknown role: err = %v, want ErrInvalidInput", err)
	}
	if err := authSvc.UpdateUserRole(context.Background(), 9999, "admin"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown user: err = %v, want ErrNotFound", err)
	}
}

func TestOtpEmailStatesConfiguredValidity(t *testing.T) {
	userRepo := newMockUserRepo()
	otpRepo := newMockOtpRepo()
	outboxRepo := newMockOutboxRepo()
	cfg := testConfig()
	cfg.Auth.OtpTTL = 5 * time.Minute
	otpSvc := service.NewOtpService(otpRepo, userRepo, cfg.Auth.OtpTTL)
	authSvc := service.NewAuthService(userRepo, outboxRepo, otpSvc, events.NopPublisher{}, cfg)

	if err := authSvc.IssueOtp(context.Background(), "citizen@example.com"); err != nil {
		t.Fatalf("IssueOtp: %v", err)
	}
	if len(outboxRepo.enqueued) != 1 {
		t.Fatalf("enqueued %d tasks, want 1", len(outboxRepo.enqueued))
	}
	if body := outboxRepo.enqueued[0].body; !strings.Contains(body, "valid for 5 minutes") {
		t.Errorf("body does not state the configured validity window: %s", body)
	}
}

// extractCode pulls the 6-digit code out of a rendered verification email.
func extractCode(t *testing.T, body string) string {
	t.Helper()
	const marker = "verification code is: "
	idx := strings.Index(body, marker)
	if idx == -1 {
		t.Fatalf("no code marker in body: %s", body)
	}
	code := body[idx+len(marker):]
	if len(code) < domain.OtpCodeLength {
		t.Fatalf("truncated code in body: %s", body)
	}
	return code[:domain.OtpCodeLength]
}
