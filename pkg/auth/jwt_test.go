package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/nammaooru/civic-reports/internal/domain"
	"github.com/nammaooru/civic-reports/pkg/auth"
)

const secret = "unit-test-secret"

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := auth.NewSessionToken(42, "citizen@example.com", domain.RoleCitizen, "Asha", secret, time.Hour)
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}

	claims, err := auth.Parse(token, secret)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Sub != 42 {
		t.Errorf("Sub = %d, want 42", claims.Sub)
	}
	if claims.Email != "citizen@example.com" {
		t.Errorf("Email = %s", claims.Email)
	}
	if claims.Role != domain.RoleCitizen {
		t.Errorf("Role = %s", claims.Role)
	}
	if claims.FirstName != "Asha" {
		t.Errorf("FirstName = %s", claims.FirstName)
	}
}

func TestParseExpiredToken(t *testing.T) {
	token, err := auth.NewSessionToken(42, "citizen@example.com", domain.RoleCitizen, "", secret, -time.Minute)
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}

	if _, err := auth.Parse(token, secret); !errors.Is(err, auth.ErrTokenExpired) {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}
}

func TestParseWrongSecret(t *testing.T) {
	token, err := auth.NewSessionToken(42, "citizen@example.com", domain.RoleCitizen, "", secret, time.Hour)
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}

	if _, err := auth.Parse(token, "some-other-secret"); !errors.Is(err, auth.ErrTokenSignature) {
		t.Errorf("err = %v, want ErrTokenSignature", err)
	}
}

func TestParseMalformedToken(t *testing.T) {
	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := auth.Parse(tok, secret); !errors.Is(err, auth.ErrTokenMalformed) {
			t.Errorf("Parse(%q): err = %v, want ErrTokenMalformed", tok, err)
		}
	}
}

func TestParseRejectsUnknownRole(t *testing.T) {
	token, err := auth.NewSessionToken(42, "citizen@example.com", domain.Role("superuser"), "", secret, time.Hour)
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}

	if _, err := auth.Parse(token, secret); !errors.Is(err, auth.ErrTokenMalformed) {
		t.Errorf("err = %v, want ErrTokenMalformed", err)
	}
}
