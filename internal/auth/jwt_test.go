package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestManager(expiry time.Duration) *JWTManager {
	cfg := DefaultJWTConfig("test-secret")
	cfg.Expiry = expiry
	return NewJWTManager(cfg)
}

func TestGenerateAndValidateToken(t *testing.T) {
	m := newTestManager(time.Hour)

	token, sessionID, err := m.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if sessionID == "" {
		t.Fatal("empty session ID")
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.SessionID != sessionID {
		t.Errorf("session ID = %q, want %q", claims.SessionID, sessionID)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	m := newTestManager(time.Hour)
	other := NewJWTManager(DefaultJWTConfig("other-secret"))

	token, _, err := m.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("got %v, want ErrInvalidToken", err)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	m := newTestManager(-time.Minute)

	token, err := m.GenerateToken("sess-1")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := m.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("got %v, want ErrExpiredToken", err)
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	m := newTestManager(time.Hour)

	if _, err := m.ValidateToken("not.a.token"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestRefreshTokenKeepsSession(t *testing.T) {
	m := newTestManager(time.Hour)

	token, err := m.GenerateToken("sess-42")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	refreshed, err := m.RefreshToken(token)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}

	claims, err := m.ValidateToken(refreshed)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.SessionID != "sess-42" {
		t.Errorf("session ID = %q, want sess-42", claims.SessionID)
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	expired := newTestManager(-time.Minute)

	token, err := expired.GenerateToken("sess-7")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := expired.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("precondition: token should be expired, got %v", err)
	}

	// Refresh with a manager sharing the secret but issuing valid expiries.
	fresh := newTestManager(time.Hour)
	refreshed, err := fresh.RefreshToken(token)
	if err != nil {
		t.Fatalf("RefreshToken on expired token: %v", err)
	}

	claims, err := fresh.ValidateToken(refreshed)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.SessionID != "sess-7" {
		t.Errorf("session ID = %q, want sess-7", claims.SessionID)
	}
}
