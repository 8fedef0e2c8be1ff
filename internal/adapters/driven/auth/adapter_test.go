package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/askrichie/internal/core/domain"
)

func TestNewAdapter(t *testing.T) {
	adapter := NewAdapter("test-secret")
	if adapter == nil {
		t.Fatal("expected non-nil adapter")
	}
	if string(adapter.jwtSecret) != "test-secret" {
		t.Errorf("expected secret 'test-secret', got %s", string(adapter.jwtSecret))
	}
}

func TestGenerateToken(t *testing.T) {
	adapter := NewAdapter("test-secret")

	token, err := adapter.GenerateToken(&domain.TokenClaims{
		UserID:    "user-123",
		Email:     "test@example.com",
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// JWT has 3 parts separated by dots
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Errorf("expected 3 JWT parts, got %d", len(parts))
	}
}

func TestParseToken_RoundTrip(t *testing.T) {
	adapter := NewAdapter("test-secret")
	now := time.Now()

	original := &domain.TokenClaims{
		UserID:    "user-123",
		Email:     "test@example.com",
		Role:      "member",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
	}

	token, err := adapter.GenerateToken(original)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := adapter.ParseToken(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if *parsed != *original {
		t.Errorf("round trip mismatch: got %+v, want %+v", parsed, original)
	}
}

func TestParseToken_SubjectClaim(t *testing.T) {
	// Tokens minted by the identity provider carry only registered claims
	secret := []byte("shared-secret")
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "external-user",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := raw.SignedString(secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := NewAdapter("shared-secret").ParseToken(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.UserID != "external-user" {
		t.Errorf("expected user id from sub, got %s", parsed.UserID)
	}
}

func TestParseToken_ExpiredToken(t *testing.T) {
	adapter := NewAdapter("test-secret")

	token, err := adapter.GenerateToken(&domain.TokenClaims{
		UserID:    "user-123",
		IssuedAt:  time.Now().Add(-2 * time.Hour).Unix(),
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = adapter.ParseToken(token)
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseToken_Invalid(t *testing.T) {
	adapter := NewAdapter("test-secret")

	wrongSecret, _ := NewAdapter("other-secret").GenerateToken(&domain.TokenClaims{
		UserID:    "user-123",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	testCases := []struct {
		name  string
		token string
	}{
		{"garbage", "invalid-token"},
		{"empty", ""},
		{"malformed", "not.a.jwt"},
		{"wrong secret", wrongSecret},
		{"alg none", unsigned},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := adapter.ParseToken(tc.token)
			if !errors.Is(err, domain.ErrTokenInvalid) {
				t.Errorf("expected ErrTokenInvalid, got %v", err)
			}
		})
	}
}
