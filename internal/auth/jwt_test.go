package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func TestGeneratePeerToken_RoundTrip(t *testing.T) {
	token, err := GeneratePeerToken(testSecret, "relay-1", RoleRelay, time.Hour)
	if err != nil {
		t.Fatalf("GeneratePeerToken() error = %v", err)
	}

	claims, err := ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.PeerID != "relay-1" || claims.Role != RoleRelay {
		t.Errorf("claims = %+v, want relay-1/relay", claims)
	}
	if claims.Subject != "relay-1" {
		t.Errorf("subject = %q, want relay-1", claims.Subject)
	}
}

func TestGeneratePeerToken_Errors(t *testing.T) {
	if _, err := GeneratePeerToken(nil, "p", RoleRelay, 0); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("error = %v, want ErrMissingSecret", err)
	}
	if _, err := GeneratePeerToken(testSecret, "p", "device", 0); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("error = %v, want ErrInvalidRole", err)
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	valid, _ := GeneratePeerToken(testSecret, "c", RoleController, time.Hour)
	defaultTTL, _ := GeneratePeerToken(testSecret, "c", RoleController, -time.Hour)

	// A token with an unknown role signed with the right secret
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, &PeerClaims{
		PeerID: "x",
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	badRole, _ := forged.SignedString(testSecret)

	tests := []struct {
		name   string
		secret []byte
		token  string
	}{
		{"wrong secret", []byte("other"), valid},
		{"garbage", testSecret, "not-a-token"},
		{"bad role", testSecret, badRole},
		{"no secret", nil, valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateToken(tt.secret, tt.token); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	// A negative ttl falls back to the default lifetime.
	if _, err := ValidateToken(testSecret, defaultTTL); err != nil {
		t.Errorf("default ttl token rejected: %v", err)
	}
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws?token=query-token", nil)
	if got := TokenFromRequest(req); got != "query-token" {
		t.Errorf("TokenFromRequest() = %q, want query-token", got)
	}

	req.Header = BearerHeader("header-token")
	if got := TokenFromRequest(req); got != "header-token" {
		t.Errorf("TokenFromRequest() = %q, want header-token", got)
	}

	if len(BearerHeader("")) != 0 {
		t.Error("BearerHeader(\"\") should be empty")
	}
}
