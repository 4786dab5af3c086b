package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Peer roles on the hub
const (
	RoleRelay      = "relay"      // the capture relay
	RoleController = "controller" // a remote orchestrator sending commands
)

// DefaultTokenTTL is the lifetime of a peer token
const DefaultTokenTTL = 24 * time.Hour

var (
	ErrMissingSecret = errors.New("jwt secret is not configured")
	ErrInvalidRole   = errors.New("invalid peer role")
)

// PeerClaims represents the claims in a hub peer token
type PeerClaims struct {
	PeerID string `json:"peer_id"`
	Role   string `json:"role"` // "relay" or "controller"
	jwt.RegisteredClaims
}

// GeneratePeerToken generates a JWT token for a hub peer
func GeneratePeerToken(secret []byte, peerID, role string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrMissingSecret
	}
	if role != RoleRelay && role != RoleController {
		return "", ErrInvalidRole
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	claims := &PeerClaims{
		PeerID: peerID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   peerID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(secret []byte, tokenString string) (*PeerClaims, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &PeerClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*PeerClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrInvalidKey
	}
	if claims.Role != RoleRelay && claims.Role != RoleController {
		return nil, ErrInvalidRole
	}
	return claims, nil
}

// TokenFromRequest extracts a bearer token from the Authorization header,
// falling back to the token query parameter for browser clients.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// BearerHeader returns request headers carrying token.
func BearerHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
