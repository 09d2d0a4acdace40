// Package auth issues and verifies the HS256 bearer tokens used on both
// the wire protocol and the admin API, and handles password hashing.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	brokererrors "github.com/Bidon15/printspool/internal/pkg/errors"
)

const (
	// tokenCacheTTL bounds how long a successful verification is reused.
	tokenCacheTTL  = time.Minute
	tokenCacheSize = 1024

	ephemeralSecretLength = 64
)

// Claims carries the broker token claims.
type Claims struct {
	ClientID string   `json:"client_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole returns true if the claims carry the given role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Manager issues, verifies, and refreshes tokens. Successful
// verifications are cached briefly so submission bursts do not re-verify
// the same token on every frame.
type Manager struct {
	secret []byte
	expiry time.Duration
	cache  *expirable.LRU[string, *Claims]
	logger *slog.Logger
}

// NewManager creates a token manager. When secretKey is empty an
// ephemeral random secret is generated; tokens then die with the process.
func NewManager(secretKey string, expiry time.Duration, logger *slog.Logger) (*Manager, error) {
	secret := []byte(secretKey)
	if len(secret) == 0 {
		secret = make([]byte, ephemeralSecretLength)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate ephemeral secret: %w", err)
		}
		logger.Warn("no JWT secret configured, using ephemeral secret; issued tokens will not survive a restart")
	}

	return &Manager{
		secret: secret,
		expiry: expiry,
		cache:  expirable.NewLRU[string, *Claims](tokenCacheSize, nil, tokenCacheTTL),
		logger: logger,
	}, nil
}

// Expiry returns the configured token lifetime.
func (m *Manager) Expiry() time.Duration {
	return m.expiry
}

// GenerateToken issues a token for the given principal.
func (m *Manager) GenerateToken(clientID, username string, roles []string) (string, error) {
	return m.signToken(clientID, username, roles, time.Now())
}

func (m *Manager) signToken(clientID, username string, roles []string, now time.Time) (string, error) {
	claims := &Claims{
		ClientID: clientID,
		Username: username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// ValidateToken verifies a token and returns its claims. Expired tokens
// yield ErrTokenExpired; any other failure yields ErrTokenInvalid.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	if claims, ok := m.cache.Get(tokenString); ok {
		// A cached hit must still respect the token's own expiry.
		if claims.ExpiresAt != nil && claims.ExpiresAt.After(time.Now()) {
			return claims, nil
		}
		m.cache.Remove(tokenString)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, brokererrors.ErrTokenExpired
		}
		return nil, brokererrors.ErrTokenInvalid
	}

	m.cache.Add(tokenString, claims)
	return claims, nil
}

// RefreshToken verifies a token and issues a replacement carrying the
// same principal claims with fresh timestamps and id.
func (m *Manager) RefreshToken(tokenString string) (string, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	return m.GenerateToken(claims.ClientID, claims.Username, claims.Roles)
}
