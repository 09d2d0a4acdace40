package auth

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	brokererrors "github.com/Bidon15/printspool/internal/pkg/errors"
)

func newTestManager(t *testing.T, expiry time.Duration) *Manager {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := NewManager("test-secret-key", expiry, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestManager_GenerateAndValidate(t *testing.T) {
	m := newTestManager(t, time.Hour)

	token, err := m.GenerateToken("client-a", "alice", []string{"user"})
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.ClientID != "client-a" {
		t.Errorf("ClientID = %v, want client-a", claims.ClientID)
	}
	if claims.Username != "alice" {
		t.Errorf("Username = %v, want alice", claims.Username)
	}
	if !claims.HasRole("user") || claims.HasRole("admin") {
		t.Errorf("Roles = %v, want [user]", claims.Roles)
	}
	if claims.ID == "" {
		t.Error("token id (jti) is empty")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		t.Fatal("expiry or issued-at claim missing")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != time.Hour {
		t.Errorf("token lifetime = %v, want %v", got, time.Hour)
	}

	// Second validation is served from the cache and must agree.
	cached, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() cached error = %v", err)
	}
	if cached.ID != claims.ID {
		t.Errorf("cached jti = %v, want %v", cached.ID, claims.ID)
	}
}

func TestManager_ExpiredToken(t *testing.T) {
	m := newTestManager(t, time.Hour)

	// Issued two days ago with a one hour lifetime.
	token, err := m.signToken("client-a", "alice", []string{"user"}, time.Now().Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("signToken() error = %v", err)
	}

	_, err = m.ValidateToken(token)
	if err != brokererrors.ErrTokenExpired {
		t.Errorf("ValidateToken() error = %v, want ErrTokenExpired", err)
	}
}

func TestManager_CachedTokenRespectsExpiry(t *testing.T) {
	m := newTestManager(t, 30*time.Millisecond)

	token, err := m.GenerateToken("client-a", "alice", nil)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := m.ValidateToken(token); err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	if _, err := m.ValidateToken(token); err != brokererrors.ErrTokenExpired {
		t.Errorf("ValidateToken() after expiry = %v, want ErrTokenExpired", err)
	}
}

func TestManager_TamperedToken(t *testing.T) {
	m := newTestManager(t, time.Hour)

	token, err := m.GenerateToken("client-a", "alice", []string{"user"})
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	// Flip one byte in the signature segment.
	dot := strings.LastIndex(token, ".")
	sig := []byte(token[dot+1:])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := token[:dot+1] + string(sig)

	if _, err := m.ValidateToken(tampered); err != brokererrors.ErrTokenInvalid {
		t.Errorf("ValidateToken(tampered) error = %v, want ErrTokenInvalid", err)
	}
}

func TestManager_RejectsWrongAlgorithm(t *testing.T) {
	m := newTestManager(t, time.Hour)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		ClientID: "client-a",
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	if _, err := m.ValidateToken(unsigned); err != brokererrors.ErrTokenInvalid {
		t.Errorf("ValidateToken(alg=none) error = %v, want ErrTokenInvalid", err)
	}
}

func TestManager_GarbageToken(t *testing.T) {
	m := newTestManager(t, time.Hour)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := m.ValidateToken(token); err != brokererrors.ErrTokenInvalid {
			t.Errorf("ValidateToken(%q) error = %v, want ErrTokenInvalid", token, err)
		}
	}
}

func TestManager_RefreshToken(t *testing.T) {
	m := newTestManager(t, time.Hour)

	token, err := m.GenerateToken("client-a", "alice", []string{"user", "viewer"})
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	original, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}

	refreshed, err := m.RefreshToken(token)
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}

	claims, err := m.ValidateToken(refreshed)
	if err != nil {
		t.Fatalf("ValidateToken(refreshed) error = %v", err)
	}
	if claims.ClientID != "client-a" || claims.Username != "alice" {
		t.Errorf("refreshed principal = %v/%v, want client-a/alice", claims.ClientID, claims.Username)
	}
	if len(claims.Roles) != 2 {
		t.Errorf("refreshed roles = %v, want 2 roles", claims.Roles)
	}
	if claims.ID == original.ID {
		t.Error("refreshed token reuses the original jti")
	}
}

func TestManager_RefreshRejectsExpired(t *testing.T) {
	m := newTestManager(t, time.Hour)

	token, err := m.signToken("client-a", "alice", nil, time.Now().Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("signToken() error = %v", err)
	}

	if _, err := m.RefreshToken(token); err != brokererrors.ErrTokenExpired {
		t.Errorf("RefreshToken(expired) error = %v, want ErrTokenExpired", err)
	}
}

func TestManager_EphemeralSecret(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	m1, err := NewManager("", time.Hour, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	m2, err := NewManager("", time.Hour, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	token, err := m1.GenerateToken("client-a", "alice", nil)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := m1.ValidateToken(token); err != nil {
		t.Errorf("issuer rejects its own token: %v", err)
	}
	if _, err := m2.ValidateToken(token); err != brokererrors.ErrTokenInvalid {
		t.Errorf("foreign manager accepted ephemeral token, error = %v", err)
	}
}
