package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Bidon15/printspool/internal/auth"
	"github.com/Bidon15/printspool/internal/models"
	brokererrors "github.com/Bidon15/printspool/internal/pkg/errors"
	"github.com/Bidon15/printspool/internal/service"
)

func testTokenManager(t *testing.T) *auth.Manager {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	tokens, err := auth.NewManager("api-test-secret", time.Hour, logger)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return tokens
}

func TestAuthHandler_Login(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name           string
		body           any
		mockService    *mockUserService
		expectedStatus int
		checkResponse  func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name: "issues token for valid credentials",
			body: service.LoginRequest{Username: "alice", Password: "hunter2hunter2"},
			mockService: &mockUserService{
				loginFunc: func(ctx context.Context, req service.LoginRequest) (*service.LoginResponse, error) {
					return &service.LoginResponse{
						Token:     "signed-token",
						User:      &models.User{ID: userID, Username: req.Username, Role: models.RoleUser},
						ExpiresIn: 3600,
					}, nil
				},
			},
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp struct {
					Data service.LoginResponse `json:"data"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("Failed to unmarshal response: %v", err)
				}
				if resp.Data.Token != "signed-token" {
					t.Errorf("Token = %q, want signed-token", resp.Data.Token)
				}
				if resp.Data.ExpiresIn != 3600 {
					t.Errorf("ExpiresIn = %d, want 3600", resp.Data.ExpiresIn)
				}
			},
		},
		{
			name: "rejects bad credentials",
			body: service.LoginRequest{Username: "alice", Password: "wrong"},
			mockService: &mockUserService{
				loginFunc: func(ctx context.Context, req service.LoginRequest) (*service.LoginResponse, error) {
					return nil, brokererrors.ErrUnauthorized.WithMessage("Invalid username or password")
				},
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "rejects invalid JSON",
			body:           "not json",
			mockService:    &mockUserService{},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &AuthHandler{Users: tt.mockService, Tokens: testTokenManager(t)}

			var reqBody []byte
			if s, ok := tt.body.(string); ok {
				reqBody = []byte(s)
			} else {
				reqBody, _ = json.Marshal(tt.body)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(reqBody))
			req.Header.Set("Content-Type", "application/json")

			rec := httptest.NewRecorder()
			handler.Login(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("Status = %d, want %d. Body: %s", rec.Code, tt.expectedStatus, rec.Body.String())
			}
			if tt.checkResponse != nil {
				tt.checkResponse(t, rec)
			}
		})
	}
}

func TestAuthHandler_Refresh(t *testing.T) {
	tokens := testTokenManager(t)
	handler := &AuthHandler{Users: &mockUserService{}, Tokens: tokens}

	token, err := tokens.GenerateToken(uuid.NewString(), "alice", []string{"user"})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	t.Run("reissues a valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		rec := httptest.NewRecorder()
		handler.Refresh(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200. Body: %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Data struct {
				Token     string `json:"token"`
				ExpiresIn int64  `json:"expires_in"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if resp.Data.Token == "" {
			t.Error("expected a fresh token")
		}
		if _, err := tokens.ValidateToken(resp.Data.Token); err != nil {
			t.Errorf("fresh token does not validate: %v", err)
		}
	})

	t.Run("rejects garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
		req.Header.Set("Authorization", "Bearer garbage")

		rec := httptest.NewRecorder()
		handler.Refresh(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Status = %d, want 401", rec.Code)
		}
	})
}
