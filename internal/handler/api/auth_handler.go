package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Bidon15/printspool/internal/auth"
	brokererrors "github.com/Bidon15/printspool/internal/pkg/errors"
	"github.com/Bidon15/printspool/internal/pkg/response"
	"github.com/Bidon15/printspool/internal/service"
)

// AuthHandler handles operator authentication.
type AuthHandler struct {
	Users  service.UserService
	Tokens *auth.Manager
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, brokererrors.ErrValidation.WithMessage("Invalid request body"))
		return
	}

	result, err := h.Users.Login(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, result)
}

// Refresh handles POST /api/auth/refresh. The caller's token already
// passed the auth middleware; re-issue it with fresh timestamps.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")

	fresh, err := h.Tokens.RefreshToken(token)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]any{
		"token":      fresh,
		"expires_in": int64(h.Tokens.Expiry().Seconds()),
	})
}
