package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Bidon15/printspool/internal/middleware"
	brokererrors "github.com/Bidon15/printspool/internal/pkg/errors"
	"github.com/Bidon15/printspool/internal/pkg/response"
	"github.com/Bidon15/printspool/internal/service"
)

// UserHandler handles operator account management.
type UserHandler struct {
	Users service.UserService
}

// Me handles GET /api/users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	id, err := uuid.Parse(claims.ClientID)
	if err != nil {
		// Wire-only tokens carry a client id, not a user id.
		response.Error(w, brokererrors.NewNotFoundError("User"))
		return
	}

	user, err := h.Users.GetByID(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, user)
}

// List handles GET /api/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	users, err := h.Users.List(r.Context(), activeOnly)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, users)
}

// Create handles POST /api/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, brokererrors.ErrValidation.WithMessage("Invalid request body"))
		return
	}

	user, err := h.Users.Create(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, user)
}

// Get handles GET /api/users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, brokererrors.NewValidationError("id", "invalid user id"))
		return
	}

	user, err := h.Users.GetByID(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, user)
}

// Update handles PUT /api/users/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, brokererrors.NewValidationError("id", "invalid user id"))
		return
	}

	var req service.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, brokererrors.ErrValidation.WithMessage("Invalid request body"))
		return
	}

	user, err := h.Users.Update(r.Context(), id, req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, user)
}

// Delete handles DELETE /api/users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, brokererrors.NewValidationError("id", "invalid user id"))
		return
	}

	if err := h.Users.Delete(r.Context(), id); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}
