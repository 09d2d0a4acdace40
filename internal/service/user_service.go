package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Bidon15/printspool/internal/auth"
	"github.com/Bidon15/printspool/internal/models"
	brokererrors "github.com/Bidon15/printspool/internal/pkg/errors"
	"github.com/Bidon15/printspool/internal/repository"
)

// CreateUserRequest is the request for creating an operator account.
type CreateUserRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=50"`
	Password string  `json:"password" validate:"required,min=8,max=128"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=100"`
	Role     string  `json:"role,omitempty" validate:"omitempty,oneof=admin user viewer"`
}

// UpdateUserRequest is the request for mutating an account. Nil fields
// are left unchanged.
type UpdateUserRequest struct {
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=100"`
	Role     *string `json:"role,omitempty" validate:"omitempty,oneof=admin user viewer"`
	IsActive *bool   `json:"is_active,omitempty"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8,max=128"`
}

// LoginRequest is the request for password authentication.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries a fresh token and its owner.
type LoginResponse struct {
	Token     string       `json:"token"`
	User      *models.User `json:"user"`
	ExpiresIn int64        `json:"expires_in"`
}

// UserService defines the interface for operator account management and
// authentication.
type UserService interface {
	Create(ctx context.Context, req CreateUserRequest) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, activeOnly bool) ([]*models.User, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type userService struct {
	userRepo repository.UserRepository
	tokens   *auth.Manager
	validate *validator.Validate
	logger   *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(userRepo repository.UserRepository, tokens *auth.Manager, logger *slog.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		tokens:   tokens,
		validate: validator.New(),
		logger:   logger,
	}
}

// validateStruct maps the first validator failure to a field-level
// validation error.
func validateStruct(v *validator.Validate, req any) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return brokererrors.NewValidationError(
			strings.ToLower(fe.Field()),
			fmt.Sprintf("failed %s constraint", fe.Tag()),
		)
	}
	return brokererrors.ErrValidation
}

func (s *userService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}

	hash, salt, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := models.RoleUser
	if req.Role != "" {
		role = models.Role(req.Role)
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		PasswordSalt: salt,
		FullName:     req.FullName,
		Role:         role,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if brokererrors.IsBrokerError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user created",
		slog.String("username", user.Username),
		slog.String("role", user.Role.String()),
	)
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, brokererrors.NewNotFoundError("User")
	}
	return user, nil
}

func (s *userService) List(ctx context.Context, activeOnly bool) ([]*models.User, error) {
	users, err := s.userRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *userService) Update(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*models.User, error) {
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	patch := models.UserPatch{
		Email:    req.Email,
		FullName: req.FullName,
		IsActive: req.IsActive,
	}
	if req.Role != nil {
		role := models.Role(*req.Role)
		patch.Role = &role
	}

	if patch.Email != nil || patch.FullName != nil || patch.Role != nil || patch.IsActive != nil {
		if err := s.userRepo.Update(ctx, id, patch); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
	}

	if req.Password != nil {
		hash, salt, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		if err := s.userRepo.UpdatePassword(ctx, id, hash, salt); err != nil {
			return nil, fmt.Errorf("update password: %w", err)
		}
	}

	return s.GetByID(ctx, id)
}

func (s *userService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info("user deleted", slog.String("user_id", id.String()))
	return nil
}

// Login verifies credentials and mints a wire/admin token. The token's
// client_id claim is the user id, which is what scopes plain users to
// their own jobs.
func (s *userService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	// Same answer for unknown user and wrong password.
	if user == nil || !auth.VerifyPassword(req.Password, user.PasswordHash, user.PasswordSalt) {
		return nil, brokererrors.ErrUnauthorized.WithMessage("Invalid username or password")
	}
	if !user.IsActive {
		return nil, brokererrors.ErrForbidden.WithMessage("Account is disabled")
	}

	token, err := s.tokens.GenerateToken(user.ID.String(), user.Username, []string{user.Role.String()})
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("last login update failed",
			slog.String("username", user.Username),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("user logged in", slog.String("username", user.Username))
	return &LoginResponse{
		Token:     token,
		User:      user,
		ExpiresIn: int64(s.tokens.Expiry().Seconds()),
	}, nil
}
