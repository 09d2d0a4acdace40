package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Bidon15/printspool/internal/auth"
	"github.com/Bidon15/printspool/internal/models"
	brokererrors "github.com/Bidon15/printspool/internal/pkg/errors"
)

// --- Mock User Repository ---

type mockUserRepo struct {
	users      map[uuid.UUID]*models.User
	lastLogins int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	for _, u := range m.users {
		if u.Username == user.Username {
			return brokererrors.NewConflictError("username or email already exists")
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) List(ctx context.Context, activeOnly bool) ([]*models.User, error) {
	var out []*models.User
	for _, u := range m.users {
		if activeOnly && !u.IsActive {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (m *mockUserRepo) Update(ctx context.Context, id uuid.UUID, patch models.UserPatch) error {
	u, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if patch.Email != nil {
		u.Email = patch.Email
	}
	if patch.FullName != nil {
		u.FullName = patch.FullName
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	u, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	now := time.Now()
	u.LastLogin = &now
	u.LastActivity = &now
	m.lastLogins++
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hash, salt string) error {
	u, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PasswordHash = hash
	u.PasswordSalt = salt
	return nil
}

// --- Test User Service ---

type testUserService struct {
	userRepo *mockUserRepo
	tokens   *auth.Manager
	svc      UserService
}

func newTestUserService(t *testing.T) *testUserService {
	t.Helper()

	userRepo := newMockUserRepo()
	tokens, err := auth.NewManager("test-secret-key-for-user-service", time.Hour, testLogger())
	if err != nil {
		t.Fatalf("auth.NewManager() error = %v", err)
	}

	return &testUserService{
		userRepo: userRepo,
		tokens:   tokens,
		svc:      NewUserService(userRepo, tokens, testLogger()),
	}
}

func (ts *testUserService) seedUser(t *testing.T, username, password string, role models.Role, active bool) *models.User {
	t.Helper()
	user, err := ts.svc.Create(context.Background(), CreateUserRequest{
		Username: username,
		Password: password,
		Role:     role.String(),
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	if !active {
		f := false
		if _, err := ts.svc.Update(context.Background(), user.ID, UpdateUserRequest{IsActive: &f}); err != nil {
			t.Fatalf("deactivate user %s: %v", username, err)
		}
	}
	return user
}

// --- Tests ---

func TestUserService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates user with hashed password", func(t *testing.T) {
		ts := newTestUserService(t)

		user, err := ts.svc.Create(ctx, CreateUserRequest{
			Username: "alice",
			Password: "correct horse battery",
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		if user.Role != models.RoleUser {
			t.Errorf("Role = %v, want default user", user.Role)
		}
		if !user.IsActive {
			t.Error("new user not active")
		}
		if user.PasswordHash == "" || user.PasswordHash == "correct horse battery" {
			t.Error("password not hashed")
		}
		if !auth.VerifyPassword("correct horse battery", user.PasswordHash, user.PasswordSalt) {
			t.Error("stored hash does not verify")
		}
	})

	t.Run("rejects duplicate username", func(t *testing.T) {
		ts := newTestUserService(t)
		ts.seedUser(t, "bob", "a strong password", models.RoleUser, true)

		_, err := ts.svc.Create(ctx, CreateUserRequest{
			Username: "bob",
			Password: "another password",
		})
		be := brokererrors.AsBrokerError(err)
		if be.Code != "CONFLICT" {
			t.Errorf("Create() code = %v, want CONFLICT", be.Code)
		}
	})

	t.Run("rejects invalid requests", func(t *testing.T) {
		ts := newTestUserService(t)

		tests := []struct {
			name string
			req  CreateUserRequest
		}{
			{"short password", CreateUserRequest{Username: "carol", Password: "short"}},
			{"short username", CreateUserRequest{Username: "cc", Password: "a strong password"}},
			{"bad role", CreateUserRequest{Username: "carol", Password: "a strong password", Role: "root"}},
			{"bad email", CreateUserRequest{Username: "carol", Password: "a strong password", Email: strPtr("not-an-email")}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ts.svc.Create(ctx, tt.req)
				be := brokererrors.AsBrokerError(err)
				if be.Code != "VALIDATION_ERROR" {
					t.Errorf("Create() code = %v, want VALIDATION_ERROR", be.Code)
				}
			})
		}
	})
}

func strPtr(s string) *string { return &s }

func TestUserService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials mint a scoped token", func(t *testing.T) {
		ts := newTestUserService(t)
		user := ts.seedUser(t, "alice", "correct horse battery", models.RoleAdmin, true)

		resp, err := ts.svc.Login(ctx, LoginRequest{Username: "alice", Password: "correct horse battery"})
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}

		if resp.ExpiresIn != 3600 {
			t.Errorf("ExpiresIn = %d, want 3600", resp.ExpiresIn)
		}
		claims, err := ts.tokens.ValidateToken(resp.Token)
		if err != nil {
			t.Fatalf("minted token does not validate: %v", err)
		}
		if claims.ClientID != user.ID.String() {
			t.Errorf("token client_id = %v, want user id %v", claims.ClientID, user.ID)
		}
		if !claims.HasRole("admin") {
			t.Errorf("token roles = %v, want admin", claims.Roles)
		}
		if ts.userRepo.lastLogins != 1 {
			t.Errorf("last login updates = %d, want 1", ts.userRepo.lastLogins)
		}
	})

	t.Run("wrong password and unknown user get the same answer", func(t *testing.T) {
		ts := newTestUserService(t)
		ts.seedUser(t, "alice", "correct horse battery", models.RoleUser, true)

		_, errWrong := ts.svc.Login(ctx, LoginRequest{Username: "alice", Password: "wrong"})
		_, errUnknown := ts.svc.Login(ctx, LoginRequest{Username: "mallory", Password: "wrong"})

		for _, err := range []error{errWrong, errUnknown} {
			be := brokererrors.AsBrokerError(err)
			if be.Code != "UNAUTHORIZED" {
				t.Errorf("Login() code = %v, want UNAUTHORIZED", be.Code)
			}
		}
		wrongMsg := brokererrors.AsBrokerError(errWrong).Message
		unknownMsg := brokererrors.AsBrokerError(errUnknown).Message
		if wrongMsg != unknownMsg {
			t.Errorf("messages differ: %q vs %q", wrongMsg, unknownMsg)
		}
	})

	t.Run("disabled account is forbidden", func(t *testing.T) {
		ts := newTestUserService(t)
		ts.seedUser(t, "eve", "correct horse battery", models.RoleUser, false)

		_, err := ts.svc.Login(ctx, LoginRequest{Username: "eve", Password: "correct horse battery"})
		be := brokererrors.AsBrokerError(err)
		if be.Code != "FORBIDDEN" {
			t.Errorf("Login() code = %v, want FORBIDDEN", be.Code)
		}
	})
}

func TestUserService_Update(t *testing.T) {
	ctx := context.Background()
	ts := newTestUserService(t)
	user := ts.seedUser(t, "alice", "correct horse battery", models.RoleUser, true)

	role := "viewer"
	newPassword := "an even stronger one"
	updated, err := ts.svc.Update(ctx, user.ID, UpdateUserRequest{
		Role:     &role,
		Password: &newPassword,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if updated.Role != models.RoleViewer {
		t.Errorf("Role = %v, want viewer", updated.Role)
	}
	if !auth.VerifyPassword(newPassword, updated.PasswordHash, updated.PasswordSalt) {
		t.Error("new password does not verify")
	}
	if auth.VerifyPassword("correct horse battery", updated.PasswordHash, updated.PasswordSalt) {
		t.Error("old password still verifies")
	}
}

func TestUserService_Delete(t *testing.T) {
	ctx := context.Background()
	ts := newTestUserService(t)

	if err := ts.svc.Delete(ctx, uuid.New()); err == nil {
		t.Error("Delete() of missing user succeeded")
	} else if be := brokererrors.AsBrokerError(err); be.Code != "NOT_FOUND" {
		t.Errorf("Delete() code = %v, want NOT_FOUND", be.Code)
	}

	user := ts.seedUser(t, "gone", "a strong password", models.RoleUser, true)
	if err := ts.svc.Delete(ctx, user.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := ts.svc.GetByID(ctx, user.ID); err == nil {
		t.Error("deleted user still readable")
	}
}
