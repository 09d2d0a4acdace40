package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's permission level on the admin API.
type Role string

const (
	// RoleAdmin grants full access including user management.
	RoleAdmin Role = "admin"
	// RoleUser grants access to the user's own jobs only.
	RoleUser Role = "user"
	// RoleViewer grants read access to all jobs and stats.
	RoleViewer Role = "viewer"
)

// Valid returns true if the role is known.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleViewer:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// User represents an operator or client account. Password material is
// stored as hex-encoded PBKDF2 hash and salt and never serialized.
type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	Email        *string    `json:"email,omitempty" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	PasswordSalt string     `json:"-" db:"password_salt"`
	FullName     *string    `json:"full_name,omitempty" db:"full_name"`
	Role         Role       `json:"role" db:"role"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	IsVerified   bool       `json:"is_verified" db:"is_verified"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty" db:"last_login"`
	LastActivity *time.Time `json:"last_activity,omitempty" db:"last_activity"`
}

// UserPatch is a partial update applied to a stored user. Nil fields are
// left untouched.
type UserPatch struct {
	Email    *string
	FullName *string
	Role     *Role
	IsActive *bool
}
