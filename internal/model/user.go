package model

import (
	"time"

	"github.com/neighborly/neighborly/internal/authz"
)

// SignupBonus is the number of credit points granted to every new account.
const SignupBonus = 50

// User is a registered account. Email and phone are optional but unique when
// present. Passwords are stored as bcrypt hashes.
type User struct {
	ID           int64      `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	Email        *string    `json:"email,omitempty" db:"email"`
	Phone        *string    `json:"phone,omitempty" db:"phone"`
	RealName     string     `json:"real_name,omitempty" db:"real_name"`
	PasswordHash string     `json:"-" db:"password_hash"` // bcrypt hash, never expose
	Role         authz.Role `json:"user_type" db:"user_type"`
	CreditPoints int64      `json:"credit_points" db:"credit_points"`
	IsVerified   bool       `json:"is_verified" db:"is_verified"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Principal returns the authorization view of u.
func (u *User) Principal() *authz.User {
	if u == nil {
		return nil
	}
	return &authz.User{ID: u.ID, Role: u.Role}
}

// RoleCount is one row of the per-role user breakdown.
type RoleCount struct {
	Role  authz.Role `json:"role" db:"user_type"`
	Count int64      `json:"count" db:"count"`
}

// UserFilter narrows a user listing. Zero fields match everything.
type UserFilter struct {
	Role   authz.Role
	Limit  int
	Offset int
}
