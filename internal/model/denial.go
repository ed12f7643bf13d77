package model

import (
	"time"

	"github.com/neighborly/neighborly/internal/authz"
)

// Denial is a recorded access-denied event. UserID is nil for anonymous
// requests.
type Denial struct {
	ID         int64            `json:"id" db:"id"`
	RequestID  string           `json:"request_id" db:"request_id"`
	UserID     *int64           `json:"user_id,omitempty" db:"user_id"`
	Role       authz.Role       `json:"role,omitempty" db:"role"`
	Method     string           `json:"method" db:"method"`
	Path       string           `json:"path" db:"path"`
	Reason     string           `json:"reason" db:"reason"`
	Permission authz.Permission `json:"required_permission,omitempty" db:"required_permission"`
	Required   authz.Role       `json:"required_role,omitempty" db:"required_role"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
}

// DenialFilter narrows a denial listing. Zero fields match everything.
type DenialFilter struct {
	UserID *int64
	Reason string
	Since  time.Time
	Limit  int
	Offset int
}
