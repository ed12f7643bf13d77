package authz

import (
	"encoding/json"
	"errors"
)

var (
	ErrUnauthenticated        = errors.New("authentication required")
	ErrInsufficientPermission = errors.New("insufficient permission")
	ErrRoleMismatch           = errors.New("role mismatch")
)

// Reason explains why a Decision was reached.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonUnauthenticated
	ReasonInsufficientPermission
	ReasonRoleMismatch
)

func (r Reason) String() string {
	switch r {
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonInsufficientPermission:
		return "insufficient_permission"
	case ReasonRoleMismatch:
		return "role_mismatch"
	default:
		return "none"
	}
}

// MarshalText encodes the reason as its string form.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Requirement is what a protected unit asks of the caller. Both fields are
// optional; the zero Requirement only asks for an authenticated user.
type Requirement struct {
	Role       Role       `json:"role,omitempty"`
	Permission Permission `json:"permission,omitempty"`
}

// IsZero reports whether the requirement asks for authentication only.
func (r Requirement) IsZero() bool {
	return r.Role == "" && r.Permission == ""
}

// Decision is the outcome of one guard evaluation.
type Decision struct {
	Allowed  bool
	Reason   Reason
	Required Requirement
}

// Err maps a denial to its sentinel error. Allowed decisions return nil.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonUnauthenticated:
		return ErrUnauthenticated
	case ReasonInsufficientPermission:
		return ErrInsufficientPermission
	case ReasonRoleMismatch:
		return ErrRoleMismatch
	}
	return ErrUnauthenticated
}

// MarshalJSON renders the decision for API responses.
func (d Decision) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Allowed  bool        `json:"allowed"`
		Reason   Reason      `json:"reason"`
		Required Requirement `json:"required"`
	}{d.Allowed, d.Reason, d.Required})
}

func allow(req Requirement) Decision { return Decision{Allowed: true, Required: req} }

func deny(req Requirement, reason Reason) Decision {
	return Decision{Reason: reason, Required: req}
}

// Evaluate runs the guard checks in order and stops at the first failure:
// authentication, then the required permission, then the required role.
func (t *Table) Evaluate(u *User, req Requirement) Decision {
	if u == nil {
		return deny(req, ReasonUnauthenticated)
	}
	if req.Permission != "" && !t.HasPermission(u, req.Permission) {
		return deny(req, ReasonInsufficientPermission)
	}
	if req.Role != "" && !t.HasRole(u, req.Role) {
		return deny(req, ReasonRoleMismatch)
	}
	return allow(req)
}
