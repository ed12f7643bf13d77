package authz

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownRole is returned when a role string is not part of the
	// role enumeration.
	ErrUnknownRole = errors.New("unknown role")
	// ErrUnknownPermission is returned when a permission string is not part of
	// the permission catalogue.
	ErrUnknownPermission = errors.New("unknown permission")
	// ErrMissingRole is returned by NewTable when the assignment leaves a role
	// without an entry.
	ErrMissingRole = errors.New("role has no permission entry")
)

// Role is the coarse-grained category a user belongs to. Every user holds
// exactly one role; role changes happen server-side only.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMerchant  Role = "merchant"
	RoleVIPUser   Role = "vip_user"
	RoleUser      Role = "user"
)

var allRoles = []Role{RoleAdmin, RoleModerator, RoleMerchant, RoleVIPUser, RoleUser}

// Roles returns every role in declaration order. The returned slice is a copy.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// Valid reports whether r is a member of the role enumeration.
func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

// Label returns the display label for the role. Unrecognized roles are
// labelled as a plain user.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Administrator"
	case RoleModerator:
		return "Moderator"
	case RoleMerchant:
		return "Merchant"
	case RoleVIPUser:
		return "VIP"
	default:
		return "User"
	}
}

// Color returns the CSS gradient used for the role badge.
func (r Role) Color() string {
	switch r {
	case RoleAdmin:
		return "linear-gradient(135deg, #dc2626, #b91c1c)"
	case RoleModerator:
		return "linear-gradient(135deg, #2563eb, #1d4ed8)"
	case RoleMerchant:
		return "linear-gradient(135deg, #059669, #047857)"
	case RoleVIPUser:
		return "linear-gradient(135deg, #d97706, #b45309)"
	default:
		return "linear-gradient(135deg, #6b7280, #4b5563)"
	}
}

// ParseRole converts s into a Role. Surrounding whitespace and case are
// ignored.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}
