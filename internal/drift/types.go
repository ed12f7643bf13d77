package drift

import (
	"time"

	"github.com/neighborly/neighborly/internal/authz"
)

// ChangeType classifies the direction of a policy change.
type ChangeType string

const (
	// ChangeEscalation means a role gains access: a new permission or a view
	// it could not open before.
	ChangeEscalation ChangeType = "escalation"
	// ChangeRestriction means a role loses access.
	ChangeRestriction ChangeType = "restriction"
)

// Item describes a single difference between the active and candidate policy.
type Item struct {
	Type        ChangeType       `json:"type"`
	Category    string           `json:"category"` // "permission_granted", "permission_revoked", "route_opened", "route_closed"
	Role        authz.Role       `json:"role"`
	Permission  authz.Permission `json:"permission,omitempty"`
	Path        string           `json:"path,omitempty"`
	Description string           `json:"description"`
}

// RoleReport summarizes the differences for one role.
type RoleReport struct {
	Role             authz.Role `json:"role"`
	HasDrift         bool       `json:"has_drift"`
	EscalationCount  int        `json:"escalation_count"`
	RestrictionCount int        `json:"restriction_count"`
	Items            []Item     `json:"items"`
}

// Report summarizes the differences across every role.
type Report struct {
	HasDrift         bool         `json:"has_drift"`
	HasEscalation    bool         `json:"has_escalation"`
	ChangedRoles     int          `json:"changed_roles"`
	EscalationCount  int          `json:"escalation_count"`
	RestrictionCount int          `json:"restriction_count"`
	Roles            []RoleReport `json:"roles"`
	CheckedAt        time.Time    `json:"checked_at"`
}

// Items flattens the per-role items in role order.
func (r Report) Items() []Item {
	var out []Item
	for _, rr := range r.Roles {
		out = append(out, rr.Items...)
	}
	return out
}
