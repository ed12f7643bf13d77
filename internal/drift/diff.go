package drift

import (
	"fmt"
	"time"

	"github.com/neighborly/neighborly/internal/authz"
)

// DiffRole compares what role is granted by the active and candidate tables.
// When routes is non-nil, view routes whose decision flips are reported too.
func DiffRole(role authz.Role, active, candidate *authz.Table, routes *authz.RouteTable) RoleReport {
	report := RoleReport{Role: role, Items: []Item{}}

	// Permissions in enumeration order so reports are stable.
	for _, p := range authz.Permissions() {
		before := active.Allows(role, p)
		after := candidate.Allows(role, p)
		switch {
		case !before && after:
			report.Items = append(report.Items, Item{
				Type:        ChangeEscalation,
				Category:    "permission_granted",
				Role:        role,
				Permission:  p,
				Description: fmt.Sprintf("Role %q is granted %q", role, p),
			})
		case before && !after:
			report.Items = append(report.Items, Item{
				Type:        ChangeRestriction,
				Category:    "permission_revoked",
				Role:        role,
				Permission:  p,
				Description: fmt.Sprintf("Role %q loses %q", role, p),
			})
		}
	}

	if routes != nil {
		u := &authz.User{Role: role}
		for _, route := range routes.All() {
			before := active.EvaluateRoute(u, route).Allowed
			after := candidate.EvaluateRoute(u, route).Allowed
			switch {
			case !before && after:
				report.Items = append(report.Items, Item{
					Type:        ChangeEscalation,
					Category:    "route_opened",
					Role:        role,
					Path:        route.Path,
					Description: fmt.Sprintf("Role %q can now open %s", role, route.Path),
				})
			case before && !after:
				report.Items = append(report.Items, Item{
					Type:        ChangeRestriction,
					Category:    "route_closed",
					Role:        role,
					Path:        route.Path,
					Description: fmt.Sprintf("Role %q can no longer open %s", role, route.Path),
				})
			}
		}
	}

	for _, item := range report.Items {
		switch item.Type {
		case ChangeEscalation:
			report.EscalationCount++
		case ChangeRestriction:
			report.RestrictionCount++
		}
	}
	report.HasDrift = len(report.Items) > 0

	return report
}

// Diff compares the active table against a candidate for every role.
func Diff(active, candidate *authz.Table, routes *authz.RouteTable) Report {
	report := Report{CheckedAt: time.Now().UTC()}

	for _, role := range authz.Roles() {
		rr := DiffRole(role, active, candidate, routes)
		report.Roles = append(report.Roles, rr)
		if rr.HasDrift {
			report.ChangedRoles++
		}
		report.EscalationCount += rr.EscalationCount
		report.RestrictionCount += rr.RestrictionCount
	}
	report.HasDrift = report.ChangedRoles > 0
	report.HasEscalation = report.EscalationCount > 0

	return report
}
