package drift

import (
	"testing"

	"github.com/neighborly/neighborly/internal/authz"
)

// candidate returns the default assignment with edit applied.
func candidate(t *testing.T, edit func(map[authz.Role][]authz.Permission)) *authz.Table {
	t.Helper()
	assign := authz.DefaultTable().Assignment()
	edit(assign)
	table, err := authz.NewTable(assign)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return table
}

func without(perms []authz.Permission, drop authz.Permission) []authz.Permission {
	out := make([]authz.Permission, 0, len(perms))
	for _, p := range perms {
		if p != drop {
			out = append(out, p)
		}
	}
	return out
}

func TestDiff_NoDrift(t *testing.T) {
	active := authz.DefaultTable()
	report := Diff(active, candidate(t, func(map[authz.Role][]authz.Permission) {}), authz.DefaultRoutes())

	if report.HasDrift {
		t.Errorf("expected no drift, got %d items", len(report.Items()))
	}
	if report.HasEscalation {
		t.Error("expected no escalation")
	}
	if len(report.Roles) != len(authz.Roles()) {
		t.Errorf("roles = %d, want %d", len(report.Roles), len(authz.Roles()))
	}
}

func TestDiffRole_PermissionGranted(t *testing.T) {
	next := candidate(t, func(a map[authz.Role][]authz.Permission) {
		a[authz.RoleUser] = append(a[authz.RoleUser], authz.PermManageAnnouncements)
	})

	report := DiffRole(authz.RoleUser, authz.DefaultTable(), next, nil)

	if !report.HasDrift {
		t.Fatal("expected drift")
	}
	if report.EscalationCount != 1 || report.RestrictionCount != 0 {
		t.Errorf("counts = %d/%d, want 1/0", report.EscalationCount, report.RestrictionCount)
	}
	item := report.Items[0]
	if item.Category != "permission_granted" || item.Permission != authz.PermManageAnnouncements {
		t.Errorf("item = %+v", item)
	}
}

func TestDiffRole_RouteOpened(t *testing.T) {
	next := candidate(t, func(a map[authz.Role][]authz.Permission) {
		a[authz.RoleUser] = append(a[authz.RoleUser], authz.PermManageAnnouncements)
	})

	report := DiffRole(authz.RoleUser, authz.DefaultTable(), next, authz.DefaultRoutes())

	if report.EscalationCount != 2 {
		t.Fatalf("expected 2 escalations, got %d: %+v", report.EscalationCount, report.Items)
	}
	last := report.Items[1]
	if last.Category != "route_opened" || last.Path != "/announcements" {
		t.Errorf("item = %+v", last)
	}
}

func TestDiffRole_PermissionRevoked(t *testing.T) {
	next := candidate(t, func(a map[authz.Role][]authz.Permission) {
		a[authz.RoleModerator] = without(a[authz.RoleModerator], authz.PermPinPosts)
	})

	report := DiffRole(authz.RoleModerator, authz.DefaultTable(), next, authz.DefaultRoutes())

	if report.RestrictionCount != 1 || report.EscalationCount != 0 {
		t.Fatalf("counts = %d/%d, want 0/1", report.EscalationCount, report.RestrictionCount)
	}
	if report.Items[0].Type != ChangeRestriction || report.Items[0].Category != "permission_revoked" {
		t.Errorf("item = %+v", report.Items[0])
	}
}

func TestDiffRole_RouteClosed(t *testing.T) {
	next := candidate(t, func(a map[authz.Role][]authz.Permission) {
		a[authz.RoleAdmin] = without(a[authz.RoleAdmin], authz.PermManageAnnouncements)
	})

	report := DiffRole(authz.RoleAdmin, authz.DefaultTable(), next, authz.DefaultRoutes())

	var closed bool
	for _, item := range report.Items {
		if item.Category == "route_closed" && item.Path == "/announcements" {
			closed = true
		}
	}
	if !closed {
		t.Errorf("expected /announcements to close for admin: %+v", report.Items)
	}
}

func TestDiff_Summary(t *testing.T) {
	next := candidate(t, func(a map[authz.Role][]authz.Permission) {
		a[authz.RoleUser] = append(a[authz.RoleUser], authz.PermManageAnnouncements)
		a[authz.RoleModerator] = without(a[authz.RoleModerator], authz.PermPinPosts)
	})

	report := Diff(authz.DefaultTable(), next, authz.DefaultRoutes())

	if !report.HasDrift || !report.HasEscalation {
		t.Fatalf("expected drift with escalation: %+v", report)
	}
	if report.ChangedRoles != 2 {
		t.Errorf("changed roles = %d, want 2", report.ChangedRoles)
	}
	if report.EscalationCount != 2 || report.RestrictionCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", report.EscalationCount, report.RestrictionCount)
	}
	if got := len(report.Items()); got != 3 {
		t.Errorf("items = %d, want 3", got)
	}
}

func TestDiff_RevokeOnlyHasNoEscalation(t *testing.T) {
	next := candidate(t, func(a map[authz.Role][]authz.Permission) {
		a[authz.RoleVIPUser] = nil
	})

	report := Diff(authz.DefaultTable(), next, nil)

	if !report.HasDrift {
		t.Fatal("expected drift")
	}
	if report.HasEscalation {
		t.Error("revoking a permission should not count as escalation")
	}
}
