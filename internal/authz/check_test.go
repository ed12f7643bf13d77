package authz

import (
	"errors"
	"testing"
)

func userWithRole(r Role) *User { return &User{ID: 1, Role: r} }

func TestHasRoleAbsentUser(t *testing.T) {
	for _, r := range Roles() {
		if HasRole(nil, r) {
			t.Errorf("HasRole(nil, %q) = true, want false", r)
		}
	}
}

func TestHasRoleExactMatch(t *testing.T) {
	for _, held := range Roles() {
		u := userWithRole(held)
		for _, asked := range Roles() {
			want := held == asked
			if got := HasRole(u, asked); got != want {
				t.Errorf("HasRole(%q, %q) = %v, want %v", held, asked, got, want)
			}
		}
	}
}

func TestHasRoleEmptyRole(t *testing.T) {
	if HasRole(&User{ID: 7}, "") {
		t.Error("user without a role should not match the empty role")
	}
}

func TestHasPermissionAbsentUser(t *testing.T) {
	for _, p := range Permissions() {
		if HasPermission(nil, p) {
			t.Errorf("HasPermission(nil, %q) = true, want false", p)
		}
	}
}

func TestHasPermissionMatchesTable(t *testing.T) {
	tbl := DefaultTable()
	for _, r := range Roles() {
		granted := make(map[Permission]bool)
		for _, p := range tbl.Grants(r) {
			granted[p] = true
		}
		u := userWithRole(r)
		for _, p := range Permissions() {
			if got := tbl.HasPermission(u, p); got != granted[p] {
				t.Errorf("HasPermission(%q, %q) = %v, want %v", r, p, got, granted[p])
			}
		}
	}
}

func TestHasPermissionUnknownRoleFailsClosed(t *testing.T) {
	u := &User{ID: 3, Role: "super_admin_v2"}
	for _, p := range Permissions() {
		if HasPermission(u, p) {
			t.Errorf("unknown role granted %q", p)
		}
	}
}

func TestChecksAreIdempotent(t *testing.T) {
	u := userWithRole(RoleModerator)
	first := HasPermission(u, PermPinPosts)
	for i := 0; i < 100; i++ {
		if HasPermission(u, PermPinPosts) != first {
			t.Fatal("HasPermission changed result across calls")
		}
		if !HasRole(u, RoleModerator) {
			t.Fatal("HasRole changed result across calls")
		}
	}
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"absent user is not admin", HasRole(nil, RoleAdmin), false},
		{"merchant has merchant role", HasRole(&User{Role: RoleMerchant}, RoleMerchant), true},
		{"admin manages users", HasPermission(&User{Role: RoleAdmin}, PermManageUsers), true},
		{"user cannot manage users", HasPermission(&User{Role: RoleUser}, PermManageUsers), false},
		{"merchant manages store", HasPermission(&User{Role: RoleMerchant}, PermManageStore), true},
		{"merchant lacks system settings", HasPermission(&User{Role: RoleMerchant}, PermSystemSettings), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Evaluate
// ---------------------------------------------------------------------------

func TestEvaluateOrder(t *testing.T) {
	tbl := DefaultTable()

	tests := []struct {
		name   string
		user   *User
		req    Requirement
		reason Reason
		allow  bool
	}{
		{"unauthenticated wins over everything", nil, Requirement{Role: RoleAdmin, Permission: PermViewLogs}, ReasonUnauthenticated, false},
		{"authenticated only", userWithRole(RoleUser), Requirement{}, ReasonNone, true},
		{"permission checked before role", userWithRole(RoleUser), Requirement{Role: RoleAdmin, Permission: PermViewLogs}, ReasonInsufficientPermission, false},
		{"role mismatch", userWithRole(RoleModerator), Requirement{Role: RoleAdmin}, ReasonRoleMismatch, false},
		{"permission held, role mismatched", userWithRole(RoleModerator), Requirement{Role: RoleAdmin, Permission: PermManagePosts}, ReasonRoleMismatch, false},
		{"both satisfied", userWithRole(RoleAdmin), Requirement{Role: RoleAdmin, Permission: PermViewLogs}, ReasonNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tbl.Evaluate(tt.user, tt.req)
			if d.Allowed != tt.allow {
				t.Errorf("Allowed = %v, want %v", d.Allowed, tt.allow)
			}
			if d.Reason != tt.reason {
				t.Errorf("Reason = %v, want %v", d.Reason, tt.reason)
			}
			if d.Required != tt.req {
				t.Errorf("Required = %+v, want %+v", d.Required, tt.req)
			}
		})
	}
}

func TestDecisionErr(t *testing.T) {
	tbl := DefaultTable()
	if err := tbl.Evaluate(userWithRole(RoleAdmin), Requirement{}).Err(); err != nil {
		t.Errorf("allowed decision Err = %v, want nil", err)
	}
	if err := tbl.Evaluate(nil, Requirement{}).Err(); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
	if err := tbl.Evaluate(userWithRole(RoleUser), Requirement{Permission: PermViewLogs}).Err(); !errors.Is(err, ErrInsufficientPermission) {
		t.Errorf("err = %v, want ErrInsufficientPermission", err)
	}
	if err := tbl.Evaluate(userWithRole(RoleUser), Requirement{Role: RoleMerchant}).Err(); !errors.Is(err, ErrRoleMismatch) {
		t.Errorf("err = %v, want ErrRoleMismatch", err)
	}
}

func TestDecisionJSON(t *testing.T) {
	d := DefaultTable().Evaluate(userWithRole(RoleUser), Requirement{Role: RoleMerchant})
	b, err := d.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	want := `{"allowed":false,"reason":"role_mismatch","required":{"role":"merchant"}}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
}
