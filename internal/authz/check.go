package authz

// User is the authorization view of an authenticated user. An absent
// (unauthenticated) user is a nil *User.
type User struct {
	ID   int64
	Role Role
}

// HasRole reports whether u is currently assigned role r. A nil user or a
// user without a role never matches.
func (t *Table) HasRole(u *User, r Role) bool {
	if u == nil || u.Role == "" {
		return false
	}
	return u.Role == r
}

// HasPermission reports whether u holds permission p through its role.
// Unrecognized roles hold no permissions.
func (t *Table) HasPermission(u *User, p Permission) bool {
	if u == nil || u.Role == "" {
		return false
	}
	return t.Allows(u.Role, p)
}

// HasRole is Table.HasRole against the default table.
func HasRole(u *User, r Role) bool {
	return DefaultTable().HasRole(u, r)
}

// HasPermission is Table.HasPermission against the default table.
func HasPermission(u *User, p Permission) bool {
	return DefaultTable().HasPermission(u, p)
}
