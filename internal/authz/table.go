package authz

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Table is the role-permission assignment. A Table is immutable once built:
// changing permissions means building a new Table and swapping it in through
// a Holder.
type Table struct {
	grants map[Role]map[Permission]struct{}
}

// NewTable builds a Table from an explicit assignment. Every role in the
// enumeration must have an entry, even if it is empty; roles or permissions
// outside the enumerations are rejected. Duplicate permissions collapse.
func NewTable(assign map[Role][]Permission) (*Table, error) {
	for r := range assign {
		if !r.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, string(r))
		}
	}

	grants := make(map[Role]map[Permission]struct{}, len(allRoles))
	for _, r := range allRoles {
		perms, ok := assign[r]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingRole, string(r))
		}
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			if !p.Valid() {
				return nil, fmt.Errorf("role %q: %w: %q", string(r), ErrUnknownPermission, string(p))
			}
			set[p] = struct{}{}
		}
		grants[r] = set
	}
	return &Table{grants: grants}, nil
}

// MustTable is like NewTable but panics on an invalid assignment. It is meant
// for package-level tables built from literals.
func MustTable(assign map[Role][]Permission) *Table {
	t, err := NewTable(assign)
	if err != nil {
		panic(err)
	}
	return t
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// DefaultTable returns the shipped role-permission table.
func DefaultTable() *Table {
	defaultOnce.Do(func() {
		defaultTable = MustTable(map[Role][]Permission{
			RoleAdmin: {
				PermManageUsers, PermViewUsers,
				PermManagePosts, PermDeletePosts, PermPinPosts,
				PermManageGroups, PermDeleteGroups,
				PermManageActivities, PermApproveActivities,
				PermManageTasks, PermVerifyTasks,
				PermManageAnnouncements,
				PermManagePoints, PermTransferPoints,
				PermSystemSettings, PermViewLogs,
			},
			RoleModerator: {
				PermViewUsers,
				PermManagePosts, PermDeletePosts, PermPinPosts,
				PermManageGroups,
				PermManageActivities, PermApproveActivities,
				PermManageTasks, PermVerifyTasks,
				PermManageAnnouncements,
			},
			RoleMerchant: {
				PermManageStore, PermPublishProducts, PermTransferPoints,
			},
			RoleVIPUser: {
				PermTransferPoints,
			},
			RoleUser: {},
		})
	})
	return defaultTable
}

// Roles returns the roles defined by the table in enumeration order.
func (t *Table) Roles() []Role {
	return Roles()
}

// Grants returns the permissions held by role r in catalogue order. Unknown
// roles hold nothing. The returned slice is owned by the caller.
func (t *Table) Grants(r Role) []Permission {
	if t == nil {
		return nil
	}
	set := t.grants[r]
	out := make([]Permission, 0, len(set))
	for _, info := range catalogue {
		if _, ok := set[info.perm]; ok {
			out = append(out, info.perm)
		}
	}
	return out
}

// Allows reports whether role r holds permission p.
func (t *Table) Allows(r Role, p Permission) bool {
	if t == nil {
		return false
	}
	_, ok := t.grants[r][p]
	return ok
}

// RolesWith returns the roles that hold permission p.
func (t *Table) RolesWith(p Permission) []Role {
	var out []Role
	for _, r := range allRoles {
		if t.Allows(r, p) {
			out = append(out, r)
		}
	}
	return out
}

// Assignment returns the table as a plain map, suitable for serialization.
func (t *Table) Assignment() map[Role][]Permission {
	out := make(map[Role][]Permission, len(allRoles))
	for _, r := range allRoles {
		out[r] = t.Grants(r)
	}
	return out
}

// Holder publishes the active Table to concurrent readers. Reloading a
// policy swaps in a whole new Table; readers never see a partial update.
type Holder struct {
	p atomic.Pointer[Table]
}

// NewHolder returns a Holder serving t.
func NewHolder(t *Table) *Holder {
	h := &Holder{}
	h.p.Store(t)
	return h
}

// Load returns the active table.
func (h *Holder) Load() *Table {
	return h.p.Load()
}

// Swap installs t and returns the previously active table.
func (h *Holder) Swap(t *Table) *Table {
	return h.p.Swap(t)
}
