package authz

// NavItem is one entry of the role-dependent navigation menu.
type NavItem struct {
	Path  string `json:"path"`
	Icon  string `json:"icon"`
	Label string `json:"label"`
}

var baseNav = []NavItem{
	{Path: "/", Icon: "🏠", Label: "Home"},
	{Path: "/posts", Icon: "💬", Label: "Posts"},
	{Path: "/tasks", Icon: "✅", Label: "Tasks"},
	{Path: "/activities", Icon: "🎉", Label: "Activities"},
	{Path: "/chat", Icon: "💬", Label: "Chat"},
	{Path: "/friends", Icon: "👤", Label: "Friends"},
	{Path: "/leaderboard", Icon: "🏆", Label: "Leaderboard"},
	{Path: "/notifications", Icon: "📢", Label: "Notifications"},
}

// NavItems returns the navigation menu for u. Everyone gets the base items;
// admins and moderators also see announcements, merchants the store, and
// admins the admin panel.
func (t *Table) NavItems(u *User) []NavItem {
	items := make([]NavItem, len(baseNav), len(baseNav)+3)
	copy(items, baseNav)

	if t.HasRole(u, RoleAdmin) || t.HasRole(u, RoleModerator) {
		items = append(items, NavItem{Path: "/announcements", Icon: "📢", Label: "Announcements"})
	}
	if t.HasRole(u, RoleMerchant) {
		items = append(items, NavItem{Path: "/store", Icon: "🏪", Label: "Store"})
	}
	if t.HasRole(u, RoleAdmin) {
		items = append(items, NavItem{Path: "/admin", Icon: "⚙️", Label: "Admin"})
	}
	return items
}
