package authz

import "strings"

// Route binds a client view path to the requirement that guards it. Public
// routes are reachable without authentication.
type Route struct {
	Path        string      `json:"path"`
	Public      bool        `json:"public"`
	Requirement Requirement `json:"requirement"`
}

// RouteTable resolves view paths to their Route.
type RouteTable struct {
	routes []Route
	index  map[string]int
}

// NewRouteTable indexes routes by path. Later duplicates win.
func NewRouteTable(routes []Route) *RouteTable {
	rt := &RouteTable{
		routes: make([]Route, len(routes)),
		index:  make(map[string]int, len(routes)),
	}
	copy(rt.routes, routes)
	for i, r := range rt.routes {
		rt.index[normalizePath(r.Path)] = i
	}
	return rt
}

// DefaultRoutes returns the view routes of the neighborhood client.
func DefaultRoutes() *RouteTable {
	return NewRouteTable([]Route{
		{Path: "/", Public: true},
		{Path: "/login", Public: true},
		{Path: "/register", Public: true},

		{Path: "/posts"},
		{Path: "/groups"},
		{Path: "/tasks"},
		{Path: "/activities"},
		{Path: "/leaderboard"},
		{Path: "/chat"},
		{Path: "/friends"},
		{Path: "/notifications"},
		{Path: "/business-map"},
		{Path: "/coupons"},
		{Path: "/polls"},
		{Path: "/quests"},
		{Path: "/image-wall"},
		{Path: "/real-time-notifications"},

		{Path: "/announcements", Requirement: Requirement{Permission: PermManageAnnouncements}},
		{Path: "/store", Requirement: Requirement{Role: RoleMerchant}},
		{Path: "/admin", Requirement: Requirement{Role: RoleAdmin}},
	})
}

// Lookup returns the route registered for path.
func (rt *RouteTable) Lookup(path string) (Route, bool) {
	i, ok := rt.index[normalizePath(path)]
	if !ok {
		return Route{}, false
	}
	return rt.routes[i], true
}

// All returns the routes in registration order.
func (rt *RouteTable) All() []Route {
	out := make([]Route, len(rt.routes))
	copy(out, rt.routes)
	return out
}

// EvaluateRoute decides access to route for u. Public routes always allow.
func (t *Table) EvaluateRoute(u *User, route Route) Decision {
	if route.Public {
		return allow(route.Requirement)
	}
	return t.Evaluate(u, route.Requirement)
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
