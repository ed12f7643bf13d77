package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/server/middleware"
)

// AuthzHandler exposes the role catalogue and per-caller access checks.
type AuthzHandler struct {
	guard  *middleware.Guard
	routes *authz.RouteTable
}

// NewAuthzHandler creates a new AuthzHandler.
func NewAuthzHandler(guard *middleware.Guard, routes *authz.RouteTable) *AuthzHandler {
	return &AuthzHandler{guard: guard, routes: routes}
}

// RoleInfo describes a role and the permissions it grants.
type RoleInfo struct {
	Role        authz.Role         `json:"role"`
	Label       string             `json:"label"`
	Color       string             `json:"color"`
	Permissions []authz.Permission `json:"permissions"`
}

// PermissionInfo describes a permission and the roles that hold it.
type PermissionInfo struct {
	Permission authz.Permission `json:"permission"`
	Category   string           `json:"category"`
	Roles      []authz.Role     `json:"roles"`
}

// DescribeRole builds the catalogue entry for r under t.
func DescribeRole(t *authz.Table, r authz.Role) RoleInfo {
	return RoleInfo{
		Role:        r,
		Label:       r.Label(),
		Color:       r.Color(),
		Permissions: t.Grants(r),
	}
}

// ListRoles returns every role with its label, badge color and permissions.
// GET /api/v1/authz/roles
func (h *AuthzHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	t := h.guard.Policy()
	roles := authz.Roles()
	out := make([]RoleInfo, len(roles))
	for i, role := range roles {
		out[i] = DescribeRole(t, role)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"resource": out})
}

// GetRole returns a single role.
// GET /api/v1/authz/roles/{role}
func (h *AuthzHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := authz.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, DescribeRole(h.guard.Policy(), role))
}

// ListPermissions returns every permission with its category and holders.
// GET /api/v1/authz/permissions
func (h *AuthzHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	t := h.guard.Policy()
	perms := authz.Permissions()
	out := make([]PermissionInfo, len(perms))
	for i, p := range perms {
		out[i] = PermissionInfo{Permission: p, Category: p.Category(), Roles: t.RolesWith(p)}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"resource": out})
}

// ListRoutes returns the client view routes and their requirements.
// GET /api/v1/authz/routes
func (h *AuthzHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"resource": h.routes.All()})
}

// checkRequest asks whether the caller satisfies a requirement. Both fields
// are optional.
type checkRequest struct {
	Role       string `json:"role" validate:"omitempty,max=32"`
	Permission string `json:"permission" validate:"omitempty,max=64"`
}

// Check evaluates a requirement for the caller and returns the decision. It
// answers the question without enforcing it, so anonymous callers get an
// "unauthenticated" decision rather than a 401.
// POST /api/v1/authz/check
func (h *AuthzHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := readJSON(r, &req); err != nil {
		writeServiceError(w, err, "Check failed")
		return
	}

	var need authz.Requirement
	if strings.TrimSpace(req.Role) != "" {
		role, err := authz.ParseRole(req.Role)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		need.Role = role
	}
	if strings.TrimSpace(req.Permission) != "" {
		perm, err := authz.ParsePermission(req.Permission)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		need.Permission = perm
	}

	writeJSON(w, http.StatusOK, h.guard.Policy().Evaluate(middleware.GetUser(r.Context()), need))
}

// Nav returns the navigation menu for the caller.
// GET /api/v1/nav
func (h *AuthzHandler) Nav(w http.ResponseWriter, r *http.Request) {
	items := h.guard.Policy().NavItems(middleware.GetUser(r.Context()))
	writeJSON(w, http.StatusOK, map[string]interface{}{"resource": items})
}

// View gates a client view path. It answers 200 when the caller may open the
// view, 401 or 403 with the denial reason otherwise, and 404 for paths that
// are not client routes.
// GET /api/v1/views/*
func (h *AuthzHandler) View(w http.ResponseWriter, r *http.Request) {
	path := "/" + chi.URLParam(r, "*")
	route, ok := h.routes.Lookup(path)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown view: "+path)
		return
	}

	d := h.guard.Policy().EvaluateRoute(middleware.GetUser(r.Context()), route)
	if !h.guard.Enforce(w, r, d, nil) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"path":     route.Path,
		"public":   route.Public,
		"decision": d,
	})
}
