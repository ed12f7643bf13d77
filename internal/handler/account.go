package handler

import (
	"net/http"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/config"
	"github.com/neighborly/neighborly/internal/model"
	"github.com/neighborly/neighborly/internal/server/middleware"
)

// AccountHandler serves the caller's own profile and permissions.
type AccountHandler struct {
	store *config.Store
	guard *middleware.Guard
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(store *config.Store, guard *middleware.Guard) *AccountHandler {
	return &AccountHandler{store: store, guard: guard}
}

type meResponse struct {
	*model.User
	RoleLabel string `json:"role_label"`
	RoleColor string `json:"role_color"`
}

// Me returns the authenticated user's profile.
// GET /api/v1/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetUser(r.Context())
	u, err := h.store.GetUser(r.Context(), principal.ID)
	if err != nil {
		writeServiceError(w, err, "Failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		User:      u,
		RoleLabel: u.Role.Label(),
		RoleColor: u.Role.Color(),
	})
}

type myPermissionsResponse struct {
	Role        authz.Role         `json:"role"`
	Label       string             `json:"label"`
	Permissions []authz.Permission `json:"permissions"`
}

// MyPermissions returns the permissions the caller holds through their role.
// Unrecognized roles report an empty list.
// GET /api/v1/me/permissions
func (h *AccountHandler) MyPermissions(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUser(r.Context())
	t := h.guard.Policy()

	perms := []authz.Permission{}
	for _, p := range authz.Permissions() {
		if t.HasPermission(u, p) {
			perms = append(perms, p)
		}
	}
	writeJSON(w, http.StatusOK, myPermissionsResponse{
		Role:        u.Role,
		Label:       u.Role.Label(),
		Permissions: perms,
	})
}
