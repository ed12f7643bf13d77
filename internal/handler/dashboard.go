package handler

import (
	"net/http"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/config"
	"github.com/neighborly/neighborly/internal/server/middleware"
)

// DashboardHandler serves the role-gated dashboards: the merchant store and
// announcement management. Both are reached only through a guard.
type DashboardHandler struct {
	store *config.Store
	guard *middleware.Guard
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(store *config.Store, guard *middleware.Guard) *DashboardHandler {
	return &DashboardHandler{store: store, guard: guard}
}

// capabilities lists which of perms u holds under the active policy.
func (h *DashboardHandler) capabilities(u *authz.User, perms ...authz.Permission) map[authz.Permission]bool {
	t := h.guard.Policy()
	out := make(map[authz.Permission]bool, len(perms))
	for _, p := range perms {
		out[p] = t.HasPermission(u, p)
	}
	return out
}

// Store returns the merchant's store summary.
// GET /api/v1/store
func (h *DashboardHandler) Store(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetUser(r.Context())
	u, err := h.store.GetUser(r.Context(), principal.ID)
	if err != nil {
		writeServiceError(w, err, "Failed to load merchant")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"merchant":      u.Username,
		"credit_points": u.CreditPoints,
		"capabilities": h.capabilities(principal,
			authz.PermManageStore, authz.PermPublishProducts, authz.PermTransferPoints),
	})
}

// Announcements returns the announcement management view.
// GET /api/v1/announcements/manage
func (h *DashboardHandler) Announcements(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetUser(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"role": principal.Role,
		"capabilities": h.capabilities(principal,
			authz.PermManageAnnouncements, authz.PermPinPosts, authz.PermManagePosts),
	})
}
