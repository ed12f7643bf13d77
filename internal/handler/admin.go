package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/config"
	"github.com/neighborly/neighborly/internal/model"
	"github.com/neighborly/neighborly/internal/server/middleware"
)

// SettingPolicySource is the settings key holding where the active policy
// was loaded from.
const SettingPolicySource = "policy.source"

// AdminHandler serves user management and audit endpoints.
type AdminHandler struct {
	store  *config.Store
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(store *config.Store, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{store: store, logger: logger}
}

// ListUsers returns accounts, optionally filtered by role.
// GET /api/v1/admin/users?role=&limit=&offset=
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	f := model.UserFilter{
		Limit:  clampInt(queryInt(r, "limit", 50), 1, 500),
		Offset: clampInt(queryInt(r, "offset", 0), 0, 1<<30),
	}
	if v := queryString(r, "role"); v != "" {
		role, err := authz.ParseRole(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Role = role
	}

	users, total, err := h.store.ListUsers(r.Context(), f)
	if err != nil {
		writeServiceError(w, err, "Failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse[model.User]{
		Resource: users,
		Meta:     &model.ResponseMeta{Count: len(users), Total: &total, Limit: f.Limit, Offset: f.Offset},
	})
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// SetUserRole assigns a new role to a user. Callers cannot change their own
// role.
// PUT /api/v1/admin/users/{userId}/role
func (h *AdminHandler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req setRoleRequest
	if err := readJSON(r, &req); err != nil {
		writeServiceError(w, err, "Failed to set role")
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller := middleware.GetUser(r.Context())
	if caller != nil && caller.ID == id {
		writeError(w, http.StatusConflict, "Cannot change your own role")
		return
	}

	if err := h.store.SetUserRole(r.Context(), id, role); err != nil {
		writeServiceError(w, err, "Failed to set role")
		return
	}
	u, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to load user")
		return
	}

	attrs := []any{"user_id", id, "role", string(role), "request_id", middleware.GetRequestID(r.Context())}
	if caller != nil {
		attrs = append(attrs, "by", caller.ID)
	}
	h.logger.Info("user role changed", attrs...)
	writeJSON(w, http.StatusOK, u)
}

// ListDenials returns recorded access denials, newest first.
// GET /api/v1/admin/denials?user_id=&reason=&since=&limit=&offset=
func (h *AdminHandler) ListDenials(w http.ResponseWriter, r *http.Request) {
	f := model.DenialFilter{
		Reason: queryString(r, "reason"),
		Limit:  clampInt(queryInt(r, "limit", 100), 1, 1000),
		Offset: clampInt(queryInt(r, "offset", 0), 0, 1<<30),
	}
	if v := queryString(r, "user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		f.UserID = &id
	}
	if v := queryString(r, "since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		f.Since = since
	}

	denials, err := h.store.ListDenials(r.Context(), f)
	if err != nil {
		writeServiceError(w, err, "Failed to list denials")
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse[model.Denial]{
		Resource: denials,
		Meta:     &model.ResponseMeta{Count: len(denials), Limit: f.Limit, Offset: f.Offset},
	})
}

// Stats returns the admin dashboard summary.
// GET /api/v1/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	total, active, err := h.store.CountUsers(ctx)
	if err != nil {
		writeServiceError(w, err, "Failed to load stats")
		return
	}
	byRole, err := h.store.CountUsersByRole(ctx)
	if err != nil {
		writeServiceError(w, err, "Failed to load stats")
		return
	}
	denials, err := h.store.CountDenials(ctx)
	if err != nil {
		writeServiceError(w, err, "Failed to load stats")
		return
	}
	source, err := h.store.GetSetting(ctx, SettingPolicySource)
	if err != nil && !errors.Is(err, config.ErrNotFound) {
		writeServiceError(w, err, "Failed to load stats")
		return
	}
	if source == "" {
		source = "builtin"
	}

	writeJSON(w, http.StatusOK, model.Stats{
		Users:        total,
		ActiveUsers:  active,
		ByRole:       byRole,
		Denials:      denials,
		PolicySource: source,
	})
}
