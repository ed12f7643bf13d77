package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/metrics"
	"github.com/neighborly/neighborly/internal/model"
)

// DenialRecorder persists access-denied events.
type DenialRecorder interface {
	RecordDenial(ctx context.Context, d *model.Denial) error
}

// Guard enforces role and permission requirements on HTTP handlers against
// the active policy.
type Guard struct {
	policy   *authz.Holder
	logger   *slog.Logger
	recorder DenialRecorder
	loginURL string
}

// NewGuard creates a Guard. recorder may be nil.
func NewGuard(policy *authz.Holder, logger *slog.Logger, recorder DenialRecorder) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		policy:   policy,
		logger:   logger,
		recorder: recorder,
		loginURL: "/login",
	}
}

// Policy returns the active role-permission table.
func (g *Guard) Policy() *authz.Table {
	return g.policy.Load()
}

// Require returns an HTTP middleware that admits the request only when the
// user in context satisfies req. The zero Requirement admits any
// authenticated user.
func (g *Guard) Require(req authz.Requirement) func(http.Handler) http.Handler {
	return g.RequireOr(req, nil)
}

// RequireOr is like Require but serves fallback instead of the error
// response when access is denied.
func (g *Guard) RequireOr(req authz.Requirement, fallback http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Policy().Evaluate(GetUser(r.Context()), req)
			if g.Enforce(w, r, d, fallback) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// Enforce reports whether d admits the request. On denial it records the
// event and writes the response: fallback when set, otherwise 401 for
// unauthenticated callers and 403 for everything else.
func (g *Guard) Enforce(w http.ResponseWriter, r *http.Request, d authz.Decision, fallback http.Handler) bool {
	metrics.ObserveDecision(d.Allowed, d.Reason.String())
	if d.Allowed {
		return true
	}

	g.record(r, d)

	if fallback != nil {
		fallback.ServeHTTP(w, r)
		return false
	}

	details := map[string]interface{}{"reason": d.Reason.String()}
	if d.Required.Role != "" {
		details["required_role"] = d.Required.Role
	}
	if d.Required.Permission != "" {
		details["required_permission"] = d.Required.Permission
	}

	switch d.Reason {
	case authz.ReasonUnauthenticated:
		details["login_url"] = g.loginURL
		writeAuthError(w, http.StatusUnauthorized, "Authentication required", details)
	case authz.ReasonInsufficientPermission:
		writeAuthError(w, http.StatusForbidden, "Insufficient permission", details)
	default:
		writeAuthError(w, http.StatusForbidden, "Access denied for role", details)
	}
	return false
}

func (g *Guard) record(r *http.Request, d authz.Decision) {
	ctx := r.Context()
	u := GetUser(ctx)

	den := &model.Denial{
		RequestID:  GetRequestID(ctx),
		Method:     r.Method,
		Path:       r.URL.Path,
		Reason:     d.Reason.String(),
		Permission: d.Required.Permission,
		Required:   d.Required.Role,
	}
	attrs := []any{
		"path", den.Path,
		"reason", den.Reason,
		"request_id", den.RequestID,
	}
	if u != nil {
		id := u.ID
		den.UserID = &id
		den.Role = u.Role
		attrs = append(attrs, "user_id", u.ID, "role", string(u.Role))
	}
	if d.Required.Role != "" {
		attrs = append(attrs, "required_role", string(d.Required.Role))
	}
	if d.Required.Permission != "" {
		attrs = append(attrs, "required_permission", string(d.Required.Permission))
	}
	g.logger.InfoContext(ctx, "access denied", attrs...)

	if g.recorder != nil {
		if err := g.recorder.RecordDenial(ctx, den); err != nil {
			g.logger.Warn("failed to record access denial", "error", err, "request_id", den.RequestID)
		}
	}
}
