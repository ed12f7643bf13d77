package server

import (
	"net/http"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/handler"
	"github.com/neighborly/neighborly/internal/openapi"
)

// endpoint is one mounted API route. The embedded RouteDoc drives both the
// guard placed in front of the handler and the OpenAPI document, so the two
// cannot drift apart.
type endpoint struct {
	openapi.RouteDoc
	handler   http.HandlerFunc
	anonymous bool // skip bearer token resolution entirely
	limited   bool // per-route rate limit on top of the global one
}

const apiPrefix = "/api/v1"

var pageParams = []openapi.QueryParam{
	{Name: "limit", Type: "integer", Description: "Maximum records to return (1-500)."},
	{Name: "offset", Type: "integer", Description: "Number of records to skip."},
}

func (s *Server) endpoints() []endpoint {
	authH := handler.NewAuthHandler(s.authSvc, s.logger)
	authzH := handler.NewAuthzHandler(s.guard, authz.DefaultRoutes())
	accountH := handler.NewAccountHandler(s.store, s.guard)
	adminH := handler.NewAdminHandler(s.store, s.logger)
	dashH := handler.NewDashboardHandler(s.store, s.guard)

	ep := func(method, path, summary, tag string, h http.HandlerFunc) endpoint {
		return endpoint{
			RouteDoc: openapi.RouteDoc{Method: method, Path: apiPrefix + path, Summary: summary, Tag: tag},
			handler:  h,
		}
	}
	guarded := func(e endpoint, req authz.Requirement) endpoint {
		e.Auth = true
		e.Requirement = req
		return e
	}
	body := func(e endpoint, req, resp, status string) endpoint {
		e.Body, e.Response, e.Status = req, resp, status
		return e
	}
	returns := func(e endpoint, resp string) endpoint {
		e.Response = resp
		return e
	}
	query := func(e endpoint, params ...openapi.QueryParam) endpoint {
		e.Query = append(e.Query, params...)
		return e
	}
	catalogue := func(e endpoint) endpoint {
		e.anonymous = true
		return e
	}
	credential := func(e endpoint) endpoint {
		e.anonymous = true
		e.limited = true
		return e
	}

	return []endpoint{
		// Session
		credential(body(ep(http.MethodPost, "/auth/register", "Register an account", "auth", authH.Register),
			openapi.SchemaRegister, openapi.SchemaSession, "201")),
		credential(body(ep(http.MethodPost, "/auth/login", "Log in", "auth", authH.Login),
			openapi.SchemaLogin, openapi.SchemaSession, "")),
		{
			RouteDoc: openapi.RouteDoc{Method: http.MethodDelete, Path: apiPrefix + "/auth/session", Summary: "Log out", Tag: "auth", Status: "204"},
			handler:  authH.Logout,
		},

		// Catalogue
		catalogue(returns(ep(http.MethodGet, "/authz/roles", "List roles and their permissions", "authz", authzH.ListRoles), openapi.SchemaRoleList)),
		catalogue(returns(ep(http.MethodGet, "/authz/roles/{role}", "Describe one role", "authz", authzH.GetRole), openapi.SchemaRole)),
		catalogue(returns(ep(http.MethodGet, "/authz/permissions", "List permissions and the roles holding them", "authz", authzH.ListPermissions), openapi.SchemaPermissionList)),
		catalogue(returns(ep(http.MethodGet, "/authz/routes", "List application routes and their requirements", "authz", authzH.ListRoutes), openapi.SchemaRouteList)),
		body(ep(http.MethodPost, "/authz/check", "Evaluate a requirement for the caller", "authz", authzH.Check),
			openapi.SchemaCheckRequest, openapi.SchemaDecision, ""),
		returns(ep(http.MethodGet, "/nav", "Navigation menu for the caller", "authz", authzH.Nav), openapi.SchemaNav),
		returns(ep(http.MethodGet, "/views/*", "Evaluate access to an application route", "authz", authzH.View), openapi.SchemaView),

		// Account
		returns(guarded(ep(http.MethodGet, "/me", "Current user profile", "account", accountH.Me),
			authz.Requirement{}), openapi.SchemaUser),
		returns(guarded(ep(http.MethodGet, "/me/permissions", "Permissions held by the current user", "account", accountH.MyPermissions),
			authz.Requirement{}), openapi.SchemaMyPermissions),

		// Administration
		query(returns(guarded(ep(http.MethodGet, "/admin/users", "List users", "admin", adminH.ListUsers),
			authz.Requirement{Role: authz.RoleAdmin, Permission: authz.PermViewUsers}), openapi.SchemaUserList),
			append([]openapi.QueryParam{{Name: "role", Type: "string", Description: "Only users holding this role."}}, pageParams...)...),
		body(guarded(ep(http.MethodPut, "/admin/users/{userId}/role", "Change a user's role", "admin", adminH.SetUserRole),
			authz.Requirement{Permission: authz.PermManageUsers}), openapi.SchemaSetRole, openapi.SchemaUser, ""),
		query(returns(guarded(ep(http.MethodGet, "/admin/denials", "List recorded access denials", "admin", adminH.ListDenials),
			authz.Requirement{Permission: authz.PermViewLogs}), openapi.SchemaDenialList),
			append([]openapi.QueryParam{
				{Name: "user_id", Type: "integer", Description: "Only denials for this user."},
				{Name: "reason", Type: "string", Description: "unauthenticated, insufficient_permission or role_mismatch."},
				{Name: "since", Type: "string", Description: "RFC 3339 lower bound on created_at."},
			}, pageParams...)...),
		returns(guarded(ep(http.MethodGet, "/admin/stats", "Dashboard counters", "admin", adminH.Stats),
			authz.Requirement{Permission: authz.PermSystemSettings}), openapi.SchemaStats),

		// Role dashboards
		returns(guarded(ep(http.MethodGet, "/store", "Merchant store summary", "dashboards", dashH.Store),
			authz.Requirement{Role: authz.RoleMerchant}), openapi.SchemaDashboard),
		returns(guarded(ep(http.MethodGet, "/announcements/manage", "Announcement management", "dashboards", dashH.Announcements),
			authz.Requirement{Permission: authz.PermManageAnnouncements}), openapi.SchemaDashboard),
	}
}
