package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/config"
	"github.com/neighborly/neighborly/internal/handler"
	"github.com/neighborly/neighborly/internal/model"
)

// registerTools registers all Neighborly MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Catalogue tools -----

	srv.AddTool(
		mcp.NewTool("neighborly_list_roles",
			mcp.WithDescription(
				"List every role with its display label, badge color, and the permissions "+
					"it grants under the active policy. Use this first to learn the role model.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListRoles,
	)

	srv.AddTool(
		mcp.NewTool("neighborly_role_permissions",
			mcp.WithDescription(
				"Get the permissions granted to one role. Roles: admin, moderator, merchant, vip_user, user.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("role",
				mcp.Required(),
				mcp.Description("Role to describe"),
			),
		),
		s.handleRolePermissions,
	)

	// ----- Decision tools -----

	srv.AddTool(
		mcp.NewTool("neighborly_check_permission",
			mcp.WithDescription(
				"Evaluate whether a user holding the given role passes a guard. The guard "+
					"checks the permission first and then the exact role. Returns allowed, "+
					"reason (none, insufficient_permission, role_mismatch) and the requirement.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("role",
				mcp.Required(),
				mcp.Description("Role held by the hypothetical user"),
			),
			mcp.WithString("permission",
				mcp.Description("Permission the guard requires (e.g. manage_store)"),
			),
			mcp.WithString("required_role",
				mcp.Description("Exact role the guard requires"),
			),
		),
		s.handleCheckPermission,
	)

	srv.AddTool(
		mcp.NewTool("neighborly_check_user",
			mcp.WithDescription(
				"Evaluate a guard for a stored user account. Disabled accounts are treated "+
					"as unauthenticated. Returns the user's role with the decision.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("user_id",
				mcp.Required(),
				mcp.Description("ID of the user account"),
			),
			mcp.WithString("permission",
				mcp.Description("Permission the guard requires"),
			),
			mcp.WithString("required_role",
				mcp.Description("Exact role the guard requires"),
			),
		),
		s.handleCheckUser,
	)

	srv.AddTool(
		mcp.NewTool("neighborly_nav",
			mcp.WithDescription(
				"Return the navigation menu shown to a role. Omit role for an anonymous visitor.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("role",
				mcp.Description("Role of the viewer"),
			),
		),
		s.handleNav,
	)

	// ----- Audit -----

	srv.AddTool(
		mcp.NewTool("neighborly_recent_denials",
			mcp.WithDescription(
				"List the most recent access denials recorded by the API, newest first.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("reason",
				mcp.Description("Only denials with this reason (unauthenticated, insufficient_permission, role_mismatch)"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of denials to return (default 25, max 500)"),
			),
		),
		s.handleRecentDenials,
	)
}

func (s *MCPServer) handleListRoles(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	t := s.policy.Load()
	roles := authz.Roles()
	out := make([]handler.RoleInfo, len(roles))
	for i, r := range roles {
		out[i] = handler.DescribeRole(t, r)
	}
	return successJSON(out)
}

func (s *MCPServer) handleRolePermissions(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	raw, err := requireString(request, "role")
	if err != nil {
		return toolError("%v. Roles: %v", err, authz.Roles())
	}
	role, err := authz.ParseRole(raw)
	if err != nil {
		return toolError("%v. Roles: %v", err, authz.Roles())
	}
	return successJSON(handler.DescribeRole(s.policy.Load(), role))
}

func (s *MCPServer) handleCheckPermission(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	raw, err := requireString(request, "role")
	if err != nil {
		return toolError("%v", err)
	}
	role, err := authz.ParseRole(raw)
	if err != nil {
		return toolError("%v. Roles: %v", err, authz.Roles())
	}
	need, err := requirementArgs(request)
	if err != nil {
		return toolError("%v", err)
	}

	d := s.policy.Load().Evaluate(&authz.User{Role: role}, need)
	return successJSON(d)
}

func (s *MCPServer) handleCheckUser(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	if s.store == nil {
		return toolError("No user store is configured")
	}
	id := optionalInt(request, "user_id", 0)
	if id <= 0 {
		return toolError("missing required parameter %q", "user_id")
	}
	need, err := requirementArgs(request)
	if err != nil {
		return toolError("%v", err)
	}

	u, err := s.store.GetUser(ctx, int64(id))
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return toolError("User %d not found", id)
		}
		return toolError("Failed to load user %d: %v", id, err)
	}

	var principal *authz.User
	if u.IsActive {
		principal = u.Principal()
	}

	return successJSON(map[string]interface{}{
		"user_id":   u.ID,
		"username":  u.Username,
		"role":      u.Role,
		"is_active": u.IsActive,
		"decision":  s.policy.Load().Evaluate(principal, need),
	})
}

func (s *MCPServer) handleNav(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	var viewer *authz.User
	if raw := optionalString(request, "role"); raw != "" {
		role, err := authz.ParseRole(raw)
		if err != nil {
			return toolError("%v. Roles: %v", err, authz.Roles())
		}
		viewer = &authz.User{Role: role}
	}
	return successJSON(s.policy.Load().NavItems(viewer))
}

func (s *MCPServer) handleRecentDenials(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	if s.store == nil {
		return toolError("No user store is configured")
	}
	denials, err := s.store.ListDenials(ctx, model.DenialFilter{
		Reason: optionalString(request, "reason"),
		Limit:  clamp(optionalInt(request, "limit", 25), 1, 500),
	})
	if err != nil {
		return toolError("Failed to list denials: %v", err)
	}
	return successJSON(denials)
}
