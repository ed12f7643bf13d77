package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/handler"
)

const (
	rolesURI      = "neighborly://roles"
	rolePrefixURI = "neighborly://roles/"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {

	// -------------------------------------------------------------------
	// neighborly://roles — the full role-permission table
	// -------------------------------------------------------------------
	srv.AddResource(
		mcp.NewResource(
			rolesURI,
			"Role Permission Table",
			mcp.WithResourceDescription(
				"Every role with its label, badge color, and granted permissions "+
					"under the active policy.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleRolesResource,
	)

	// -------------------------------------------------------------------
	// neighborly://roles/{role} — one role (template)
	// -------------------------------------------------------------------
	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			rolePrefixURI+"{role}",
			"Role",
			mcp.WithTemplateDescription("A single role and the permissions it grants."),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleRoleResource,
	)
}

func (s *MCPServer) handleRolesResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	t := s.policy.Load()
	roles := authz.Roles()
	items := make([]handler.RoleInfo, len(roles))
	for i, r := range roles {
		items[i] = handler.DescribeRole(t, r)
	}
	return jsonContents(rolesURI, items)
}

func (s *MCPServer) handleRoleResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	uri := request.Params.URI
	name := strings.TrimPrefix(uri, rolePrefixURI)
	if name == "" || name == uri {
		return nil, fmt.Errorf("invalid role URI %q: expected %s{role}", uri, rolePrefixURI)
	}
	role, err := authz.ParseRole(name)
	if err != nil {
		return nil, fmt.Errorf("%w (available: %v)", err, authz.Roles())
	}
	return jsonContents(uri, handler.DescribeRole(s.policy.Load(), role))
}

func jsonContents(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
