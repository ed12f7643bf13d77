package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/config"
	"github.com/neighborly/neighborly/internal/model"
)

func newTestServer(t *testing.T) (*MCPServer, *config.Store) {
	t.Helper()
	store, err := config.NewStore("")
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewMCPServer(store, nil, nil), store
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		val      int
		min      int
		max      int
		expected int
	}{
		{"value in range", 5, 1, 10, 5},
		{"value below min", -3, 1, 10, 1},
		{"value above max", 15, 1, 10, 10},
		{"value equals min", 1, 1, 10, 1},
		{"value equals max", 10, 1, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clamp(tt.val, tt.min, tt.max)
			if got != tt.expected {
				t.Errorf("clamp(%d, %d, %d) = %d, want %d", tt.val, tt.min, tt.max, got, tt.expected)
			}
		})
	}
}

func TestReadOnlyAnnotation(t *testing.T) {
	ann := readOnlyAnnotation()
	if ann.ReadOnlyHint == nil || !*ann.ReadOnlyHint {
		t.Errorf("ReadOnlyHint = %v, want true", ann.ReadOnlyHint)
	}
}

func TestRequirementArgs(t *testing.T) {
	req, err := requirementArgs(callRequest(map[string]interface{}{
		"permission":    "Manage_Store",
		"required_role": "merchant",
	}))
	if err != nil {
		t.Fatalf("requirementArgs: %v", err)
	}
	if req.Permission != authz.PermManageStore || req.Role != authz.RoleMerchant {
		t.Errorf("requirement = %+v", req)
	}

	if _, err := requirementArgs(callRequest(map[string]interface{}{"permission": "fly"})); err == nil {
		t.Error("expected error for unknown permission")
	}
}

// ---------------------------------------------------------------------------
// Tools
// ---------------------------------------------------------------------------

func TestListRolesTool(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleListRoles(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatal(err)
	}
	var roles []struct {
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &roles); err != nil {
		t.Fatal(err)
	}
	if len(roles) != 5 || roles[0].Role != "admin" || len(roles[0].Permissions) != 16 {
		t.Errorf("roles = %+v", roles)
	}
}

func TestRolePermissionsTool(t *testing.T) {
	s, _ := newTestServer(t)

	res, _ := s.handleRolePermissions(context.Background(), callRequest(map[string]interface{}{"role": "vip_user"}))
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, res))
	}
	if !strings.Contains(resultText(t, res), "transfer_points") {
		t.Errorf("vip_user result = %s", resultText(t, res))
	}

	res, _ = s.handleRolePermissions(context.Background(), callRequest(map[string]interface{}{"role": "pirate"}))
	if !res.IsError {
		t.Error("expected tool error for unknown role")
	}

	res, _ = s.handleRolePermissions(context.Background(), callRequest(nil))
	if !res.IsError {
		t.Error("expected tool error for missing role")
	}
}

func TestCheckPermissionTool(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name    string
		args    map[string]interface{}
		allowed bool
		reason  string
	}{
		{"merchant manages store", map[string]interface{}{"role": "merchant", "permission": "manage_store"}, true, "none"},
		{"admin lacks manage_store", map[string]interface{}{"role": "admin", "permission": "manage_store"}, false, "insufficient_permission"},
		{"moderator is not admin", map[string]interface{}{"role": "moderator", "required_role": "admin"}, false, "role_mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleCheckPermission(context.Background(), callRequest(tt.args))
			if err != nil || res.IsError {
				t.Fatalf("err = %v, result = %s", err, resultText(t, res))
			}
			var d struct {
				Allowed bool   `json:"allowed"`
				Reason  string `json:"reason"`
			}
			if err := json.Unmarshal([]byte(resultText(t, res)), &d); err != nil {
				t.Fatal(err)
			}
			if d.Allowed != tt.allowed || d.Reason != tt.reason {
				t.Errorf("decision = %+v", d)
			}
		})
	}
}

func TestCheckUserTool(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	u := &model.User{Username: "shop", PasswordHash: "x", Role: authz.RoleMerchant, IsActive: true}
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	res, _ := s.handleCheckUser(ctx, callRequest(map[string]interface{}{
		"user_id":    float64(u.ID),
		"permission": "publish_products",
	}))
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, res))
	}
	var out struct {
		Role     string `json:"role"`
		Decision struct {
			Allowed bool   `json:"allowed"`
			Reason  string `json:"reason"`
		} `json:"decision"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Role != "merchant" || !out.Decision.Allowed {
		t.Errorf("result = %+v", out)
	}

	if err := store.SetUserActive(ctx, u.ID, false); err != nil {
		t.Fatal(err)
	}
	res, _ = s.handleCheckUser(ctx, callRequest(map[string]interface{}{"user_id": float64(u.ID)}))
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Decision.Allowed || out.Decision.Reason != "unauthenticated" {
		t.Errorf("disabled user decision = %+v", out.Decision)
	}

	res, _ = s.handleCheckUser(ctx, callRequest(map[string]interface{}{"user_id": float64(4242)}))
	if !res.IsError {
		t.Error("expected tool error for unknown user")
	}
}

func TestNavTool(t *testing.T) {
	s, _ := newTestServer(t)

	res, _ := s.handleNav(context.Background(), callRequest(map[string]interface{}{"role": "merchant"}))
	if !strings.Contains(resultText(t, res), `"/store"`) {
		t.Errorf("merchant nav missing /store: %s", resultText(t, res))
	}

	res, _ = s.handleNav(context.Background(), callRequest(nil))
	if strings.Contains(resultText(t, res), `"/store"`) {
		t.Error("anonymous nav contains /store")
	}
}

func TestRecentDenialsTool(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()
	for _, reason := range []string{"unauthenticated", "role_mismatch", "role_mismatch"} {
		if err := store.RecordDenial(ctx, &model.Denial{Method: "GET", Path: "/admin", Reason: reason}); err != nil {
			t.Fatal(err)
		}
	}

	res, _ := s.handleRecentDenials(ctx, callRequest(map[string]interface{}{"reason": "role_mismatch"}))
	var denials []model.Denial
	if err := json.Unmarshal([]byte(resultText(t, res)), &denials); err != nil {
		t.Fatal(err)
	}
	if len(denials) != 2 {
		t.Errorf("denials = %d, want 2", len(denials))
	}
}

// ---------------------------------------------------------------------------
// Resources
// ---------------------------------------------------------------------------

func TestRoleResources(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	var req mcp.ReadResourceRequest
	req.Params.URI = "neighborly://roles"
	contents, err := s.handleRolesResource(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d", len(contents))
	}

	req.Params.URI = "neighborly://roles/moderator"
	contents, err = s.handleRoleResource(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	text := contents[0].(mcp.TextResourceContents).Text
	if !strings.Contains(text, "pin_posts") {
		t.Errorf("moderator resource = %s", text)
	}

	req.Params.URI = "neighborly://roles/nobody"
	if _, err := s.handleRoleResource(ctx, req); err == nil {
		t.Error("expected error for unknown role")
	}
}
