package openapi

import (
	"encoding/json"
	"testing"

	"github.com/neighborly/neighborly/internal/authz"
)

func sampleRoutes() []RouteDoc {
	return []RouteDoc{
		{Method: "POST", Path: "/api/v1/auth/login", Summary: "Log in", Tag: "auth", Body: SchemaLogin, Response: SchemaSession},
		{Method: "GET", Path: "/api/v1/me", Summary: "Current user", Tag: "account", Auth: true, Response: SchemaUser},
		{Method: "GET", Path: "/api/v1/admin/users", Summary: "List users", Tag: "admin", Auth: true,
			Requirement: authz.Requirement{Role: authz.RoleAdmin, Permission: authz.PermViewUsers},
			Response:    SchemaUserList,
			Query:       []QueryParam{{Name: "limit", Type: "integer"}, {Name: "role", Type: "string"}}},
		{Method: "PUT", Path: "/api/v1/admin/users/{userId}/role", Summary: "Change role", Tag: "admin", Auth: true,
			Requirement: authz.Requirement{Permission: authz.PermManageUsers},
			Body:        SchemaSetRole, Response: SchemaUser},
		{Method: "GET", Path: "/api/v1/views/*", Summary: "Evaluate view", Tag: "authz"},
	}
}

// ---------------------------------------------------------------------------
// Document structure
// ---------------------------------------------------------------------------

func TestGenerate_Basics(t *testing.T) {
	doc := Generate(sampleRoutes(), "http://localhost:8080")

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("OpenAPI = %q, want 3.1.0", doc.OpenAPI)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://localhost:8080" {
		t.Errorf("servers = %+v", doc.Servers)
	}
	if _, ok := doc.Components.SecuritySchemes["bearerAuth"]; !ok {
		t.Error("bearerAuth security scheme missing")
	}
	if _, ok := doc.Components.Schemas["ErrorResponse"]; !ok {
		t.Error("ErrorResponse schema missing")
	}
	if len(doc.Tags) != 4 {
		t.Errorf("tags = %d, want 4", len(doc.Tags))
	}
	if doc.Tags[0].Name != "account" {
		t.Errorf("tags not sorted: first = %q", doc.Tags[0].Name)
	}
}

func TestGenerate_ReferencedSchemasExist(t *testing.T) {
	doc := Generate(sampleRoutes(), "")
	for _, rt := range sampleRoutes() {
		for _, name := range []string{rt.Body, rt.Response} {
			if name == "" {
				continue
			}
			if _, ok := doc.Components.Schemas[name]; !ok {
				t.Errorf("route %s %s references missing schema %q", rt.Method, rt.Path, name)
			}
		}
	}
}

func TestGenerate_WildcardBecomesParameter(t *testing.T) {
	doc := Generate(sampleRoutes(), "")
	item := doc.Paths.Value("/api/v1/views/{path}")
	if item == nil || item.Get == nil {
		t.Fatal("wildcard view route not documented as /api/v1/views/{path}")
	}
	if len(item.Get.Parameters) != 1 || item.Get.Parameters[0].Value.In != "path" {
		t.Errorf("parameters = %+v", item.Get.Parameters)
	}
}

// ---------------------------------------------------------------------------
// Security and requirement extensions
// ---------------------------------------------------------------------------

func TestGenerate_PublicOperationHasEmptySecurity(t *testing.T) {
	doc := Generate(sampleRoutes(), "")
	op := doc.Paths.Value("/api/v1/auth/login").Post
	if op == nil {
		t.Fatal("login operation missing")
	}
	if op.Security == nil || len(*op.Security) != 0 {
		t.Errorf("login security = %v, want explicit empty", op.Security)
	}
	if op.Responses.Value("401") != nil {
		t.Error("public operation should not document 401")
	}
	if op.Responses.Value("422") == nil {
		t.Error("operation with a body should document 422")
	}
}

func TestGenerate_RequirementExtensions(t *testing.T) {
	doc := Generate(sampleRoutes(), "")

	tests := []struct {
		path, method string
		role, perm   string
		want403      bool
	}{
		{"/api/v1/me", "GET", "", "", false},
		{"/api/v1/admin/users", "GET", "admin", "view_users", true},
		{"/api/v1/admin/users/{userId}/role", "PUT", "", "manage_users", true},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			op := doc.Paths.Value(tt.path).GetOperation(tt.method)
			if op == nil {
				t.Fatal("operation missing")
			}
			if op.Security == nil || len(*op.Security) != 1 {
				t.Fatalf("security = %v, want bearerAuth", op.Security)
			}
			gotRole, _ := op.Extensions[ExtRequiredRole].(string)
			gotPerm, _ := op.Extensions[ExtRequiredPermission].(string)
			if gotRole != tt.role {
				t.Errorf("%s = %q, want %q", ExtRequiredRole, gotRole, tt.role)
			}
			if gotPerm != tt.perm {
				t.Errorf("%s = %q, want %q", ExtRequiredPermission, gotPerm, tt.perm)
			}
			if op.Responses.Value("401") == nil {
				t.Error("guarded operation should document 401")
			}
			if (op.Responses.Value("403") != nil) != tt.want403 {
				t.Errorf("403 documented = %v, want %v", op.Responses.Value("403") != nil, tt.want403)
			}
		})
	}
}

func TestGenerate_ExtensionsSurviveJSON(t *testing.T) {
	doc := Generate(sampleRoutes(), "")
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw struct {
		Paths map[string]map[string]map[string]interface{} `json:"paths"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	op := raw.Paths["/api/v1/admin/users"]["get"]
	if op[ExtRequiredRole] != "admin" {
		t.Errorf("serialized %s = %v", ExtRequiredRole, op[ExtRequiredRole])
	}
	if op["operationId"] != "get_admin_users" {
		t.Errorf("operationId = %v", op["operationId"])
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func TestOperationID(t *testing.T) {
	tests := []struct {
		method, path, want string
	}{
		{"GET", "/api/v1/roles", "get_roles"},
		{"PUT", "/api/v1/admin/users/{userId}/role", "put_admin_users_userId_role"},
		{"GET", "/healthz", "get_healthz"},
		{"GET", "/openapi.json", "get_openapi_json"},
		{"GET", "/api/v1", "get_root"},
	}
	for _, tt := range tests {
		if got := operationID(tt.method, tt.path); got != tt.want {
			t.Errorf("operationID(%s, %s) = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestPathParams(t *testing.T) {
	got := pathParams("/a/{one}/b/{two}")
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("pathParams = %v", got)
	}
	if got := pathParams("/plain"); len(got) != 0 {
		t.Errorf("pathParams(/plain) = %v", got)
	}
}
