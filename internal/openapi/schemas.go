package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/neighborly/neighborly/internal/authz"
)

// Component schema names referenced by RouteDoc.Body and RouteDoc.Response.
const (
	SchemaUser           = "User"
	SchemaUserList       = "UserList"
	SchemaSession        = "Session"
	SchemaRegister       = "RegisterRequest"
	SchemaLogin          = "LoginRequest"
	SchemaRoleList       = "RoleList"
	SchemaRole           = "Role"
	SchemaPermissionList = "PermissionList"
	SchemaRouteList      = "RouteList"
	SchemaCheckRequest   = "CheckRequest"
	SchemaDecision       = "Decision"
	SchemaNav            = "NavList"
	SchemaMyPermissions  = "MyPermissions"
	SchemaSetRole        = "SetRoleRequest"
	SchemaDenialList     = "DenialList"
	SchemaStats          = "Stats"
	SchemaDashboard      = "Dashboard"
	SchemaStatus         = "Status"
	SchemaView           = "View"
)

func enumSchema[T ~string](values []T) *openapi3.Schema {
	s := openapi3.NewStringSchema()
	for _, v := range values {
		s.Enum = append(s.Enum, string(v))
	}
	return s
}

func listOf(item *openapi3.SchemaRef) *openapi3.SchemaRef {
	return openapi3.NewObjectSchema().
		WithPropertyRef("resource", openapi3.NewArraySchema().WithItems(item.Value).NewRef()).
		WithProperty("meta", metaSchema()).
		NewRef()
}

func metaSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("count", openapi3.NewInt64Schema()).
		WithProperty("total", openapi3.NewInt64Schema()).
		WithProperty("limit", openapi3.NewInt32Schema()).
		WithProperty("offset", openapi3.NewInt32Schema())
}

func componentSchemas() openapi3.Schemas {
	roleEnum := enumSchema(authz.Roles())
	permEnum := enumSchema(authz.Permissions())

	user := openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewInt64Schema()).
		WithProperty("username", openapi3.NewStringSchema()).
		WithProperty("email", openapi3.NewStringSchema().WithNullable()).
		WithProperty("phone", openapi3.NewStringSchema().WithNullable()).
		WithProperty("real_name", openapi3.NewStringSchema()).
		WithProperty("user_type", roleEnum).
		WithProperty("credit_points", openapi3.NewInt64Schema()).
		WithProperty("is_verified", openapi3.NewBoolSchema()).
		WithProperty("is_active", openapi3.NewBoolSchema()).
		WithProperty("last_login_at", openapi3.NewDateTimeSchema().WithNullable()).
		WithProperty("created_at", openapi3.NewDateTimeSchema()).
		WithProperty("updated_at", openapi3.NewDateTimeSchema())

	role := openapi3.NewObjectSchema().
		WithProperty("role", roleEnum).
		WithProperty("label", openapi3.NewStringSchema()).
		WithProperty("color", openapi3.NewStringSchema()).
		WithProperty("permissions", openapi3.NewArraySchema().WithItems(permEnum))

	permission := openapi3.NewObjectSchema().
		WithProperty("permission", permEnum).
		WithProperty("category", openapi3.NewStringSchema()).
		WithProperty("roles", openapi3.NewArraySchema().WithItems(roleEnum))

	requirement := openapi3.NewObjectSchema().
		WithProperty("role", roleEnum).
		WithProperty("permission", permEnum)

	route := openapi3.NewObjectSchema().
		WithProperty("path", openapi3.NewStringSchema()).
		WithProperty("public", openapi3.NewBoolSchema()).
		WithProperty("requirement", requirement)

	decision := openapi3.NewObjectSchema().
		WithProperty("allowed", openapi3.NewBoolSchema()).
		WithProperty("reason", enumSchema([]string{"none", "unauthenticated", "insufficient_permission", "role_mismatch"})).
		WithProperty("required", requirement)

	navItem := openapi3.NewObjectSchema().
		WithProperty("path", openapi3.NewStringSchema()).
		WithProperty("label", openapi3.NewStringSchema()).
		WithProperty("icon", openapi3.NewStringSchema())

	denial := openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewInt64Schema()).
		WithProperty("request_id", openapi3.NewStringSchema()).
		WithProperty("user_id", openapi3.NewInt64Schema().WithNullable()).
		WithProperty("role", openapi3.NewStringSchema()).
		WithProperty("method", openapi3.NewStringSchema()).
		WithProperty("path", openapi3.NewStringSchema()).
		WithProperty("reason", openapi3.NewStringSchema()).
		WithProperty("required_permission", openapi3.NewStringSchema()).
		WithProperty("required_role", openapi3.NewStringSchema()).
		WithProperty("created_at", openapi3.NewDateTimeSchema())

	register := openapi3.NewObjectSchema().
		WithProperty("username", openapi3.NewStringSchema().WithMinLength(3).WithMaxLength(80)).
		WithProperty("password", openapi3.NewStringSchema().WithMinLength(6).WithMaxLength(72)).
		WithProperty("email", openapi3.NewStringSchema().WithFormat("email")).
		WithProperty("phone", openapi3.NewStringSchema().WithMaxLength(32)).
		WithProperty("real_name", openapi3.NewStringSchema().WithMaxLength(120))
	register.Required = []string{"username", "password", "phone"}

	login := openapi3.NewObjectSchema().
		WithProperty("username", openapi3.NewStringSchema()).
		WithProperty("password", openapi3.NewStringSchema())
	login.Required = []string{"username", "password"}

	session := openapi3.NewObjectSchema().
		WithProperty("access_token", openapi3.NewStringSchema()).
		WithProperty("token_type", openapi3.NewStringSchema()).
		WithProperty("expires_in", openapi3.NewInt32Schema()).
		WithPropertyRef("user", schemaRef(SchemaUser))

	setRole := openapi3.NewObjectSchema().WithProperty("role", roleEnum)
	setRole.Required = []string{"role"}

	roleCount := openapi3.NewObjectSchema().
		WithProperty("role", roleEnum).
		WithProperty("count", openapi3.NewInt64Schema())

	stats := openapi3.NewObjectSchema().
		WithProperty("users", openapi3.NewInt64Schema()).
		WithProperty("active_users", openapi3.NewInt64Schema()).
		WithProperty("by_role", openapi3.NewArraySchema().WithItems(roleCount)).
		WithProperty("denials", openapi3.NewInt64Schema()).
		WithProperty("policy_source", openapi3.NewStringSchema())

	dashboard := openapi3.NewObjectSchema().
		WithProperty("capabilities", openapi3.NewObjectSchema().WithAdditionalProperties(openapi3.NewBoolSchema()))
	open := true
	dashboard.AdditionalProperties = openapi3.AdditionalProperties{Has: &open}

	view := openapi3.NewObjectSchema().
		WithProperty("path", openapi3.NewStringSchema()).
		WithProperty("public", openapi3.NewBoolSchema()).
		WithProperty("decision", decision)

	errDetail := openapi3.NewObjectSchema().
		WithProperty("code", openapi3.NewInt32Schema()).
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("context", openapi3.NewObjectSchema())

	return openapi3.Schemas{
		SchemaUser:           user.NewRef(),
		SchemaUserList:       listOf(user.NewRef()),
		SchemaSession:        session.NewRef(),
		SchemaRegister:       register.NewRef(),
		SchemaLogin:          login.NewRef(),
		SchemaRole:           role.NewRef(),
		SchemaRoleList:       listOf(role.NewRef()),
		SchemaPermissionList: listOf(permission.NewRef()),
		SchemaRouteList:      listOf(route.NewRef()),
		SchemaCheckRequest:   requirement.NewRef(),
		SchemaDecision:       decision.NewRef(),
		SchemaNav:            listOf(navItem.NewRef()),
		SchemaMyPermissions:  role.NewRef(),
		SchemaSetRole:        setRole.NewRef(),
		SchemaDenialList:     listOf(denial.NewRef()),
		SchemaStats:          stats.NewRef(),
		SchemaDashboard:      dashboard.NewRef(),
		SchemaView:           view.NewRef(),
		SchemaStatus:         openapi3.NewObjectSchema().WithProperty("status", openapi3.NewStringSchema()).NewRef(),
		"ErrorResponse":      openapi3.NewObjectSchema().WithProperty("error", errDetail).NewRef(),
	}
}
