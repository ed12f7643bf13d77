package openapi

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/neighborly/neighborly/internal/authz"
)

// Extension keys carrying the authorization requirement of an operation.
const (
	ExtRequiredRole       = "x-required-role"
	ExtRequiredPermission = "x-required-permission"
)

// Generate builds an OpenAPI 3.1 document for the given routes.
func Generate(routes []RouteDoc, baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Neighborly API",
			Description: "Role and permission gated API for the Neighborly community platform.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = componentSchemas()
	components.SecuritySchemes = openapi3.SecuritySchemes{
		"bearerAuth": &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{
				Type:         "http",
				Scheme:       "bearer",
				BearerFormat: "JWT",
			},
		},
	}
	doc.Components = &components
	doc.Paths = openapi3.NewPaths()

	tags := make(map[string]bool)
	for _, rt := range routes {
		path := docPath(rt.Path)
		item := doc.Paths.Value(path)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(path, item)
		}
		item.SetOperation(strings.ToUpper(rt.Method), operation(rt, path))
		if rt.Tag != "" {
			tags[rt.Tag] = true
		}
	}

	names := make([]string, 0, len(tags))
	for t := range tags {
		names = append(names, t)
	}
	sort.Strings(names)
	for _, t := range names {
		doc.Tags = append(doc.Tags, &openapi3.Tag{Name: t})
	}

	return doc
}

// operation converts one RouteDoc to an OpenAPI operation.
func operation(rt RouteDoc, path string) *openapi3.Operation {
	op := &openapi3.Operation{
		Summary:     rt.Summary,
		OperationID: operationID(rt.Method, path),
	}
	if rt.Tag != "" {
		op.Tags = []string{rt.Tag}
	}

	for _, name := range pathParams(path) {
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{
			Value: openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()),
		})
	}
	for _, q := range rt.Query {
		schema := openapi3.NewStringSchema()
		if q.Type == "integer" {
			schema = openapi3.NewIntegerSchema()
		}
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter(q.Name).
				WithDescription(q.Description).
				WithSchema(schema),
		})
	}

	if rt.Body != "" {
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithRequired(true).
				WithJSONSchemaRef(schemaRef(rt.Body)),
		}
	}

	status := rt.Status
	if status == "" {
		status = "200"
	}
	op.Responses = newResponses(status, rt.Summary, rt.Response, rt)

	if rt.Auth {
		op.Security = &openapi3.SecurityRequirements{{"bearerAuth": {}}}
		op.Extensions = map[string]any{}
		if rt.Requirement.Role != "" {
			op.Extensions[ExtRequiredRole] = string(rt.Requirement.Role)
		}
		if rt.Requirement.Permission != "" {
			op.Extensions[ExtRequiredPermission] = string(rt.Requirement.Permission)
		}
		if len(op.Extensions) == 0 {
			op.Extensions = nil
		}
		op.Description = describeRequirement(rt.Requirement)
	} else {
		op.Security = &openapi3.SecurityRequirements{}
	}
	return op
}

func describeRequirement(req authz.Requirement) string {
	switch {
	case req.Role != "" && req.Permission != "":
		return fmt.Sprintf("Requires the %s role and the %s permission.", req.Role, req.Permission)
	case req.Role != "":
		return fmt.Sprintf("Requires the %s role.", req.Role)
	case req.Permission != "":
		return fmt.Sprintf("Requires the %s permission.", req.Permission)
	default:
		return "Requires an authenticated user."
	}
}

// operationID derives a stable id such as get_admin_users_userId.
func operationID(method, path string) string {
	p := strings.TrimPrefix(path, "/api/v1")
	p = strings.NewReplacer("{", "", "}", "", "-", "_", ".", "_").Replace(p)
	parts := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		parts = []string{"root"}
	}
	return strings.ToLower(method) + "_" + strings.Join(parts, "_")
}

func schemaRef(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

// newResponses builds the success response plus the error responses the
// route can produce. Guarded routes document 401 and, when a role or
// permission is required, 403.
func newResponses(status, description, response string, rt RouteDoc) *openapi3.Responses {
	responses := openapi3.NewResponsesWithCapacity(6)

	if description == "" {
		description = http.StatusText(http.StatusOK)
	}
	success := &openapi3.Response{Description: &description}
	if response != "" {
		success.Content = openapi3.NewContentWithJSONSchemaRef(schemaRef(response))
	}
	responses.Set(status, &openapi3.ResponseRef{Value: success})

	errorRef := schemaRef("ErrorResponse")
	addError := func(code, desc string) {
		d := desc
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &d,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}

	if rt.Body != "" {
		addError("400", "Bad request")
		addError("422", "Validation failed")
	}
	if rt.Auth {
		addError("401", "Unauthorized")
		if !rt.Requirement.IsZero() {
			addError("403", "Forbidden")
		}
	}
	if len(pathParams(docPath(rt.Path))) > 0 {
		addError("404", "Not found")
	}
	addError("500", "Internal server error")

	return responses
}
