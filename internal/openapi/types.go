package openapi

import (
	"regexp"

	"github.com/neighborly/neighborly/internal/authz"
)

// RouteDoc describes one HTTP endpoint for documentation. The router builds
// the same slice it mounts, so the requirement documented here is the one
// enforced at runtime.
type RouteDoc struct {
	Method      string
	Path        string // chi-style pattern, e.g. /api/v1/admin/users/{userId}
	Summary     string
	Tag         string
	Auth        bool              // bearer token required
	Requirement authz.Requirement // zero means "authenticated only" when Auth is set
	Body        string            // component schema for the request body, if any
	Response    string            // component schema for the 2xx body, if any
	Status      string            // success status; defaults to "200"
	Query       []QueryParam
}

// QueryParam is an optional query string parameter.
type QueryParam struct {
	Name        string
	Type        string // integer or string
	Description string
}

var pathParamRe = regexp.MustCompile(`\{([^}/]+)\}`)

// pathParams returns the names of the {placeholders} in a route pattern.
func pathParams(pattern string) []string {
	var out []string
	for _, m := range pathParamRe.FindAllStringSubmatch(pattern, -1) {
		out = append(out, m[1])
	}
	return out
}

// docPath converts chi wildcards into a documented parameter.
func docPath(pattern string) string {
	if n := len(pattern); n > 0 && pattern[n-1] == '*' {
		return pattern[:n-1] + "{path}"
	}
	return pattern
}
