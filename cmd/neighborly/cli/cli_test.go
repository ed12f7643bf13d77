package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/config"
)

func writePolicy(t *testing.T, assign map[authz.Role][]authz.Permission) string {
	t.Helper()
	table, err := authz.NewTable(assign)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	data, err := config.MarshalPolicy(table)
	if err != nil {
		t.Fatalf("MarshalPolicy: %v", err)
	}
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func TestRedactDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://app:secret@db:5432/neighborly", "postgres://app:****@db:5432/neighborly"},
		{"app:secret@tcp(db:3306)/neighborly", "app:****@tcp(db:3306)/neighborly"},
		{"postgres://db:5432/neighborly", "postgres://db:5432/neighborly"},
		{"/var/lib/neighborly/neighborly.db", "/var/lib/neighborly/neighborly.db"},
	}
	for _, tt := range tests {
		if got := redactDSN(tt.in); got != tt.want {
			t.Errorf("redactDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestForegroundArgs(t *testing.T) {
	got := foregroundArgs([]string{"serve", "--background", "--port", "9090", "--background=true"})
	want := []string{"serve", "--port", "9090"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("foregroundArgs = %v, want %v", got, want)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", time.Minute},
		{"15s", 15 * time.Second},
		{"nonsense", time.Minute},
		{"-5s", time.Minute},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.in, time.Minute); got != tt.want {
			t.Errorf("parseDuration(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseUserID(t *testing.T) {
	if id, err := parseUserID("42"); err != nil || id != 42 {
		t.Errorf("parseUserID(42) = %d, %v", id, err)
	}
	for _, bad := range []string{"0", "-1", "seven"} {
		if _, err := parseUserID(bad); err == nil {
			t.Errorf("parseUserID(%q): expected error", bad)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %s", out)
	}
	var rec map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", out, err)
	}
	if rec["msg"] != "shown" || rec["k"] != "v" {
		t.Errorf("record = %v", rec)
	}
}

// ---------------------------------------------------------------------------
// role check
// ---------------------------------------------------------------------------

func TestParseRequirement(t *testing.T) {
	need, err := parseRequirement("manage_store", "merchant")
	if err != nil {
		t.Fatal(err)
	}
	if need.Permission != authz.PermManageStore || need.Role != authz.RoleMerchant {
		t.Errorf("requirement = %+v", need)
	}
	if _, err := parseRequirement("teleport", ""); err == nil {
		t.Error("expected error for unknown permission")
	}
	if _, err := parseRequirement("", "wizard"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestDescribeDecision(t *testing.T) {
	table := authz.DefaultTable()
	tests := []struct {
		user *authz.User
		need authz.Requirement
		want string
	}{
		{&authz.User{Role: authz.RoleUser}, authz.Requirement{}, "allowed (authentication)"},
		{nil, authz.Requirement{Role: authz.RoleAdmin}, "denied: unauthenticated (role admin)"},
		{&authz.User{Role: authz.RoleAdmin}, authz.Requirement{Permission: authz.PermManageStore},
			"denied: insufficient_permission (permission manage_store)"},
		{&authz.User{Role: authz.RoleAdmin}, authz.Requirement{Role: authz.RoleAdmin, Permission: authz.PermViewUsers},
			"allowed (permission view_users + role admin)"},
	}
	for _, tt := range tests {
		if got := describeDecision(table.Evaluate(tt.user, tt.need)); got != tt.want {
			t.Errorf("describeDecision = %q, want %q", got, tt.want)
		}
	}
}

func TestRunRoleCheck(t *testing.T) {
	var out bytes.Buffer
	if err := runRoleCheck(&out, "merchant", "manage_store", "", false); err != nil {
		t.Fatalf("merchant manage_store: %v", err)
	}
	if !strings.HasPrefix(out.String(), "merchant -> allowed") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	err := runRoleCheck(&out, "moderator", "", "admin", false)
	if !errors.Is(err, authz.ErrRoleMismatch) {
		t.Errorf("err = %v, want ErrRoleMismatch", err)
	}

	if err := runRoleCheck(&out, "overlord", "", "", false); !errors.Is(err, authz.ErrUnknownRole) {
		t.Errorf("err = %v, want ErrUnknownRole", err)
	}
}

func TestRunRoleList(t *testing.T) {
	var out bytes.Buffer
	if err := runRoleList(&out, true); err != nil {
		t.Fatal(err)
	}
	var rows []struct {
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
	}
	if err := json.Unmarshal(out.Bytes(), &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 || rows[4].Role != "user" || len(rows[4].Permissions) != 0 {
		t.Errorf("rows = %+v", rows)
	}
}

// ---------------------------------------------------------------------------
// policy
// ---------------------------------------------------------------------------

func TestRunPolicyValidate(t *testing.T) {
	assign := authz.DefaultTable().Assignment()
	assign[authz.RoleVIPUser] = append(assign[authz.RoleVIPUser], authz.PermPinPosts)
	path := writePolicy(t, assign)

	var out bytes.Buffer
	if err := runPolicyValidate(&out, path); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out.String(), "valid") || !strings.Contains(out.String(), "1 escalation(s)") {
		t.Errorf("output = %s", out.String())
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("roles:\n  admin: [fly]\n"), 0644)
	if err := runPolicyValidate(&out, bad); err == nil {
		t.Error("expected error for invalid policy")
	}
}

func TestRunPolicyDiff(t *testing.T) {
	current := writePolicy(t, authz.DefaultTable().Assignment())

	next := authz.DefaultTable().Assignment()
	next[authz.RoleUser] = []authz.Permission{authz.PermManageAnnouncements}
	nextPath := writePolicy(t, next)

	var out bytes.Buffer
	if err := runPolicyDiff(&out, nextPath, current, false, false); err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !strings.Contains(out.String(), `+ Role "user" is granted "manage_announcements"`) {
		t.Errorf("output = %s", out.String())
	}

	out.Reset()
	if err := runPolicyDiff(&out, nextPath, current, true, true); err == nil {
		t.Error("expected --fail-on-escalation to fail")
	}
	var report struct {
		EscalationCount int `json:"escalation_count"`
	}
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.EscalationCount != 2 {
		t.Errorf("escalation_count = %d, want 2 (permission and /announcements)", report.EscalationCount)
	}

	out.Reset()
	if err := runPolicyDiff(&out, current, current, false, true); err != nil {
		t.Fatalf("identical policies: %v", err)
	}
	if !strings.Contains(out.String(), "No changes.") {
		t.Errorf("output = %s", out.String())
	}
}

// ---------------------------------------------------------------------------
// openapi / benchmark
// ---------------------------------------------------------------------------

func TestRunOpenAPI(t *testing.T) {
	var out bytes.Buffer
	if err := runOpenAPI(&out, "https://api.example.com", "json"); err != nil {
		t.Fatal(err)
	}
	var doc struct {
		OpenAPI string                 `json:"openapi"`
		Paths   map[string]interface{} `json:"paths"`
	}
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(doc.OpenAPI, "3.1") {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	if _, ok := doc.Paths["/api/v1/admin/users"]; !ok {
		t.Error("missing /api/v1/admin/users path")
	}

	out.Reset()
	if err := runOpenAPI(&out, "", "yaml"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "x-required-role: admin") {
		t.Error("yaml output missing x-required-role")
	}

	if err := runOpenAPI(&out, "", "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestBenchCases(t *testing.T) {
	cases := benchCases()
	users := len(authz.Roles()) + 1
	needs := 1 + len(authz.Permissions()) + len(authz.Roles()) + 1
	if len(cases) != users*needs {
		t.Errorf("cases = %d, want %d", len(cases), users*needs)
	}
	if cases[0].user != nil {
		t.Error("first case should be anonymous")
	}
}

func TestRunBenchmark(t *testing.T) {
	var out bytes.Buffer
	if err := runBenchmark(&out, 50*time.Millisecond, 2, "", 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Decisions:", "role_mismatch:", "Table swaps:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
	if err := runBenchmark(&out, time.Millisecond, 0, "", 0); err == nil {
		t.Error("expected error for zero concurrency")
	}
}
