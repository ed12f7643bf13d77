package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsUpdates(t *testing.T) {
	Init()

	startDenied := testutil.ToFloat64(authzDecisions.WithLabelValues("denied", "role_mismatch"))
	startAllowed := testutil.ToFloat64(authzDecisions.WithLabelValues("allowed", "none"))
	startRequests := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "403"))

	ObserveDecision(false, "role_mismatch")
	ObserveDecision(true, "none")
	ObserveDecision(true, "none")
	ObserveRequest("GET", 403, 5*time.Millisecond)
	SetRolePermissions("merchant", 3)

	if got := testutil.ToFloat64(authzDecisions.WithLabelValues("denied", "role_mismatch")); got != startDenied+1 {
		t.Fatalf("denied decisions mismatch: got %v want %v", got, startDenied+1)
	}
	if got := testutil.ToFloat64(authzDecisions.WithLabelValues("allowed", "none")); got != startAllowed+2 {
		t.Fatalf("allowed decisions mismatch: got %v want %v", got, startAllowed+2)
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "403")); got != startRequests+1 {
		t.Fatalf("http_requests_total mismatch: got %v want %v", got, startRequests+1)
	}
	if got := testutil.ToFloat64(policyRoles.WithLabelValues("merchant")); got != 3 {
		t.Fatalf("authz_role_permissions mismatch: got %v want 3", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	ObserveDecision(false, "unauthenticated")
	ObserveRequest("POST", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"authz_decisions_total", "http_requests_total", "http_request_duration_seconds"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}

	count, err := testutil.GatherAndCount(registry, "authz_decisions_total")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if count == 0 {
		t.Error("expected authz_decisions_total samples")
	}
}
