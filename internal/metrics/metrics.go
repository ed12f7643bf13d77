package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()
	once     sync.Once

	authzDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Total number of access guard decisions.",
		},
		[]string{"outcome", "reason"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		},
		[]string{"method", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	policyRoles = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "authz_role_permissions",
			Help: "Number of permissions granted to each role by the active policy.",
		},
		[]string{"role"},
	)
)

// Init registers metrics with the registry once.
func Init() {
	once.Do(func() {
		registry.MustRegister(
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
			authzDecisions,
			httpRequests,
			httpDuration,
			policyRoles,
		)
	})
}

// Handler exposes the Prometheus metrics endpoint handler.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveDecision counts one guard decision. reason is "none" for allowed
// decisions.
func ObserveDecision(allowed bool, reason string) {
	Init()
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	authzDecisions.WithLabelValues(outcome, reason).Inc()
}

// ObserveRequest records a served HTTP request.
func ObserveRequest(method string, status int, d time.Duration) {
	Init()
	httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method).Observe(d.Seconds())
}

// SetRolePermissions publishes the size of a role's permission set.
func SetRolePermissions(role string, n int) {
	Init()
	policyRoles.WithLabelValues(role).Set(float64(n))
}
