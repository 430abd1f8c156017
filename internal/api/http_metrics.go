package api

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/storyforge/storyforge/pkg/entitlements"
)

// unmatchedRoute labels requests no registered pattern served: 404s, 405s
// and CORS preflights answered before routing.
const unmatchedRoute = "unmatched"

var (
	httpMetricsOnce sync.Once

	apiRequestDuration *prometheus.HistogramVec
	apiRequestTotal    *prometheus.CounterVec
	apiRequestErrors   *prometheus.CounterVec
	apiUpgradePrompts  *prometheus.CounterVec
)

func initHTTPMetrics() {
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storyforge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration observed at the API layer.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	apiRequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storyforge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the API.",
		},
		[]string{"method", "route", "status"},
	)

	apiRequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storyforge",
			Subsystem: "http",
			Name:      "request_errors_total",
			Help:      "HTTP errors surfaced to clients, excluding upgrade prompts.",
		},
		[]string{"method", "route", "status_class"},
	)

	apiUpgradePrompts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storyforge",
			Subsystem: "http",
			Name:      "upgrade_prompts_total",
			Help:      "402 responses served by the entitlement gate, by route and outcome.",
		},
		[]string{"route", "capability", "outcome"},
	)

	prometheus.MustRegister(apiRequestDuration, apiRequestTotal, apiRequestErrors, apiUpgradePrompts)
}

func recordAPIRequest(method, route string, status int, elapsed time.Duration) {
	httpMetricsOnce.Do(initHTTPMetrics)

	apiRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
	apiRequestTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	if class := classifyStatus(status); class != "" {
		apiRequestErrors.WithLabelValues(method, route, class).Inc()
	}
}

func recordUpgradePrompt(route string, capability entitlements.Capability, outcome entitlements.Outcome) {
	httpMetricsOnce.Do(initHTTPMetrics)
	apiUpgradePrompts.WithLabelValues(route, string(capability), string(outcome)).Inc()
}

// classifyStatus returns the error class for status, or "" when the response
// is not an error. 402 is an upgrade prompt, not an error.
func classifyStatus(status int) string {
	switch {
	case status >= 500:
		return "server_error"
	case status == http.StatusPaymentRequired:
		return ""
	case status >= 400:
		return "client_error"
	default:
		return ""
	}
}

// routeLabel is the ServeMux pattern that matched r, without its method. The
// mux sets r.Pattern on the request it was handed, which is the one
// ErrorHandler holds.
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return unmatchedRoute
	}
	if _, path, ok := strings.Cut(r.Pattern, " "); ok {
		return path
	}
	return r.Pattern
}
