// Package metrics exposes Prometheus instrumentation for entitlement checks,
// metered usage and the profile cache.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/storyforge/storyforge/pkg/entitlements"
)

// EntitlementMetrics manages Prometheus instrumentation for the feature gate.
type EntitlementMetrics struct {
	decisionsTotal *prometheus.CounterVec
	usageTotal     *prometheus.CounterVec
	cacheTotal     *prometheus.CounterVec
}

var (
	entitlementMetricsInstance *EntitlementMetrics
	entitlementMetricsOnce     sync.Once
)

// GetEntitlementMetrics returns the singleton instance registered with the
// default Prometheus registry.
func GetEntitlementMetrics() *EntitlementMetrics {
	entitlementMetricsOnce.Do(func() {
		entitlementMetricsInstance = NewEntitlementMetrics(prometheus.DefaultRegisterer)
	})
	return entitlementMetricsInstance
}

// NewEntitlementMetrics builds the collectors and registers them with reg.
func NewEntitlementMetrics(reg prometheus.Registerer) *EntitlementMetrics {
	m := &EntitlementMetrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storyforge",
				Subsystem: "entitlements",
				Name:      "decisions_total",
				Help:      "Total feature gate decisions by capability and outcome",
			},
			[]string{"capability", "outcome"},
		),
		usageTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storyforge",
				Subsystem: "entitlements",
				Name:      "usage_recorded_total",
				Help:      "Total metered usage increments by capability",
			},
			[]string{"capability"},
		),
		cacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storyforge",
				Subsystem: "profiles",
				Name:      "cache_total",
				Help:      "Total profile cache lookups by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.decisionsTotal,
		m.usageTotal,
		m.cacheTotal,
	)

	return m
}

// ObserveDecision implements entitlements.Observer.
func (m *EntitlementMetrics) ObserveDecision(d entitlements.Decision) {
	m.decisionsTotal.WithLabelValues(label(string(d.Capability)), string(d.Outcome())).Inc()
}

// RecordUsage counts a metered usage increment.
func (m *EntitlementMetrics) RecordUsage(capability entitlements.Capability, delta int64) {
	if delta <= 0 {
		return
	}
	m.usageTotal.WithLabelValues(label(string(capability))).Add(float64(delta))
}

// RecordCacheLookup counts a profile cache hit or miss.
func (m *EntitlementMetrics) RecordCacheLookup(result string) {
	m.cacheTotal.WithLabelValues(label(result)).Inc()
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
