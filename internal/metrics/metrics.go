// Package metrics exposes the prometheus counters of the permit engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "parkingpermits"

var (
	// PermitTransitions counts permit status changes by source and target status
	PermitTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "permit_transitions_total",
		Help:      "Permit status transitions.",
	}, []string{"from", "to"})

	// ProviderEvents counts handled provider events by type and outcome
	ProviderEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_events_total",
		Help:      "Provider events by type and result (ok, duplicate, error).",
	}, []string{"type", "result"})

	// SweepPermits counts permits touched by a background sweep
	SweepPermits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_permits_total",
		Help:      "Permits processed by background sweeps.",
	}, []string{"sweep", "result"})

	// ProviderCalls counts outbound provider calls by operation and outcome
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_calls_total",
		Help:      "Outbound payment provider calls.",
	}, []string{"operation", "result"})

	// PermitEvents counts audit trail events by type
	PermitEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "permit_events_total",
		Help:      "Permit audit trail events.",
	}, []string{"type"})
)

// Result labels
const (
	ResultOK        = "ok"
	ResultDuplicate = "duplicate"
	ResultError     = "error"
)

// Result maps an error to a result label
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
