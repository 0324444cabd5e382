// Package metrics exposes the core's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntityApprovals counts lifecycle transitions into approved, by kind.
	EntityApprovals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqquli_entity_approvals_total",
		Help: "Lifecycle approvals by entity kind",
	}, []string{"kind"})

	// TestResultsMinted counts test result entities created by run approval.
	TestResultsMinted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqquli_test_results_minted_total",
		Help: "Test results minted on test run approval, by outcome",
	}, []string{"result"})

	// TraceEdges counts trace edge creation by provenance.
	TraceEdges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqquli_trace_edges_total",
		Help: "Trace edges created, by origin (user or system)",
	}, []string{"origin"})
)
