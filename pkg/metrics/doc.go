/*
Package metrics provides Prometheus metrics collection and exposition for
Mastermind.

The metrics package defines and registers all Mastermind metrics using the
Prometheus client library, providing observability into topology health,
fleet capacity, reconciliation cadence and handler latency. Metrics are
exposed via HTTP endpoint for scraping by Prometheus servers, alongside
health, readiness and liveness endpoints for orchestration probes.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                          │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry               │          │
	│  │  - Global DefaultRegistry                  │          │
	│  │  - MustRegister at package init            │          │
	│  │  - Automatic Go runtime metrics            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                    │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                │          │
	│  │                                            │          │
	│  │  Topology: nodes/groups/couples by status  │          │
	│  │  Capacity: total/free space across fleet   │          │
	│  │  Reconciler: runs, errors, cycle duration  │          │
	│  │  Handlers: request count and duration      │          │
	│  │  Events: published events by type          │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                    │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │             Collector                      │          │
	│  │  - Samples topology.State every 15s        │          │
	│  │  - Zeroes the full status alphabet first   │          │
	│  │  - Immediate sample on Start               │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                    │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Observability Server              │          │
	│  │  - /metrics: Prometheus text exposition    │          │
	│  │  - /health:  component health JSON         │          │
	│  │  - /ready:   critical components ready     │          │
	│  │  - /live:    process liveness              │          │
	│  └────────────────────────────────────────────┘          │
	└──────────────────────────────────────────────────────────┘

# Core Components

Metric Definitions (metrics.go):
  - Package-level metric variables
  - Registered via prometheus.MustRegister in init()
  - Naming convention: mastermind_<subsystem>_<name>_<unit>

Collector (collector.go):
  - Periodically samples the topology model into gauges
  - 15 second collection interval
  - Zeroes every status label before counting so vanished
    statuses read 0 instead of their last value

Timer (timer.go):
  - Measures elapsed time for histogram observation
  - Duration readable multiple times
  - ObserveDuration / ObserveDurationVec helpers

Health Checker (health.go):
  - Tracks per-component health with messages
  - Readiness gated on critical components:
    elliptics, reconciler, transport
  - The reconciler reports unhealthy until its first full
    reload completes, keeping /ready at 503 while the model
    is still empty

Server (server.go):
  - Single HTTP server for all observability endpoints
  - Started from the agent's run group

# Metrics Catalog

Topology Metrics:

	mastermind_nodes_total{status}     Storage nodes by status
	                                   (INIT/OK/RO/BAD/STALLED)
	mastermind_groups_total{status}    Groups by status
	                                   (INIT/COUPLED/RO/BAD)
	mastermind_couples_total{status}   Couples by status
	                                   (INIT/OK/FROZEN/RO/BAD)
	mastermind_uncoupled_groups        Groups without a couple
	mastermind_total_space_bytes       Aggregate fleet capacity
	mastermind_free_space_bytes        Aggregate free capacity

Reconciler Metrics:

	mastermind_reconcile_runs_total        Completed load-nodes cycles
	mastermind_reconcile_errors_total      Errors isolated in sweeps
	mastermind_reconcile_duration_seconds  Cycle duration histogram

Handler Metrics:

	mastermind_handler_requests_total{handler,status}  Requests by
	                                   handler name and ok/error
	mastermind_handler_duration_seconds{handler}       Latency

Event Metrics:

	mastermind_events_total{type}      Published events by type

# Usage

Incrementing counters:

	metrics.ReconcileRunsTotal.Inc()
	metrics.HandlerRequestsTotal.WithLabelValues("get_group_weights", "ok").Inc()

Timing an operation:

	timer := metrics.NewTimer()
	runSweep()
	timer.ObserveDuration(metrics.ReconcileDuration)

Running the collector:

	collector := metrics.NewCollector(state)
	collector.Start()
	defer collector.Stop()

Serving the endpoints:

	server := metrics.NewServer()
	go server.Start(":9090")

Reporting component health:

	metrics.RegisterComponent("reconciler", false, "waiting for first reload")
	// ... after the initial load lands:
	metrics.UpdateComponent("reconciler", true, "")

# Integration Points

This package integrates with:

  - pkg/topology: Collector samples the State accessors
  - pkg/reconciler: cycle counters, durations, readiness flip
  - pkg/transport: handler counters and durations via interceptor
  - pkg/events: event counters from the agent's subscriber
  - cmd/mastermind: server lifecycle in the run group

# Alerting Examples

Useful PromQL expressions:

	# couples unavailable for writes
	sum(mastermind_couples_total{status=~"BAD|RO"})

	# reconciler stopped making progress
	rate(mastermind_reconcile_runs_total[10m]) == 0

	# fleet close to full
	mastermind_free_space_bytes / mastermind_total_space_bytes < 0.1

	# handler error ratio
	sum(rate(mastermind_handler_requests_total{status="error"}[5m]))
	  / sum(rate(mastermind_handler_requests_total[5m])) > 0.05

# Best Practices

Do:
  - Sample topology through the Collector, not ad hoc
  - Use the Timer helpers for durations
  - Keep label cardinality bounded (statuses and handler names only)

Don't:
  - Put addresses, couple ids or namespaces into labels
  - Report readiness healthy before the first reload
  - Register metrics outside this package

# See Also

  - pkg/topology for the sampled model
  - pkg/reconciler for cycle instrumentation
  - pkg/transport for the handler interceptor
  - Prometheus naming: https://prometheus.io/docs/practices/naming/
*/
package metrics
