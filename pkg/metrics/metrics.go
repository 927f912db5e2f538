package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Topology metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mastermind_nodes_total",
			Help: "Total number of storage nodes by status",
		},
		[]string{"status"},
	)

	GroupsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mastermind_groups_total",
			Help: "Total number of groups by status",
		},
		[]string{"status"},
	)

	CouplesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mastermind_couples_total",
			Help: "Total number of couples by status",
		},
		[]string{"status"},
	)

	UncoupledGroups = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mastermind_uncoupled_groups",
			Help: "Number of groups not bound to any couple",
		},
	)

	TotalSpaceBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mastermind_total_space_bytes",
			Help: "Aggregate disk space across all storage nodes",
		},
	)

	FreeSpaceBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mastermind_free_space_bytes",
			Help: "Aggregate free disk space across all storage nodes",
		},
	)

	// Reconciler metrics
	ReconcileRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mastermind_reconcile_runs_total",
			Help: "Total number of completed load-nodes cycles",
		},
	)

	ReconcileErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mastermind_reconcile_errors_total",
			Help: "Total number of errors isolated during reconciliation sweeps",
		},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mastermind_reconcile_duration_seconds",
			Help:    "Duration of load-nodes cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Handler metrics
	HandlerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mastermind_handler_requests_total",
			Help: "Total number of handler requests by handler and status",
		},
		[]string{"handler", "status"},
	)

	HandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mastermind_handler_duration_seconds",
			Help:    "Handler request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler"},
	)

	// Event metrics
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mastermind_events_total",
			Help: "Total number of published coordinator events by type",
		},
		[]string{"type"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(GroupsTotal)
	prometheus.MustRegister(CouplesTotal)
	prometheus.MustRegister(UncoupledGroups)
	prometheus.MustRegister(TotalSpaceBytes)
	prometheus.MustRegister(FreeSpaceBytes)
	prometheus.MustRegister(ReconcileRunsTotal)
	prometheus.MustRegister(ReconcileErrorsTotal)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(HandlerRequestsTotal)
	prometheus.MustRegister(HandlerDuration)
	prometheus.MustRegister(EventsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
