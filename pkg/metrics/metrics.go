package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level collectors, registered on the default registry by promauto.

var (
	// ClustersBuilt counts cluster models built, labeled valid/invalid.
	ClustersBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcgcluster_clusters_built_total",
			Help: "Total number of cluster models built",
		},
		[]string{"status"},
	)

	// BridgesCreated counts synthesized bridge edges per method.
	BridgesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcgcluster_bridges_created_total",
			Help: "Total number of bridge edges synthesized between clusters",
		},
		[]string{"method"},
	)

	// MergedPoints counts rows written by the attribute merger.
	MergedPoints = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pcgcluster_merged_points_total",
			Help: "Total number of points written by the attribute merger",
		},
	)

	// MergeTypeMismatches counts attributes dropped because a later source
	// declared them with another type.
	MergeTypeMismatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pcgcluster_merge_type_mismatches_total",
			Help: "Attribute type conflicts found while merging point sets",
		},
	)

	// NodeDuration measures complete node executions.
	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pcgcluster_node_duration_seconds",
			Help:    "Duration of node executions in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"node", "result"},
	)

	// TasksInFlight tracks tasks submitted to task managers and not yet returned.
	TasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pcgcluster_tasks_in_flight",
			Help: "Number of submitted tasks that have not returned yet",
		},
	)
)
