// Package prometheus exports engine execution metrics: pipeline and node
// durations, event volume, dependency issues and output-adapter counters.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mcpag"

var (
	// pipelinesActive is a gauge of currently running pipelines.
	pipelinesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipelines_active",
			Help:      "Number of currently active pipelines",
		},
	)

	// pipelineDuration is a histogram of total pipeline execution duration.
	pipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Histogram of total pipeline execution duration in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"status"}, // status: success, error
	)

	// nodeDuration is a histogram of per-node execution duration.
	nodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of node executions in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"tool"},
	)

	// nodesTotal is a counter of executed nodes.
	nodesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_total",
			Help:      "Total number of executed nodes",
		},
		[]string{"tool", "status"}, // status: success, partial_success, error
	)

	// eventsTotal is a counter of emitted events by type.
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of emitted events",
		},
		[]string{"type"},
	)

	// dependencyIssuesTotal counts classified dependency issues.
	dependencyIssuesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dependency_issues_total",
			Help:      "Total number of classified dependency issues",
		},
		[]string{"kind"},
	)

	// allMetrics is the list registered on an exporter.
	allMetrics = []prometheus.Collector{
		pipelinesActive,
		pipelineDuration,
		nodeDuration,
		nodesTotal,
		eventsTotal,
		dependencyIssuesTotal,
	}
)

// RecordPipelineStart increments the active pipeline gauge.
func RecordPipelineStart() {
	pipelinesActive.Inc()
}

// RecordPipelineEnd decrements the active gauge and records duration.
func RecordPipelineEnd(status string, seconds float64) {
	pipelinesActive.Dec()
	pipelineDuration.WithLabelValues(status).Observe(seconds)
}

// RecordNode records one node execution.
func RecordNode(tool, status string, seconds float64) {
	nodeDuration.WithLabelValues(tool).Observe(seconds)
	nodesTotal.WithLabelValues(tool, status).Inc()
}

// RecordEvent counts one emitted event.
func RecordEvent(eventType string) {
	eventsTotal.WithLabelValues(eventType).Inc()
}

// RecordDependencyIssue counts one classified dependency issue.
func RecordDependencyIssue(kind string) {
	dependencyIssuesTotal.WithLabelValues(kind).Inc()
}
