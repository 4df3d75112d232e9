package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archgraph_graph_nodes_total",
		Help: "Number of modules in the most recently analyzed dependency graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archgraph_graph_edges_total",
		Help: "Number of dependency edges in the most recently analyzed graph.",
	})

	GraphCycles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archgraph_graph_cycles_total",
		Help: "Number of dependency cycles found in the most recent analysis.",
	})

	LayerViolations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archgraph_layer_violations_total",
		Help: "Number of semantic layer violations found in the most recent analysis.",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "archgraph_analysis_seconds",
		Help:    "Time spent on analysis tasks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	HistoryAppendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archgraph_history_appends_total",
		Help: "Total number of history points appended.",
	})

	HistoryRecoveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archgraph_history_recoveries_total",
		Help: "Total number of times unreadable history was discarded and recreated.",
	})

	HistoryRiskScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archgraph_history_risk_score",
		Help: "Risk score of the most recently appended history point.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archgraph_watcher_events_total",
		Help: "Total number of file system events received by the self-map watcher.",
	})

	WatcherThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archgraph_watcher_throttled_total",
		Help: "Total number of re-analysis triggers skipped by the rate limiter.",
	})
)
