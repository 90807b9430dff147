package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EngineOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandtube_engine_operations_total",
			Help: "Total number of engine operations by engine and operation",
		},
		[]string{"engine", "operation"},
	)

	SnapshotWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandtube_snapshot_writes_total",
			Help: "Snapshot writes to the backing store by engine and result",
		},
		[]string{"engine", "result"},
	)

	SnapshotLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandtube_snapshot_loads_total",
			Help: "Snapshot loads at engine construction by engine and result (ok, empty, malformed, error)",
		},
		[]string{"engine", "result"},
	)

	ModerationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandtube_moderation_decisions_total",
			Help: "Moderation outcomes by decision",
		},
		[]string{"decision"},
	)

	RevenueAccrued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandtube_revenue_accrued_total",
			Help: "Net revenue credited by source",
		},
		[]string{"source"},
	)

	QualitySwitches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandtube_quality_switches_total",
			Help: "Adaptive bitrate rung changes by reason",
		},
		[]string{"reason"},
	)

	CurrentViewers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sandtube_current_viewers",
			Help: "Sum of simulated current viewers across tracked items",
		},
	)

	SearchCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandtube_search_cache_total",
			Help: "Search result cache lookups by outcome (hit, miss, bypass)",
		},
		[]string{"outcome"},
	)

	NotificationsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandtube_notifications_total",
			Help: "Notification events handed to the sink by type and result",
		},
		[]string{"type", "result"},
	)
)
