package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SignalsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxscan_signals_generated_total",
			Help: "Total number of trade candidates produced (by strategy).",
		},
		[]string{"strategy"},
	)

	RiskRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxscan_risk_rejections_total",
			Help: "Candidates dropped by the risk gate (by strategy).",
		},
		[]string{"strategy"},
	)

	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxscan_orders_submitted_total",
			Help: "Orders handed to the broker (by strategy).",
		},
		[]string{"strategy"},
	)

	OrdersFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxscan_orders_failed_total",
			Help: "Orders the broker rejected or that errored out (by strategy).",
		},
		[]string{"strategy"},
	)

	AdaptationEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxscan_adaptation_events_total",
			Help: "Threshold adaptations applied (direction = loosen|tighten).",
		},
		[]string{"direction"},
	)

	ScanErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fxscan_scan_errors_total",
			Help: "Broker/API failures that caused an (account, strategy) pair to be skipped.",
		},
	)

	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fxscan_scan_duration_seconds",
			Help:    "Wall time of a full scan pass.",
			Buckets: prometheus.DefBuckets,
		},
	)

	PositionsOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fxscan_positions_open",
			Help: "Open trade count reported by the broker per account.",
		},
		[]string{"account"},
	)
)

func init() {
	prometheus.MustRegister(
		SignalsGenerated, RiskRejections, OrdersSubmitted, OrdersFailed,
		AdaptationEvents, ScanErrors, ScanDuration, PositionsOpen,
	)
}
