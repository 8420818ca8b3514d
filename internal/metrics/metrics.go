// Package metrics exposes Prometheus collectors for rounds and HTTP traffic
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label names
const (
	LabelMethod = "method"
	LabelPath   = "path"
	LabelStatus = "status"
	LabelGame   = "game"
	LabelEntry  = "entry"
	LabelMode   = "mode"
	LabelReason = "reason"
)

// HTTPLatencyBuckets spans 1ms to 10s
var HTTPLatencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// CascadeBuckets covers the cascade counts of a single spin
var CascadeBuckets = []float64{0, 1, 2, 3, 4, 5, 7, 10, 15, 25, 50, 100}

// PayoutRatioBuckets covers payout / cost per round, up to the max-win cap
var PayoutRatioBuckets = []float64{0, 0.1, 0.5, 1, 2, 5, 10, 50, 100, 500, 1000, 5000, 10000}

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: HTTPLatencyBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)
)

// Round Metrics
var (
	RoundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rounds_total",
			Help: "Total number of settled rounds",
		},
		[]string{LabelGame, LabelEntry},
	)

	RoundsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rounds_rejected_total",
			Help: "Total number of round requests rejected before any debit",
		},
		[]string{LabelReason},
	)

	SettlementFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_failures_total",
			Help: "Total number of rounds whose settlement failed after the debit",
		},
		[]string{LabelGame},
	)

	CascadesPerSpin = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cascades_per_spin",
			Help:    "Number of cascades resolved in a single spin",
			Buckets: CascadeBuckets,
		},
		[]string{LabelGame, LabelMode},
	)

	FreeSpinsPlayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "free_spins_played_total",
			Help: "Total number of free spins played",
		},
		[]string{LabelGame},
	)

	RoundPayoutRatio = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "round_payout_ratio",
			Help:    "Round payout divided by the amount charged",
			Buckets: PayoutRatioBuckets,
		},
		[]string{LabelGame},
	)
)
