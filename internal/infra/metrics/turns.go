package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_turns_total",
			Help: "Processed dialog turns per entry state and result.",
		},
		[]string{"state", "result"},
	)

	turnLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_turn_latency_ms",
			Help:    "Turn latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"state"},
	)

	turnsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_turns_dropped_total",
			Help: "Turns dropped before processing (lock busy, rate limited).",
		},
		[]string{"reason"},
	)
)

func init() {
	register(turnsTotal, turnLatencyMs, turnsDropped)
}

// ObserveTurn records one completed turn.
func ObserveTurn(state string, err error, started time.Time) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	turnsTotal.WithLabelValues(state, result).Inc()
	turnLatencyMs.WithLabelValues(state).Observe(float64(time.Since(started).Milliseconds()))
}

func TurnDropped(reason string) {
	turnsDropped.WithLabelValues(reason).Inc()
}

var upstreamRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "commerce_upstream_requests_total",
		Help: "Commerce backend requests per operation and HTTP status.",
	},
	[]string{"op", "status"},
)

func init() {
	register(upstreamRequests)
}

func ObserveUpstream(op string, status int) {
	upstreamRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
}
