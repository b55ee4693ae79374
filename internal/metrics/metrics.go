package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders submitted, by kind, side and outcome",
	}, []string{"kind", "side", "outcome"})

	TradesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trades_executed_total",
		Help: "Trades recorded by the engine",
	}, []string{"pair"})

	OrdersCanceled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_canceled_total",
		Help: "Orders canceled by their owner",
	})

	OrdersAmended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_amended_total",
		Help: "Successful amendments, by mode (edit or amend)",
	}, []string{"mode"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections",
		Help: "Open execution stream connections",
	})

	EngineOpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engine_op_seconds",
		Help:    "Latency of engine operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)

// ObserveOp records the time elapsed since start for op.
func ObserveOp(op string, start time.Time) {
	EngineOpLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
