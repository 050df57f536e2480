// Package telemetry exposes pool operation metrics to Prometheus.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ammcore/internal/model"
)

// Metrics implements amm.Observer.
type Metrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	reserves   *prometheus.GaugeVec
	shares     *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amm_operations_total",
				Help: "Pool operations by outcome.",
			},
			[]string{"op", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "amm_operation_duration_seconds",
				Help:    "Histogram of pool operation latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		reserves: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "amm_pool_reserve",
				Help: "Pool reserve after the last commit, in smallest units.",
			},
			[]string{"pool", "asset"},
		),
		shares: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "amm_pool_total_shares",
				Help: "Outstanding pool shares after the last commit.",
			},
			[]string{"pool"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.latency, m.reserves, m.shares)
	}
	return m
}

func (m *Metrics) ObserveOperation(op string, outcome string, elapsed time.Duration) {
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObservePool records reserves as float gauges. Precision above 2^53 is lost.
func (m *Metrics) ObservePool(pool model.Pool) {
	id := pool.ID.Hex()
	m.reserves.WithLabelValues(id, model.AssetA.String()).Set(float64(pool.ReserveA))
	m.reserves.WithLabelValues(id, model.AssetB.String()).Set(float64(pool.ReserveB))
	m.shares.WithLabelValues(id).Set(float64(pool.TotalShares))
}
