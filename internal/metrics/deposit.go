package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deposit_reconcile_total",
			Help: "Reconciliation attempts by outcome",
		},
		[]string{"outcome"},
	)

	reconcileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deposit_reconcile_duration_ms",
			Help:    "Reconciliation attempt duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"outcome"},
	)

	pendingBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deposit_pending_notifications",
			Help: "Unmatched payment notifications currently stored",
		},
	)
)

// RecordReconcile 记录一次对账尝试
// outcome: "matched" | "no_match" | "race_lost" | "error"
func RecordReconcile(outcome string, started time.Time) {
	reconcileTotal.WithLabelValues(outcome).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	reconcileDuration.WithLabelValues(outcome).Observe(durMs)
}

// SetPendingBacklog 上报当前未匹配通知积压量（janitor 定期刷新）
func SetPendingBacklog(n int64) {
	pendingBacklog.Set(float64(n))
}
