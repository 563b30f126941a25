package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pendingWithdrawAmount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "withdraw_pending_amount",
			Help: "Total amount of withdrawals awaiting payout",
		},
	)
)

// SetPendingWithdrawAmount 上报待打款总额（janitor 定期刷新）
func SetPendingWithdrawAmount(total float64) {
	pendingWithdrawAmount.Set(total)
}
