package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundEventTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "round_events_total",
			Help: "Total round engine transitions by event",
		},
		[]string{"event"},
	)

	roundParticipants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "round_participants",
			Help: "Participants registered in the current round",
		},
	)

	roundCalledNumbers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "round_called_numbers",
			Help: "Numbers called so far in the current round",
		},
	)

	joinTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "round_join_total",
			Help: "Join requests by result",
		},
		[]string{"result"},
	)
)

// RecordRoundEvent 记录一次状态机事件
// event: "selection_end" | "number_called" | "declare_winner" | "rollover"
func RecordRoundEvent(event string) {
	roundEventTotal.WithLabelValues(event).Inc()
}

// SetRoundGauges 回合快照上报：当前参与者数与已叫号数
func SetRoundGauges(participants, called int) {
	roundParticipants.Set(float64(participants))
	roundCalledNumbers.Set(float64(called))
}

// RecordJoin 记录加入请求
// result: "success" | "duplicate" | "fail"
func RecordJoin(result string) {
	joinTotal.WithLabelValues(result).Inc()
}
