package worker

import (
	"context"
	"sync"
	"time"

	"bingo-server/common/logger"
	"bingo-server/internal/metrics"
	"bingo-server/internal/service"

	"go.uber.org/zap"
)

// StartRoundTicker 启动回合时钟：周期性驱动引擎 Tick，
// 每次状态变化落审计、刷新快照缓存与回合指标。
// 引擎一次 Tick 至多推进一个变化，落后时在同一个周期内循环追赶。
func StartRoundTicker(ctx context.Context, wg *sync.WaitGroup) {
	eng := service.RoundEngine()
	if eng == nil {
		logger.Warn("round ticker not started: engine not initialized")
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now()
				changed := false
				// 单周期追赶上限：一整回合也不会超过 75 次叫号 + 3 次阶段切换
				for i := 0; i < 80; i++ {
					tr := eng.Tick(now)
					if tr == nil {
						break
					}
					changed = true
					service.RecordTransition(ctx, tr, "", "")
					logger.Debug("round transition",
						zap.Int64("round_id", tr.RoundID),
						zap.String("event", tr.Event),
						zap.String("prev", tr.PrevPhase),
						zap.String("next", tr.NextPhase),
						zap.Int("called", tr.CalledNumber))
				}
				if changed {
					snap := eng.Snapshot(now)
					service.CacheSnapshot(ctx, snap)
					metrics.SetRoundGauges(len(snap.Participants), len(snap.CalledNumbers))
				}
			}
		}
	}()
}
