package worker

import (
	"context"
	"sync"
	"time"

	"bingo-server/common/helper"
	"bingo-server/common/logger"
	"bingo-server/internal/config"
	infmysql "bingo-server/internal/infra/mysql"
	"bingo-server/internal/metrics"
	"bingo-server/internal/model"

	"go.uber.org/zap"
)

// StartNotificationJanitor 启动待匹配通知清理器：
// 周期性删除超过 TTL 仍未被消费的支付通知（用户始终没来对账的沉淀数据），
// 并把通知积压量与待打款总额上报为指标。
func StartNotificationJanitor(ctx context.Context, wg *sync.WaitGroup) {
	cfg := config.Get()

	interval := time.Hour
	ttl := 72 * time.Hour
	if cfg != nil {
		if cfg.Deposit.JanitorIntervalSec > 0 {
			interval = time.Duration(cfg.Deposit.JanitorIntervalSec) * time.Second
		}
		if cfg.Deposit.PendingTTLHours > 0 {
			ttl = time.Duration(cfg.Deposit.PendingTTLHours) * time.Hour
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		// 多副本部署时错峰启动，避免同一时刻集中清理
		jitter := time.Duration(helper.GenerateRandNum(helper.NewRand(), 0, 30)) * time.Second
		select {
		case <-ctx.Done():
			return
		case <-time.After(jitter):
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c, cancel := context.WithTimeout(ctx, 10*time.Second)

				cutoff := time.Now().Add(-ttl)
				purged, err := model.PurgePendingNotificationsBefore(c, infmysql.SQLX(), cutoff)
				if err != nil {
					logger.Warn("janitor: purge failed", zap.Error(err))
				} else if purged > 0 {
					logger.Info("janitor: purged stale notifications",
						zap.Int64("purged", purged),
						zap.Time("cutoff", cutoff))
				}

				if n, err := model.CountPendingNotifications(c, infmysql.SQLX()); err != nil {
					logger.Warn("janitor: backlog count failed", zap.Error(err))
				} else {
					metrics.SetPendingBacklog(n)
				}

				if total, err := model.SumPendingWithdrawals(c, infmysql.SQLX()); err != nil {
					logger.Warn("janitor: pending withdrawals sum failed", zap.Error(err))
				} else {
					metrics.SetPendingWithdrawAmount(total)
				}
				cancel()
			}
		}
	}()
}
