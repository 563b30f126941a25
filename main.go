package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bingo-server/common"
	"bingo-server/common/logger"
	"bingo-server/internal/config"
	"bingo-server/internal/engine"
	infmysql "bingo-server/internal/infra/mysql"
	infrds "bingo-server/internal/infra/redis"
	"bingo-server/internal/model"
	"bingo-server/internal/service"
	"bingo-server/internal/worker"
	_ "bingo-server/routers"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	logger.InitLogger()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 配置加载链：Nacos -> Etcd -> 本地文件
	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatalf("config load failed", zap.Error(err))
	}
	config.Set(cfg)
	config.SetCurrent(cfg)
	if cfg.Server.LogLevel != "" {
		logger.SetLevel(cfg.Server.LogLevel)
	}

	// MySQL
	db := common.InitDB(cfg.Database.DSN, cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	if cfg.Database.ConnMaxLifetimeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetimeSec) * time.Second)
	}
	infmysql.UseDB(db.DB)

	// Redis（可选：未配置时相关路径自动降级）
	if cfg.Redis.Addr != "" {
		infrds.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := infrds.Ping(ctx, 2*time.Second); err != nil {
			logger.Warn("redis ping failed, degraded paths will apply", zap.Error(err))
		}
	}

	// RocketMQ：infra 层从 beego.AppConfig 读取，这里做一次桥接
	if cfg.RocketMQ.Endpoint != "" {
		_ = beego.AppConfig.Set("rocketmq_endpoint", cfg.RocketMQ.Endpoint)
		_ = beego.AppConfig.Set("rocketmq_access_key", cfg.RocketMQ.AccessKey)
		_ = beego.AppConfig.Set("rocketmq_secret_key", cfg.RocketMQ.SecretKey)
		_ = beego.AppConfig.Set("rocketmq_producer_topics",
			model.TopicRoundEvent+","+model.TopicDepositEvent)
	}

	// 回合引擎
	service.InitRoundEngine(engine.Config{
		SelectionWindow: time.Duration(cfg.Game.SelectionWindowSec) * time.Second,
		CallInterval:    time.Duration(cfg.Game.CallIntervalMs) * time.Millisecond,
		WinnerHold:      time.Duration(cfg.Game.WinnerHoldSec) * time.Second,
	})

	// 配置中心热更新（仅 Nacos 来源时生效）
	if err := config.StartWatch(ctx, func(oldCfg, newCfg *config.Config) {
		config.SetCurrent(newCfg)
		if newCfg.Server.LogLevel != oldCfg.Server.LogLevel {
			logger.SetLevel(newCfg.Server.LogLevel)
		}
	}); err != nil {
		logger.Warn("config watch not started", zap.Error(err))
	}

	// 后台 worker
	var wg sync.WaitGroup
	worker.StartRoundTicker(ctx, &wg)
	worker.StartOutboxDispatcher(ctx, &wg)
	worker.StartNotificationJanitor(ctx, &wg)

	// Prometheus 指标端口（独立于业务端口）
	if cfg.Observability.EnableProm {
		addr := cfg.Observability.PromAddr
		if addr == "" {
			addr = ":9100"
		}
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server exited", zap.Error(err))
			}
		}()
	}

	// 优雅退出：等 worker 落完手头的审计/outbox 再退出
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		logger.Info("shutdown signal received", zap.String("signal", s.String()))
		cancel()

		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			logger.Warn("worker shutdown timeout")
		}
		logger.Sync()
		os.Exit(0)
	}()

	// 平台签名需要原始请求体
	beego.BConfig.CopyRequestBody = true

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	common.Printf("[server] bingo-server listening on :%d\n", port)
	beego.Run(fmt.Sprintf(":%d", port))
}
