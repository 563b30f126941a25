package api

import (
	"bingo-server/common/logger"
	"bingo-server/internal/common/helper"
	"bingo-server/internal/common/response"
	"bingo-server/internal/engine"
	"bingo-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

var newRoundService = service.NewRoundService

// RoundController 回合接口：查询状态 / 加入本局 / 报中奖
type RoundController struct{ beego.Controller }

// State 处理 GET /api/state：返回当前回合快照与服务器时间
func (c *RoundController) State() {
	traceID := helper.GetTraceID(c.Ctx)
	svc := newRoundService()

	snap, err := svc.State(c.Ctx.Request.Context())
	if err != nil {
		logger.Error("state query failed", zap.String("trace_id", traceID), zap.Error(err))
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, snap, traceID)
}

// Join 处理 POST /api/join：玩家加入当前回合
// 同一回合内重复加入不是错误：返回成功应答，仅记录日志与指标
func (c *RoundController) Join() {
	traceID := helper.GetTraceID(c.Ctx)

	jp, ok, msg := helper.ParseAndValidateJoin(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	svc := newRoundService()
	err := svc.Join(c.Ctx.Request.Context(), jp.PlayerId, jp.Name, jp.CardIds)
	if err != nil {
		if err == engine.ErrDuplicateParticipant {
			logger.Debug("duplicate join ignored",
				zap.String("trace_id", traceID),
				zap.String("player_id", jp.PlayerId))
			response.Success(&c.Controller, map[string]interface{}{
				"joined":    true,
				"duplicate": true,
			}, traceID)
			return
		}
		logger.Error("join failed",
			zap.String("trace_id", traceID),
			zap.String("player_id", jp.PlayerId),
			zap.Error(err))
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"joined": true,
	}, traceID)
}

// Claim 处理 POST /api/claim：机器人层报中奖（仅 Playing 阶段有效）
func (c *RoundController) Claim() {
	traceID := helper.GetTraceID(c.Ctx)

	jp, ok, msg := helper.ParseAndValidateJoin(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	svc := newRoundService()
	if err := svc.Claim(c.Ctx.Request.Context(), jp.PlayerId); err != nil {
		switch err {
		case engine.ErrNotPlaying:
			response.ErrorWithMessage(&c.Controller, 409, response.CodeBusinessError,
				"当前阶段不可报中奖", traceID)
		case engine.ErrUnknownParticipant:
			response.ErrorWithMessage(&c.Controller, 409, response.CodeBusinessError,
				"玩家未加入本局", traceID)
		default:
			logger.Error("claim failed",
				zap.String("trace_id", traceID),
				zap.String("player_id", jp.PlayerId),
				zap.Error(err))
			response.InternalError(&c.Controller, traceID)
		}
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"winner": jp.PlayerId,
	}, traceID)
}
