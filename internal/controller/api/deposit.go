package api

import (
	"errors"

	chelper "bingo-server/common/helper"
	"bingo-server/common/logger"
	"bingo-server/internal/common/helper"
	"bingo-server/internal/common/response"
	infmysql "bingo-server/internal/infra/mysql"
	"bingo-server/internal/model"
	"bingo-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

// depositSvc 进程级单例：充值会话保存在服务实例内存里，
// 必须跨请求共享，不能按请求构造
var depositSvc = service.NewDepositService()

// DepositController 充值对账接口（机器人层调用）：
// POST /api/deposit/begin        开始充值会话
// POST /api/deposit/amount       声明充值金额
// POST /api/deposit/message      用户转发的支付确认文本
// POST /api/notification         支付网关通知原文入库
// GET  /api/admin/notifications  管理后台查看未匹配通知积压
type DepositController struct{ beego.Controller }

// currentUser 从认证中间件注入的数据里取终端用户身份
func currentUser(c *beego.Controller) (userID, username string) {
	if v := c.Ctx.Input.GetData("user_id"); v != nil {
		if s, ok := v.(string); ok {
			userID = s
		}
	}
	if v := c.Ctx.Input.GetData("username"); v != nil {
		if s, ok := v.(string); ok {
			username = s
		}
	}
	return userID, username
}

// Begin 开始一次充值会话（覆盖旧会话）
func (c *DepositController) Begin() {
	traceID := helper.GetTraceID(c.Ctx)
	userID, _ := currentUser(&c.Controller)
	if userID == "" {
		response.BadRequest(&c.Controller, "user identity required", traceID)
		return
	}

	depositSvc.BeginDeposit(userID)
	response.Success(&c.Controller, map[string]interface{}{
		"step": "awaiting_amount",
	}, traceID)
}

// Amount 声明充值金额
func (c *DepositController) Amount() {
	traceID := helper.GetTraceID(c.Ctx)
	userID, _ := currentUser(&c.Controller)
	if userID == "" {
		response.BadRequest(&c.Controller, "user identity required", traceID)
		return
	}

	ap, ok, msg := helper.ParseAndValidateAmount(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	if err := depositSvc.SetDepositAmount(userID, ap.Amount); err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			response.ErrorWithMessage(&c.Controller, 400, response.CodeInvalidAmount,
				response.ErrorMessages[response.CodeInvalidAmount], traceID)
			return
		}
		logger.Error("set deposit amount failed",
			zap.String("trace_id", traceID),
			zap.String("user_id", userID),
			zap.Error(err))
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"step":   "awaiting_notification",
		"amount": ap.Amount,
	}, traceID)
}

// Message 用户转发的任意后续文本：跑一遍匹配与对账
// 无匹配不是错误，返回 matched=false
func (c *DepositController) Message() {
	traceID := helper.GetTraceID(c.Ctx)
	userID, username := currentUser(&c.Controller)
	if userID == "" {
		response.BadRequest(&c.Controller, "user identity required", traceID)
		return
	}

	tp, ok, msg := helper.ParseAndValidateText(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	out, err := depositSvc.OnIncomingText(c.Ctx.Request.Context(), userID, username, tp.Text, traceID)
	if err != nil {
		logger.Error("reconcile failed",
			zap.String("trace_id", traceID),
			zap.String("user_id", userID),
			zap.Error(err))
		response.InternalError(&c.Controller, traceID)
		return
	}

	if !out.Matched {
		response.Success(&c.Controller, map[string]interface{}{
			"matched": false,
		}, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"matched": true,
		"amount":  chelper.TrimDecimal(out.Amount),
	}, traceID)
}

// Notification 支付网关通知原文入库（独立于对账路径）
// 重复通知返回 accepted=false，不算错误
func (c *DepositController) Notification() {
	traceID := helper.GetTraceID(c.Ctx)

	tp, ok, msg := helper.ParseAndValidateText(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	accepted, err := depositSvc.IngestNotification(c.Ctx.Request.Context(), tp.Text, traceID)
	if err != nil {
		logger.Error("notification ingest failed",
			zap.String("trace_id", traceID),
			zap.Error(err))
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"accepted": accepted,
	}, traceID)
}

// Pending 管理后台查看未匹配的通知积压：?offset=&limit=
// 排障用：用户说充了钱没到账时，先看这里有没有对应的 (ref, amount)
func (c *DepositController) Pending() {
	traceID := helper.GetTraceID(c.Ctx)

	offset, _ := c.GetUint32("offset", 0)
	limit, _ := c.GetUint32("limit", 50)
	if limit == 0 || limit > 200 {
		limit = 50
	}

	rows, err := model.ListPendingNotifications(c.Ctx.Request.Context(), infmysql.SQLX(), uint(offset), uint(limit))
	if err != nil {
		logger.Error("list pending notifications failed",
			zap.String("trace_id", traceID),
			zap.Error(err))
		response.InternalError(&c.Controller, traceID)
		return
	}

	items := make([]map[string]interface{}, 0, len(rows))
	for _, p := range rows {
		items = append(items, map[string]interface{}{
			"id":         p.ID,
			"ref_code":   p.RefCode,
			"amount":     chelper.TrimDecimal(p.Amount),
			"raw_text":   p.RawText,
			"created_at": p.CreatedAt,
		})
	}

	response.Success(&c.Controller, map[string]interface{}{
		"items": items,
	}, traceID)
}
