package api

import (
	"errors"
	"strings"

	chelper "bingo-server/common/helper"
	"bingo-server/common/logger"
	"bingo-server/internal/common/helper"
	"bingo-server/internal/common/response"
	"bingo-server/internal/model"
	"bingo-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

var newWithdrawService = service.NewWithdrawService

// WithdrawController 提现接口：
// POST /api/withdraw                  用户提现申请
// GET  /api/admin/withdrawals         管理后台按状态查询
// POST /api/admin/withdrawals/paid    管理员标记已打款
type WithdrawController struct{ beego.Controller }

// Request 处理用户提现申请
func (c *WithdrawController) Request() {
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

	svc := newWithdrawService()
	out, err := svc.RequestWithdrawal(c.Ctx.Request.Context(), service.WithdrawInput{
		UserID:  userID,
		Amount:  ap.Amount,
		TraceID: traceID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			response.ErrorWithMessage(&c.Controller, 400, response.CodeInvalidAmount,
				response.ErrorMessages[response.CodeInvalidAmount], traceID)
		case errors.Is(err, service.ErrInsufficientBalance):
			response.ErrorWithMessage(&c.Controller, 400, response.CodeInsufficientBalance,
				response.ErrorMessages[response.CodeInsufficientBalance], traceID)
		case errors.Is(err, service.ErrUserNotFound):
			response.ErrorWithMessage(&c.Controller, 404, response.CodeUserNotFound,
				response.ErrorMessages[response.CodeUserNotFound], traceID)
		default:
			logger.Error("withdrawal request failed",
				zap.String("trace_id", traceID),
				zap.String("user_id", userID),
				zap.Error(err))
			response.InternalError(&c.Controller, traceID)
		}
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"withdrawal_id": out.WithdrawalID,
		"remain_amount": out.RemainAmount,
	}, traceID)
}

// List 处理管理后台查询：?status=pending|paid&offset=&limit=
func (c *WithdrawController) List() {
	traceID := helper.GetTraceID(c.Ctx)

	status := strings.TrimSpace(c.GetString("status"))
	if status == "" {
		status = "pending"
	}
	offset, _ := c.GetUint32("offset", 0)
	limit, _ := c.GetUint32("limit", 50)

	svc := newWithdrawService()
	rows, err := svc.ListWithdrawals(c.Ctx.Request.Context(), status, uint(offset), uint(limit))
	if err != nil {
		if strings.Contains(err.Error(), "unknown withdrawal status") {
			response.BadRequest(&c.Controller, "status must be pending|paid", traceID)
			return
		}
		logger.Error("list withdrawals failed",
			zap.String("trace_id", traceID),
			zap.String("status", status),
			zap.Error(err))
		response.InternalError(&c.Controller, traceID)
		return
	}

	items := make([]map[string]interface{}, 0, len(rows))
	for _, w := range rows {
		items = append(items, map[string]interface{}{
			"withdrawal_id": w.ID,
			"user_id":       w.UserID,
			"amount":        chelper.TrimDecimal(w.Amount),
			"status":        model.WithdrawalCodeToStatus(w.Status),
			"operator":      w.Operator,
			"created_at":    w.CreatedAt,
			"updated_at":    w.UpdatedAt,
		})
	}

	response.Success(&c.Controller, map[string]interface{}{
		"items": items,
	}, traceID)
}

// MarkPaid 处理管理员标记已打款
func (c *WithdrawController) MarkPaid() {
	traceID := helper.GetTraceID(c.Ctx)

	mp, ok, msg := helper.ParseAndValidateMarkPaid(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	// 操作人：优先请求体，其次认证中间件注入的 operator
	operator := mp.Operator
	if operator == "" {
		if v := c.Ctx.Input.GetData("operator"); v != nil {
			if s, ok := v.(string); ok {
				operator = s
			}
		}
	}

	svc := newWithdrawService()
	if err := svc.MarkPaid(c.Ctx.Request.Context(), mp.WithdrawalId, operator); err != nil {
		if errors.Is(err, service.ErrWithdrawalNotFound) {
			response.ErrorWithMessage(&c.Controller, 404, response.CodeWithdrawalNotFound,
				response.ErrorMessages[response.CodeWithdrawalNotFound], traceID)
			return
		}
		logger.Error("mark paid failed",
			zap.String("trace_id", traceID),
			zap.Int64("withdrawal_id", mp.WithdrawalId),
			zap.Error(err))
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"withdrawal_id": mp.WithdrawalId,
		"status":        "paid",
	}, traceID)
}
