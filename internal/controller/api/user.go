package api

import (
	chelper "bingo-server/common/helper"
	"bingo-server/common/logger"
	"bingo-server/internal/common/helper"
	"bingo-server/internal/common/response"
	infmysql "bingo-server/internal/infra/mysql"
	"bingo-server/internal/model"

	beego "github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

// UserController 用户查询接口（用户只能查询自己的数据）
type UserController struct{ beego.Controller }

// Balance 处理 GET /api/user/balance：余额 + 最近账本流水
// 首次查询时自动注册用户（余额为 0），与入账路径的 get-or-create 语义一致
func (c *UserController) Balance() {
	traceID := helper.GetTraceID(c.Ctx)
	userID, username := currentUser(&c.Controller)
	if userID == "" {
		response.BadRequest(&c.Controller, "user identity required", traceID)
		return
	}

	reqCtx := c.Ctx.Request.Context()
	user, err := model.GetOrCreateUser(reqCtx, infmysql.SQLX(), userID, username)
	if err != nil {
		logger.ErrorCtx(reqCtx, "balance query failed",
			zap.String("user_id", userID),
			zap.Error(err))
		response.InternalError(&c.Controller, traceID)
		return
	}

	// 最近流水（尽力而为：失败不影响余额返回）
	var recent []map[string]interface{}
	rows, err := model.ListLedgerByUser(reqCtx, infmysql.SQLX(), userID, 10)
	if err != nil {
		logger.WarnCtx(reqCtx, "ledger query failed",
			zap.String("user_id", userID),
			zap.Error(err))
	} else {
		for _, r := range rows {
			recent = append(recent, map[string]interface{}{
				"biz_type":   r.BizTypeStr,
				"amount":     chelper.TrimDecimal(r.Amount),
				"after":      chelper.TrimDecimal(r.AfterAmount),
				"ref_code":   r.RefCode,
				"round_id":   r.RoundID,
				"created_at": r.CreatedAt,
			})
		}
	}

	response.Success(&c.Controller, map[string]interface{}{
		"user_id": userID,
		"balance": chelper.TrimDecimal(user.Balance),
		"recent":  recent,
	}, traceID)
}
