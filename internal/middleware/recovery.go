package middleware

import (
	"runtime/debug"
	"time"

	"bingo-server/common/logger"
	"bingo-server/internal/common/helper"
	"bingo-server/internal/common/response"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// RecoveryFilter 全局 panic 恢复中间件
// 捕获处理请求过程中的 panic，记录堆栈并返回统一的 500 响应
func RecoveryFilter(ctx *beegocontext.Context) {
	defer func() {
		if r := recover(); r != nil {
			traceID := helper.GetTraceID(ctx)

			logger.Error("panic recovered",
				zap.String("trace_id", traceID),
				zap.String("method", ctx.Request.Method),
				zap.String("path", ctx.Request.URL.Path),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))

			ctx.Output.SetStatus(500)
			ctx.Output.JSON(response.APIResponse{
				Code:      response.CodeSystemError,
				Message:   response.ErrorMessages[response.CodeSystemError],
				Data:      nil,
				TraceID:   traceID,
				Timestamp: time.Now().UnixMilli(),
			}, false, false)
			ctx.Abort(500, "")
		}
	}()
}
