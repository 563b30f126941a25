package middleware

import (
	"github.com/beego/beego/v2/server/web/context"
	"github.com/google/uuid"

	"bingo-server/common/logger"
)

// RequestIDFilter 为每个请求注入并返回一个 X-Request-Id，用于链路追踪的最小闭环。
// 同时写入 request context，使 logger.*Ctx 系列在模型层/服务层也能带上 traceId。
func RequestIDFilter(ctx *context.Context) {
	id := ctx.Input.Header("X-Request-Id")
	if id == "" {
		id = uuid.NewString()
	}
	ctx.Input.SetData("trace_id", id)
	ctx.Output.Header("X-Request-Id", id)
	ctx.Request = ctx.Request.WithContext(logger.WithTraceID(ctx.Request.Context(), id))
}
