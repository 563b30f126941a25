package routers

import (
	"bingo-server/internal/controller/api"
	"bingo-server/internal/metrics"
	"bingo-server/internal/middleware"

	beego "github.com/beego/beego/v2/server/web"
)

// init 注册HTTP路由与全局过滤器
// 过滤器全部无条件注册：CORS/限流/管理认证在各自内部检查配置开关，
// 这样配置晚于路由初始化加载（或热更新）也能生效
func init() {
	// 全局过滤器（按执行顺序）
	// 1. Panic Recovery（最先执行，捕获所有 panic）
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RecoveryFilter)

	// 2. 请求ID注入
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)

	// 3. CORS 处理（启用时生效）
	beego.InsertFilter("/*", beego.BeforeExec, middleware.CORSFilter)

	// 4. HTTP 指标收集
	beego.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	beego.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter)

	// 健康检查（无需认证）
	beego.Router("/healthz", &api.HealthController{}, "get:Healthz")
	beego.Router("/readyz", &api.HealthController{}, "get:Readyz")

	// ========== 回合 API ==========

	// 状态查询：只读，无需认证
	beego.Router("/api/state", &api.RoundController{}, "get:State")

	// 加入/报中奖：机器人层调用，平台认证 + 限流
	for _, path := range []string{"/api/join", "/api/claim"} {
		beego.InsertFilter(path, beego.BeforeExec, middleware.PlatformAuthFilter)
		beego.InsertFilter(path, beego.BeforeExec, middleware.RateLimitFilter)
	}
	beego.Router("/api/join", &api.RoundController{}, "post:Join")
	beego.Router("/api/claim", &api.RoundController{}, "post:Claim")

	// ========== 钱包 API（涉及资金，全部平台认证） ==========

	for _, path := range []string{"/api/deposit/*", "/api/notification", "/api/user/*", "/api/withdraw"} {
		beego.InsertFilter(path, beego.BeforeExec, middleware.PlatformAuthFilter)
		beego.InsertFilter(path, beego.BeforeExec, middleware.RateLimitFilter)
	}

	beego.Router("/api/deposit/begin", &api.DepositController{}, "post:Begin")
	beego.Router("/api/deposit/amount", &api.DepositController{}, "post:Amount")
	beego.Router("/api/deposit/message", &api.DepositController{}, "post:Message")
	beego.Router("/api/notification", &api.DepositController{}, "post:Notification")
	beego.Router("/api/user/balance", &api.UserController{}, "get:Balance")
	beego.Router("/api/withdraw", &api.WithdrawController{}, "post:Request")

	// ========== 管理 API（管理员认证，开关关闭时过滤器自动放行） ==========

	beego.InsertFilter("/api/admin/*", beego.BeforeExec, middleware.AdminAuthFilter)
	beego.Router("/api/admin/withdrawals", &api.WithdrawController{}, "get:List")
	beego.Router("/api/admin/withdrawals/paid", &api.WithdrawController{}, "post:MarkPaid")
	beego.Router("/api/admin/notifications", &api.DepositController{}, "get:Pending")
}
