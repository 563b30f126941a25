package middleware

import (
	"strings"
	"time"

	"bingo-server/common/logger"
	"bingo-server/internal/auth"
	"bingo-server/internal/common/helper"
	"bingo-server/internal/common/response"
	"bingo-server/internal/config"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// AdminAuthFilter 管理员认证过滤器
// 用于保护提现审核等管理接口。优先匹配静态运维 Token，
// 不匹配时再按 JWT 验证（支持签发给后台工具的短期令牌）。
func AdminAuthFilter(ctx *beegocontext.Context) {
	cfg := config.Get()
	traceID := helper.GetTraceID(ctx)

	// 如果未启用管理员认证，跳过
	if cfg == nil || !cfg.Auth.Admin.Enabled {
		logger.Debug("admin auth disabled, skip", zap.String("trace_id", traceID))
		return
	}

	// 辅助函数：返回认证错误
	returnAuthError := func(code int, message string) {
		ctx.Output.SetStatus(code)
		ctx.Output.JSON(response.APIResponse{
			Code:      response.CodeUnauthorized,
			Message:   message,
			Data:      nil,
			TraceID:   traceID,
			Timestamp: time.Now().UnixMilli(),
		}, false, false)
	}

	// 提取 Authorization 头
	authHeader := strings.TrimSpace(ctx.Input.Header("Authorization"))
	if authHeader == "" {
		logger.Warn("missing admin token", zap.String("trace_id", traceID))
		returnAuthError(401, "缺少管理员认证信息")
		return
	}

	// 解析 Bearer Token
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		logger.Warn("invalid admin token format", zap.String("trace_id", traceID))
		returnAuthError(401, "无效的认证格式")
		return
	}

	token := parts[1]

	// 1. 静态运维 Token
	if cfg.Auth.Admin.Token != "" && token == cfg.Auth.Admin.Token {
		ctx.Input.SetData("is_admin", true)
		ctx.Input.SetData("operator", "ops")
		logger.Debug("admin authentication successful", zap.String("trace_id", traceID))
		return
	}

	// 2. JWT 令牌
	if cfg.Auth.JWT.Secret != "" {
		claims, err := auth.VerifyAdminToken(ctx)
		if err == nil {
			ctx.Input.SetData("is_admin", true)
			ctx.Input.SetData("operator", claims.Operator)
			logger.Debug("admin jwt authentication successful",
				zap.String("trace_id", traceID),
				zap.String("operator", claims.Operator))
			return
		}
		logger.Warn("admin jwt verification failed",
			zap.String("trace_id", traceID),
			zap.Error(err))
	}

	logger.Warn("invalid admin token",
		zap.String("trace_id", traceID),
		zap.String("token_prefix", token[:min(len(token), 8)]+"..."))
	returnAuthError(401, "无效的管理员Token")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
