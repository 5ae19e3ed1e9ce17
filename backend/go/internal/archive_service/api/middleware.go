package api

import (
	"AskArchive/backend/go/internal/config"
	"AskArchive/backend/go/internal/models"
	"AskArchive/backend/go/pkg/auth"
	"AskArchive/backend/go/pkg/logger"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	userIDKey = "userID"
	loggerKey = "logger"

	// HeaderRequestID carries the trace id in both directions.
	HeaderRequestID = "X-Request-ID"
	// HeaderUserID identifies the caller when auth.method is "header".
	HeaderUserID = "X-User-ID"
)

// RequestLogger 为每个请求分配 trace id，并在请求结束后写一条包含 RequestInfo 的日志。
func RequestLogger(base *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		traceID := c.GetHeader(HeaderRequestID)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Header(HeaderRequestID, traceID)
		c.Set(loggerKey, base.WithField("trace_id", traceID))

		c.Next()

		// 认证中间件会把用户 ID 加入上下文中的 logger
		requestLogger(c).WithRequest(models.RequestInfo{
			Method:     c.Request.Method,
			Path:       c.FullPath(),
			RemoteAddr: c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			StatusCode: c.Writer.Status(),
			LatencyMs:  time.Since(start).Milliseconds(),
		}).Info("handled request")
	}
}

// AuthMiddleware 创建一个 Gin 中间件，解析调用方的用户 ID 并存入上下文。
// method 为 "jwt" 时校验 Bearer token；为 "header" 时直接信任 X-User-ID（仅用于开发环境）。
func AuthMiddleware(cfg config.AuthConfig) gin.HandlerFunc {
	if cfg.Method == "header" {
		return func(c *gin.Context) {
			uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
			if uid == "" {
				unauthorized(c, "请求未包含 "+HeaderUserID+" 标头")
				return
			}
			setUser(c, uid)
		}
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "请求未包含授权标头")
			return
		}

		// 我们期望的格式是 "Bearer <token>"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(c, "授权标头格式不正确")
			return
		}

		uid, err := auth.ParseToken(cfg.JwtSecret, parts[1])
		if err != nil {
			unauthorized(c, "无效的 token")
			return
		}
		setUser(c, uid)
	}
}

func setUser(c *gin.Context, uid string) {
	c.Set(userIDKey, uid)
	c.Set(loggerKey, requestLogger(c).WithTrace(traceID(c), uid))
	c.Next()
}

func traceID(c *gin.Context) string {
	return c.Writer.Header().Get(HeaderRequestID)
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Status: "Error", Message: message, Kind: "unauthorized"})
}

// currentUser returns the id set by AuthMiddleware.
func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}
