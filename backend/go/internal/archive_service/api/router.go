package api

import (
	"AskArchive/backend/go/internal/config"
	"AskArchive/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置和返回一个 Gin 引擎实例。
func SetupRouter(h *Handler, authCfg config.AuthConfig, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log))

	r.GET("/healthz", h.Healthz)

	// 使用 v1 版本对 API 进行分组，所有业务路由都需要认证
	apiV1 := r.Group("/api/v1")
	apiV1.Use(AuthMiddleware(authCfg))
	{
		ingestion := apiV1.Group("/ingestion")
		{
			ingestion.GET("", h.ListSources)
			ingestion.POST("/video", h.IngestVideo)
			ingestion.POST("/pdf", h.IngestPDF)
			ingestion.DELETE("/user", h.DeleteUser)
			ingestion.DELETE("/user/source", h.DeleteSource)
		}
		apiV1.POST("/query", h.Query)
		apiV1.POST("/search", h.Search)
	}

	return r
}
