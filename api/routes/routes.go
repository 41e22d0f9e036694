package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-extractor/api/handlers"
	"github.com/feichai0017/document-extractor/api/middleware"
	"github.com/feichai0017/document-extractor/pkg/logger"
)

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, log logger.Logger, allowedOrigins []string) {
	// 全局中间件
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(allowedOrigins))

	r.GET("/health", handlers.Health)

	// API 版本组
	v1 := r.Group("/api/v1")

	// 文档处理路由组
	docs := v1.Group("/documents")
	{
		docs.POST("/process", h.Document.ProcessDocument)
		docs.POST("/batch", h.Document.ProcessBatch)
		docs.GET("/status/:taskId", h.Document.GetStatus)
		docs.GET("/download/:taskId", h.Document.DownloadResult)
		docs.DELETE("/task/:taskId", h.Document.CancelTask)
	}

	v1.POST("/extract", h.Document.Extract)
	v1.POST("/convert/png", h.Convert.ToPNG)
	v1.GET("/history/:id", h.Document.GetHistory)
}
