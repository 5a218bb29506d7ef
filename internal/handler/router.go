package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/aimarket/internal/middleware"
)

type RouterDeps struct {
	Documents *DocumentHandler
	Analysis  *AnalysisHandler
	RateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/documents", deps.Documents.Create)
	api.POST("/documents/upload", deps.Documents.Upload)
	api.GET("/documents", deps.Documents.List)
	api.GET("/documents/:id", deps.Documents.Get)
	api.DELETE("/documents/:id", deps.Documents.Delete)
	api.POST("/documents/:id/ingest", deps.Documents.Ingest)
	api.GET("/documents/:id/chunks", deps.Documents.Chunks)

	limited := api.Group("")
	limited.Use(middleware.RateLimit(deps.RateLimit))
	limited.POST("/analysis", deps.Analysis.Analyze)
	limited.POST("/retrieval/search", deps.Analysis.Search)
}
