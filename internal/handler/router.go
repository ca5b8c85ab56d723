package handler

import "github.com/gin-gonic/gin"

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Reports *ReportHandler
	Exports *ExportHandler
	Metrics *MetricsHandler
}

// Register mounts the API routes. Probes and the scrape endpoint live at the
// root; everything else under api. Exports routes are skipped when
// h.Exports is nil.
func Register(root *gin.Engine, api *gin.RouterGroup, h Handlers) {
	if h.Metrics != nil {
		root.GET("/health", h.Metrics.Health)
		root.GET("/ready", h.Metrics.Ready)
		root.GET("/metrics", h.Metrics.Prometheus)
		api.GET("/metrics/summary", h.Metrics.Summary)
	}

	reports := api.Group("/reports")
	reports.GET("", h.Reports.List)
	reports.GET("/:name", h.Reports.Show)
	reports.POST("/:name/exports", h.Reports.CreateExport)

	if h.Exports != nil {
		exports := api.Group("/exports")
		exports.GET("/:id", h.Exports.Status)
		exports.GET("/download/:token", h.Exports.Download)
	}
}
