package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/reportcat/internal/dto"
	"github.com/noah-isme/reportcat/internal/middleware"
	"github.com/noah-isme/reportcat/internal/models"
	"github.com/noah-isme/reportcat/internal/service"
	appErrors "github.com/noah-isme/reportcat/pkg/errors"
	"github.com/noah-isme/reportcat/pkg/response"
)

type reportService interface {
	List(ctx context.Context) ([]dto.ReportSummary, error)
	Show(ctx context.Context, name string, overrides map[string]string) (*dto.ReportResponse, bool, error)
	Render(ctx context.Context, name string, format models.ExportFormat, overrides map[string]string) (*service.Rendered, error)
}

type exportCreator interface {
	CreateJob(ctx context.Context, name string, req dto.ExportRequest) (*dto.ExportJobResponse, error)
}

// ReportHandler exposes the report catalog.
type ReportHandler struct {
	reports reportService
	exports exportCreator
}

// NewReportHandler constructs the handler. exports may be nil when
// asynchronous exports are disabled.
func NewReportHandler(reports reportService, exports exportCreator) *ReportHandler {
	return &ReportHandler{reports: reports, exports: exports}
}

// List godoc
// @Summary List reports
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope{data=[]dto.ReportSummary}
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	list, err := h.reports.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list)
}

// Show godoc
// @Summary Generate a report
// @Description Query string values override report params. format=csv or format=pdf returns a file.
// @Tags Reports
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param name path string true "Report name"
// @Param format query string false "csv or pdf"
// @Success 200 {object} response.Envelope{data=dto.ReportResponse}
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /reports/{name} [get]
func (h *ReportHandler) Show(c *gin.Context) {
	name := c.Param("name")
	overrides := queryOverrides(c, formatQueryKey)

	format := strings.ToLower(strings.TrimSpace(c.Query(formatQueryKey)))
	if format != "" && format != "json" {
		rendered, err := h.reports.Render(c.Request.Context(), name, models.ExportFormat(format), overrides)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Attachment(c, rendered.Filename, rendered.ContentType, rendered.Data)
		return
	}

	resp, cacheHit, err := h.reports.Show(c.Request.Context(), name, overrides)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, resp, middleware.ExtractMeta(c))
}

// CreateExport godoc
// @Summary Queue an asynchronous export
// @Tags Exports
// @Accept json
// @Produce json
// @Param name path string true "Report name"
// @Param payload body dto.ExportRequest true "Export request"
// @Success 202 {object} response.Envelope{data=dto.ExportJobResponse}
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{name}/exports [post]
func (h *ReportHandler) CreateExport(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFeatureDisabled, "exports are disabled"))
		return
	}
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	job, err := h.exports.CreateJob(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}
