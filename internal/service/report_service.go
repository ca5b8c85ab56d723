package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/reportcat/internal/dto"
	"github.com/noah-isme/reportcat/internal/models"
	"github.com/noah-isme/reportcat/internal/report"
	appErrors "github.com/noah-isme/reportcat/pkg/errors"
	"github.com/noah-isme/reportcat/pkg/sqlguard"
)

type reportRegistry interface {
	Names() []string
	New(name string) (*report.Report, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type reportMetrics interface {
	ObserveReport(name, outcome string, rows int, duration time.Duration)
}

// ReportServiceConfig tunes synchronous generation.
type ReportServiceConfig struct {
	QueryTimeout time.Duration
	CacheTTL     time.Duration
}

// Rendered is a report serialised to a downloadable file.
type Rendered struct {
	Data        []byte
	ContentType string
	Filename    string
}

// ReportService builds reports from the registry and runs them against the
// store. Every call works on a fresh report instance.
type ReportService struct {
	registry reportRegistry
	store    report.Store
	cache    reportCache
	metrics  reportMetrics
	logger   *zap.Logger
	cfg      ReportServiceConfig
	now      func() time.Time
}

// NewReportService constructs the service. A non-nil guard checks every
// compiled statement before it reaches store. cache and metrics may be nil.
func NewReportService(registry reportRegistry, store report.Store, guard *sqlguard.Guard, cache reportCache, metrics reportMetrics, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if guard != nil {
		store = guard.Wrap(store)
	}
	return &ReportService{
		registry: registry,
		store:    store,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// List returns a summary of every concrete report.
func (s *ReportService) List(ctx context.Context) ([]dto.ReportSummary, error) {
	names := s.registry.Names()
	out := make([]dto.ReportSummary, 0, len(names))
	for _, name := range names {
		r, err := s.registry.New(name)
		if err != nil {
			return nil, translateReportError(err)
		}
		out = append(out, dto.NewReportSummary(r))
	}
	return out, nil
}

// Generate builds, configures and runs the named report.
func (s *ReportService) Generate(ctx context.Context, name string, overrides map[string]interface{}) (*report.Report, error) {
	r, err := s.configure(name, overrides)
	if err != nil {
		return nil, err
	}
	if err := s.run(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *ReportService) configure(name string, overrides map[string]interface{}) (*report.Report, error) {
	r, err := s.registry.New(name)
	if err != nil {
		return nil, translateReportError(err)
	}
	if err := r.Configure(overrides); err != nil {
		s.observe(name, OutcomeError, 0, 0)
		s.logger.Warn("report configuration failed", zap.String("report", name), zap.Error(err))
		return nil, translateReportError(err)
	}
	return r, nil
}

func (s *ReportService) run(ctx context.Context, r *report.Report) error {
	if s.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
	}

	start := time.Now()
	err := r.Run(ctx, s.store)
	duration := time.Since(start)
	if err != nil {
		s.observe(r.Name, OutcomeError, 0, duration)
		s.logger.Warn("report generation failed", zap.String("report", r.Name), zap.Duration("duration", duration), zap.Error(err))
		return translateReportError(err)
	}
	s.observe(r.Name, OutcomeSuccess, len(r.Rows), duration)
	s.logger.Debug("report generated", zap.String("report", r.Name), zap.Int("rows", len(r.Rows)), zap.Duration("duration", duration))
	return nil
}

// Show generates the named report as a response payload, serving repeated
// requests from cache when enabled. The cache key is built from the
// configured param values, so unknown query keys share an entry and derived
// defaults are part of it. The boolean reports a cache hit.
func (s *ReportService) Show(ctx context.Context, name string, overrides map[string]string) (*dto.ReportResponse, bool, error) {
	r, err := s.configure(name, stringOverrides(overrides))
	if err != nil {
		return nil, false, err
	}
	key := ReportKey(name, paramValues(r))
	if s.cache != nil {
		var cached dto.ReportResponse
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	if err := s.run(ctx, r); err != nil {
		return nil, false, err
	}
	resp, err := dto.NewReportResponse(r)
	if err != nil {
		return nil, false, translateReportError(err)
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, resp, s.cfg.CacheTTL)
	}
	return resp, false, nil
}

// Render generates the named report and serialises its visible columns.
func (s *ReportService) Render(ctx context.Context, name string, format models.ExportFormat, overrides map[string]string) (*Rendered, error) {
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	r, err := s.Generate(ctx, name, stringOverrides(overrides))
	if err != nil {
		return nil, err
	}

	out := &Rendered{Filename: fmt.Sprintf("%s_%s.%s", name, s.now().UTC().Format("20060102_150405"), format)}
	switch format {
	case models.ExportFormatPDF:
		out.ContentType = "application/pdf"
		out.Data, err = r.ToPDF()
	default:
		out.ContentType = "text/csv"
		var csv string
		csv, err = r.ToCSV()
		out.Data = []byte(csv)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return out, nil
}

// SQL returns the statement the named report would run, with values inlined
// for display.
func (s *ReportService) SQL(name string, overrides map[string]string) (string, error) {
	r, err := s.registry.New(name)
	if err != nil {
		return "", translateReportError(err)
	}
	if err := r.Configure(stringOverrides(overrides)); err != nil {
		return "", translateReportError(err)
	}
	sql, err := r.InlineSQL()
	if err != nil {
		return "", translateReportError(err)
	}
	return sql, nil
}

func (s *ReportService) observe(name, outcome string, rows int, duration time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveReport(name, outcome, rows, duration)
	}
}

func paramValues(r *report.Report) map[string]string {
	out := make(map[string]string, len(r.Params))
	for _, p := range r.Params {
		out[p.Name] = report.FormatValue(p.Value())
	}
	return out
}

func stringOverrides(in map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// translateReportError maps engine errors onto API errors.
func translateReportError(err error) error {
	var appErr *appErrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, report.ErrReportNotFound):
		return appErrors.Cause(appErrors.ErrNotFound, err, "report not found")
	case errors.Is(err, sqlguard.ErrUnsafeSQL):
		return appErrors.Cause(appErrors.ErrUnsafeSQL, err, "")
	case errors.Is(err, report.ErrInvalidDate),
		errors.Is(err, report.ErrInvalidCheckBox),
		errors.Is(err, report.ErrInvalidReport):
		return appErrors.Cause(appErrors.ErrValidation, err, err.Error())
	case errors.Is(err, report.ErrQueryExecution):
		return appErrors.Cause(appErrors.ErrQueryFailed, err, "")
	case errors.Is(err, report.ErrUnsupportedParamType):
		return appErrors.Cause(appErrors.ErrInternal, err, "report declares an unsupported param type")
	default:
		return appErrors.Cause(appErrors.ErrInternal, err, "")
	}
}
