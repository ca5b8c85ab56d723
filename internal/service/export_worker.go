package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/reportcat/internal/models"
	"github.com/noah-isme/reportcat/internal/repository"
	appErrors "github.com/noah-isme/reportcat/pkg/errors"
	"github.com/noah-isme/reportcat/pkg/jobs"
)

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error)
}

type exportMetrics interface {
	RecordExportJob(format models.ExportFormat, status models.ExportStatus)
}

// ExportWorker bridges queue jobs to ExportService.
type ExportWorker struct {
	repo       exportJobStore
	exporter   exportGenerator
	metrics    exportMetrics
	logger     *zap.Logger
	maxRetries int
}

// NewExportWorker constructs a worker. metrics may be nil.
func NewExportWorker(repo exportJobStore, exporter exportGenerator, metrics exportMetrics, maxRetries int, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ExportWorker{
		repo:       repo,
		exporter:   exporter,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job. Failures re-queue the job until the attempt
// count reaches the retry limit, then mark it failed. Failures that would
// repeat on every attempt, such as a bad param value, fail the job at once.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ExportStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:   &processing,
		Progress: &progress,
	}); err != nil {
		return err
	}

	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		permanent := isPermanentExportError(err)
		if permanent || job.Attempt >= w.maxRetries {
			failed := models.ExportStatusFailed
			progress = 100
			now := time.Now().UTC()
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
				Status:       &failed,
				Progress:     &progress,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				w.logger.Sugar().Warnw("failed to mark job failed", "job_id", job.ID, "error", updateErr)
			}
			w.record(record.Params.Format, failed)
			if permanent {
				return jobs.Permanent(err)
			}
		} else {
			queued := models.ExportStatusQueued
			reset := 0
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
				Status:       &queued,
				Progress:     &reset,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Sugar().Warnw("failed to mark job queued", "job_id", job.ID, "error", updateErr)
			}
		}
		return err
	}

	finished := models.ExportStatusFinished
	progress = 100
	now := time.Now().UTC()
	url := result.URL
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &finished,
		Progress:     &progress,
		ResultURL:    &url,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark job finished", "job_id", job.ID, "error", err)
		return err
	}
	w.record(record.Params.Format, finished)
	w.logger.Info("export job finished", zap.String("job_id", job.ID), zap.String("report", record.Report))
	return nil
}

func (w *ExportWorker) record(format models.ExportFormat, status models.ExportStatus) {
	if w.metrics != nil {
		w.metrics.RecordExportJob(format, status)
	}
}

// isPermanentExportError reports failures caused by the job itself rather
// than the store, which no retry can fix.
func isPermanentExportError(err error) bool {
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case appErrors.ErrValidation.Code, appErrors.ErrNotFound.Code, appErrors.ErrUnsafeSQL.Code:
		return true
	}
	return false
}
