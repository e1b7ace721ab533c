package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oakmont-tuition/omt-api/internal/models"
	"github.com/oakmont-tuition/omt-api/internal/repository"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
	"github.com/oakmont-tuition/omt-api/pkg/jobs"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error)
}

// ExportRequest describes a requested export.
type ExportRequest struct {
	Type        models.ExportType   `json:"type" validate:"required"`
	TermID      string              `json:"term_id" validate:"required"`
	ClassroomID string              `json:"classroom_id"`
	Status      string              `json:"status"`
	Format      models.ExportFormat `json:"format" validate:"required"`
}

// ExportJobStatus exposes job metadata to clients.
type ExportJobStatus struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportJobService owns the export job lifecycle: requests become queued
// job rows, workers render them, and results are fetched through signed
// download tokens.
type ExportJobService struct {
	repo     exportJobStore
	queue    jobDispatcher
	exporter *ExportService
	logger   *zap.Logger
	cfg      ExportJobConfig
}

// ExportJobConfig governs queue recovery and cleanup.
type ExportJobConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// NewExportJobService constructs the export job service.
func NewExportJobService(repo exportJobStore, queue jobDispatcher, exporter *ExportService, logger *zap.Logger, cfg ExportJobConfig) *ExportJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &ExportJobService{repo: repo, queue: queue, exporter: exporter, logger: logger, cfg: cfg}
}

// CreateJob validates the request, persists the job, and enqueues processing.
func (s *ExportJobService) CreateJob(ctx context.Context, req ExportRequest, actorID string) (*ExportJobStatus, error) {
	if !isValidExportType(req.Type) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export type")
	}
	if !isValidExportFormat(req.Format) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if req.TermID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term_id is required")
	}

	job := &models.ExportJob{
		Type: req.Type,
		Params: models.ExportJobParams{
			TermID:      req.TermID,
			ClassroomID: req.ClassroomID,
			Status:      req.Status,
			Format:      req.Format,
		},
		Status:    models.ExportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		status := models.ExportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &status,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}

	return &ExportJobStatus{ID: job.ID, Status: job.Status}, nil
}

// GetStatus exposes job metadata, enforcing ownership for non-admins.
func (s *ExportJobService) GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*ExportJobStatus, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if role != models.RoleAdmin && job.CreatedBy != actorID {
		return nil, appErrors.ErrForbidden
	}

	status := &ExportJobStatus{ID: job.ID, Status: job.Status}
	if job.ResultURL != nil {
		status.ResultURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		status.Error = job.ErrorMessage
	}
	return status, nil
}

// ResolveDownload validates a token and opens the stored export file.
func (s *ExportJobService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}

	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs after a process restart.
func (s *ExportJobService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued export jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue pending job", "job_id", job.ID, "error", err)
		}
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ExportJobService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.exporter.Cleanup(s.cfg.ResultTTL); err != nil {
					s.logger.Sugar().Warnw("export cleanup failed", "error", err)
				}
			}
		}
	}()
}

func isValidExportType(t models.ExportType) bool {
	return t == models.ExportTypeDetentionRegister || t == models.ExportTypeTimetable
}

func isValidExportFormat(f models.ExportFormat) bool {
	return f == models.ExportFormatCSV || f == models.ExportFormatPDF
}

// ExportWorker bridges queue jobs to the generator.
type ExportWorker struct {
	repo       exportJobStore
	exporter   exportGenerator
	logger     *zap.Logger
	maxRetries int
}

// NewExportWorker constructs a worker.
func NewExportWorker(repo exportJobStore, exporter exportGenerator, maxRetries int, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ExportWorker{repo: repo, exporter: exporter, logger: logger, maxRetries: maxRetries}
}

// Handle processes a queue job.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}

	processing := models.ExportStatusProcessing
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing}); err != nil {
		return err
	}

	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			failed := models.ExportStatusFailed
			now := time.Now().UTC()
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
				Status:       &failed,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				w.logger.Sugar().Warnw("failed to mark job failed", "job_id", job.ID, "error", updateErr)
			}
		} else {
			queued := models.ExportStatusQueued
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
				Status:       &queued,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Sugar().Warnw("failed to mark job queued", "job_id", job.ID, "error", updateErr)
			}
		}
		return err
	}

	finished := models.ExportStatusFinished
	now := time.Now().UTC()
	url := result.URL
	relPath := result.RelativePath
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &finished,
		ResultPath:   &relPath,
		ResultURL:    &url,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark job finished", "job_id", job.ID, "error", err)
		return err
	}
	return nil
}
