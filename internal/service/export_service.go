package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oakmont-tuition/omt-api/internal/models"
	"github.com/oakmont-tuition/omt-api/pkg/export"
	"github.com/oakmont-tuition/omt-api/pkg/storage"
	"github.com/oakmont-tuition/omt-api/pkg/timetable"
)

type exportDetentionSource interface {
	ListRegister(ctx context.Context, termID, classroomID string, status models.DetentionStatus) ([]models.DetentionDetail, error)
}

type exportClassSource interface {
	ListDetailByTerm(ctx context.Context, termID string) ([]models.ClassDetail, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService builds export datasets and persists rendered files behind
// signed download URLs.
type ExportService struct {
	detentions exportDetentionSource
	classes    exportClassSource
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(detentions exportDetentionSource, classes exportClassSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		detentions: detentions,
		classes:    classes,
		storage:    store,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate builds the dataset for a job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/exports/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	termPart := sanitizeFilename(job.Params.TermID)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), termPart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ExportTypeDetentionRegister:
		return s.buildRegisterDataset(ctx, job.Params)
	case models.ExportTypeTimetable:
		return s.buildTimetableDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported export type %s", job.Type)
	}
}

func (s *ExportService) buildRegisterDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	rows, err := s.detentions.ListRegister(ctx, params.TermID, params.ClassroomID, models.DetentionStatus(params.Status))
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		slotDate := ""
		slotWindow := ""
		if row.SlotDate != nil {
			slotDate = row.SlotDate.Format("2006-01-02")
		}
		if row.SlotStart != nil && row.SlotEnd != nil {
			slotWindow = fmt.Sprintf("%s-%s", *row.SlotStart, *row.SlotEnd)
		}
		outcome := ""
		if row.CompletionStatus != nil {
			outcome = string(*row.CompletionStatus)
		}
		dataRows = append(dataRows, map[string]string{
			"Student":   row.StudentName,
			"Class":     row.ClassName,
			"Week":      fmt.Sprintf("%d", row.Week),
			"Reason":    row.Reason,
			"Status":    string(row.Status),
			"Outcome":   outcome,
			"Attempts":  fmt.Sprintf("%d", row.Attempts),
			"Slot Date": slotDate,
			"Slot Time": slotWindow,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Student", "Class", "Week", "Reason", "Status", "Outcome", "Attempts", "Slot Date", "Slot Time"},
		Rows:    dataRows,
	}
	title := "Detention Register"
	return dataset, title, nil
}

func (s *ExportService) buildTimetableDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	classes, err := s.classes.ListDetailByTerm(ctx, params.TermID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(classes))
	for _, class := range classes {
		for _, entry := range class.Schedule {
			window := entry.StartTime
			if r, err := timetable.NewRange(entry.StartTime, entry.DurationMinutes); err == nil {
				window = fmt.Sprintf("%s-%s", entry.StartTime, timetable.FormatClock(r.End))
			}
			dataRows = append(dataRows, map[string]string{
				"Class":     class.Name,
				"Year":      class.Year,
				"Teacher":   class.TeacherName,
				"Classroom": class.ClassroomName,
				"Day":       dayAbbrev[entry.DayOfWeek%7],
				"Time":      window,
			})
		}
	}
	dataset := export.Dataset{
		Headers: []string{"Class", "Year", "Teacher", "Classroom", "Day", "Time"},
		Rows:    dataRows,
	}
	title := "Timetable"
	if len(classes) > 0 {
		title = fmt.Sprintf("Timetable %s", classes[0].TermName)
	}
	return dataset, title, nil
}
