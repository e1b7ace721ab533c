package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oakmont-tuition/omt-api/internal/models"
	"github.com/oakmont-tuition/omt-api/pkg/storage"
)

type registerStub struct{}

func (registerStub) ListRegister(_ context.Context, _, _ string, _ models.DetentionStatus) ([]models.DetentionDetail, error) {
	date := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	start := "16:00"
	end := "16:30"
	outcome := models.CompletionComplete
	return []models.DetentionDetail{
		{
			Detention: models.Detention{
				Week:             2,
				Reason:           "missed homework",
				Status:           models.DetentionCompleted,
				CompletionStatus: &outcome,
				Attempts:         1,
			},
			StudentName: "Alice Park",
			ClassName:   "J Smith Y9 Mon 4:00pm",
			SlotDate:    &date,
			SlotStart:   &start,
			SlotEnd:     &end,
		},
	}, nil
}

type timetableStub struct{}

func (timetableStub) ListDetailByTerm(_ context.Context, _ string) ([]models.ClassDetail, error) {
	return []models.ClassDetail{
		{
			Class: models.Class{
				Name: "J Smith Y9 Mon 4:00pm",
				Year: "Y9",
				Schedule: models.ScheduleEntries{
					{DayOfWeek: 1, StartTime: "16:00", DurationMinutes: 90},
				},
			},
			TeacherName:   "J Smith",
			ClassroomName: "Room 1",
			TermName:      "Term 1 2026",
		},
	}, nil
}

func newTestExportService(t *testing.T) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewExportService(registerStub{}, timetableStub{}, store, signer, ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop(), nil, nil)
}

func TestExportGenerateRegisterCSV(t *testing.T) {
	svc := newTestExportService(t)

	job := &models.ExportJob{
		ID:     "job-1",
		Type:   models.ExportTypeDetentionRegister,
		Params: models.ExportJobParams{TermID: "t1", Format: models.ExportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatCSV, result.Format)
	assert.Contains(t, result.URL, "/api/v1/exports/download/")
	assert.True(t, result.ExpiresAt.After(time.Now()))

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	payload, err := io.ReadAll(file)
	require.NoError(t, err)

	content := string(payload)
	assert.True(t, strings.HasPrefix(content, "Student,Class,Week"))
	assert.Contains(t, content, "Alice Park")
	assert.Contains(t, content, "2026-02-09")
	assert.Contains(t, content, "16:00-16:30")
}

func TestExportGenerateTimetablePDF(t *testing.T) {
	svc := newTestExportService(t)

	job := &models.ExportJob{
		ID:     "job-2",
		Type:   models.ExportTypeTimetable,
		Params: models.ExportJobParams{TermID: "t1", Format: models.ExportFormatPDF},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	payload, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestExportGenerateTokenRoundTrip(t *testing.T) {
	svc := newTestExportService(t)

	job := &models.ExportJob{
		ID:     "job-3",
		Type:   models.ExportTypeDetentionRegister,
		Params: models.ExportJobParams{TermID: "t1", Format: models.ExportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-3", jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportGenerateRejectsUnknownFormat(t *testing.T) {
	svc := newTestExportService(t)

	job := &models.ExportJob{
		ID:     "job-4",
		Type:   models.ExportTypeDetentionRegister,
		Params: models.ExportJobParams{TermID: "t1", Format: models.ExportFormat("xlsx")},
	}
	_, err := svc.Generate(context.Background(), job)
	assert.Error(t, err)
}
