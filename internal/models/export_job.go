package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExportType enumerates supported asynchronous export categories.
type ExportType string

const (
	ExportTypeDetentionRegister ExportType = "detention_register"
	ExportTypeTimetable         ExportType = "timetable"
)

// ExportFormat enumerates supported export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportJob is the persisted metadata of a background export.
type ExportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ExportType      `db:"type" json:"type"`
	Params       ExportJobParams `db:"params" json:"params"`
	Status       ExportStatus    `db:"status" json:"status"`
	ResultPath   *string         `db:"result_path" json:"-"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// ExportJobParams stores request-scoped options persisted as JSONB.
type ExportJobParams struct {
	TermID      string       `json:"term_id,omitempty"`
	ClassroomID string       `json:"classroom_id,omitempty"`
	Status      string       `json:"status,omitempty"`
	Format      ExportFormat `json:"format"`
}

// Value marshals params to JSON for persistence.
func (p ExportJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal export params: %w", err)
	}
	return data, nil
}

// Scan unmarshals params from their JSONB representation.
func (p *ExportJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = ExportJobParams{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported export params column type %T", value)
	}
	return json.Unmarshal(raw, p)
}
