package dto

import "time"

type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type AgendaExportRequest struct {
	DateFrom string       `json:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo   string       `json:"date_to" validate:"required,datetime=2006-01-02"`
	StaffID  string       `json:"staff_id" validate:"omitempty,uuid"`
	Format   ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

type ExportResult struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	Rows        int       `json:"rows"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}
