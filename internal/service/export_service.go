package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agendapro/agenda-api/internal/dto"
	"github.com/agendapro/agenda-api/internal/models"
	appErrors "github.com/agendapro/agenda-api/pkg/errors"
	"github.com/agendapro/agenda-api/pkg/export"
	"github.com/agendapro/agenda-api/pkg/storage"
)

// maxExportDays bounds a single agenda export.
const maxExportDays = 93

type agendaRangeReader interface {
	Range(ctx context.Context, from, to time.Time, staffID string) ([]models.AppointmentDetail, error)
}

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
	Purge(maxAge time.Duration) (int, error)
}

type tableRenderer interface {
	Render(t export.Table) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix     string
	RetentionTime time.Duration
}

// ExportService renders agenda exports and hands out signed download links.
type ExportService struct {
	agenda    agendaRangeReader
	storage   fileStorage
	csv       tableRenderer
	pdf       tableRenderer
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers default to the
// CSV and PDF exporters.
func NewExportService(agenda agendaRangeReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf tableRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetentionTime <= 0 {
		cfg.RetentionTime = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		agenda:    agenda,
		storage:   store,
		csv:       csv,
		pdf:       pdf,
		signer:    signer,
		validator: validator.New(),
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// ExportAgenda renders the agenda of a date range and stores the file.
func (s *ExportService) ExportAgenda(ctx context.Context, req dto.AgendaExportRequest) (*dto.ExportResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}
	from, err := parseDate(req.DateFrom)
	if err != nil {
		return nil, err
	}
	to, err := parseDate(req.DateTo)
	if err != nil {
		return nil, err
	}
	if to.Sub(from) > maxExportDays*24*time.Hour {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("exports cover at most %d days", maxExportDays))
	}

	details, err := s.agenda.Range(ctx, from, to, req.StaffID)
	if err != nil {
		return nil, err
	}
	table := agendaTable(req, details)

	var payload []byte
	switch req.Format {
	case dto.ExportFormatCSV:
		payload, err = s.csv.Render(table)
	case dto.ExportFormatPDF:
		payload, err = s.pdf.Render(table)
	default:
		err = fmt.Errorf("unsupported format %s", req.Format)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	name := fmt.Sprintf("agenda_%s_%s_%s.%s", req.DateFrom, req.DateTo, id[:8], req.Format)
	relPath, err := s.storage.Save(name, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("agenda exported", zap.String("file", relPath), zap.Int("rows", len(details)))
	return &dto.ExportResult{
		ID:          id,
		FileName:    relPath,
		Rows:        len(details),
		DownloadURL: fmt.Sprintf("%s/exports/%s", prefix, token),
		ExpiresAt:   expiresAt,
	}, nil
}

// Resolve validates a download token and opens the stored file.
func (s *ExportService) Resolve(token string) (*os.File, string, error) {
	_, relPath, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	f, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	return f, relPath, nil
}

// Cleanup removes exports older than the retention time and is run by the
// jobs queue.
func (s *ExportService) Cleanup(ctx context.Context, _ interface{}) error {
	removed, err := s.storage.Purge(s.cfg.RetentionTime)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Info("expired exports removed", zap.Int("files", removed))
	}
	return nil
}

func agendaTable(req dto.AgendaExportRequest, details []models.AppointmentDetail) export.Table {
	table := export.Table{
		Title:    "Agenda",
		Subtitle: fmt.Sprintf("%s - %s", req.DateFrom, req.DateTo),
		Columns: []export.Column{
			{Key: "date", Label: "Date", Width: 22},
			{Key: "time", Label: "Time", Width: 24},
			{Key: "staff", Label: "Staff"},
			{Key: "client", Label: "Client"},
			{Key: "services", Label: "Services"},
			{Key: "status", Label: "Status", Width: 24},
			{Key: "total", Label: "Total", Width: 24},
		},
		Rows: make([]map[string]string, 0, len(details)),
	}

	var counters dto.AgendaCounters
	revenue := decimal.Zero
	for _, d := range details {
		names := make([]string, 0, len(d.Services))
		for _, svc := range d.Services {
			names = append(names, svc.Name)
		}
		table.Rows = append(table.Rows, map[string]string{
			"date":     d.Date.Format(dateLayout),
			"time":     d.StartTime.String() + "-" + d.EndTime.String(),
			"staff":    d.StaffName,
			"client":   d.ClientName,
			"services": strings.Join(names, ", "),
			"status":   string(d.Status),
			"total":    d.TotalPrice,
		})
		counters.Add(d.Status)
		if d.Status == models.AppointmentCompleted {
			if total, err := decimal.NewFromString(d.TotalPrice); err == nil {
				revenue = revenue.Add(total)
			}
		}
	}
	table.Summary = []string{
		fmt.Sprintf("Appointments: %d (confirmed %d, completed %d, cancelled %d, no-show %d)",
			counters.Total, counters.Confirmed, counters.Completed, counters.Cancelled, counters.NoShow),
		"Revenue: " + revenue.StringFixed(2),
	}
	return table
}
