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

	"github.com/agendapro/agenda-api/internal/dto"
	"github.com/agendapro/agenda-api/internal/models"
	appErrors "github.com/agendapro/agenda-api/pkg/errors"
	"github.com/agendapro/agenda-api/pkg/export"
	"github.com/agendapro/agenda-api/pkg/storage"
)

type agendaRangeStub struct {
	details  []models.AppointmentDetail
	from, to time.Time
	staffID  string
}

func (a *agendaRangeStub) Range(ctx context.Context, from, to time.Time, staffID string) ([]models.AppointmentDetail, error) {
	a.from, a.to, a.staffID = from, to, staffID
	return a.details, nil
}

func newExportServiceForTest(t *testing.T, details ...models.AppointmentDetail) (*ExportService, *agendaRangeStub) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	agenda := &agendaRangeStub{details: details}
	svc := NewExportService(agenda, store, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, agenda
}

func exportedDetails() []models.AppointmentDetail {
	done := detail(confirmedAt("a1", testStaffID, testDate, "09:00", "10:00", clientUserID))
	done.Status = models.AppointmentCompleted
	done.Services = []models.Service{{Name: "Corte"}}
	done.TotalPrice = "30000.00"
	open := detail(confirmedAt("a2", testStaffID, testDate, "10:00", "11:00", clientUserID))
	open.TotalPrice = "30000.00"
	return []models.AppointmentDetail{done, open}
}

func TestExportAgendaCSV(t *testing.T) {
	svc, agenda := newExportServiceForTest(t, exportedDetails()...)

	result, err := svc.ExportAgenda(context.Background(), dto.AgendaExportRequest{
		DateFrom: "2025-03-10", DateTo: "2025-03-16", StaffID: testStaffID, Format: dto.ExportFormatCSV,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)
	assert.True(t, strings.HasPrefix(result.DownloadURL, "/api/v1/exports/"))
	assert.Equal(t, testStaffID, agenda.staffID)
	assert.Equal(t, day("2025-03-16"), agenda.to)

	token := strings.TrimPrefix(result.DownloadURL, "/api/v1/exports/")
	f, name, err := svc.Resolve(token)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, result.FileName, name)

	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Corte")
}

func TestExportAgendaPDF(t *testing.T) {
	svc, _ := newExportServiceForTest(t, exportedDetails()...)

	result, err := svc.ExportAgenda(context.Background(), dto.AgendaExportRequest{
		DateFrom: "2025-03-10", DateTo: "2025-03-10", Format: dto.ExportFormatPDF,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.FileName, ".pdf"))
}

func TestExportAgendaValidation(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	_, err := svc.ExportAgenda(context.Background(), dto.AgendaExportRequest{DateFrom: "2025-03-10", DateTo: "2025-03-10", Format: "xlsx"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.ExportAgenda(context.Background(), dto.AgendaExportRequest{DateFrom: "2025-01-01", DateTo: "2025-12-31", Format: dto.ExportFormatCSV})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportResolveRejectsTamperedToken(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	_, _, err := svc.Resolve("abc.123.xyz.deadbeef")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestExportCleanup(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	assert.NoError(t, svc.Cleanup(context.Background(), nil))
}
