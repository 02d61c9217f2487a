package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendapro/agenda-api/internal/availability"
	"github.com/agendapro/agenda-api/internal/dto"
	"github.com/agendapro/agenda-api/internal/middleware"
	"github.com/agendapro/agenda-api/internal/models"
	appErrors "github.com/agendapro/agenda-api/pkg/errors"
)

type fakeBookingSrv struct {
	slots      *dto.AvailabilityResponse
	slotsErr   error
	adminCalls int
	lastQuery  dto.AvailabilityQuery
	lastActor  models.Actor
	booked     *models.Appointment
	bookErr    error
	deleteErr  error
}

func (f *fakeBookingSrv) AvailableSlots(_ context.Context, q dto.AvailabilityQuery) (*dto.AvailabilityResponse, error) {
	f.lastQuery = q
	return f.slots, f.slotsErr
}

func (f *fakeBookingSrv) AdminAvailableSlots(_ context.Context, actor models.Actor, q dto.AvailabilityQuery) (*dto.AvailabilityResponse, error) {
	f.adminCalls++
	f.lastActor = actor
	f.lastQuery = q
	return f.slots, f.slotsErr
}

func (f *fakeBookingSrv) Book(_ context.Context, actor models.Actor, _ dto.BookAppointmentRequest) (*models.Appointment, error) {
	f.lastActor = actor
	return f.booked, f.bookErr
}

func (f *fakeBookingSrv) AdminBook(_ context.Context, actor models.Actor, _ dto.AdminBookAppointmentRequest) (*models.Appointment, error) {
	f.lastActor = actor
	return f.booked, f.bookErr
}

func (f *fakeBookingSrv) Cancel(context.Context, models.Actor, string) (*models.Appointment, error) {
	return f.booked, f.bookErr
}

func (f *fakeBookingSrv) UpdateStatus(context.Context, models.Actor, string, dto.UpdateAppointmentStatusRequest) (*models.Appointment, error) {
	return f.booked, f.bookErr
}

func (f *fakeBookingSrv) Reschedule(context.Context, models.Actor, string, dto.RescheduleAppointmentRequest) (*models.Appointment, error) {
	return f.booked, f.bookErr
}

func (f *fakeBookingSrv) Delete(context.Context, models.Actor, string) error {
	return f.deleteErr
}

func (f *fakeBookingSrv) Get(context.Context, models.Actor, string) (*models.Appointment, error) {
	return f.booked, f.bookErr
}

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Error map[string]interface{} `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAppointmentHandlerAvailabilitySplitsServiceIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeBookingSrv{slots: &dto.AvailabilityResponse{
		StaffID: "staff-1",
		Date:    "2025-03-10",
		Slots:   []availability.Clock{availability.MustClock("09:00"), availability.MustClock("09:30")},
		Cached:  true,
	}}
	handler := NewAppointmentHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/availability?staff_id=staff-1&date=2025-03-10&service_ids=a,b&service_ids=c", nil)

	handler.Availability(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a", "b", "c"}, srv.lastQuery.ServiceIDs)
	assert.Zero(t, srv.adminCalls)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Equal(t, []interface{}{"09:00", "09:30"}, envelope.Data["slots"])
}

func TestAppointmentHandlerAvailabilityAdminPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeBookingSrv{slots: &dto.AvailabilityResponse{StaffID: "staff-1"}}
	handler := NewAppointmentHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/availability?staff_id=staff-1&date=2025-03-10&service_ids=a", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Availability(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, srv.adminCalls)
	assert.Equal(t, "admin-1", srv.lastActor.UserID)
}

func TestAppointmentHandlerAvailabilityError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAppointmentHandler(&fakeBookingSrv{slotsErr: appErrors.Clone(appErrors.ErrNotFound, "staff not found")})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/availability?staff_id=x&date=2025-03-10&service_ids=a", nil)

	handler.Availability(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, rec).Error["code"])
}

func TestAppointmentHandlerBook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeBookingSrv{booked: &models.Appointment{ID: "appt-1", Status: models.AppointmentConfirmed}}
	handler := NewAppointmentHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(t, http.MethodPost, "/appointments", map[string]interface{}{
		"staff_id":    "staff-1",
		"date":        "2025-03-10",
		"start_time":  "09:00",
		"service_ids": []string{"svc-1"},
	})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "client-1", Role: models.RoleClient})

	handler.Book(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "client-1", srv.lastActor.UserID)
	assert.Equal(t, "appt-1", decodeEnvelope(t, rec).Data["id"])
}

func TestAppointmentHandlerBookConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAppointmentHandler(&fakeBookingSrv{bookErr: appErrors.ErrSlotUnavailable})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(t, http.MethodPost, "/appointments", map[string]interface{}{
		"staff_id":    "staff-1",
		"date":        "2025-03-10",
		"start_time":  "09:00",
		"service_ids": []string{"svc-1"},
	})

	handler.Book(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SLOT_UNAVAILABLE", decodeEnvelope(t, rec).Error["code"])
}

func TestAppointmentHandlerBookRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAppointmentHandler(&fakeBookingSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString(`{"start_time":"25:99"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Book(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAppointmentHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAppointmentHandler(&fakeBookingSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/appointments/appt-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "appt-1"}}

	handler.Delete(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
}

func TestSplitIDs(t *testing.T) {
	assert.Nil(t, splitIDs(nil))
	assert.Equal(t, []string{"a", "b"}, splitIDs([]string{" a , ", "b"}))
}
