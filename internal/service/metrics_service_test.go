package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("GET", "/api/v1/availability", 200, 20*time.Millisecond)
	m.ObserveHTTPRequest("POST", "/api/v1/appointments", 201, 40*time.Millisecond)
	m.RecordBooking("confirmed")
	m.RecordBooking("confirmed")
	m.RecordBooking("conflict")
	m.ObserveSlotQuery(12, 5*time.Millisecond)
	m.RecordJob("mail.send", errors.New("smtp down"))

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 30, snap.AverageRequestDurationMs, 0.001)
	assert.Equal(t, map[string]uint64{"confirmed": 2, "conflict": 1}, snap.Bookings)
	assert.Equal(t, uint64(1), snap.SlotQueries)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RecordBooking("confirmed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `appointment_bookings_total{outcome="confirmed"} 1`)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordBooking("confirmed")
	m.ObserveSlotQuery(1, time.Millisecond)
	m.RecordJob("x", nil)
	assert.Zero(t, m.Snapshot().RequestsTotal)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
