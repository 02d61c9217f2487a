package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendapro/agenda-api/internal/availability"
	"github.com/agendapro/agenda-api/internal/models"
)

var apptCols = []string{"id", "client_id", "staff_id", "date", "start_time", "end_time", "status", "service_ids", "notes", "created_by", "created_at", "updated_at"}

var bookingDay = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func newAppointment() *models.Appointment {
	return &models.Appointment{
		ClientID:   "c1",
		StaffID:    "s1",
		Date:       bookingDay,
		StartTime:  availability.MustClock("09:00"),
		EndTime:    availability.MustClock("10:00"),
		ServiceIDs: pq.StringArray{"svc1"},
	}
}

func TestListConfirmed(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE staff_id = $1 AND date = $2 AND status = $3 ORDER BY start_time ASC")).
		WithArgs("s1", bookingDay, "CONFIRMED").
		WillReturnRows(sqlmock.NewRows(apptCols).
			AddRow("a1", "c1", "s1", bookingDay, "10:00:00", "11:00:00", "CONFIRMED", "{svc1,svc2}", nil, nil, now, now))

	appts, err := repo.ListConfirmed(context.Background(), "s1", bookingDay)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, availability.MustClock("10:00"), appts[0].StartTime)
	assert.Equal(t, pq.StringArray{"svc1", "svc2"}, appts[0].ServiceIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAppointmentVerifiesInsideTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM staff WHERE id = $1 AND active = TRUE FOR UPDATE")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s1"))
	mock.ExpectQuery(regexp.QuoteMeta("status = $3 AND id <> $4")).
		WithArgs("s1", bookingDay, "CONFIRMED", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(apptCols).
			AddRow("a0", "c2", "s1", bookingDay, "11:00", "12:00", "CONFIRMED", "{svc9}", nil, nil, now, now))
	mock.ExpectExec("INSERT INTO appointments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	var seen []models.Appointment
	appt := newAppointment()
	err := repo.Create(context.Background(), appt, func(existing []models.Appointment) error {
		seen = existing
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 1)
	assert.Equal(t, models.AppointmentConfirmed, appt.Status)
	assert.NotEmpty(t, appt.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAppointmentVerifierRejects(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s1"))
	mock.ExpectQuery("FROM appointments").WillReturnRows(sqlmock.NewRows(apptCols))
	mock.ExpectRollback()

	sentinel := errors.New("slot gone")
	err := repo.Create(context.Background(), newAppointment(), func([]models.Appointment) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAppointmentMapsConstraintViolations(t *testing.T) {
	for _, code := range []pq.ErrorCode{"23P01", "40001", "23505"} {
		t.Run(string(code), func(t *testing.T) {
			db, mock, cleanup := newMock(t)
			defer cleanup()
			repo := NewAppointmentRepository(db)

			mock.ExpectBegin()
			mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s1"))
			mock.ExpectQuery("FROM appointments").WillReturnRows(sqlmock.NewRows(apptCols))
			mock.ExpectExec("INSERT INTO appointments").WillReturnError(&pq.Error{Code: code})
			mock.ExpectRollback()

			err := repo.Create(context.Background(), newAppointment(), nil)
			assert.ErrorIs(t, err, ErrSlotTaken)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreateAppointmentSerializationFailureOnCommit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s1"))
	mock.ExpectQuery("FROM appointments").WillReturnRows(sqlmock.NewRows(apptCols))
	mock.ExpectExec("INSERT INTO appointments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40001"})

	err := repo.Create(context.Background(), newAppointment(), nil)
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAppointmentInactiveStaff(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), newAppointment(), nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleNoLongerConfirmed(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s1"))
	mock.ExpectQuery("FROM appointments").WillReturnRows(sqlmock.NewRows(apptCols))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET staff_id")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	appt := newAppointment()
	appt.ID = "a1"
	err := repo.Reschedule(context.Background(), appt, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusIsConditional(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2")).
		WithArgs("a1", "CONFIRMED", "COMPLETED", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE appointments SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateStatus(context.Background(), "a1", models.AppointmentConfirmed, models.AppointmentCompleted))
	err := repo.UpdateStatus(context.Background(), "a1", models.AppointmentConfirmed, models.AppointmentCancelled)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDetailsFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	status := models.AppointmentConfirmed
	now := time.Now()
	cols := append(append([]string{}, apptCols...), "client_name", "client_email", "client_phone", "staff_name")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND a.date = $1 AND a.staff_id = $2 AND a.status = $3 ORDER BY a.date ASC, a.start_time ASC")).
		WithArgs(bookingDay, "s1", "CONFIRMED").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a1", "c1", "s1", bookingDay, "09:00", "10:00", "CONFIRMED", "{svc1}", nil, nil, now, now, "Ana", "ana@example.com", nil, "Laura"))

	details, total, err := repo.ListDetails(context.Background(), models.AppointmentFilter{Date: &bookingDay, StaffID: "s1", Status: &status})
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Laura", details[0].StaffName)
	assert.Equal(t, "a1", details[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAppointmentMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec("DELETE FROM appointments").WithArgs("nope").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "nope"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
