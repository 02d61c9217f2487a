package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendapro/agenda-api/internal/availability"
	"github.com/agendapro/agenda-api/internal/models"
)

func TestStaffListBySpecialty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStaffRepository(db)

	active := true
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM staff WHERE 1=1 AND active = $1 AND $2 = ANY(specialties) ORDER BY name ASC")).
		WithArgs(true, "color").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "specialties", "active", "user_id", "created_at", "updated_at"}).
			AddRow("s1", "Laura", "{corte,color}", true, nil, now, now))

	staff, err := repo.List(context.Background(), models.StaffFilter{Active: &active, Specialty: "color"})
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, []string{"corte", "color"}, []string(staff[0].Specialties))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffFindByUserIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStaffRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM staff WHERE user_id = $1")).WithArgs("u1").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByUserID(context.Background(), "u1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceWindows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStaffRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM availability_windows WHERE staff_id = $1")).WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO availability_windows").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO availability_windows").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	windows := []models.AvailabilityWindow{
		{Weekday: 1, StartTime: availability.MustClock("08:00"), EndTime: availability.MustClock("12:00")},
		{Weekday: 1, StartTime: availability.MustClock("14:00"), EndTime: availability.MustClock("18:00")},
	}
	require.NoError(t, repo.ReplaceWindows(context.Background(), "s1", windows))
	assert.Equal(t, "s1", windows[1].StaffID)
	assert.NotEmpty(t, windows[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceWindowsRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStaffRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM availability_windows").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO availability_windows").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.ReplaceWindows(context.Background(), "s1", []models.AvailabilityWindow{{Weekday: 2}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListWindowsScansClock(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStaffRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM availability_windows\nWHERE staff_id = $1 ORDER BY weekday ASC, start_time ASC")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "staff_id", "weekday", "start_time", "end_time", "created_at"}).
			AddRow("w1", "s1", 6, "09:00:00", "13:30:00", time.Now()))

	windows, err := repo.ListWindows(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, windows, 1)
	w := windows[0].Engine()
	assert.Equal(t, time.Saturday, w.Weekday)
	assert.Equal(t, availability.MustClock("13:30"), w.End)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasAbsence(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStaffRepository(db)

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM staff_absences WHERE staff_id = $1 AND date = $2)")).
		WithArgs("s1", day).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	absent, err := repo.HasAbsence(context.Background(), "s1", day)
	require.NoError(t, err)
	assert.True(t, absent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAbsenceScopedToStaff(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStaffRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM staff_absences WHERE id = $1 AND staff_id = $2")).
		WithArgs("ab1", "s2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.DeleteAbsence(context.Background(), "s2", "ab1"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
