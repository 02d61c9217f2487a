package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendapro/agenda-api/internal/availability"
	"github.com/agendapro/agenda-api/internal/dto"
	"github.com/agendapro/agenda-api/internal/models"
	appErrors "github.com/agendapro/agenda-api/pkg/errors"
)

type staffRepoStub struct {
	staff    map[string]*models.Staff
	windows  map[string][]models.AvailabilityWindow
	absences []models.Absence
	replaced int
}

func newStaffRepoStub(members ...models.Staff) *staffRepoStub {
	repo := &staffRepoStub{staff: map[string]*models.Staff{}, windows: map[string][]models.AvailabilityWindow{}}
	for i := range members {
		m := members[i]
		repo.staff[m.ID] = &m
	}
	return repo
}

func (r *staffRepoStub) List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, error) {
	var out []models.Staff
	for _, m := range r.staff {
		out = append(out, *m)
	}
	return out, nil
}

func (r *staffRepoStub) FindByID(ctx context.Context, id string) (*models.Staff, error) {
	m, ok := r.staff[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *m
	return &clone, nil
}

func (r *staffRepoStub) FindByUserID(ctx context.Context, userID string) (*models.Staff, error) {
	for _, m := range r.staff {
		if m.UserID != nil && *m.UserID == userID {
			clone := *m
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *staffRepoStub) Create(ctx context.Context, m *models.Staff) error {
	m.ID = "staff-new"
	r.staff[m.ID] = m
	return nil
}

func (r *staffRepoStub) Update(ctx context.Context, m *models.Staff) error {
	r.staff[m.ID] = m
	return nil
}

func (r *staffRepoStub) SetActive(ctx context.Context, id string, active bool) error {
	m, ok := r.staff[id]
	if !ok {
		return sql.ErrNoRows
	}
	m.Active = active
	return nil
}

func (r *staffRepoStub) ListWindows(ctx context.Context, staffID string) ([]models.AvailabilityWindow, error) {
	return r.windows[staffID], nil
}

func (r *staffRepoStub) ReplaceWindows(ctx context.Context, staffID string, windows []models.AvailabilityWindow) error {
	r.replaced++
	r.windows[staffID] = windows
	return nil
}

func (r *staffRepoStub) ListAbsences(ctx context.Context, staffID string, from, to time.Time) ([]models.Absence, error) {
	var out []models.Absence
	for _, a := range r.absences {
		if a.StaffID == staffID && !a.Date.Before(from) && !a.Date.After(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *staffRepoStub) HasAbsence(ctx context.Context, staffID string, date time.Time) (bool, error) {
	for _, a := range r.absences {
		if a.StaffID == staffID && a.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (r *staffRepoStub) CreateAbsence(ctx context.Context, a *models.Absence) error {
	a.ID = "abs-new"
	r.absences = append(r.absences, *a)
	return nil
}

func (r *staffRepoStub) DeleteAbsence(ctx context.Context, staffID, id string) error {
	for i, a := range r.absences {
		if a.ID == id && a.StaffID == staffID {
			r.absences = append(r.absences[:i], r.absences[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type userReaderStub map[string]*models.User

func (u userReaderStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := u[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type settingsStub struct {
	settings dto.BusinessSettings
	err      error
}

func (s settingsStub) Settings(ctx context.Context) (dto.BusinessSettings, error) {
	return s.settings, s.err
}

func defaultSettings() dto.BusinessSettings {
	return dto.BusinessSettings{
		OpeningTime:          availability.MustClock("08:00"),
		ClosingTime:          availability.MustClock("18:00"),
		WorkingDays:          []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday},
		MinNoticeMinutes:     60,
		CancellationLimitHrs: 24,
		BookingHorizonDays:   14,
		Currency:             "COP",
	}
}

type slotInvalidatorStub struct {
	staff []string
	days  []string
}

func (s *slotInvalidatorStub) InvalidateStaffSlots(ctx context.Context, staffID string) error {
	s.staff = append(s.staff, staffID)
	return nil
}

func (s *slotInvalidatorStub) InvalidateStaffDay(ctx context.Context, staffID string, date time.Time) error {
	s.days = append(s.days, staffID+"@"+date.Format("2006-01-02"))
	return nil
}

func newTestStaffService(repo *staffRepoStub, cache *slotInvalidatorStub) *StaffService {
	users := userReaderStub{
		staffUserID:  {ID: staffUserID, Role: models.RoleStaff},
		clientUserID: {ID: clientUserID, Role: models.RoleClient},
	}
	return NewStaffService(repo, users, settingsStub{settings: defaultSettings()}, cache, &auditLoggerStub{}, nil, nil)
}

func window(day int, start, end string) models.WindowInput {
	return models.WindowInput{Weekday: day, StartTime: availability.MustClock(start), EndTime: availability.MustClock(end)}
}

func TestStaffServiceCreateNormalizesSpecialties(t *testing.T) {
	svc := newTestStaffService(newStaffRepoStub(), &slotInvalidatorStub{})
	userID := staffUserID
	member, err := svc.Create(context.Background(), models.CreateStaffRequest{
		Name:        " Laura ",
		Specialties: []string{"Corte", "corte ", "Color"},
		UserID:      &userID,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Laura", member.Name)
	assert.Equal(t, []string{"corte", "color"}, []string(member.Specialties))
	assert.True(t, member.Active)
}

func TestStaffServiceCreateRejectsNonStaffAccount(t *testing.T) {
	svc := newTestStaffService(newStaffRepoStub(), &slotInvalidatorStub{})
	userID := clientUserID
	_, err := svc.Create(context.Background(), models.CreateStaffRequest{Name: "Laura", UserID: &userID}, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestStaffServiceReplaceWindows(t *testing.T) {
	repo := newStaffRepoStub(models.Staff{ID: "s1", Active: true})
	cache := &slotInvalidatorStub{}
	svc := newTestStaffService(repo, cache)

	windows, err := svc.ReplaceWindows(context.Background(), "s1", models.ReplaceWindowsRequest{Windows: []models.WindowInput{
		window(1, "08:00", "12:00"),
		window(1, "12:00", "18:00"),
		window(2, "09:00", "13:00"),
	}}, nil)
	require.NoError(t, err)
	assert.Len(t, windows, 3)
	assert.Equal(t, 1, repo.replaced)
	assert.Equal(t, []string{"s1"}, cache.staff)
}

func TestStaffServiceReplaceWindowsValidation(t *testing.T) {
	cases := map[string][]models.WindowInput{
		"end before start": {window(1, "12:00", "09:00")},
		"before opening":   {window(1, "07:00", "10:00")},
		"after closing":    {window(1, "15:00", "19:00")},
		"overlap":          {window(3, "08:00", "12:00"), window(3, "11:30", "14:00")},
		"bad weekday":      {window(7, "08:00", "12:00")},
	}
	for name, windows := range cases {
		t.Run(name, func(t *testing.T) {
			repo := newStaffRepoStub(models.Staff{ID: "s1"})
			svc := newTestStaffService(repo, &slotInvalidatorStub{})
			_, err := svc.ReplaceWindows(context.Background(), "s1", models.ReplaceWindowsRequest{Windows: windows}, nil)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
			assert.Zero(t, repo.replaced)
		})
	}
}

func TestStaffServiceReplaceWindowsUnknownStaff(t *testing.T) {
	svc := newTestStaffService(newStaffRepoStub(), &slotInvalidatorStub{})
	_, err := svc.ReplaceWindows(context.Background(), "ghost", models.ReplaceWindowsRequest{}, nil)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStaffServiceAbsences(t *testing.T) {
	repo := newStaffRepoStub(models.Staff{ID: "s1"})
	cache := &slotInvalidatorStub{}
	svc := newTestStaffService(repo, cache)
	ctx := context.Background()

	absence, err := svc.AddAbsence(ctx, "s1", models.CreateAbsenceRequest{Date: "2025-03-10", Reason: "Vacaciones"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", absence.Date.Format("2006-01-02"))
	assert.Equal(t, []string{"s1@2025-03-10"}, cache.days)

	_, err = svc.AddAbsence(ctx, "s1", models.CreateAbsenceRequest{Date: "10/03/2025", Reason: "x"}, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	list, err := svc.Absences(ctx, "s1", from, to)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.RemoveAbsence(ctx, "s1", absence.ID, nil))
	assert.ErrorIs(t, svc.RemoveAbsence(ctx, "s1", absence.ID, nil), appErrors.ErrNotFound)
}

func TestStaffServiceForUser(t *testing.T) {
	userID := staffUserID
	svc := newTestStaffService(newStaffRepoStub(models.Staff{ID: "s1", UserID: &userID}), &slotInvalidatorStub{})

	member, err := svc.ForUser(context.Background(), staffUserID)
	require.NoError(t, err)
	assert.Equal(t, "s1", member.ID)

	_, err = svc.ForUser(context.Background(), "u-other")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStaffServiceAddAbsenceRejectsUnparsableDate(t *testing.T) {
	loose := validator.New()
	require.NoError(t, loose.RegisterValidation("datetime", func(validator.FieldLevel) bool { return true }))
	repo := newStaffRepoStub(models.Staff{ID: "s1", Name: "Laura", Active: true})
	cache := &slotInvalidatorStub{}
	svc := NewStaffService(repo, userReaderStub{}, settingsStub{settings: defaultSettings()}, cache, &auditLoggerStub{}, loose, nil)

	_, err := svc.AddAbsence(context.Background(), "s1", models.CreateAbsenceRequest{Date: "2025-02-30", Reason: "x"}, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, repo.absences)
	assert.Empty(t, cache.days)
}
