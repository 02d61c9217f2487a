package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendapro/agenda-api/internal/availability"
	"github.com/agendapro/agenda-api/internal/dto"
	"github.com/agendapro/agenda-api/internal/models"
	"github.com/agendapro/agenda-api/internal/repository"
	appErrors "github.com/agendapro/agenda-api/pkg/errors"
)

const (
	testStaffID  = "3f2a7c1e-6d4b-4e8a-9b1c-0a1b2c3d4e5f"
	otherStaffID = "8c9d0e1f-2a3b-4c5d-8e6f-7a8b9c0d1e2f"
	cutServiceID = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"
	dyeServiceID = "b2c3d4e5-f6a7-4b8c-9d0e-1f2a3b4c5d6e"
	clientUserID = "c0ffee00-1111-4222-8333-444455556666"
	staffUserID  = "5aff0000-1111-4222-8333-444455556666"
	testDate     = "2025-03-10"
)

type catalogLookupStub map[string]models.Service

func (c catalogLookupStub) FindByIDs(ctx context.Context, ids []string) ([]models.Service, error) {
	var out []models.Service
	for _, id := range ids {
		if svc, ok := c[id]; ok {
			out = append(out, svc)
		}
	}
	return out, nil
}

type appointmentRepoStub struct {
	appts       map[string]*models.Appointment
	raced       []models.Appointment
	createErr   error
	listCalls   int
	statusCalls int
	deleted     []string
}

func newAppointmentRepoStub(appts ...models.Appointment) *appointmentRepoStub {
	repo := &appointmentRepoStub{appts: map[string]*models.Appointment{}}
	for i := range appts {
		a := appts[i]
		repo.appts[a.ID] = &a
	}
	return repo
}

func (r *appointmentRepoStub) ListConfirmed(ctx context.Context, staffID string, date time.Time) ([]models.Appointment, error) {
	r.listCalls++
	var out []models.Appointment
	for _, a := range r.appts {
		if a.StaffID == staffID && a.Date.Equal(date) && a.Status == models.AppointmentConfirmed {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *appointmentRepoStub) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	a, ok := r.appts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *a
	return &clone, nil
}

func (r *appointmentRepoStub) inTx(staffID string, date time.Time) []models.Appointment {
	existing, _ := r.ListConfirmed(context.Background(), staffID, date)
	return append(existing, r.raced...)
}

func (r *appointmentRepoStub) Create(ctx context.Context, appt *models.Appointment, verify repository.SlotVerifier) error {
	if r.createErr != nil {
		return r.createErr
	}
	if err := verify(r.inTx(appt.StaffID, appt.Date)); err != nil {
		return err
	}
	appt.ID = "appt-new"
	r.appts[appt.ID] = appt
	return nil
}

func (r *appointmentRepoStub) Reschedule(ctx context.Context, appt *models.Appointment, verify repository.SlotVerifier) error {
	if _, ok := r.appts[appt.ID]; !ok {
		return sql.ErrNoRows
	}
	if err := verify(r.inTx(appt.StaffID, appt.Date)); err != nil {
		return err
	}
	clone := *appt
	r.appts[appt.ID] = &clone
	return nil
}

func (r *appointmentRepoStub) UpdateStatus(ctx context.Context, id string, from, to models.AppointmentStatus) error {
	r.statusCalls++
	a, ok := r.appts[id]
	if !ok || a.Status != from {
		return sql.ErrNoRows
	}
	a.Status = to
	return nil
}

func (r *appointmentRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.appts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.appts, id)
	r.deleted = append(r.deleted, id)
	return nil
}

type bookingClientsStub struct {
	users  map[string]*models.User
	audits []models.AuditLog
}

func (c *bookingClientsStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := c.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (c *bookingClientsStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range c.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (c *bookingClientsStub) Create(ctx context.Context, user *models.User) error {
	user.ID = "walk-in"
	c.users[user.ID] = user
	return nil
}

func (c *bookingClientsStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	c.audits = append(c.audits, *log)
	return nil
}

type slotCacheStub struct {
	entries     map[string][]availability.Clock
	invalidated []string
}

func (c *slotCacheStub) Slots(ctx context.Context, staffID string, date time.Time, duration int) ([]availability.Clock, bool) {
	slots, ok := c.entries[SlotKey(staffID, date, duration)]
	if !ok {
		return nil, false
	}
	return append([]availability.Clock(nil), slots...), true
}

func (c *slotCacheStub) StoreSlots(ctx context.Context, staffID string, date time.Time, duration int, slots []availability.Clock) {
	c.entries[SlotKey(staffID, date, duration)] = slots
}

func (c *slotCacheStub) InvalidateStaffDay(ctx context.Context, staffID string, date time.Time) error {
	c.invalidated = append(c.invalidated, staffID+"@"+date.Format(dateLayout))
	return nil
}

type publisherStub struct {
	events []dto.AppointmentEvent
}

func (p *publisherStub) Publish(ctx context.Context, event dto.AppointmentEvent) {
	p.events = append(p.events, event)
}

type bookingFixture struct {
	svc       *BookingService
	staff     *staffRepoStub
	appts     *appointmentRepoStub
	clients   *bookingClientsStub
	cache     *slotCacheStub
	publisher *publisherStub
}

func newBookingFixture(t *testing.T, now time.Time, appts ...models.Appointment) *bookingFixture {
	t.Helper()
	staffUser := staffUserID
	staff := newStaffRepoStub(
		models.Staff{ID: testStaffID, Name: "Laura", Active: true, UserID: &staffUser},
		models.Staff{ID: otherStaffID, Name: "Marta", Active: true},
	)
	for _, id := range []string{testStaffID, otherStaffID} {
		staff.windows[id] = []models.AvailabilityWindow{
			{StaffID: id, Weekday: int(time.Monday), StartTime: availability.MustClock("09:00"), EndTime: availability.MustClock("12:00")},
			{StaffID: id, Weekday: int(time.Tuesday), StartTime: availability.MustClock("09:00"), EndTime: availability.MustClock("12:00")},
		}
	}
	catalog := catalogLookupStub{
		cutServiceID: {ID: cutServiceID, Name: "Corte", DurationMinutes: 60, Price: decimal.NewFromInt(30000), Active: true},
		dyeServiceID: {ID: dyeServiceID, Name: "Tinte", DurationMinutes: 30, Price: decimal.NewFromInt(45000), Active: false},
	}
	clients := &bookingClientsStub{users: map[string]*models.User{
		clientUserID: {ID: clientUserID, Email: "ana@example.com", Role: models.RoleClient, Active: true},
	}}
	f := &bookingFixture{
		staff:     staff,
		appts:     newAppointmentRepoStub(appts...),
		clients:   clients,
		cache:     &slotCacheStub{entries: map[string][]availability.Clock{}},
		publisher: &publisherStub{},
	}
	f.svc = NewBookingService(BookingDeps{
		Catalog:      catalog,
		Staff:        staff,
		Appointments: f.appts,
		Clients:      clients,
		Settings:     settingsStub{settings: defaultSettings()},
		Cache:        f.cache,
		Publisher:    f.publisher,
	}, nil, nil, BookingConfig{Location: time.UTC})
	f.svc.now = func() time.Time { return now }
	return f
}

func day(s string) time.Time {
	d, _ := time.Parse(dateLayout, s)
	return d
}

func clocks(values ...string) []availability.Clock {
	out := make([]availability.Clock, 0, len(values))
	for _, v := range values {
		out = append(out, availability.MustClock(v))
	}
	return out
}

func confirmedAt(id, staffID, date, start, end, clientID string) models.Appointment {
	return models.Appointment{
		ID:         id,
		ClientID:   clientID,
		StaffID:    staffID,
		Date:       day(date),
		StartTime:  availability.MustClock(start),
		EndTime:    availability.MustClock(end),
		Status:     models.AppointmentConfirmed,
		ServiceIDs: []string{cutServiceID},
	}
}

var (
	clientActor = models.Actor{UserID: clientUserID, Role: models.RoleClient}
	adminActor  = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
	staffActor  = models.Actor{UserID: staffUserID, Role: models.RoleStaff}
	earlyMonday = time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
)

func bookRequest(start string) dto.BookAppointmentRequest {
	return dto.BookAppointmentRequest{
		StaffID:    testStaffID,
		Date:       testDate,
		StartTime:  availability.MustClock(start),
		ServiceIDs: []string{cutServiceID},
	}
}

func TestAvailableSlotsSkipsBookedTime(t *testing.T) {
	f := newBookingFixture(t, earlyMonday, confirmedAt("a1", testStaffID, testDate, "10:00", "11:00", "x"))

	resp, err := f.svc.AvailableSlots(context.Background(), dto.AvailabilityQuery{
		StaffID: testStaffID, Date: testDate, ServiceIDs: []string{cutServiceID},
	})
	require.NoError(t, err)
	assert.Equal(t, clocks("09:00", "11:00"), resp.Slots)
	assert.Equal(t, 60, resp.DurationMinutes)
	assert.Equal(t, "30000.00", resp.TotalPrice)
}

func TestAvailableSlotsAppliesMinimumNotice(t *testing.T) {
	f := newBookingFixture(t, time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC))

	resp, err := f.svc.AvailableSlots(context.Background(), dto.AvailabilityQuery{
		StaffID: testStaffID, Date: testDate, ServiceIDs: []string{cutServiceID},
	})
	require.NoError(t, err)
	assert.Equal(t, clocks("09:30", "10:00", "10:30", "11:00"), resp.Slots)
}

func TestAvailableSlotsClosedDays(t *testing.T) {
	cases := map[string]func(f *bookingFixture){
		"past date":        func(f *bookingFixture) {},
		"beyond horizon":   func(f *bookingFixture) {},
		"absence":          func(f *bookingFixture) { f.staff.absences = []models.Absence{{StaffID: testStaffID, Date: day(testDate)}} },
		"inactive staff":   func(f *bookingFixture) { f.staff.staff[testStaffID].Active = false },
		"closed business":  func(f *bookingFixture) {},
		"no staff windows": func(f *bookingFixture) { f.staff.windows[testStaffID] = nil },
	}
	dates := map[string]string{
		"past date":       "2025-03-03",
		"beyond horizon":  "2025-03-31",
		"closed business": "2025-03-16",
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			f := newBookingFixture(t, earlyMonday)
			setup(f)
			date := testDate
			if d, ok := dates[name]; ok {
				date = d
			}
			resp, err := f.svc.AvailableSlots(context.Background(), dto.AvailabilityQuery{
				StaffID: testStaffID, Date: date, ServiceIDs: []string{cutServiceID},
			})
			require.NoError(t, err)
			assert.Empty(t, resp.Slots)
			assert.NotNil(t, resp.Slots)
		})
	}
}

func TestAvailableSlotsRejectsBadSelection(t *testing.T) {
	f := newBookingFixture(t, earlyMonday)

	_, err := f.svc.AvailableSlots(context.Background(), dto.AvailabilityQuery{
		StaffID: testStaffID, Date: testDate, ServiceIDs: []string{dyeServiceID},
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidServiceSelection)

	_, err = f.svc.AvailableSlots(context.Background(), dto.AvailabilityQuery{
		StaffID: testStaffID, Date: testDate, ServiceIDs: []string{cutServiceID, cutServiceID},
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidServiceSelection)

	_, err = f.svc.AvailableSlots(context.Background(), dto.AvailabilityQuery{
		StaffID: "not-a-uuid", Date: testDate, ServiceIDs: []string{cutServiceID},
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAvailableSlotsUnknownStaff(t *testing.T) {
	f := newBookingFixture(t, earlyMonday)
	_, err := f.svc.AvailableSlots(context.Background(), dto.AvailabilityQuery{
		StaffID: "0e0e0e0e-1111-4222-8333-444455556666", Date: testDate, ServiceIDs: []string{cutServiceID},
	})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAvailableSlotsServedFromCache(t *testing.T) {
	f := newBookingFixture(t, earlyMonday)
	q := dto.AvailabilityQuery{StaffID: testStaffID, Date: testDate, ServiceIDs: []string{cutServiceID}}

	first, err := f.svc.AvailableSlots(context.Background(), q)
	require.NoError(t, err)
	second, err := f.svc.AvailableSlots(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first.Slots, second.Slots)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, f.appts.listCalls)
	assert.Contains(t, f.cache.entries, SlotKey(testStaffID, day(testDate), 60))
}

func TestAdminAvailableSlotsIgnoresBookingRules(t *testing.T) {
	f := newBookingFixture(t, time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC))
	q := dto.AvailabilityQuery{StaffID: testStaffID, Date: testDate, ServiceIDs: []string{cutServiceID}}

	resp, err := f.svc.AdminAvailableSlots(context.Background(), adminActor, q)
	require.NoError(t, err)
	assert.Equal(t, clocks("09:00", "09:30", "10:00", "10:30", "11:00"), resp.Slots)
	assert.Empty(t, f.cache.entries)

	q.Date = "2025-03-31"
	resp, err = f.svc.AdminAvailableSlots(context.Background(), adminActor, q)
	require.NoError(t, err)
	assert.Len(t, resp.Slots, 5)

	_, err = f.svc.AdminAvailableSlots(context.Background(), clientActor, q)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestBookConfirmsComputedSlot(t *testing.T) {
	f := newBookingFixture(t, earlyMonday)

	appt, err := f.svc.Book(context.Background(), clientActor, bookRequest("09:00"))
	require.NoError(t, err)

	assert.Equal(t, "appt-new", appt.ID)
	assert.Equal(t, clientUserID, appt.ClientID)
	assert.Equal(t, availability.MustClock("10:00"), appt.EndTime)
	assert.Equal(t, models.AppointmentConfirmed, appt.Status)
	assert.Equal(t, []string{testStaffID + "@" + testDate}, f.cache.invalidated)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, dto.EventAppointmentBooked, f.publisher.events[0].Type)
	require.Len(t, f.clients.audits, 1)
	assert.Equal(t, models.AuditActionAppointmentBook, f.clients.audits[0].Action)
}

func TestBookRejectsTimesOutsideComputedSlots(t *testing.T) {
	cases := map[string]struct {
		now   time.Time
		start string
	}{
		"off grid":        {earlyMonday, "09:15"},
		"overruns window": {earlyMonday, "11:30"},
		"inside notice":   {time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC), "09:00"},
		"already started": {time.Date(2025, 3, 10, 9, 5, 0, 0, time.UTC), "09:00"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newBookingFixture(t, tc.now)
			_, err := f.svc.Book(context.Background(), clientActor, bookRequest(tc.start))
			assert.ErrorIs(t, err, appErrors.ErrSlotUnavailable)
			assert.Empty(t, f.publisher.events)
		})
	}
}

func TestBookRejectsOverlap(t *testing.T) {
	f := newBookingFixture(t, earlyMonday, confirmedAt("a1", testStaffID, testDate, "09:30", "10:30", "x"))
	_, err := f.svc.Book(context.Background(), clientActor, bookRequest("09:00"))
	assert.ErrorIs(t, err, appErrors.ErrSlotUnavailable)
}

func TestBookLosingTheRace(t *testing.T) {
	f := newBookingFixture(t, earlyMonday)
	f.appts.raced = []models.Appointment{confirmedAt("rival", testStaffID, testDate, "09:00", "10:00", "y")}

	_, err := f.svc.Book(context.Background(), clientActor, bookRequest("09:00"))
	assert.ErrorIs(t, err, appErrors.ErrSlotUnavailable)
	assert.Empty(t, f.cache.invalidated)
}

func TestBookMapsRepositoryConflicts(t *testing.T) {
	f := newBookingFixture(t, earlyMonday)

	f.appts.createErr = repository.ErrSlotTaken
	_, err := f.svc.Book(context.Background(), clientActor, bookRequest("09:00"))
	assert.ErrorIs(t, err, appErrors.ErrSlotUnavailable)

	f.appts.createErr = errors.New("connection reset")
	_, err = f.svc.Book(context.Background(), clientActor, bookRequest("09:00"))
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestBookRequiresClient(t *testing.T) {
	f := newBookingFixture(t, earlyMonday)

	_, err := f.svc.Book(context.Background(), models.Actor{}, bookRequest("09:00"))
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = f.svc.Book(context.Background(), staffActor, bookRequest("09:00"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestAdminBookInlineClient(t *testing.T) {
	f := newBookingFixture(t, time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC))

	appt, err := f.svc.AdminBook(context.Background(), adminActor, dto.AdminBookAppointmentRequest{
		BookAppointmentRequest: bookRequest("09:00"),
		NewClient:              &dto.InlineClient{FullName: "Walk In", Email: "Walk@Example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "walk-in", appt.ClientID)
	assert.Equal(t, "walk@example.com", f.clients.users["walk-in"].Email)
	assert.Equal(t, models.RoleClient, f.clients.users["walk-in"].Role)
}

func TestAdminBookRules(t *testing.T) {
	f := newBookingFixture(t, earlyMonday)
	existing := clientUserID

	_, err := f.svc.AdminBook(context.Background(), adminActor, dto.AdminBookAppointmentRequest{
		BookAppointmentRequest: bookRequest("09:00"),
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.AdminBook(context.Background(), adminActor, dto.AdminBookAppointmentRequest{
		BookAppointmentRequest: bookRequest("09:00"),
		ClientID:               &existing,
		NewClient:              &dto.InlineClient{FullName: "Dup", Email: "dup@example.com"},
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.AdminBook(context.Background(), adminActor, dto.AdminBookAppointmentRequest{
		BookAppointmentRequest: bookRequest("09:00"),
		NewClient:              &dto.InlineClient{FullName: "Ana", Email: "ana@example.com"},
	})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = f.svc.AdminBook(context.Background(), clientActor, dto.AdminBookAppointmentRequest{
		BookAppointmentRequest: bookRequest("09:00"),
		ClientID:               &existing,
	})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	appt, err := f.svc.AdminBook(context.Background(), adminActor, dto.AdminBookAppointmentRequest{
		BookAppointmentRequest: bookRequest("09:00"),
		ClientID:               &existing,
	})
	require.NoError(t, err)
	assert.Equal(t, clientUserID, appt.ClientID)
}

func TestCancelHonoursCancellationLimit(t *testing.T) {
	tomorrow := confirmedAt("tomorrow", testStaffID, "2025-03-11", "09:00", "10:00", clientUserID)
	today := confirmedAt("today", testStaffID, testDate, "11:00", "12:00", clientUserID)
	f := newBookingFixture(t, earlyMonday, tomorrow, today)

	appt, err := f.svc.Cancel(context.Background(), clientActor, "tomorrow")
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCancelled, appt.Status)
	assert.Equal(t, dto.EventAppointmentCancelled, f.publisher.events[0].Type)

	_, err = f.svc.Cancel(context.Background(), clientActor, "today")
	assert.ErrorIs(t, err, appErrors.ErrCancellationWindowClosed)

	appt, err = f.svc.Cancel(context.Background(), adminActor, "today")
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCancelled, appt.Status)

	_, err = f.svc.Cancel(context.Background(), adminActor, "today")
	assert.ErrorIs(t, err, appErrors.ErrInvalidStatusTransition)
}

func TestCancelOwnership(t *testing.T) {
	f := newBookingFixture(t, earlyMonday, confirmedAt("theirs", testStaffID, "2025-03-12", "09:00", "10:00", "someone-else"))

	_, err := f.svc.Cancel(context.Background(), clientActor, "theirs")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Cancel(context.Background(), clientActor, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUpdateStatusTransitions(t *testing.T) {
	mine := confirmedAt("mine", testStaffID, testDate, "09:00", "10:00", clientUserID)
	other := confirmedAt("other", otherStaffID, testDate, "09:00", "10:00", clientUserID)
	done := confirmedAt("done", testStaffID, testDate, "10:00", "11:00", clientUserID)
	done.Status = models.AppointmentCompleted
	f := newBookingFixture(t, earlyMonday, mine, other, done)

	appt, err := f.svc.UpdateStatus(context.Background(), staffActor, "mine", dto.UpdateAppointmentStatusRequest{Status: "COMPLETED"})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCompleted, appt.Status)

	_, err = f.svc.UpdateStatus(context.Background(), staffActor, "other", dto.UpdateAppointmentStatusRequest{Status: "NO_SHOW"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.UpdateStatus(context.Background(), adminActor, "done", dto.UpdateAppointmentStatusRequest{Status: "CANCELLED"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidStatusTransition)

	_, err = f.svc.UpdateStatus(context.Background(), clientActor, "other", dto.UpdateAppointmentStatusRequest{Status: "COMPLETED"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.UpdateStatus(context.Background(), adminActor, "other", dto.UpdateAppointmentStatusRequest{Status: "CONFIRMED"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, 1, f.appts.statusCalls)
}

func TestUpdateStatusCancelledNotifiesAsCancellation(t *testing.T) {
	mine := confirmedAt("mine", testStaffID, testDate, "09:00", "10:00", clientUserID)
	noShow := confirmedAt("late", testStaffID, testDate, "10:00", "11:00", clientUserID)
	f := newBookingFixture(t, earlyMonday, mine, noShow)

	_, err := f.svc.UpdateStatus(context.Background(), staffActor, "mine", dto.UpdateAppointmentStatusRequest{Status: "CANCELLED"})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(context.Background(), staffActor, "late", dto.UpdateAppointmentStatusRequest{Status: "NO_SHOW"})
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, dto.EventAppointmentCancelled, f.publisher.events[0].Type)
	assert.Equal(t, dto.EventAppointmentStatus, f.publisher.events[1].Type)
}

func TestRescheduleIgnoresItself(t *testing.T) {
	f := newBookingFixture(t, earlyMonday, confirmedAt("a1", testStaffID, testDate, "10:00", "11:00", clientUserID))
	start := availability.MustClock("10:30")

	appt, err := f.svc.Reschedule(context.Background(), adminActor, "a1", dto.RescheduleAppointmentRequest{StartTime: &start})
	require.NoError(t, err)
	assert.Equal(t, start, appt.StartTime)
	assert.Equal(t, availability.MustClock("11:30"), appt.EndTime)
	assert.Equal(t, dto.EventAppointmentRescheduled, f.publisher.events[0].Type)
}

func TestRescheduleToOtherStaffAndDay(t *testing.T) {
	f := newBookingFixture(t, earlyMonday,
		confirmedAt("a1", testStaffID, testDate, "10:00", "11:00", clientUserID),
		confirmedAt("busy", otherStaffID, "2025-03-11", "09:00", "10:00", "x"),
	)
	staff := otherStaffID
	date := "2025-03-11"

	start := availability.MustClock("09:00")
	_, err := f.svc.Reschedule(context.Background(), adminActor, "a1", dto.RescheduleAppointmentRequest{StaffID: &staff, Date: &date, StartTime: &start})
	assert.ErrorIs(t, err, appErrors.ErrSlotUnavailable)

	start = availability.MustClock("10:00")
	appt, err := f.svc.Reschedule(context.Background(), adminActor, "a1", dto.RescheduleAppointmentRequest{StaffID: &staff, Date: &date, StartTime: &start})
	require.NoError(t, err)
	assert.Equal(t, otherStaffID, appt.StaffID)
	assert.ElementsMatch(t, []string{
		testStaffID + "@" + testDate,
		otherStaffID + "@2025-03-11",
	}, f.cache.invalidated)
}

func TestRescheduleRequiresAdmin(t *testing.T) {
	f := newBookingFixture(t, earlyMonday, confirmedAt("a1", testStaffID, testDate, "10:00", "11:00", clientUserID))
	start := availability.MustClock("11:00")
	_, err := f.svc.Reschedule(context.Background(), clientActor, "a1", dto.RescheduleAppointmentRequest{StartTime: &start})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestDeleteAppointment(t *testing.T) {
	f := newBookingFixture(t, earlyMonday, confirmedAt("a1", testStaffID, testDate, "10:00", "11:00", clientUserID))

	assert.ErrorIs(t, f.svc.Delete(context.Background(), staffActor, "a1"), appErrors.ErrForbidden)
	require.NoError(t, f.svc.Delete(context.Background(), adminActor, "a1"))
	assert.Equal(t, []string{"a1"}, f.appts.deleted)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), adminActor, "a1"), appErrors.ErrNotFound)
}

func TestGetAppointmentVisibility(t *testing.T) {
	f := newBookingFixture(t, earlyMonday, confirmedAt("a1", testStaffID, testDate, "10:00", "11:00", clientUserID))

	_, err := f.svc.Get(context.Background(), clientActor, "a1")
	require.NoError(t, err)
	_, err = f.svc.Get(context.Background(), staffActor, "a1")
	require.NoError(t, err)
	_, err = f.svc.Get(context.Background(), models.Actor{UserID: "stranger", Role: models.RoleClient}, "a1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
