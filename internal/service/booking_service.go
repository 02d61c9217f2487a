package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/agendapro/agenda-api/internal/availability"
	"github.com/agendapro/agenda-api/internal/dto"
	"github.com/agendapro/agenda-api/internal/models"
	"github.com/agendapro/agenda-api/internal/repository"
	appErrors "github.com/agendapro/agenda-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type bookingCatalog interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Service, error)
}

type bookingStaff interface {
	FindByID(ctx context.Context, id string) (*models.Staff, error)
	FindByUserID(ctx context.Context, userID string) (*models.Staff, error)
	ListWindows(ctx context.Context, staffID string) ([]models.AvailabilityWindow, error)
	HasAbsence(ctx context.Context, staffID string, date time.Time) (bool, error)
}

type bookingAppointments interface {
	ListConfirmed(ctx context.Context, staffID string, date time.Time) ([]models.Appointment, error)
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	Create(ctx context.Context, appt *models.Appointment, verify repository.SlotVerifier) error
	Reschedule(ctx context.Context, appt *models.Appointment, verify repository.SlotVerifier) error
	UpdateStatus(ctx context.Context, id string, from, to models.AppointmentStatus) error
	Delete(ctx context.Context, id string) error
}

type bookingClients interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type slotCache interface {
	Slots(ctx context.Context, staffID string, date time.Time, duration int) ([]availability.Clock, bool)
	StoreSlots(ctx context.Context, staffID string, date time.Time, duration int, slots []availability.Clock)
	InvalidateStaffDay(ctx context.Context, staffID string, date time.Time) error
}

// AppointmentPublisher receives appointment lifecycle events. Implementations
// must not block the caller.
type AppointmentPublisher interface {
	Publish(ctx context.Context, event dto.AppointmentEvent)
}

// BookingConfig tunes slot generation.
type BookingConfig struct {
	SlotStep int
	Location *time.Location
}

// BookingService computes availability and manages the appointment lifecycle.
type BookingService struct {
	catalog   bookingCatalog
	staff     bookingStaff
	appts     bookingAppointments
	clients   bookingClients
	settings  settingsProvider
	cache     slotCache
	publisher AppointmentPublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    BookingConfig
	now       func() time.Time
}

// BookingDeps groups the collaborators of BookingService. Cache, Publisher
// and Metrics are optional.
type BookingDeps struct {
	Catalog      bookingCatalog
	Staff        bookingStaff
	Appointments bookingAppointments
	Clients      bookingClients
	Settings     settingsProvider
	Cache        slotCache
	Publisher    AppointmentPublisher
	Metrics      *MetricsService
}

// NewBookingService wires a BookingService.
func NewBookingService(deps BookingDeps, validate *validator.Validate, logger *zap.Logger, cfg BookingConfig) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = availability.DefaultStep
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &BookingService{
		catalog:   deps.Catalog,
		staff:     deps.Staff,
		appts:     deps.Appointments,
		clients:   deps.Clients,
		settings:  deps.Settings,
		cache:     deps.Cache,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// dayPlan is everything slot computation needs for one staff member and
// date apart from the existing appointments.
type dayPlan struct {
	staffID string
	date    time.Time
	windows []availability.Window
	open    bool
}

func (p dayPlan) slots(existing []models.Appointment, duration int, excludeID string, step int) []availability.Clock {
	if !p.open {
		return []availability.Clock{}
	}
	busy := make([]availability.Interval, 0, len(existing))
	for _, a := range existing {
		if a.ID == excludeID || !a.Status.Blocking() {
			continue
		}
		busy = append(busy, a.Interval())
	}
	return availability.ComputeAvailableSlots(p.date, p.windows, busy, duration, availability.WithStep(step))
}

// bookingRules decides which limits apply to a request.
type bookingRules struct {
	enforceNotice  bool
	enforceHorizon bool
}

var (
	clientRules = bookingRules{enforceNotice: true, enforceHorizon: true}
	adminRules  = bookingRules{}
)

// AvailableSlots lists the start times at which the selected services can be
// booked with the staff member on the date.
func (s *BookingService) AvailableSlots(ctx context.Context, q dto.AvailabilityQuery) (*dto.AvailabilityResponse, error) {
	return s.availableSlots(ctx, q, clientRules)
}

// AdminAvailableSlots is AvailableSlots without the minimum notice and
// booking horizon, matching what AdminBook accepts.
func (s *BookingService) AdminAvailableSlots(ctx context.Context, actor models.Actor, q dto.AvailabilityQuery) (*dto.AvailabilityResponse, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators bypass booking rules")
	}
	return s.availableSlots(ctx, q, adminRules)
}

func (s *BookingService) availableSlots(ctx context.Context, q dto.AvailabilityQuery, rules bookingRules) (*dto.AvailabilityResponse, error) {
	started := s.now()
	if err := s.validator.Struct(q); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability query")
	}
	date, err := parseDate(q.Date)
	if err != nil {
		return nil, err
	}
	services, duration, err := s.resolveServices(ctx, q.ServiceIDs)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, err
	}

	var slots []availability.Clock
	hit := false
	// Cached entries hold the client view; horizon cut-offs would leak into
	// admin queries.
	cacheable := s.cache != nil && rules == clientRules
	if cacheable {
		slots, hit = s.cache.Slots(ctx, q.StaffID, date, duration)
	}
	if !hit {
		plan, err := s.loadDay(ctx, q.StaffID, date, settings, rules)
		if err != nil {
			return nil, err
		}
		existing, err := s.confirmed(ctx, plan)
		if err != nil {
			return nil, err
		}
		slots = plan.slots(existing, duration, "", s.config.SlotStep)
		if cacheable {
			s.cache.StoreSlots(ctx, q.StaffID, date, duration, slots)
		}
	}
	slots = s.applyNotice(slots, date, settings, rules)

	if s.metrics != nil {
		s.metrics.ObserveSlotQuery(len(slots), s.now().Sub(started))
	}
	return &dto.AvailabilityResponse{
		StaffID:         q.StaffID,
		Date:            q.Date,
		DurationMinutes: duration,
		TotalPrice:      availability.TotalPrice(services).StringFixed(2),
		Slots:           slots,
		Cached:          hit,
	}, nil
}

// Book reserves an appointment for the calling client.
func (s *BookingService) Book(ctx context.Context, actor models.Actor, req dto.BookAppointmentRequest) (*models.Appointment, error) {
	if actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsClient() && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only clients can book for themselves")
	}
	return s.book(ctx, actor, actor.UserID, req, clientRules)
}

// AdminBook reserves an appointment on behalf of an existing client or a new
// one registered inline. Notice and horizon limits do not apply.
func (s *BookingService) AdminBook(ctx context.Context, actor models.Actor, req dto.AdminBookAppointmentRequest) (*models.Appointment, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if (req.ClientID == nil) == (req.NewClient == nil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "provide exactly one of client_id or new_client")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	var clientID string
	if req.ClientID != nil {
		client, err := s.clients.FindByID(ctx, *req.ClientID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
		}
		if !client.Active {
			return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "client account is inactive")
		}
		clientID = client.ID
	} else {
		if err := s.validator.Struct(req.NewClient); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid client payload")
		}
		client, err := s.registerClient(ctx, *req.NewClient)
		if err != nil {
			return nil, err
		}
		clientID = client.ID
	}
	return s.book(ctx, actor, clientID, req.BookAppointmentRequest, adminRules)
}

func (s *BookingService) registerClient(ctx context.Context, in dto.InlineClient) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := s.clients.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check client email")
	}

	// Walk-in clients get an unusable random password until they reset it.
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create client")
	}
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        in.Phone,
		Role:         models.RoleClient,
		Active:       true,
	}
	if err := s.clients.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create client")
	}
	return user, nil
}

func (s *BookingService) book(ctx context.Context, actor models.Actor, clientID string, req dto.BookAppointmentRequest, rules bookingRules) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	_, duration, err := s.resolveServices(ctx, req.ServiceIDs)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := s.loadDay(ctx, req.StaffID, date, settings, rules)
	if err != nil {
		return nil, err
	}
	if err := s.checkSlot(ctx, plan, settings, rules, duration, req.StartTime, ""); err != nil {
		s.metrics.RecordBooking("rejected")
		return nil, err
	}

	appt := &models.Appointment{
		ClientID:   clientID,
		StaffID:    req.StaffID,
		Date:       date,
		StartTime:  req.StartTime,
		EndTime:    req.StartTime.Add(duration),
		Status:     models.AppointmentConfirmed,
		ServiceIDs: req.ServiceIDs,
		Notes:      req.Notes,
		CreatedBy:  strPtr(actor.UserID),
	}
	err = s.appts.Create(ctx, appt, s.verifier(plan, duration, req.StartTime, ""))
	if err != nil {
		return nil, s.bookingFailure(err, "failed to create appointment")
	}
	s.metrics.RecordBooking("confirmed")

	s.afterChange(ctx, actor, *appt, dto.EventAppointmentBooked, models.AuditActionAppointmentBook, date)
	return appt, nil
}

// Cancel cancels a confirmed appointment. Clients may only cancel their own
// appointments and only until the configured limit before the start; staff
// may cancel their own agenda entries.
func (s *BookingService) Cancel(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, appt); err != nil {
		return nil, err
	}
	if appt.Status != models.AppointmentConfirmed {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatusTransition, "only confirmed appointments can be cancelled")
	}
	if actor.IsClient() {
		settings, err := s.settings.Settings(ctx)
		if err != nil {
			return nil, err
		}
		limit := time.Duration(settings.CancellationLimitHrs) * time.Hour
		if appt.StartsAt(s.config.Location).Sub(s.now()) < limit {
			return nil, appErrors.Clone(appErrors.ErrCancellationWindowClosed,
				fmt.Sprintf("appointments can only be cancelled up to %d hours before they start", settings.CancellationLimitHrs))
		}
	}
	return s.transition(ctx, actor, appt, models.AppointmentCancelled, dto.EventAppointmentCancelled, models.AuditActionAppointmentCancel)
}

// UpdateStatus moves a confirmed appointment to a terminal status.
func (s *BookingService) UpdateStatus(ctx context.Context, actor models.Actor, id string, req dto.UpdateAppointmentStatusRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !actor.IsAdmin() && !actor.IsStaff() {
		return nil, appErrors.ErrForbidden
	}
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, appt); err != nil {
		return nil, err
	}
	next := models.AppointmentStatus(req.Status)
	if !appt.Status.CanTransitionTo(next) {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatusTransition,
			"cannot move appointment from "+string(appt.Status)+" to "+string(next))
	}
	if next == models.AppointmentCancelled {
		return s.transition(ctx, actor, appt, next, dto.EventAppointmentCancelled, models.AuditActionAppointmentCancel)
	}
	return s.transition(ctx, actor, appt, next, dto.EventAppointmentStatus, models.AuditActionAppointmentStatus)
}

func (s *BookingService) transition(ctx context.Context, actor models.Actor, appt *models.Appointment, next models.AppointmentStatus, event, action string) (*models.Appointment, error) {
	if err := s.appts.UpdateStatus(ctx, appt.ID, appt.Status, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStatusTransition, "appointment status changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment status")
	}
	appt.Status = next
	s.afterChange(ctx, actor, *appt, event, action, appt.Date)
	return appt, nil
}

// Reschedule changes staff, date, start or services of a confirmed
// appointment. The new slot is checked against availability ignoring the
// appointment itself.
func (s *BookingService) Reschedule(ctx context.Context, actor models.Actor, id string, req dto.RescheduleAppointmentRequest) (*models.Appointment, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != models.AppointmentConfirmed {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatusTransition, "only confirmed appointments can be edited")
	}
	previousDate := appt.Date
	previousStaff := appt.StaffID

	if req.StaffID != nil {
		appt.StaffID = *req.StaffID
	}
	if req.Date != nil {
		if appt.Date, err = parseDate(*req.Date); err != nil {
			return nil, err
		}
	}
	if req.StartTime != nil {
		appt.StartTime = *req.StartTime
	}
	if len(req.ServiceIDs) > 0 {
		appt.ServiceIDs = req.ServiceIDs
	}
	if req.Notes != nil {
		appt.Notes = req.Notes
	}

	_, duration, err := s.resolveServices(ctx, appt.ServiceIDs)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := s.loadDay(ctx, appt.StaffID, appt.Date, settings, adminRules)
	if err != nil {
		return nil, err
	}
	if err := s.checkSlot(ctx, plan, settings, adminRules, duration, appt.StartTime, appt.ID); err != nil {
		return nil, err
	}
	appt.EndTime = appt.StartTime.Add(duration)

	if err := s.appts.Reschedule(ctx, appt, s.verifier(plan, duration, appt.StartTime, appt.ID)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "appointment changed concurrently")
		}
		return nil, s.bookingFailure(err, "failed to reschedule appointment")
	}

	s.invalidate(ctx, previousStaff, previousDate)
	s.afterChange(ctx, actor, *appt, dto.EventAppointmentRescheduled, models.AuditActionAppointmentEdit, appt.Date)
	return appt, nil
}

// Delete removes an appointment permanently.
func (s *BookingService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if !actor.IsAdmin() {
		return appErrors.ErrForbidden
	}
	appt, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.appts.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete appointment")
	}
	s.afterChange(ctx, actor, *appt, dto.EventAppointmentDeleted, models.AuditActionAppointmentDelete, appt.Date)
	return nil
}

// Get returns an appointment visible to actor.
func (s *BookingService) Get(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *BookingService) load(ctx context.Context, id string) (*models.Appointment, error) {
	appt, err := s.appts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	return appt, nil
}

// authorize enforces ownership: clients see their own bookings, staff the
// bookings on their agenda, admins everything.
func (s *BookingService) authorize(ctx context.Context, actor models.Actor, appt *models.Appointment) error {
	switch {
	case actor.IsAdmin():
		return nil
	case actor.IsClient():
		if appt.ClientID == actor.UserID {
			return nil
		}
	case actor.IsStaff():
		member, err := s.staff.FindByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrForbidden, "no staff profile linked to this account")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff profile")
		}
		if member.ID == appt.StaffID {
			return nil
		}
	case actor.UserID == "":
		return appErrors.ErrUnauthorized
	}
	return appErrors.Clone(appErrors.ErrForbidden, "appointment belongs to someone else")
}

// resolveServices loads the selected services in request order and sums
// their duration. Unknown, inactive or repeated ids are rejected.
func (s *BookingService) resolveServices(ctx context.Context, ids []string) ([]models.Service, int, error) {
	if len(ids) == 0 {
		return nil, 0, appErrors.Clone(appErrors.ErrInvalidServiceSelection, "select at least one service")
	}
	found, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load services")
	}
	byID := make(map[string]models.Service, len(found))
	for _, svc := range found {
		byID[svc.ID] = svc
	}
	seen := make(map[string]bool, len(ids))
	services := make([]models.Service, 0, len(ids))
	for _, id := range ids {
		svc, ok := byID[id]
		if !ok || !svc.Active {
			return nil, 0, appErrors.Clone(appErrors.ErrInvalidServiceSelection, "service "+id+" is not available")
		}
		if seen[id] {
			return nil, 0, appErrors.Clone(appErrors.ErrInvalidServiceSelection, "service "+id+" selected twice")
		}
		seen[id] = true
		services = append(services, svc)
	}
	duration := availability.TotalDuration(services)
	if duration <= 0 {
		return nil, 0, appErrors.Clone(appErrors.ErrInvalidServiceSelection, "selected services have no duration")
	}
	return services, duration, nil
}

// loadDay gathers the staff windows for date and decides whether the day is
// bookable at all.
func (s *BookingService) loadDay(ctx context.Context, staffID string, date time.Time, settings dto.BusinessSettings, rules bookingRules) (dayPlan, error) {
	plan := dayPlan{staffID: staffID, date: date}

	member, err := s.staff.FindByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return plan, appErrors.Clone(appErrors.ErrNotFound, "staff not found")
		}
		return plan, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	if !member.Active || !settings.WorksOn(date.Weekday()) || !s.withinHorizon(date, settings, rules) {
		return plan, nil
	}
	absent, err := s.staff.HasAbsence(ctx, staffID, date)
	if err != nil {
		return plan, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absences")
	}
	if absent {
		return plan, nil
	}

	rows, err := s.staff.ListWindows(ctx, staffID)
	if err != nil {
		return plan, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability windows")
	}
	plan.windows = make([]availability.Window, 0, len(rows))
	for _, row := range rows {
		plan.windows = append(plan.windows, row.Engine())
	}
	plan.open = true
	return plan, nil
}

func (s *BookingService) confirmed(ctx context.Context, plan dayPlan) ([]models.Appointment, error) {
	if !plan.open {
		return nil, nil
	}
	existing, err := s.appts.ListConfirmed(ctx, plan.staffID, plan.date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointments")
	}
	return existing, nil
}

// checkSlot requires start to be one of the currently computed slots.
func (s *BookingService) checkSlot(ctx context.Context, plan dayPlan, settings dto.BusinessSettings, rules bookingRules, duration int, start availability.Clock, excludeID string) error {
	if start.On(plan.date, s.config.Location).Before(s.now()) {
		return appErrors.Clone(appErrors.ErrSlotUnavailable, "the selected time is in the past")
	}
	existing, err := s.confirmed(ctx, plan)
	if err != nil {
		return err
	}
	slots := s.applyNotice(plan.slots(existing, duration, excludeID, s.config.SlotStep), plan.date, settings, rules)
	if !availability.Contains(slots, start) {
		return appErrors.Clone(appErrors.ErrSlotUnavailable, "")
	}
	return nil
}

// verifier re-runs the engine against the appointments read inside the
// booking transaction.
func (s *BookingService) verifier(plan dayPlan, duration int, start availability.Clock, excludeID string) repository.SlotVerifier {
	return func(existing []models.Appointment) error {
		if !availability.Contains(plan.slots(existing, duration, excludeID, s.config.SlotStep), start) {
			return repository.ErrSlotTaken
		}
		return nil
	}
}

func (s *BookingService) bookingFailure(err error, message string) error {
	if errors.Is(err, repository.ErrSlotTaken) || errors.Is(err, sql.ErrNoRows) {
		s.metrics.RecordBooking("conflict")
		return appErrors.Wrap(err, appErrors.ErrSlotUnavailable.Code, appErrors.ErrSlotUnavailable.Status, appErrors.ErrSlotUnavailable.Message)
	}
	s.metrics.RecordBooking("error")
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *BookingService) withinHorizon(date time.Time, settings dto.BusinessSettings, rules bookingRules) bool {
	today := s.today()
	if date.Before(today) {
		return false
	}
	if !rules.enforceHorizon || settings.BookingHorizonDays <= 0 {
		return true
	}
	return !date.After(today.AddDate(0, 0, settings.BookingHorizonDays))
}

// applyNotice drops slots that start in the past or inside the minimum
// booking notice.
func (s *BookingService) applyNotice(slots []availability.Clock, date time.Time, settings dto.BusinessSettings, rules bookingRules) []availability.Clock {
	cutoff := s.now()
	if rules.enforceNotice {
		cutoff = cutoff.Add(time.Duration(settings.MinNoticeMinutes) * time.Minute)
	}
	out := make([]availability.Clock, 0, len(slots))
	for _, slot := range slots {
		if slot.On(date, s.config.Location).Before(cutoff) {
			continue
		}
		out = append(out, slot)
	}
	return out
}

func (s *BookingService) today() time.Time {
	n := s.now().In(s.config.Location)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *BookingService) afterChange(ctx context.Context, actor models.Actor, appt models.Appointment, event, action string, date time.Time) {
	s.invalidate(ctx, appt.StaffID, date)
	if s.publisher != nil {
		s.publisher.Publish(ctx, dto.NewAppointmentEvent(event, appt, actor.UserID))
	}
	if s.clients == nil {
		return
	}
	id := appt.ID
	if err := s.clients.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     strPtr(actor.UserID),
		Action:     action,
		Resource:   "appointment",
		ResourceID: &id,
		NewValues:  []byte(`{"status":"` + string(appt.Status) + `"}`),
		IPAddress:  "system",
		UserAgent:  "booking-service",
	}); err != nil {
		s.logger.Warn("failed to record appointment audit", zap.String("appointment_id", id), zap.Error(err))
	}
}

func (s *BookingService) invalidate(ctx context.Context, staffID string, date time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateStaffDay(ctx, staffID, date); err != nil {
		s.logger.Warn("failed to invalidate slot cache", zap.String("staff_id", staffID), zap.Error(err))
	}
}

func parseDate(value string) (time.Time, error) {
	date, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
	}
	return date, nil
}
