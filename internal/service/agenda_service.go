package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agendapro/agenda-api/internal/availability"
	"github.com/agendapro/agenda-api/internal/dto"
	"github.com/agendapro/agenda-api/internal/models"
	appErrors "github.com/agendapro/agenda-api/pkg/errors"
)

const defaultUpcomingLimit = 5

type agendaAppointments interface {
	ListDetails(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.AppointmentDetail, error)
}

type agendaStaff interface {
	FindByUserID(ctx context.Context, userID string) (*models.Staff, error)
}

// AgendaService builds the read views over appointments: the admin day
// agenda, the staff personal agenda and the client booking history.
type AgendaService struct {
	appts     agendaAppointments
	catalog   bookingCatalog
	staff     agendaStaff
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time
}

func NewAgendaService(appts agendaAppointments, catalog bookingCatalog, staff agendaStaff, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *AgendaService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AgendaService{appts: appts, catalog: catalog, staff: staff, validator: validate, logger: logger, location: loc, now: time.Now}
}

// Day returns the agenda of a date with per status counters. Revenue sums
// the completed appointments only.
func (s *AgendaService) Day(ctx context.Context, q dto.AgendaQuery) (*dto.DayAgenda, error) {
	if err := s.validator.Struct(q); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid agenda query")
	}
	date, err := parseDate(q.Date)
	if err != nil {
		return nil, err
	}
	filter := models.AppointmentFilter{Date: &date, StaffID: q.StaffID}
	if q.Status != "" {
		status := models.AppointmentStatus(q.Status)
		filter.Status = &status
	}
	details, err := s.list(ctx, filter)
	if err != nil {
		return nil, err
	}
	return summarize(q.Date, details), nil
}

// StaffDay returns the agenda of the staff record linked to actor.
func (s *AgendaService) StaffDay(ctx context.Context, actor models.Actor, date string) (*dto.DayAgenda, error) {
	if !actor.IsStaff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff have a personal agenda")
	}
	if date == "" {
		date = s.now().In(s.location).Format(dateLayout)
	}
	member, err := s.staff.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no staff profile linked to this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff profile")
	}
	return s.Day(ctx, dto.AgendaQuery{Date: date, StaffID: member.ID})
}

// ClientAppointments splits the actor's appointments into upcoming
// (confirmed and not yet started, soonest first) and history (most recent
// first).
func (s *AgendaService) ClientAppointments(ctx context.Context, actor models.Actor) (*dto.ClientAppointments, error) {
	if actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	details, err := s.list(ctx, models.AppointmentFilter{ClientID: actor.UserID})
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := &dto.ClientAppointments{Upcoming: []models.AppointmentDetail{}, History: []models.AppointmentDetail{}}
	for _, d := range details {
		if d.Status == models.AppointmentConfirmed && !d.StartsAt(s.location).Before(now) {
			out.Upcoming = append(out.Upcoming, d)
			continue
		}
		out.History = append(out.History, d)
	}
	sort.SliceStable(out.Upcoming, func(i, j int) bool {
		return out.Upcoming[i].StartsAt(s.location).Before(out.Upcoming[j].StartsAt(s.location))
	})
	sort.SliceStable(out.History, func(i, j int) bool {
		return out.History[i].StartsAt(s.location).After(out.History[j].StartsAt(s.location))
	})
	return out, nil
}

// Upcoming returns at most limit upcoming appointments of the actor.
// Non-positive limits default to 5.
func (s *AgendaService) Upcoming(ctx context.Context, actor models.Actor, limit int) ([]models.AppointmentDetail, error) {
	if limit <= 0 {
		limit = defaultUpcomingLimit
	}
	all, err := s.ClientAppointments(ctx, actor)
	if err != nil {
		return nil, err
	}
	if len(all.Upcoming) > limit {
		return all.Upcoming[:limit], nil
	}
	return all.Upcoming, nil
}

// Range lists appointments between two dates inclusive, optionally for one
// staff member. Used by exports and ERP synchronisation.
func (s *AgendaService) Range(ctx context.Context, from, to time.Time, staffID string) ([]models.AppointmentDetail, error) {
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date_to must not be before date_from")
	}
	return s.list(ctx, models.AppointmentFilter{DateFrom: &from, DateTo: &to, StaffID: staffID})
}

// Detail returns one enriched appointment.
func (s *AgendaService) Detail(ctx context.Context, id string) (*models.AppointmentDetail, error) {
	detail, err := s.appts.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	enriched := []models.AppointmentDetail{*detail}
	if err := s.attachServices(ctx, enriched); err != nil {
		return nil, err
	}
	return &enriched[0], nil
}

func (s *AgendaService) list(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, error) {
	details, _, err := s.appts.ListDetails(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	if details == nil {
		details = []models.AppointmentDetail{}
	}
	if err := s.attachServices(ctx, details); err != nil {
		return nil, err
	}
	return details, nil
}

// attachServices resolves service ids with a single catalog lookup. Services
// deleted from the catalog are skipped rather than failing the agenda.
func (s *AgendaService) attachServices(ctx context.Context, details []models.AppointmentDetail) error {
	seen := map[string]bool{}
	var ids []string
	for _, d := range details {
		for _, id := range d.ServiceIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		for i := range details {
			details[i].Services = []models.Service{}
			details[i].TotalPrice = decimal.Zero.StringFixed(2)
		}
		return nil
	}
	services, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load services")
	}
	byID := make(map[string]models.Service, len(services))
	for _, svc := range services {
		byID[svc.ID] = svc
	}
	for i := range details {
		list := make([]models.Service, 0, len(details[i].ServiceIDs))
		for _, id := range details[i].ServiceIDs {
			if svc, ok := byID[id]; ok {
				list = append(list, svc)
			}
		}
		details[i].Services = list
		details[i].Duration = availability.TotalDuration(list)
		details[i].TotalPrice = availability.TotalPrice(list).StringFixed(2)
	}
	return nil
}

func summarize(date string, details []models.AppointmentDetail) *dto.DayAgenda {
	agenda := &dto.DayAgenda{Date: date, Appointments: details}
	revenue := decimal.Zero
	for _, d := range details {
		agenda.Counters.Add(d.Status)
		if d.Status == models.AppointmentCompleted {
			revenue = revenue.Add(availability.TotalPrice(d.Services))
		}
	}
	agenda.Revenue = revenue.StringFixed(2)
	return agenda
}
