package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/agendapro/agenda-api/internal/dto"
	"github.com/agendapro/agenda-api/internal/models"
	appErrors "github.com/agendapro/agenda-api/pkg/errors"
)

type staffRepository interface {
	List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, error)
	FindByID(ctx context.Context, id string) (*models.Staff, error)
	FindByUserID(ctx context.Context, userID string) (*models.Staff, error)
	Create(ctx context.Context, s *models.Staff) error
	Update(ctx context.Context, s *models.Staff) error
	SetActive(ctx context.Context, id string, active bool) error
	ListWindows(ctx context.Context, staffID string) ([]models.AvailabilityWindow, error)
	ReplaceWindows(ctx context.Context, staffID string, windows []models.AvailabilityWindow) error
	ListAbsences(ctx context.Context, staffID string, from, to time.Time) ([]models.Absence, error)
	CreateAbsence(ctx context.Context, a *models.Absence) error
	DeleteAbsence(ctx context.Context, staffID, id string) error
}

type staffUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type settingsProvider interface {
	Settings(ctx context.Context) (dto.BusinessSettings, error)
}

type slotInvalidator interface {
	InvalidateStaffSlots(ctx context.Context, staffID string) error
	InvalidateStaffDay(ctx context.Context, staffID string, date time.Time) error
}

// StaffService manages personnel, their weekly schedule and absences.
type StaffService struct {
	repo      staffRepository
	users     staffUserReader
	settings  settingsProvider
	cache     slotInvalidator
	audit     configurationAuditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStaffService wires a StaffService. cache may be nil.
func NewStaffService(repo staffRepository, users staffUserReader, settings settingsProvider, cache slotInvalidator, audit configurationAuditLogger, validate *validator.Validate, logger *zap.Logger) *StaffService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{
		repo:      repo,
		users:     users,
		settings:  settings,
		cache:     cache,
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

func (s *StaffService) List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, error) {
	staff, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list staff")
	}
	if staff == nil {
		staff = []models.Staff{}
	}
	return staff, nil
}

func (s *StaffService) Get(ctx context.Context, id string) (*models.Staff, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	return member, nil
}

// ForUser resolves the staff record linked to a STAFF account.
func (s *StaffService) ForUser(ctx context.Context, userID string) (*models.Staff, error) {
	member, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no staff profile linked to this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	return member, nil
}

func (s *StaffService) Create(ctx context.Context, req models.CreateStaffRequest, actor *models.JWTClaims) (*models.Staff, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	if err := s.ensureStaffAccount(ctx, req.UserID); err != nil {
		return nil, err
	}
	member := &models.Staff{
		Name:        strings.TrimSpace(req.Name),
		Specialties: normalizeSpecialties(req.Specialties),
		Active:      req.Active == nil || *req.Active,
		UserID:      req.UserID,
	}
	if err := s.repo.Create(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create staff")
	}
	s.recordAudit(ctx, actor, member.ID, "created")
	return member, nil
}

func (s *StaffService) Update(ctx context.Context, id string, req models.UpdateStaffRequest, actor *models.JWTClaims) (*models.Staff, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.UserID != nil {
		if err := s.ensureStaffAccount(ctx, req.UserID); err != nil {
			return nil, err
		}
		member.UserID = req.UserID
	}
	if req.Name != nil {
		member.Name = strings.TrimSpace(*req.Name)
	}
	if req.Specialties != nil {
		member.Specialties = normalizeSpecialties(req.Specialties)
	}
	if req.Active != nil {
		member.Active = *req.Active
	}
	if err := s.repo.Update(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update staff")
	}
	s.invalidate(ctx, id)
	s.recordAudit(ctx, actor, id, "updated")
	return member, nil
}

// SetActive toggles the staff member. Inactive staff cannot be booked.
func (s *StaffService) SetActive(ctx context.Context, id string, active bool, actor *models.JWTClaims) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "staff not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle staff")
	}
	s.invalidate(ctx, id)
	state := "deactivated"
	if active {
		state = "activated"
	}
	s.recordAudit(ctx, actor, id, state)
	return nil
}

func (s *StaffService) Windows(ctx context.Context, staffID string) ([]models.AvailabilityWindow, error) {
	if _, err := s.Get(ctx, staffID); err != nil {
		return nil, err
	}
	windows, err := s.repo.ListWindows(ctx, staffID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability windows")
	}
	if windows == nil {
		windows = []models.AvailabilityWindow{}
	}
	return windows, nil
}

// ReplaceWindows validates and stores a full weekly schedule. Every window
// must end after it starts, sit within business hours and not overlap any
// other window of the same weekday.
func (s *StaffService) ReplaceWindows(ctx context.Context, staffID string, req models.ReplaceWindowsRequest, actor *models.JWTClaims) ([]models.AvailabilityWindow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if _, err := s.Get(ctx, staffID); err != nil {
		return nil, err
	}
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateWindows(req.Windows, settings); err != nil {
		return nil, err
	}

	windows := make([]models.AvailabilityWindow, len(req.Windows))
	for i, in := range req.Windows {
		windows[i] = models.AvailabilityWindow{Weekday: in.Weekday, StartTime: in.StartTime, EndTime: in.EndTime}
	}
	if err := s.repo.ReplaceWindows(ctx, staffID, windows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store availability windows")
	}
	s.invalidate(ctx, staffID)
	s.recordAudit(ctx, actor, staffID, "windows replaced")
	return windows, nil
}

func validateWindows(windows []models.WindowInput, settings dto.BusinessSettings) error {
	byDay := map[int][]models.WindowInput{}
	for _, w := range windows {
		if w.EndTime <= w.StartTime {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("window %s-%s must end after it starts", w.StartTime, w.EndTime))
		}
		if w.StartTime < settings.OpeningTime || w.EndTime > settings.ClosingTime {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("window %s-%s is outside business hours %s-%s",
				w.StartTime, w.EndTime, settings.OpeningTime, settings.ClosingTime))
		}
		byDay[w.Weekday] = append(byDay[w.Weekday], w)
	}
	for day, list := range byDay {
		sort.Slice(list, func(i, j int) bool { return list[i].StartTime < list[j].StartTime })
		for i := 1; i < len(list); i++ {
			if list[i].StartTime < list[i-1].EndTime {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("windows overlap on %s", time.Weekday(day)))
			}
		}
	}
	return nil
}

// Absences lists absences between from and to inclusive.
func (s *StaffService) Absences(ctx context.Context, staffID string, from, to time.Time) ([]models.Absence, error) {
	absences, err := s.repo.ListAbsences(ctx, staffID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list absences")
	}
	if absences == nil {
		absences = []models.Absence{}
	}
	return absences, nil
}

func (s *StaffService) AddAbsence(ctx context.Context, staffID string, req models.CreateAbsenceRequest, actor *models.JWTClaims) (*models.Absence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence payload")
	}
	if _, err := s.Get(ctx, staffID); err != nil {
		return nil, err
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "absence date must be YYYY-MM-DD")
	}
	absence := &models.Absence{StaffID: staffID, Date: date, Reason: strings.TrimSpace(req.Reason)}
	if err := s.repo.CreateAbsence(ctx, absence); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create absence")
	}
	if s.cache != nil {
		if err := s.cache.InvalidateStaffDay(ctx, staffID, date); err != nil {
			s.logger.Warn("failed to invalidate slot cache", zap.String("staff_id", staffID), zap.Error(err))
		}
	}
	s.recordAudit(ctx, actor, staffID, "absence added")
	return absence, nil
}

func (s *StaffService) RemoveAbsence(ctx context.Context, staffID, absenceID string, actor *models.JWTClaims) error {
	if err := s.repo.DeleteAbsence(ctx, staffID, absenceID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "absence not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete absence")
	}
	s.invalidate(ctx, staffID)
	s.recordAudit(ctx, actor, staffID, "absence removed")
	return nil
}

func (s *StaffService) ensureStaffAccount(ctx context.Context, userID *string) error {
	if userID == nil || s.users == nil {
		return nil
	}
	user, err := s.users.FindByID(ctx, *userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrValidation, "linked user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load linked user")
	}
	if user.Role != models.RoleStaff {
		return appErrors.Clone(appErrors.ErrValidation, "linked user must have the STAFF role")
	}
	return nil
}

func (s *StaffService) invalidate(ctx context.Context, staffID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateStaffSlots(ctx, staffID); err != nil {
		s.logger.Warn("failed to invalidate slot cache", zap.String("staff_id", staffID), zap.Error(err))
	}
}

func (s *StaffService) recordAudit(ctx context.Context, actor *models.JWTClaims, id, change string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionStaffUpdate,
		Resource:   "staff",
		ResourceID: &id,
		NewValues:  []byte(`{"change":"` + change + `"}`),
		IPAddress:  "system",
		UserAgent:  "staff-service",
	}); err != nil {
		s.logger.Warn("failed to record staff audit", zap.Error(err))
	}
}

func normalizeSpecialties(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, sp := range in {
		sp = strings.ToLower(strings.TrimSpace(sp))
		if sp == "" || seen[sp] {
			continue
		}
		seen[sp] = true
		out = append(out, sp)
	}
	return out
}
