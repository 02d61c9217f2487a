package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/agendapro/agenda-api/internal/models"
	appErrors "github.com/agendapro/agenda-api/pkg/errors"
)

type catalogRepository interface {
	List(ctx context.Context, filter models.ServiceFilter) ([]models.Service, error)
	FindByID(ctx context.Context, id string) (*models.Service, error)
	Create(ctx context.Context, svc *models.Service) error
	Update(ctx context.Context, svc *models.Service) error
	SetActive(ctx context.Context, id string, active bool) error
}

// CatalogService manages the bookable services offered by the salon.
type CatalogService struct {
	repo      catalogRepository
	audit     configurationAuditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(repo catalogRepository, audit configurationAuditLogger, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns services matching filter ordered by name.
func (s *CatalogService) List(ctx context.Context, filter models.ServiceFilter) ([]models.Service, error) {
	services, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list services")
	}
	if services == nil {
		services = []models.Service{}
	}
	return services, nil
}

// Get returns service by identifier.
func (s *CatalogService) Get(ctx context.Context, id string) (*models.Service, error) {
	svc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "service not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load service")
	}
	return svc, nil
}

// Create adds a service to the catalog. Services are active unless told otherwise.
func (s *CatalogService) Create(ctx context.Context, req models.CreateServiceRequest, actor *models.JWTClaims) (*models.Service, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid service payload")
	}
	if req.Price.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "price must not be negative")
	}

	svc := &models.Service{
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		Active:          req.Active == nil || *req.Active,
	}
	if err := s.repo.Create(ctx, svc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create service")
	}
	s.recordAudit(ctx, actor, svc.ID, "created")
	return svc, nil
}

// Update applies the non-nil fields of req.
func (s *CatalogService) Update(ctx context.Context, id string, req models.UpdateServiceRequest, actor *models.JWTClaims) (*models.Service, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid service payload")
	}
	if req.Price != nil && req.Price.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "price must not be negative")
	}

	svc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		svc.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		svc.Description = req.Description
	}
	if req.DurationMinutes != nil {
		svc.DurationMinutes = *req.DurationMinutes
	}
	if req.Price != nil {
		svc.Price = *req.Price
	}
	if req.Active != nil {
		svc.Active = *req.Active
	}

	if err := s.repo.Update(ctx, svc); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "service not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update service")
	}
	s.recordAudit(ctx, actor, svc.ID, "updated")
	return svc, nil
}

// SetActive toggles whether the service can be booked.
func (s *CatalogService) SetActive(ctx context.Context, id string, active bool, actor *models.JWTClaims) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "service not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle service")
	}
	state := "deactivated"
	if active {
		state = "activated"
	}
	s.recordAudit(ctx, actor, id, state)
	return nil
}

func (s *CatalogService) recordAudit(ctx context.Context, actor *models.JWTClaims, id, change string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionServiceUpdate,
		Resource:   "service",
		ResourceID: &id,
		NewValues:  []byte(`{"change":"` + change + `"}`),
		IPAddress:  "system",
		UserAgent:  "catalog-service",
	}); err != nil {
		s.logger.Warn("failed to record service audit", zap.Error(err))
	}
}
