package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agendapro/agenda-api/internal/availability"
	"github.com/agendapro/agenda-api/internal/dto"
	"github.com/agendapro/agenda-api/internal/models"
	appErrors "github.com/agendapro/agenda-api/pkg/errors"
)

type configurationRepository interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error)
	Get(ctx context.Context, key string) (*models.Configuration, error)
	Upsert(ctx context.Context, cfg *models.Configuration) error
	BulkUpsert(ctx context.Context, cfgs []models.Configuration) error
}

type configurationAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type allowedConfiguration struct {
	Key         string
	Type        models.ConfigurationType
	Description string
	Default     string
}

var allowedConfigurationKeys = []string{
	models.ConfigBusinessName,
	models.ConfigBusinessPhone,
	models.ConfigBusinessEmail,
	models.ConfigBusinessAddress,
	models.ConfigOpeningTime,
	models.ConfigClosingTime,
	models.ConfigWorkingDays,
	models.ConfigMinBookingNotice,
	models.ConfigCancellationLimit,
	models.ConfigBookingHorizon,
	models.ConfigPlatformFee,
	models.ConfigCurrency,
}

var allowedConfigurations = map[string]allowedConfiguration{
	models.ConfigBusinessName: {
		Key:         models.ConfigBusinessName,
		Type:        models.ConfigurationTypeString,
		Description: "Business name shown to clients",
		Default:     "AgendaPro",
	},
	models.ConfigBusinessPhone: {
		Key:         models.ConfigBusinessPhone,
		Type:        models.ConfigurationTypeString,
		Description: "Contact phone",
	},
	models.ConfigBusinessEmail: {
		Key:         models.ConfigBusinessEmail,
		Type:        models.ConfigurationTypeString,
		Description: "Contact email",
	},
	models.ConfigBusinessAddress: {
		Key:         models.ConfigBusinessAddress,
		Type:        models.ConfigurationTypeString,
		Description: "Street address",
	},
	models.ConfigOpeningTime: {
		Key:         models.ConfigOpeningTime,
		Type:        models.ConfigurationTypeTime,
		Description: "Opening time (HH:mm)",
		Default:     "08:00",
	},
	models.ConfigClosingTime: {
		Key:         models.ConfigClosingTime,
		Type:        models.ConfigurationTypeTime,
		Description: "Closing time (HH:mm)",
		Default:     "18:00",
	},
	models.ConfigWorkingDays: {
		Key:         models.ConfigWorkingDays,
		Type:        models.ConfigurationTypeDays,
		Description: "Working days, 1=Monday ... 7=Sunday",
		Default:     "1,2,3,4,5,6",
	},
	models.ConfigMinBookingNotice: {
		Key:         models.ConfigMinBookingNotice,
		Type:        models.ConfigurationTypeInteger,
		Description: "Minimum minutes between now and a bookable slot",
		Default:     "60",
	},
	models.ConfigCancellationLimit: {
		Key:         models.ConfigCancellationLimit,
		Type:        models.ConfigurationTypeInteger,
		Description: "Hours before start after which clients cannot cancel",
		Default:     "24",
	},
	models.ConfigBookingHorizon: {
		Key:         models.ConfigBookingHorizon,
		Type:        models.ConfigurationTypeInteger,
		Description: "Days ahead clients may book",
		Default:     "14",
	},
	models.ConfigPlatformFee: {
		Key:         models.ConfigPlatformFee,
		Type:        models.ConfigurationTypeDecimal,
		Description: "Platform commission percentage",
		Default:     "0",
	},
	models.ConfigCurrency: {
		Key:         models.ConfigCurrency,
		Type:        models.ConfigurationTypeString,
		Description: "ISO 4217 currency code",
		Default:     "COP",
	},
}

type slotSetInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// slotAffectingKeys change which start times are offered, so cached slot
// sets are dropped when any of them is updated.
var slotAffectingKeys = map[string]bool{
	models.ConfigOpeningTime:      true,
	models.ConfigClosingTime:      true,
	models.ConfigWorkingDays:      true,
	models.ConfigMinBookingNotice: true,
	models.ConfigBookingHorizon:   true,
}

// ConfigurationServiceConfig tunes runtime behaviour. Slots may be nil.
type ConfigurationServiceConfig struct {
	Defaults map[string]string
	Slots    slotSetInvalidator
}

// ConfigurationService orchestrates CRUD workflow for business settings.
type ConfigurationService struct {
	repo      configurationRepository
	audit     configurationAuditLogger
	validator *validator.Validate
	logger    *zap.Logger
	defaults  map[string]string
	slots     slotSetInvalidator
}

// NewConfigurationService constructs a ConfigurationService.
func NewConfigurationService(repo configurationRepository, audit configurationAuditLogger, validate *validator.Validate, logger *zap.Logger, cfg ConfigurationServiceConfig) *ConfigurationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := make(map[string]string, len(allowedConfigurations))
	for key, meta := range allowedConfigurations {
		if meta.Default != "" {
			defaults[key] = meta.Default
		}
	}
	for key, value := range cfg.Defaults {
		if value == "" {
			continue
		}
		defaults[key] = value
	}
	return &ConfigurationService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		logger:    logger,
		defaults:  defaults,
		slots:     cfg.Slots,
	}
}

// List returns configuration items scoped to allowed keys.
func (s *ConfigurationService) List(ctx context.Context) ([]dto.ConfigurationItem, error) {
	values, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]dto.ConfigurationItem, 0, len(allowedConfigurationKeys))
	for _, key := range allowedConfigurationKeys {
		meta := allowedConfigurations[key]
		items = append(items, dto.ConfigurationItem{
			Key:         key,
			Value:       values[key],
			Type:        string(meta.Type),
			Description: meta.Description,
		})
	}
	return items, nil
}

// Get retrieves a single configuration.
func (s *ConfigurationService) Get(ctx context.Context, key string) (*dto.ConfigurationItem, error) {
	meta, err := s.requireAllowedKey(key)
	if err != nil {
		return nil, err
	}
	cfg, err := s.repo.Get(ctx, key)
	if err != nil {
		if err == sql.ErrNoRows {
			if def, ok := s.defaultValue(key); ok {
				return &dto.ConfigurationItem{
					Key:         key,
					Value:       def,
					Type:        string(meta.Type),
					Description: meta.Description,
				}, nil
			}
			return nil, appErrors.Clone(appErrors.ErrNotFound, "configuration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get configuration")
	}
	description := meta.Description
	if cfg.Description != nil && *cfg.Description != "" {
		description = *cfg.Description
	}
	return &dto.ConfigurationItem{
		Key:         cfg.Key,
		Value:       cfg.Value,
		Type:        string(cfg.Type),
		Description: description,
	}, nil
}

// Update upserts a configuration entry.
func (s *ConfigurationService) Update(ctx context.Context, key string, value string, actor *models.JWTClaims) (*dto.ConfigurationItem, error) {
	items, err := s.BulkUpdate(ctx, dto.BulkUpdateConfigurationRequest{
		Items: []dto.UpdateConfigurationRequest{{Key: key, Value: value}},
	}, actor)
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// BulkUpdate applies multiple updates transactionally.
func (s *ConfigurationService) BulkUpdate(ctx context.Context, req dto.BulkUpdateConfigurationRequest, actor *models.JWTClaims) ([]dto.ConfigurationItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid configuration payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	current, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	previous := make(map[string]string, len(current))
	for k, v := range current {
		previous[k] = v
	}

	toUpsert := make([]models.Configuration, 0, len(req.Items))
	for _, item := range req.Items {
		meta, err := s.requireAllowedKey(item.Key)
		if err != nil {
			return nil, err
		}
		normalized, err := normalizeConfigurationValue(meta, item.Value)
		if err != nil {
			return nil, err
		}
		current[item.Key] = normalized
		toUpsert = append(toUpsert, models.Configuration{
			Key:         item.Key,
			Value:       normalized,
			Type:        meta.Type,
			Description: strPtr(meta.Description),
			UpdatedBy:   userIDPtr(actor),
		})
	}

	opening := clockOr(current[models.ConfigOpeningTime], 0)
	closing := clockOr(current[models.ConfigClosingTime], 0)
	if closing <= opening {
		return nil, appErrors.Clone(appErrors.ErrValidation, "closing_time must be after opening_time")
	}

	if err := s.repo.BulkUpsert(ctx, toUpsert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update configurations")
	}

	s.invalidateSlots(ctx, toUpsert)

	result := make([]dto.ConfigurationItem, 0, len(toUpsert))
	for _, cfg := range toUpsert {
		result = append(result, dto.ConfigurationItem{
			Key:         cfg.Key,
			Value:       cfg.Value,
			Type:        string(cfg.Type),
			Description: allowedConfigurations[cfg.Key].Description,
		})
		s.emitAudit(ctx, actor, cfg.Key, previous[cfg.Key], cfg.Value)
	}
	return result, nil
}

func (s *ConfigurationService) invalidateSlots(ctx context.Context, changed []models.Configuration) {
	if s.slots == nil {
		return
	}
	for _, cfg := range changed {
		if !slotAffectingKeys[cfg.Key] {
			continue
		}
		if err := s.slots.InvalidateAll(ctx); err != nil {
			s.logger.Warn("failed to invalidate slot cache", zap.String("key", cfg.Key), zap.Error(err))
		}
		return
	}
}

// Settings resolves every business setting into its typed form. Stored
// values that no longer parse fall back to their defaults.
func (s *ConfigurationService) Settings(ctx context.Context) (dto.BusinessSettings, error) {
	values, err := s.load(ctx)
	if err != nil {
		return dto.BusinessSettings{}, err
	}
	get := func(key string) string {
		meta := allowedConfigurations[key]
		if v, err := normalizeConfigurationValue(meta, values[key]); err == nil && v != "" {
			return v
		}
		def, _ := s.defaultValue(key)
		return def
	}

	settings := dto.BusinessSettings{
		Name:                 get(models.ConfigBusinessName),
		Phone:                get(models.ConfigBusinessPhone),
		Email:                get(models.ConfigBusinessEmail),
		Address:              get(models.ConfigBusinessAddress),
		OpeningTime:          clockOr(get(models.ConfigOpeningTime), availability.MustClock("08:00")),
		ClosingTime:          clockOr(get(models.ConfigClosingTime), availability.MustClock("18:00")),
		WorkingDays:          parseWorkingDays(get(models.ConfigWorkingDays)),
		MinNoticeMinutes:     atoiOr(get(models.ConfigMinBookingNotice), 0),
		CancellationLimitHrs: atoiOr(get(models.ConfigCancellationLimit), 24),
		BookingHorizonDays:   atoiOr(get(models.ConfigBookingHorizon), 14),
		PlatformCommission:   decimalOr(get(models.ConfigPlatformFee), decimal.Zero),
		Currency:             get(models.ConfigCurrency),
	}
	return settings, nil
}

// load returns stored values layered over defaults for every allowed key.
func (s *ConfigurationService) load(ctx context.Context) (map[string]string, error) {
	rows, err := s.repo.ListByKeys(ctx, allowedKeys())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list configurations")
	}
	values := make(map[string]string, len(allowedConfigurationKeys))
	for _, key := range allowedConfigurationKeys {
		if def, ok := s.defaultValue(key); ok {
			values[key] = def
		}
	}
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	return values, nil
}

func (s *ConfigurationService) requireAllowedKey(key string) (allowedConfiguration, error) {
	meta, ok := allowedConfigurations[key]
	if !ok {
		return allowedConfiguration{}, appErrors.Clone(appErrors.ErrValidation, "unsupported configuration key")
	}
	return meta, nil
}

func normalizeConfigurationValue(meta allowedConfiguration, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch meta.Type {
	case models.ConfigurationTypeString:
		if meta.Key == models.ConfigCurrency {
			if len(value) != 3 {
				return "", appErrors.Clone(appErrors.ErrValidation, "currency expects a 3 letter code")
			}
			return strings.ToUpper(value), nil
		}
		return value, nil
	case models.ConfigurationTypeBoolean:
		switch strings.ToLower(value) {
		case "true":
			return "true", nil
		case "false":
			return "false", nil
		}
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects boolean value", meta.Key))
	case models.ConfigurationTypeInteger:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects a non-negative integer", meta.Key))
		}
		return strconv.Itoa(n), nil
	case models.ConfigurationTypeDecimal:
		d, err := decimal.NewFromString(value)
		if err != nil || d.IsNegative() {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects a non-negative decimal", meta.Key))
		}
		return d.String(), nil
	case models.ConfigurationTypeTime:
		c, err := availability.ParseClock(value)
		if err != nil {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects HH:mm", meta.Key))
		}
		return c.String(), nil
	case models.ConfigurationTypeDays:
		return normalizeWorkingDays(meta.Key, value)
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported configuration type")
	}
}

func normalizeWorkingDays(key, value string) (string, error) {
	seen := map[int]bool{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > 7 {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects ISO weekdays between 1 and 7", key))
		}
		seen[n] = true
	}
	if len(seen) == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s requires at least one day", key))
	}
	days := make([]int, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Ints(days)
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ","), nil
}

// parseWorkingDays converts ISO weekdays (7=Sunday) to time.Weekday.
func parseWorkingDays(value string) []time.Weekday {
	var days []time.Weekday
	for _, part := range strings.Split(value, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > 7 {
			continue
		}
		days = append(days, time.Weekday(n%7))
	}
	return days
}

func clockOr(value string, fallback availability.Clock) availability.Clock {
	c, err := availability.ParseClock(value)
	if err != nil {
		return fallback
	}
	return c
}

func decimalOr(value string, fallback decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return fallback
	}
	return d
}

func atoiOr(value string, fallback int) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func (s *ConfigurationService) emitAudit(ctx context.Context, actor *models.JWTClaims, key, oldValue, newValue string) {
	if s.audit == nil {
		return
	}
	oldBytes, _ := json.Marshal(map[string]string{"key": key, "value": oldValue})
	newBytes, _ := json.Marshal(map[string]string{"key": key, "value": newValue})
	log := &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionConfigUpdate,
		Resource:   "configuration",
		ResourceID: &key,
		OldValues:  oldBytes,
		NewValues:  newBytes,
		IPAddress:  "system",
		UserAgent:  "configuration-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record configuration audit", zap.Error(err))
	}
}

func allowedKeys() []string {
	keys := make([]string, len(allowedConfigurationKeys))
	copy(keys, allowedConfigurationKeys)
	return keys
}

func userIDPtr(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	return &actor.UserID
}

func strPtr(value string) *string {
	if value == "" {
		return nil
	}
	result := value
	return &result
}

func (s *ConfigurationService) defaultValue(key string) (string, bool) {
	value, ok := s.defaults[key]
	return value, ok
}
