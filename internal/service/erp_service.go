package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agendapro/agenda-api/internal/dto"
	"github.com/agendapro/agenda-api/internal/models"
	"github.com/agendapro/agenda-api/pkg/erp"
	appErrors "github.com/agendapro/agenda-api/pkg/errors"
)

// erpBatchSize caps the appointments pushed in one sync request.
const erpBatchSize = 100

type erpClient interface {
	SyncAppointments(ctx context.Context, appts []erp.Appointment) error
	Customers(ctx context.Context) ([]erp.Customer, error)
	CreateCustomer(ctx context.Context, c erp.Customer) (string, error)
}

type erpAgenda interface {
	Detail(ctx context.Context, id string) (*models.AppointmentDetail, error)
	Range(ctx context.Context, from, to time.Time, staffID string) ([]models.AppointmentDetail, error)
}

// ERPService keeps the external ERP in step with the appointment book.
type ERPService struct {
	client    erpClient
	agenda    erpAgenda
	validator *validator.Validate
	logger    *zap.Logger
}

// NewERPService constructs an ERPService. A nil client disables every
// operation with ErrFeatureDisabled.
func NewERPService(client erpClient, agenda erpAgenda, validate *validator.Validate, logger *zap.Logger) *ERPService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ERPService{client: client, agenda: agenda, validator: validate, logger: logger}
}

func (s *ERPService) enabled() error {
	if s.client == nil {
		return appErrors.Clone(appErrors.ErrFeatureDisabled, "erp integration is disabled")
	}
	return nil
}

// SyncAppointment pushes the current state of one appointment.
func (s *ERPService) SyncAppointment(ctx context.Context, id string) error {
	if err := s.enabled(); err != nil {
		return err
	}
	detail, err := s.agenda.Detail(ctx, id)
	if err != nil {
		return err
	}
	if err := s.client.SyncAppointments(ctx, []erp.Appointment{erpAppointment(*detail)}); err != nil {
		return upstream(err, "erp appointment sync failed")
	}
	return nil
}

// SyncRange pushes every appointment between two dates in batches.
func (s *ERPService) SyncRange(ctx context.Context, req dto.ERPSyncRequest) (*dto.ERPSyncResult, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sync request")
	}
	from, err := parseDate(req.DateFrom)
	if err != nil {
		return nil, err
	}
	to, err := parseDate(req.DateTo)
	if err != nil {
		return nil, err
	}
	details, err := s.agenda.Range(ctx, from, to, "")
	if err != nil {
		return nil, err
	}

	result := &dto.ERPSyncResult{}
	for start := 0; start < len(details); start += erpBatchSize {
		end := start + erpBatchSize
		if end > len(details) {
			end = len(details)
		}
		batch := make([]erp.Appointment, 0, end-start)
		for _, d := range details[start:end] {
			batch = append(batch, erpAppointment(d))
		}
		if err := s.client.SyncAppointments(ctx, batch); err != nil {
			s.logger.Warn("erp batch sync failed", zap.Int("synced", result.Synced), zap.Error(err))
			return nil, upstream(err, "erp sync failed")
		}
		result.Synced += len(batch)
	}
	s.logger.Info("erp range synced", zap.String("from", req.DateFrom), zap.String("to", req.DateTo), zap.Int("synced", result.Synced))
	return result, nil
}

// Customers lists the ERP customers.
func (s *ERPService) Customers(ctx context.Context) ([]dto.ERPClient, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	customers, err := s.client.Customers(ctx)
	if err != nil {
		return nil, upstream(err, "failed to list erp customers")
	}
	out := make([]dto.ERPClient, 0, len(customers))
	for _, c := range customers {
		out = append(out, dto.ERPClient{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone})
	}
	return out, nil
}

// CreateCustomer registers a customer in the ERP and returns its ERP id.
func (s *ERPService) CreateCustomer(ctx context.Context, req dto.ERPClient) (*dto.ERPClient, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid erp customer")
	}
	id, err := s.client.CreateCustomer(ctx, erp.Customer{Name: req.Name, Email: req.Email, Phone: req.Phone})
	if err != nil {
		return nil, upstream(err, "failed to create erp customer")
	}
	req.ID = id
	return &req, nil
}

func erpAppointment(d models.AppointmentDetail) erp.Appointment {
	total, err := decimal.NewFromString(d.TotalPrice)
	if err != nil {
		total = decimal.Zero
	}
	return erp.Appointment{
		ID:         d.ID,
		ClientID:   d.ClientID,
		Date:       d.Date.Format(dateLayout),
		ServiceIDs: d.ServiceIDs,
		Total:      total,
		Status:     string(d.Status),
	}
}

func upstream(err error, msg string) error {
	return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, msg)
}
