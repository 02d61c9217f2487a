package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agendapro/agenda-api/internal/models"
	appErrors "github.com/agendapro/agenda-api/pkg/errors"
	"github.com/agendapro/agenda-api/pkg/invoicing"
)

var hundred = decimal.NewFromInt(100)

type invoiceStore interface {
	Create(ctx context.Context, inv *models.Invoice) error
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	FindByAppointment(ctx context.Context, appointmentID string) (*models.Invoice, error)
	UpdateProviderResult(ctx context.Context, inv *models.Invoice) error
}

type invoiceProvider interface {
	Send(ctx context.Context, inv invoicing.Invoice) (*invoicing.Result, error)
	Status(ctx context.Context, cufe string) (*invoicing.Status, error)
	Cancel(ctx context.Context, cufe, reason string) error
}

type invoiceAgenda interface {
	Detail(ctx context.Context, id string) (*models.AppointmentDetail, error)
}

type invoiceCustomers interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// InvoiceService issues electronic invoices for completed appointments.
type InvoiceService struct {
	invoices  invoiceStore
	provider  invoiceProvider
	agenda    invoiceAgenda
	customers invoiceCustomers
	settings  settingsProvider
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewInvoiceService constructs an InvoiceService. A nil provider disables
// invoicing.
func NewInvoiceService(invoices invoiceStore, provider invoiceProvider, agenda invoiceAgenda, customers invoiceCustomers, settings settingsProvider, validate *validator.Validate, logger *zap.Logger) *InvoiceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		invoices:  invoices,
		provider:  provider,
		agenda:    agenda,
		customers: customers,
		settings:  settings,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *InvoiceService) enabled(actor models.Actor) error {
	if s.provider == nil {
		return appErrors.Clone(appErrors.ErrFeatureDisabled, "electronic invoicing is disabled")
	}
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators manage invoices")
	}
	return nil
}

// Issue builds the invoice of a completed appointment and submits it to the
// provider. The invoice is stored before submission so a provider failure
// leaves a FAILED record behind.
func (s *InvoiceService) Issue(ctx context.Context, actor models.Actor, appointmentID string) (*models.Invoice, error) {
	if err := s.enabled(actor); err != nil {
		return nil, err
	}
	appt, err := s.agenda.Detail(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != models.AppointmentCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only completed appointments can be invoiced")
	}
	existing, err := s.invoices.FindByAppointment(ctx, appointmentID)
	switch {
	case err == nil && invoiceActive(existing.Status):
		return nil, appErrors.Clone(appErrors.ErrConflict, "appointment already has an invoice")
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}

	customer, err := s.customers.FindByID(ctx, appt.ClientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
	}
	currency := "COP"
	if settings, err := s.settings.Settings(ctx); err == nil && settings.Currency != "" {
		currency = settings.Currency
	}

	inv := buildInvoice(*appt, customer, currency, s.now().UTC())
	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store invoice")
	}

	result, sendErr := s.provider.Send(ctx, providerInvoice(inv))
	var rejected *invoicing.RejectedError
	switch {
	case sendErr == nil:
		inv.Status = models.InvoiceProcessing
		inv.CUFE = &result.CUFE
		inv.QRCode = optional(result.QRCode)
		inv.PDFURL = optional(result.PDFURL)
		inv.XMLURL = optional(result.XMLURL)
	case errors.As(sendErr, &rejected):
		inv.Status = models.InvoiceRejected
		inv.ProviderError = &rejected.Message
	default:
		inv.Status = models.InvoiceFailed
		msg := sendErr.Error()
		inv.ProviderError = &msg
	}
	if err := s.invoices.UpdateProviderResult(ctx, inv); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store invoice result")
	}

	if inv.Status == models.InvoiceFailed {
		s.logger.Warn("invoice submission failed", zap.String("invoice_id", inv.ID), zap.Error(sendErr))
		return nil, upstream(sendErr, "invoicing provider unavailable")
	}
	s.logger.Info("invoice issued", zap.String("invoice_id", inv.ID), zap.String("number", inv.Number), zap.String("status", string(inv.Status)))
	return inv, nil
}

// Get returns an invoice by id.
func (s *InvoiceService) Get(ctx context.Context, id string) (*models.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return nil, invoiceLookupError(err)
	}
	return inv, nil
}

// ForAppointment returns the latest invoice of an appointment.
func (s *InvoiceService) ForAppointment(ctx context.Context, appointmentID string) (*models.Invoice, error) {
	inv, err := s.invoices.FindByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, invoiceLookupError(err)
	}
	return inv, nil
}

// RefreshStatus asks the provider for the processing state of an invoice.
func (s *InvoiceService) RefreshStatus(ctx context.Context, actor models.Actor, id string) (*models.Invoice, error) {
	if err := s.enabled(actor); err != nil {
		return nil, err
	}
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.CUFE == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invoice was not accepted by the provider")
	}
	status, err := s.provider.Status(ctx, *inv.CUFE)
	if err != nil {
		return nil, upstream(err, "failed to query invoice status")
	}
	switch status.State {
	case invoicing.StatusAccepted:
		inv.Status = models.InvoiceAccepted
	case invoicing.StatusRejected:
		inv.Status = models.InvoiceRejected
		if status.Observations != "" {
			inv.ProviderError = &status.Observations
		}
	default:
		inv.Status = models.InvoiceProcessing
	}
	if err := s.invoices.UpdateProviderResult(ctx, inv); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update invoice")
	}
	return inv, nil
}

// Cancel voids an accepted or processing invoice at the provider.
func (s *InvoiceService) Cancel(ctx context.Context, actor models.Actor, id string, req models.CancelInvoiceRequest) (*models.Invoice, error) {
	if err := s.enabled(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancellation")
	}
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.CUFE == nil || (inv.Status != models.InvoiceAccepted && inv.Status != models.InvoiceProcessing) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("invoice in status %s cannot be cancelled", inv.Status))
	}
	if err := s.provider.Cancel(ctx, *inv.CUFE, req.Reason); err != nil {
		return nil, upstream(err, "failed to cancel invoice")
	}
	inv.Status = models.InvoiceCancelled
	if err := s.invoices.UpdateProviderResult(ctx, inv); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update invoice")
	}
	s.logger.Info("invoice cancelled", zap.String("invoice_id", inv.ID))
	return inv, nil
}

// buildInvoice turns a completed appointment into a PENDING invoice with one
// line per service and 19% VAT on the subtotal.
func buildInvoice(appt models.AppointmentDetail, customer *models.User, currency string, issuedAt time.Time) *models.Invoice {
	items := make([]models.InvoiceItem, 0, len(appt.Services))
	subtotal := decimal.Zero
	for _, svc := range appt.Services {
		items = append(items, models.InvoiceItem{
			Code:        "SRV-" + svc.ID,
			Description: svc.Name,
			Quantity:    1,
			UnitPrice:   svc.Price,
			Total:       svc.Price,
			TaxPercent:  models.VATRate,
		})
		subtotal = subtotal.Add(svc.Price)
	}
	tax := subtotal.Mul(models.VATRate).Div(hundred).Round(2)

	taxID := models.DefaultCustomerTaxID
	if customer.DocumentID != nil && *customer.DocumentID != "" {
		taxID = *customer.DocumentID
	}
	return &models.Invoice{
		Number:        fmt.Sprintf("FAC-%d", issuedAt.UnixMilli()),
		AppointmentID: appt.ID,
		CustomerID:    customer.ID,
		CustomerName:  customer.FullName,
		CustomerTaxID: taxID,
		Items:         items,
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         subtotal.Add(tax),
		Currency:      currency,
		Status:        models.InvoicePending,
		IssuedAt:      issuedAt,
	}
}

func providerInvoice(inv *models.Invoice) invoicing.Invoice {
	items := make([]invoicing.Item, 0, len(inv.Items))
	for _, it := range inv.Items {
		items = append(items, invoicing.Item{
			Code:        it.Code,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Total:       it.Total,
			TaxPercent:  it.TaxPercent,
		})
	}
	return invoicing.Invoice{
		Number:        inv.Number,
		IssuedAt:      inv.IssuedAt,
		CustomerID:    inv.CustomerID,
		CustomerName:  inv.CustomerName,
		CustomerTaxID: inv.CustomerTaxID,
		Items:         items,
		Subtotal:      inv.Subtotal,
		Tax:           inv.Tax,
		Total:         inv.Total,
	}
}

func invoiceActive(status models.InvoiceStatus) bool {
	switch status {
	case models.InvoiceRejected, models.InvoiceCancelled, models.InvoiceFailed:
		return false
	}
	return true
}

func invoiceLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
