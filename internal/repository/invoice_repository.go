package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/agendapro/agenda-api/internal/models"
)

const invoiceColumns = `id, number, appointment_id, customer_id, customer_name, customer_tax_id, items, subtotal, tax, total,
currency, status, cufe, qr_code, pdf_url, xml_url, provider_error, issued_at, updated_at`

// InvoiceRepository persists electronic invoices. Line items are stored as
// a JSONB column.
type InvoiceRepository struct {
	db *sqlx.DB
}

func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *models.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("encode invoice items: %w", err)
	}
	inv.ItemsJSON = items
	now := time.Now().UTC()
	if inv.IssuedAt.IsZero() {
		inv.IssuedAt = now
	}
	inv.UpdatedAt = now

	const query = `INSERT INTO invoices (id, number, appointment_id, customer_id, customer_name, customer_tax_id, items, subtotal, tax, total,
currency, status, cufe, qr_code, pdf_url, xml_url, provider_error, issued_at, updated_at)
VALUES (:id, :number, :appointment_id, :customer_id, :customer_name, :customer_tax_id, :items, :subtotal, :tax, :total,
:currency, :status, :cufe, :qr_code, :pdf_url, :xml_url, :provider_error, :issued_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, inv); err != nil {
		return uniqueError("create invoice", err)
	}
	return nil
}

func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	return r.findOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
}

func (r *InvoiceRepository) FindByAppointment(ctx context.Context, appointmentID string) (*models.Invoice, error) {
	return r.findOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE appointment_id = $1 ORDER BY issued_at DESC LIMIT 1`, appointmentID)
}

func (r *InvoiceRepository) findOne(ctx context.Context, query string, arg interface{}) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.db.GetContext(ctx, &inv, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find invoice: %w", err)
	}
	if len(inv.ItemsJSON) > 0 {
		if err := json.Unmarshal(inv.ItemsJSON, &inv.Items); err != nil {
			return nil, fmt.Errorf("decode invoice items: %w", err)
		}
	}
	return &inv, nil
}

// UpdateProviderResult stores the provider's answer for inv.
func (r *InvoiceRepository) UpdateProviderResult(ctx context.Context, inv *models.Invoice) error {
	inv.UpdatedAt = time.Now().UTC()
	const query = `UPDATE invoices SET status = :status, cufe = :cufe, qr_code = :qr_code, pdf_url = :pdf_url, xml_url = :xml_url,
provider_error = :provider_error, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, inv)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	return requireAffected(res)
}
