package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus mirrors the provider's processing state.
type InvoiceStatus string

const (
	InvoicePending    InvoiceStatus = "PENDING"
	InvoiceProcessing InvoiceStatus = "PROCESSING"
	InvoiceAccepted   InvoiceStatus = "ACCEPTED"
	InvoiceRejected   InvoiceStatus = "REJECTED"
	InvoiceCancelled  InvoiceStatus = "CANCELLED"
	InvoiceFailed     InvoiceStatus = "FAILED"
)

// DefaultCustomerTaxID is the final-consumer id used when the client has no
// tax document on file.
const DefaultCustomerTaxID = "222222222222"

// VATRate is the 19% value added tax applied to every service line.
var VATRate = decimal.NewFromInt(19)

type InvoiceItem struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
	TaxPercent  decimal.Decimal `json:"tax_percent"`
}

// Invoice is an electronic invoice issued for a completed appointment.
type Invoice struct {
	ID            string          `db:"id" json:"id"`
	Number        string          `db:"number" json:"number"`
	AppointmentID string          `db:"appointment_id" json:"appointment_id"`
	CustomerID    string          `db:"customer_id" json:"customer_id"`
	CustomerName  string          `db:"customer_name" json:"customer_name"`
	CustomerTaxID string          `db:"customer_tax_id" json:"customer_tax_id"`
	Items         []InvoiceItem   `db:"-" json:"items"`
	ItemsJSON     []byte          `db:"items" json:"-"`
	Subtotal      decimal.Decimal `db:"subtotal" json:"subtotal"`
	Tax           decimal.Decimal `db:"tax" json:"tax"`
	Total         decimal.Decimal `db:"total" json:"total"`
	Currency      string          `db:"currency" json:"currency"`
	Status        InvoiceStatus   `db:"status" json:"status"`
	CUFE          *string         `db:"cufe" json:"cufe,omitempty"`
	QRCode        *string         `db:"qr_code" json:"qr_code,omitempty"`
	PDFURL        *string         `db:"pdf_url" json:"pdf_url,omitempty"`
	XMLURL        *string         `db:"xml_url" json:"xml_url,omitempty"`
	ProviderError *string         `db:"provider_error" json:"provider_error,omitempty"`
	IssuedAt      time.Time       `db:"issued_at" json:"issued_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

type CancelInvoiceRequest struct {
	Reason string `json:"reason" validate:"required,min=5,max=255"`
}
