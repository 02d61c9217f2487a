package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendapro/agenda-api/internal/models"
)

func TestInvoiceCreateEncodesItems(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectExec("INSERT INTO invoices").WillReturnResult(sqlmock.NewResult(1, 1))

	inv := &models.Invoice{
		Number: "FAC-1",
		Items:  []models.InvoiceItem{{Code: "SRV-svc1", Quantity: 1, UnitPrice: decimal.NewFromInt(100)}},
		Status: models.InvoicePending,
	}
	require.NoError(t, repo.Create(context.Background(), inv))
	assert.Contains(t, string(inv.ItemsJSON), "SRV-svc1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceFindByAppointmentDecodesItems(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	cols := []string{"id", "number", "appointment_id", "customer_id", "customer_name", "customer_tax_id", "items", "subtotal", "tax", "total",
		"currency", "status", "cufe", "qr_code", "pdf_url", "xml_url", "provider_error", "issued_at", "updated_at"}
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM invoices WHERE appointment_id = $1")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("i1", "FAC-1", "a1", "c1", "Ana", "222222222222",
			[]byte(`[{"code":"SRV-svc1","description":"Corte","quantity":1,"unit_price":"100","total":"100","tax_percent":"19"}]`),
			"100", "19", "119", "COP", "ACCEPTED", "cufe-1", nil, nil, nil, nil, now, now))

	inv, err := repo.FindByAppointment(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "Corte", inv.Items[0].Description)
	assert.True(t, inv.Total.Equal(decimal.NewFromInt(119)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
