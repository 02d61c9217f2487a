package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/agendapro/agenda-api/internal/models"
	"github.com/agendapro/agenda-api/pkg/response"
)

type invoiceService interface {
	Issue(ctx context.Context, actor models.Actor, appointmentID string) (*models.Invoice, error)
	Get(ctx context.Context, id string) (*models.Invoice, error)
	ForAppointment(ctx context.Context, appointmentID string) (*models.Invoice, error)
	RefreshStatus(ctx context.Context, actor models.Actor, id string) (*models.Invoice, error)
	Cancel(ctx context.Context, actor models.Actor, id string, req models.CancelInvoiceRequest) (*models.Invoice, error)
}

// InvoiceHandler exposes electronic invoicing.
type InvoiceHandler struct {
	service invoiceService
}

func NewInvoiceHandler(svc invoiceService) *InvoiceHandler {
	return &InvoiceHandler{service: svc}
}

// Issue godoc
// @Summary Issue the electronic invoice of a completed appointment
// @Tags Invoices
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/{id}/invoice [post]
func (h *InvoiceHandler) Issue(c *gin.Context) {
	inv, err := h.service.Issue(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, inv)
}

// ForAppointment godoc
// @Summary Latest invoice of an appointment
// @Tags Invoices
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/{id}/invoice [get]
func (h *InvoiceHandler) ForAppointment(c *gin.Context) {
	inv, err := h.service.ForAppointment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, inv)
}

// Get godoc
// @Summary Get invoice
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	inv, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, inv)
}

// RefreshStatus godoc
// @Summary Query the provider for the invoice state
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /invoices/{id}/status [post]
func (h *InvoiceHandler) RefreshStatus(c *gin.Context) {
	inv, err := h.service.RefreshStatus(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, inv)
}

// Cancel godoc
// @Summary Void an invoice
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param payload body models.CancelInvoiceRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /invoices/{id}/cancel [post]
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	var req models.CancelInvoiceRequest
	if !bindJSON(c, &req, "invalid cancellation payload") {
		return
	}
	inv, err := h.service.Cancel(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, inv)
}
