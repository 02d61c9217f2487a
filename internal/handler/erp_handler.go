package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/agendapro/agenda-api/internal/dto"
	"github.com/agendapro/agenda-api/pkg/response"
)

type erpService interface {
	SyncRange(ctx context.Context, req dto.ERPSyncRequest) (*dto.ERPSyncResult, error)
	Customers(ctx context.Context) ([]dto.ERPClient, error)
	CreateCustomer(ctx context.Context, req dto.ERPClient) (*dto.ERPClient, error)
}

// ERPHandler lets administrators drive the ERP integration by hand.
type ERPHandler struct {
	service erpService
}

func NewERPHandler(svc erpService) *ERPHandler {
	return &ERPHandler{service: svc}
}

// Sync godoc
// @Summary Push the appointments of a date range to the ERP
// @Tags ERP
// @Accept json
// @Produce json
// @Param payload body dto.ERPSyncRequest true "Date range"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Security BearerAuth
// @Router /erp/sync [post]
func (h *ERPHandler) Sync(c *gin.Context) {
	var req dto.ERPSyncRequest
	if !bindJSON(c, &req, "invalid sync payload") {
		return
	}
	result, err := h.service.SyncRange(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Customers godoc
// @Summary List ERP customers
// @Tags ERP
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /erp/customers [get]
func (h *ERPHandler) Customers(c *gin.Context) {
	customers, err := h.service.Customers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, customers)
}

// CreateCustomer godoc
// @Summary Create an ERP customer
// @Tags ERP
// @Accept json
// @Produce json
// @Param payload body dto.ERPClient true "Customer"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /erp/customers [post]
func (h *ERPHandler) CreateCustomer(c *gin.Context) {
	var req dto.ERPClient
	if !bindJSON(c, &req, "invalid customer payload") {
		return
	}
	created, err := h.service.CreateCustomer(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}
