package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agendapro/agenda-api/internal/models"
	"github.com/agendapro/agenda-api/pkg/response"
)

type catalogService interface {
	List(ctx context.Context, filter models.ServiceFilter) ([]models.Service, error)
	Get(ctx context.Context, id string) (*models.Service, error)
	Create(ctx context.Context, req models.CreateServiceRequest, actor *models.JWTClaims) (*models.Service, error)
	Update(ctx context.Context, id string, req models.UpdateServiceRequest, actor *models.JWTClaims) (*models.Service, error)
	SetActive(ctx context.Context, id string, active bool, actor *models.JWTClaims) error
}

// CatalogHandler exposes the service catalog.
type CatalogHandler struct {
	service catalogService
}

func NewCatalogHandler(svc catalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

// List godoc
// @Summary List services
// @Description Anonymous callers and clients only see active services. Admins may pass active=false.
// @Tags Services
// @Produce json
// @Param active query bool false "Filter by active flag (admin only)"
// @Param search query string false "Name search"
// @Success 200 {object} response.Envelope
// @Router /services [get]
func (h *CatalogHandler) List(c *gin.Context) {
	active, err := boolQuery(c, "active")
	if err != nil {
		response.Error(c, err)
		return
	}
	if !actorFromContext(c).IsAdmin() {
		onlyActive := true
		active = &onlyActive
	}
	services, err := h.service.List(c.Request.Context(), models.ServiceFilter{Active: active, Search: c.Query("search")})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, services)
}

// Get godoc
// @Summary Get service
// @Tags Services
// @Produce json
// @Param id path string true "Service ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /services/{id} [get]
func (h *CatalogHandler) Get(c *gin.Context) {
	svc, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, svc)
}

// Create godoc
// @Summary Create service
// @Tags Services
// @Accept json
// @Produce json
// @Param payload body models.CreateServiceRequest true "Service payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /services [post]
func (h *CatalogHandler) Create(c *gin.Context) {
	var req models.CreateServiceRequest
	if !bindJSON(c, &req, "invalid service payload") {
		return
	}
	svc, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, svc)
}

// Update godoc
// @Summary Update service
// @Tags Services
// @Accept json
// @Produce json
// @Param id path string true "Service ID"
// @Param payload body models.UpdateServiceRequest true "Service changes"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /services/{id} [put]
func (h *CatalogHandler) Update(c *gin.Context) {
	var req models.UpdateServiceRequest
	if !bindJSON(c, &req, "invalid service payload") {
		return
	}
	svc, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, svc)
}

// SetActive godoc
// @Summary Activate or deactivate a service
// @Tags Services
// @Accept json
// @Param id path string true "Service ID"
// @Param payload body models.ToggleActiveRequest true "Active flag"
// @Success 204
// @Security BearerAuth
// @Router /services/{id}/status [patch]
func (h *CatalogHandler) SetActive(c *gin.Context) {
	var req models.ToggleActiveRequest
	if !bindJSON(c, &req, "active flag required") {
		return
	}
	if err := h.service.SetActive(c.Request.Context(), c.Param("id"), *req.Active, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
