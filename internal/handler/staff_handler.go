package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agendapro/agenda-api/internal/models"
	appErrors "github.com/agendapro/agenda-api/pkg/errors"
	"github.com/agendapro/agenda-api/pkg/response"
)

type staffService interface {
	List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, error)
	Get(ctx context.Context, id string) (*models.Staff, error)
	Create(ctx context.Context, req models.CreateStaffRequest, actor *models.JWTClaims) (*models.Staff, error)
	Update(ctx context.Context, id string, req models.UpdateStaffRequest, actor *models.JWTClaims) (*models.Staff, error)
	SetActive(ctx context.Context, id string, active bool, actor *models.JWTClaims) error
	Windows(ctx context.Context, staffID string) ([]models.AvailabilityWindow, error)
	ReplaceWindows(ctx context.Context, staffID string, req models.ReplaceWindowsRequest, actor *models.JWTClaims) ([]models.AvailabilityWindow, error)
	Absences(ctx context.Context, staffID string, from, to time.Time) ([]models.Absence, error)
	AddAbsence(ctx context.Context, staffID string, req models.CreateAbsenceRequest, actor *models.JWTClaims) (*models.Absence, error)
	RemoveAbsence(ctx context.Context, staffID, absenceID string, actor *models.JWTClaims) error
}

// StaffHandler exposes personnel, weekly windows and absences.
type StaffHandler struct {
	service staffService
}

func NewStaffHandler(svc staffService) *StaffHandler {
	return &StaffHandler{service: svc}
}

// List godoc
// @Summary List staff
// @Tags Staff
// @Produce json
// @Param active query bool false "Filter by active flag (admin only)"
// @Param specialty query string false "Specialty"
// @Param search query string false "Name search"
// @Success 200 {object} response.Envelope
// @Router /staff [get]
func (h *StaffHandler) List(c *gin.Context) {
	active, err := boolQuery(c, "active")
	if err != nil {
		response.Error(c, err)
		return
	}
	if !actorFromContext(c).IsAdmin() {
		onlyActive := true
		active = &onlyActive
	}
	members, err := h.service.List(c.Request.Context(), models.StaffFilter{
		Active:    active,
		Specialty: c.Query("specialty"),
		Search:    c.Query("search"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, members)
}

// Get godoc
// @Summary Get staff member
// @Tags Staff
// @Produce json
// @Param id path string true "Staff ID"
// @Success 200 {object} response.Envelope
// @Router /staff/{id} [get]
func (h *StaffHandler) Get(c *gin.Context) {
	member, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, member)
}

// Create godoc
// @Summary Create staff member
// @Tags Staff
// @Accept json
// @Produce json
// @Param payload body models.CreateStaffRequest true "Staff payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /staff [post]
func (h *StaffHandler) Create(c *gin.Context) {
	var req models.CreateStaffRequest
	if !bindJSON(c, &req, "invalid staff payload") {
		return
	}
	member, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, member)
}

// Update godoc
// @Summary Update staff member
// @Tags Staff
// @Accept json
// @Produce json
// @Param id path string true "Staff ID"
// @Param payload body models.UpdateStaffRequest true "Staff changes"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/{id} [put]
func (h *StaffHandler) Update(c *gin.Context) {
	var req models.UpdateStaffRequest
	if !bindJSON(c, &req, "invalid staff payload") {
		return
	}
	member, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, member)
}

// SetActive godoc
// @Summary Activate or deactivate a staff member
// @Tags Staff
// @Accept json
// @Param id path string true "Staff ID"
// @Param payload body models.ToggleActiveRequest true "Active flag"
// @Success 204
// @Security BearerAuth
// @Router /staff/{id}/status [patch]
func (h *StaffHandler) SetActive(c *gin.Context) {
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

// Windows godoc
// @Summary Weekly availability windows
// @Tags Staff
// @Produce json
// @Param id path string true "Staff ID"
// @Success 200 {object} response.Envelope
// @Router /staff/{id}/windows [get]
func (h *StaffHandler) Windows(c *gin.Context) {
	windows, err := h.service.Windows(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, windows)
}

// ReplaceWindows godoc
// @Summary Replace the weekly availability windows
// @Tags Staff
// @Accept json
// @Produce json
// @Param id path string true "Staff ID"
// @Param payload body models.ReplaceWindowsRequest true "Windows"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/{id}/windows [put]
func (h *StaffHandler) ReplaceWindows(c *gin.Context) {
	var req models.ReplaceWindowsRequest
	if !bindJSON(c, &req, "invalid windows payload") {
		return
	}
	windows, err := h.service.ReplaceWindows(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, windows)
}

// Absences godoc
// @Summary List absences
// @Tags Staff
// @Produce json
// @Param id path string true "Staff ID"
// @Param date_from query string false "YYYY-MM-DD, defaults to today"
// @Param date_to query string false "YYYY-MM-DD, defaults to 90 days after date_from"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/{id}/absences [get]
func (h *StaffHandler) Absences(c *gin.Context) {
	from := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := c.Query("date_from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date_from"))
			return
		}
		from = parsed
	}
	to := from.AddDate(0, 0, 90)
	if raw := c.Query("date_to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date_to"))
			return
		}
		to = parsed
	}
	absences, err := h.service.Absences(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, absences)
}

// AddAbsence godoc
// @Summary Register an absence
// @Tags Staff
// @Accept json
// @Produce json
// @Param id path string true "Staff ID"
// @Param payload body models.CreateAbsenceRequest true "Absence"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/{id}/absences [post]
func (h *StaffHandler) AddAbsence(c *gin.Context) {
	var req models.CreateAbsenceRequest
	if !bindJSON(c, &req, "invalid absence payload") {
		return
	}
	absence, err := h.service.AddAbsence(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, absence)
}

// RemoveAbsence godoc
// @Summary Remove an absence
// @Tags Staff
// @Param id path string true "Staff ID"
// @Param absenceId path string true "Absence ID"
// @Success 204
// @Security BearerAuth
// @Router /staff/{id}/absences/{absenceId} [delete]
func (h *StaffHandler) RemoveAbsence(c *gin.Context) {
	if err := h.service.RemoveAbsence(c.Request.Context(), c.Param("id"), c.Param("absenceId"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
