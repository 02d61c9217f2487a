package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agendapro/agenda-api/internal/dto"
	"github.com/agendapro/agenda-api/internal/models"
	appErrors "github.com/agendapro/agenda-api/pkg/errors"
	"github.com/agendapro/agenda-api/pkg/response"
)

type agendaService interface {
	Day(ctx context.Context, q dto.AgendaQuery) (*dto.DayAgenda, error)
	StaffDay(ctx context.Context, actor models.Actor, date string) (*dto.DayAgenda, error)
	ClientAppointments(ctx context.Context, actor models.Actor) (*dto.ClientAppointments, error)
	Upcoming(ctx context.Context, actor models.Actor, limit int) ([]models.AppointmentDetail, error)
	Detail(ctx context.Context, id string) (*models.AppointmentDetail, error)
}

// AgendaHandler serves the read views over appointments.
type AgendaHandler struct {
	service agendaService
}

func NewAgendaHandler(svc agendaService) *AgendaHandler {
	return &AgendaHandler{service: svc}
}

// Day godoc
// @Summary Day agenda
// @Description Appointments of a date with per status counters and completed revenue.
// @Tags Agenda
// @Produce json
// @Param date query string true "YYYY-MM-DD"
// @Param staff_id query string false "Staff ID"
// @Param status query string false "CONFIRMED, COMPLETED, CANCELLED or NO_SHOW"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /agenda [get]
func (h *AgendaHandler) Day(c *gin.Context) {
	var q dto.AgendaQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid agenda query"))
		return
	}
	agenda, err := h.service.Day(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, agenda)
}

// Detail godoc
// @Summary Appointment with client, staff and services
// @Tags Agenda
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /agenda/appointments/{id} [get]
func (h *AgendaHandler) Detail(c *gin.Context) {
	detail, err := h.service.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// StaffDay godoc
// @Summary Personal agenda of the signed in staff member
// @Tags Agenda
// @Produce json
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me/agenda [get]
func (h *AgendaHandler) StaffDay(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	agenda, err := h.service.StaffDay(c.Request.Context(), actor, c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, agenda)
}

// MyAppointments godoc
// @Summary Upcoming appointments and history of the signed in client
// @Tags Agenda
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me/appointments [get]
func (h *AgendaHandler) MyAppointments(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	out, err := h.service.ClientAppointments(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, out)
}

// Upcoming godoc
// @Summary Next appointments of the signed in client
// @Tags Agenda
// @Produce json
// @Param limit query int false "Maximum appointments, default 5"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me/appointments/upcoming [get]
func (h *AgendaHandler) Upcoming(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	out, err := h.service.Upcoming(c.Request.Context(), actor, intQuery(c, "limit", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, out)
}
