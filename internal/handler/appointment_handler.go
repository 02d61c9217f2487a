package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agendapro/agenda-api/internal/dto"
	"github.com/agendapro/agenda-api/internal/middleware"
	"github.com/agendapro/agenda-api/internal/models"
	appErrors "github.com/agendapro/agenda-api/pkg/errors"
	"github.com/agendapro/agenda-api/pkg/response"
)

type bookingService interface {
	AvailableSlots(ctx context.Context, q dto.AvailabilityQuery) (*dto.AvailabilityResponse, error)
	AdminAvailableSlots(ctx context.Context, actor models.Actor, q dto.AvailabilityQuery) (*dto.AvailabilityResponse, error)
	Book(ctx context.Context, actor models.Actor, req dto.BookAppointmentRequest) (*models.Appointment, error)
	AdminBook(ctx context.Context, actor models.Actor, req dto.AdminBookAppointmentRequest) (*models.Appointment, error)
	Cancel(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error)
	UpdateStatus(ctx context.Context, actor models.Actor, id string, req dto.UpdateAppointmentStatusRequest) (*models.Appointment, error)
	Reschedule(ctx context.Context, actor models.Actor, id string, req dto.RescheduleAppointmentRequest) (*models.Appointment, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
	Get(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error)
}

// AppointmentHandler exposes availability queries and the appointment
// lifecycle.
type AppointmentHandler struct {
	service bookingService
}

func NewAppointmentHandler(svc bookingService) *AppointmentHandler {
	return &AppointmentHandler{service: svc}
}

// Availability godoc
// @Summary Available start times
// @Description Slots for the selected services with one staff member on one date. Admin tokens skip the minimum notice and booking horizon.
// @Tags Availability
// @Produce json
// @Param staff_id query string true "Staff ID"
// @Param date query string true "YYYY-MM-DD"
// @Param service_ids query []string true "Service IDs, repeated or comma separated" collectionFormat(multi)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /availability [get]
func (h *AppointmentHandler) Availability(c *gin.Context) {
	q := dto.AvailabilityQuery{
		StaffID:    c.Query("staff_id"),
		Date:       c.Query("date"),
		ServiceIDs: splitIDs(c.QueryArray("service_ids")),
	}

	var (
		res *dto.AvailabilityResponse
		err error
	)
	if actor := actorFromContext(c); actor.IsAdmin() {
		res, err = h.service.AdminAvailableSlots(c.Request.Context(), actor, q)
	} else {
		res, err = h.service.AvailableSlots(c.Request.Context(), q)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, res.Cached)
	response.JSON(c, http.StatusOK, res, nil, middleware.ExtractMeta(c))
}

// Book godoc
// @Summary Book an appointment
// @Description Clients book for themselves. The start time must be one of the available slots.
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body dto.BookAppointmentRequest true "Booking"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments [post]
func (h *AppointmentHandler) Book(c *gin.Context) {
	var req dto.BookAppointmentRequest
	if !bindJSON(c, &req, "invalid booking payload") {
		return
	}
	appt, err := h.service.Book(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appt)
}

// AdminBook godoc
// @Summary Book on behalf of a client
// @Description Either client_id or new_client must be provided.
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body dto.AdminBookAppointmentRequest true "Booking"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/appointments [post]
func (h *AppointmentHandler) AdminBook(c *gin.Context) {
	var req dto.AdminBookAppointmentRequest
	if !bindJSON(c, &req, "invalid booking payload") {
		return
	}
	appt, err := h.service.AdminBook(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appt)
}

// Get godoc
// @Summary Get appointment
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/{id} [get]
func (h *AppointmentHandler) Get(c *gin.Context) {
	appt, err := h.service.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, appt)
}

// Cancel godoc
// @Summary Cancel appointment
// @Description Clients may cancel their own appointments up to the cancellation limit before start.
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/{id}/cancel [post]
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	appt, err := h.service.Cancel(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, appt)
}

// UpdateStatus godoc
// @Summary Change appointment status
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body dto.UpdateAppointmentStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/{id}/status [patch]
func (h *AppointmentHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateAppointmentStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	appt, err := h.service.UpdateStatus(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, appt)
}

// Reschedule godoc
// @Summary Edit appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body dto.RescheduleAppointmentRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/{id} [put]
func (h *AppointmentHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleAppointmentRequest
	if !bindJSON(c, &req, "invalid appointment payload") {
		return
	}
	appt, err := h.service.Reschedule(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, appt)
}

// Delete godoc
// @Summary Delete appointment
// @Tags Appointments
// @Param id path string true "Appointment ID"
// @Success 204
// @Security BearerAuth
// @Router /appointments/{id} [delete]
func (h *AppointmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// splitIDs accepts both ?service_ids=a&service_ids=b and ?service_ids=a,b.
func splitIDs(values []string) []string {
	var out []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

func requireActor(c *gin.Context) (models.Actor, bool) {
	actor := actorFromContext(c)
	if actor.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return actor, false
	}
	return actor, true
}
