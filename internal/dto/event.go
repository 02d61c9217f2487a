package dto

import (
	"time"

	"github.com/agendapro/agenda-api/internal/models"
)

// Appointment lifecycle event types.
const (
	EventAppointmentBooked      = "appointment.booked"
	EventAppointmentRescheduled = "appointment.rescheduled"
	EventAppointmentCancelled   = "appointment.cancelled"
	EventAppointmentStatus      = "appointment.status_changed"
	EventAppointmentDeleted     = "appointment.deleted"
)

// AppointmentEvent is published to the event stream and drives email
// notifications and ERP synchronisation.
type AppointmentEvent struct {
	Type          string                   `json:"type"`
	AppointmentID string                   `json:"appointment_id"`
	ClientID      string                   `json:"client_id"`
	StaffID       string                   `json:"staff_id"`
	Date          string                   `json:"date"`
	StartTime     string                   `json:"start_time"`
	EndTime       string                   `json:"end_time"`
	Status        models.AppointmentStatus `json:"status"`
	ServiceIDs    []string                 `json:"service_ids"`
	ActorID       string                   `json:"actor_id,omitempty"`
	OccurredAt    time.Time                `json:"occurred_at"`
}

// NewAppointmentEvent snapshots appt for publishing.
func NewAppointmentEvent(eventType string, appt models.Appointment, actorID string) AppointmentEvent {
	return AppointmentEvent{
		Type:          eventType,
		AppointmentID: appt.ID,
		ClientID:      appt.ClientID,
		StaffID:       appt.StaffID,
		Date:          appt.Date.Format("2006-01-02"),
		StartTime:     appt.StartTime.String(),
		EndTime:       appt.EndTime.String(),
		Status:        appt.Status,
		ServiceIDs:    append([]string(nil), appt.ServiceIDs...),
		ActorID:       actorID,
		OccurredAt:    time.Now().UTC(),
	}
}
