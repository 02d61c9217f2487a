package dto

import "github.com/agendapro/agenda-api/internal/models"

// AgendaQuery filters the administrator day agenda.
type AgendaQuery struct {
	Date    string `form:"date" validate:"required,datetime=2006-01-02"`
	StaffID string `form:"staff_id" validate:"omitempty,uuid"`
	Status  string `form:"status" validate:"omitempty,oneof=CONFIRMED COMPLETED CANCELLED NO_SHOW"`
}

// AgendaCounters totals a day's appointments per status.
type AgendaCounters struct {
	Total     int `json:"total"`
	Confirmed int `json:"confirmed"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	NoShow    int `json:"no_show"`
}

// Add counts one appointment in status.
func (c *AgendaCounters) Add(status models.AppointmentStatus) {
	c.Total++
	switch status {
	case models.AppointmentConfirmed:
		c.Confirmed++
	case models.AppointmentCompleted:
		c.Completed++
	case models.AppointmentCancelled:
		c.Cancelled++
	case models.AppointmentNoShow:
		c.NoShow++
	}
}

type DayAgenda struct {
	Date         string                     `json:"date"`
	Counters     AgendaCounters             `json:"counters"`
	Revenue      string                     `json:"revenue"`
	Appointments []models.AppointmentDetail `json:"appointments"`
}

// ClientAppointments splits a client's appointments for the "my bookings"
// screen.
type ClientAppointments struct {
	Upcoming []models.AppointmentDetail `json:"upcoming"`
	History  []models.AppointmentDetail `json:"history"`
}
