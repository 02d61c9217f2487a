package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/agendapro/agenda-api/internal/availability"
)

// AppointmentStatus is the lifecycle state of a booking.
type AppointmentStatus string

const (
	AppointmentConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
	AppointmentNoShow    AppointmentStatus = "NO_SHOW"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentConfirmed: {AppointmentCompleted, AppointmentCancelled, AppointmentNoShow},
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentConfirmed, AppointmentCompleted, AppointmentCancelled, AppointmentNoShow:
		return true
	}
	return false
}

// CanTransitionTo reports whether s may move to next. Every status other
// than CONFIRMED is terminal.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Blocking reports whether appointments in this status occupy their slot.
func (s AppointmentStatus) Blocking() bool {
	return s == AppointmentConfirmed
}

// Appointment is a booking of one or more services with one staff member.
// EndTime is always StartTime plus the summed service durations.
type Appointment struct {
	ID         string             `db:"id" json:"id"`
	ClientID   string             `db:"client_id" json:"client_id"`
	StaffID    string             `db:"staff_id" json:"staff_id"`
	Date       time.Time          `db:"date" json:"date"`
	StartTime  availability.Clock `db:"start_time" json:"start_time"`
	EndTime    availability.Clock `db:"end_time" json:"end_time"`
	Status     AppointmentStatus  `db:"status" json:"status"`
	ServiceIDs pq.StringArray     `db:"service_ids" json:"service_ids"`
	Notes      *string            `db:"notes" json:"notes,omitempty"`
	CreatedBy  *string            `db:"created_by" json:"created_by,omitempty"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `db:"updated_at" json:"updated_at"`
}

// Interval is the booked span used for overlap checks.
func (a Appointment) Interval() availability.Interval {
	return availability.Interval{Start: a.StartTime, End: a.EndTime}
}

// StartsAt resolves the appointment start as an instant in loc.
func (a Appointment) StartsAt(loc *time.Location) time.Time {
	return a.StartTime.On(a.Date, loc)
}

// AppointmentDetail is an appointment joined with client, staff and service
// data for agenda screens.
type AppointmentDetail struct {
	Appointment
	ClientName  string    `db:"client_name" json:"client_name"`
	ClientEmail string    `db:"client_email" json:"client_email"`
	ClientPhone *string   `db:"client_phone" json:"client_phone,omitempty"`
	StaffName   string    `db:"staff_name" json:"staff_name"`
	Services    []Service `db:"-" json:"services"`
	TotalPrice  string    `db:"-" json:"total_price"`
	Duration    int       `db:"-" json:"duration_minutes"`
}

type AppointmentFilter struct {
	Date     *time.Time
	DateFrom *time.Time
	DateTo   *time.Time
	StaffID  string
	ClientID string
	Status   *AppointmentStatus
	Page     int
	PageSize int
}
