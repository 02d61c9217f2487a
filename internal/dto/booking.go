package dto

import "github.com/agendapro/agenda-api/internal/availability"

// AvailabilityQuery selects slots for one staff member on one date.
type AvailabilityQuery struct {
	StaffID    string   `form:"staff_id" json:"staff_id" validate:"required,uuid"`
	Date       string   `form:"date" json:"date" validate:"required,datetime=2006-01-02"`
	ServiceIDs []string `form:"service_ids" json:"service_ids" validate:"required,min=1,dive,uuid"`
}

type AvailabilityResponse struct {
	StaffID         string               `json:"staff_id"`
	Date            string               `json:"date"`
	DurationMinutes int                  `json:"duration_minutes"`
	TotalPrice      string               `json:"total_price"`
	Slots           []availability.Clock `json:"slots"`
	Cached          bool                 `json:"-"`
}

// BookAppointmentRequest is submitted by a client for themselves.
type BookAppointmentRequest struct {
	StaffID    string             `json:"staff_id" validate:"required,uuid"`
	Date       string             `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime  availability.Clock `json:"start_time"`
	ServiceIDs []string           `json:"service_ids" validate:"required,min=1,max=10,dive,uuid"`
	Notes      *string            `json:"notes" validate:"omitempty,max=500"`
}

// InlineClient registers a walk-in client while an admin books for them.
type InlineClient struct {
	FullName string  `json:"full_name" validate:"required,min=2,max=120"`
	Email    string  `json:"email" validate:"required,email"`
	Phone    *string `json:"phone" validate:"omitempty,min=7,max=20"`
}

// AdminBookAppointmentRequest books on behalf of an existing or new client.
// Exactly one of ClientID and NewClient must be set.
type AdminBookAppointmentRequest struct {
	BookAppointmentRequest
	ClientID  *string       `json:"client_id" validate:"omitempty,uuid"`
	NewClient *InlineClient `json:"new_client"`
}

type RescheduleAppointmentRequest struct {
	StaffID    *string             `json:"staff_id" validate:"omitempty,uuid"`
	Date       *string             `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime  *availability.Clock `json:"start_time"`
	ServiceIDs []string            `json:"service_ids" validate:"omitempty,min=1,max=10,dive,uuid"`
	Notes      *string             `json:"notes" validate:"omitempty,max=500"`
}

type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=COMPLETED CANCELLED NO_SHOW"`
}
