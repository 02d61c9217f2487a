package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/agendapro/agenda-api/internal/availability"
)

// Staff is a bookable professional. UserID links the record to a STAFF
// account so the personal agenda can be resolved from a token.
type Staff struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Specialties pq.StringArray `db:"specialties" json:"specialties"`
	Active      bool           `db:"active" json:"active"`
	UserID      *string        `db:"user_id" json:"user_id,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

type StaffFilter struct {
	Active    *bool
	Specialty string
	Search    string
}

type CreateStaffRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=120"`
	Specialties []string `json:"specialties" validate:"omitempty,dive,min=2,max=60"`
	UserID      *string  `json:"user_id" validate:"omitempty,uuid"`
	Active      *bool    `json:"active"`
}

type UpdateStaffRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=2,max=120"`
	Specialties []string `json:"specialties" validate:"omitempty,dive,min=2,max=60"`
	UserID      *string  `json:"user_id" validate:"omitempty,uuid"`
	Active      *bool    `json:"active"`
}

// AvailabilityWindow is one persisted weekly working block.
// Weekday is 0=Sunday through 6=Saturday.
type AvailabilityWindow struct {
	ID        string             `db:"id" json:"id"`
	StaffID   string             `db:"staff_id" json:"staff_id"`
	Weekday   int                `db:"weekday" json:"weekday"`
	StartTime availability.Clock `db:"start_time" json:"start_time"`
	EndTime   availability.Clock `db:"end_time" json:"end_time"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
}

// Engine converts the row into the engine's window type.
func (w AvailabilityWindow) Engine() availability.Window {
	return availability.Window{Weekday: time.Weekday(w.Weekday), Start: w.StartTime, End: w.EndTime}
}

type WindowInput struct {
	Weekday   int                `json:"weekday" validate:"gte=0,lte=6"`
	StartTime availability.Clock `json:"start_time"`
	EndTime   availability.Clock `json:"end_time"`
}

// ReplaceWindowsRequest replaces the full weekly schedule of a staff member.
type ReplaceWindowsRequest struct {
	Windows []WindowInput `json:"windows" validate:"dive"`
}

// Absence blocks a staff member for a whole civil date.
type Absence struct {
	ID        string    `db:"id" json:"id"`
	StaffID   string    `db:"staff_id" json:"staff_id"`
	Date      time.Time `db:"date" json:"date"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type CreateAbsenceRequest struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Reason string `json:"reason" validate:"required,max=255"`
}
