package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Service is a bookable catalog item.
type Service struct {
	ID              string          `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	Description     *string         `db:"description" json:"description,omitempty"`
	DurationMinutes int             `db:"duration_minutes" json:"duration_minutes"`
	Price           decimal.Decimal `db:"price" json:"price"`
	Active          bool            `db:"active" json:"active"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

func (s Service) Minutes() int { return s.DurationMinutes }
func (s Service) UnitPrice() decimal.Decimal { return s.Price }

type ServiceFilter struct {
	Active *bool
	Search string
}

type CreateServiceRequest struct {
	Name            string          `json:"name" validate:"required,min=2,max=120"`
	Description     *string         `json:"description" validate:"omitempty,max=500"`
	DurationMinutes int             `json:"duration_minutes" validate:"required,gt=0,lte=720"`
	Price           decimal.Decimal `json:"price"`
	Active          *bool           `json:"active"`
}

type UpdateServiceRequest struct {
	Name            *string          `json:"name" validate:"omitempty,min=2,max=120"`
	Description     *string          `json:"description" validate:"omitempty,max=500"`
	DurationMinutes *int             `json:"duration_minutes" validate:"omitempty,gt=0,lte=720"`
	Price           *decimal.Decimal `json:"price"`
	Active          *bool            `json:"active"`
}

// ToggleActiveRequest flips the active flag of services and staff.
type ToggleActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}
