package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/agendapro/agenda-api/internal/availability"
)

// ConfigurationItem is a configuration entry as exposed by the API.
type ConfigurationItem struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type UpdateConfigurationRequest struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value"`
}

type BulkUpdateConfigurationRequest struct {
	Items []UpdateConfigurationRequest `json:"items" validate:"required,min=1,dive"`
}

// BusinessSettings is the typed view of the configuration table used by the
// booking flow. WorkingDays uses time.Weekday numbering.
type BusinessSettings struct {
	Name                 string             `json:"business_name"`
	Phone                string             `json:"business_phone"`
	Email                string             `json:"business_email"`
	Address              string             `json:"business_address"`
	OpeningTime          availability.Clock `json:"opening_time"`
	ClosingTime          availability.Clock `json:"closing_time"`
	WorkingDays          []time.Weekday     `json:"working_days"`
	MinNoticeMinutes     int                `json:"min_booking_notice_minutes"`
	CancellationLimitHrs int                `json:"cancellation_limit_hours"`
	BookingHorizonDays   int                `json:"booking_horizon_days"`
	PlatformCommission   decimal.Decimal    `json:"platform_commission"`
	Currency             string             `json:"currency"`
}

// WorksOn reports whether the business opens on weekday d.
func (b BusinessSettings) WorksOn(d time.Weekday) bool {
	for _, w := range b.WorkingDays {
		if w == d {
			return true
		}
	}
	return false
}
