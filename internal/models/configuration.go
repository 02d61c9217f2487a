package models

import "time"

// ConfigurationType determines how a configuration value is validated.
type ConfigurationType string

const (
	ConfigurationTypeString  ConfigurationType = "STRING"
	ConfigurationTypeBoolean ConfigurationType = "BOOLEAN"
	ConfigurationTypeInteger ConfigurationType = "INTEGER"
	ConfigurationTypeDecimal ConfigurationType = "DECIMAL"
	ConfigurationTypeTime    ConfigurationType = "TIME"
	// ConfigurationTypeDays is a comma separated list of ISO weekdays (1=Monday ... 7=Sunday).
	ConfigurationTypeDays ConfigurationType = "DAYS"
)

// Configuration keys understood by the booking flow.
const (
	ConfigBusinessName      = "business_name"
	ConfigBusinessPhone     = "business_phone"
	ConfigBusinessEmail     = "business_email"
	ConfigBusinessAddress   = "business_address"
	ConfigOpeningTime       = "opening_time"
	ConfigClosingTime       = "closing_time"
	ConfigWorkingDays       = "working_days"
	ConfigMinBookingNotice  = "min_booking_notice_minutes"
	ConfigCancellationLimit = "cancellation_limit_hours"
	ConfigBookingHorizon    = "booking_horizon_days"
	ConfigPlatformFee       = "platform_commission"
	ConfigCurrency          = "currency"
)

type Configuration struct {
	Key         string            `db:"key" json:"key"`
	Value       string            `db:"value" json:"value"`
	Type        ConfigurationType `db:"type" json:"type"`
	Description *string           `db:"description" json:"description,omitempty"`
	UpdatedBy   *string           `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}
