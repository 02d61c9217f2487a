package models

import "time"

const (
	AuditActionLogin             = "LOGIN"
	AuditActionLogout            = "LOGOUT"
	AuditActionRegister          = "REGISTER"
	AuditActionTokenRefresh      = "TOKEN_REFRESH"
	AuditActionAppointmentBook   = "APPOINTMENT_BOOK"
	AuditActionAppointmentCancel = "APPOINTMENT_CANCEL"
	AuditActionAppointmentStatus = "APPOINTMENT_STATUS"
	AuditActionAppointmentEdit   = "APPOINTMENT_EDIT"
	AuditActionAppointmentDelete = "APPOINTMENT_DELETE"
	AuditActionConfigUpdate      = "CONFIG_UPDATE"
	AuditActionStaffUpdate       = "STAFF_UPDATE"
	AuditActionServiceUpdate     = "SERVICE_UPDATE"
	AuditActionUserCreate        = "USER_CREATE"
	AuditActionUserUpdate        = "USER_UPDATE"
	AuditActionInvoiceIssue      = "INVOICE_ISSUE"
	AuditActionInvoiceCancel     = "INVOICE_CANCEL"
	AuditActionERPSync           = "ERP_SYNC"
	AuditActionAgendaExport      = "AGENDA_EXPORT"
)

type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
