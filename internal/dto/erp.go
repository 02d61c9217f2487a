package dto

// ERPClient is the payload admins use to create an ERP customer.
type ERPClient struct {
	ID    string  `json:"id,omitempty"`
	Name  string  `json:"nombre" validate:"required,min=2"`
	Email string  `json:"email" validate:"required,email"`
	Phone *string `json:"telefono,omitempty"`
}

type ERPSyncRequest struct {
	DateFrom string `json:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo   string `json:"date_to" validate:"required,datetime=2006-01-02"`
}

type ERPSyncResult struct {
	Synced int `json:"synced"`
}
