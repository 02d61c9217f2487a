package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Appointment is the summary the ERP stores per booking.
type Appointment struct {
	ID         string          `json:"id"`
	ClientID   string          `json:"cliente_id"`
	Date       string          `json:"fecha"`
	ServiceIDs []string        `json:"servicios"`
	Total      decimal.Decimal `json:"total"`
	Status     string          `json:"estado"`
}

// Customer is an ERP customer record.
type Customer struct {
	ID    string  `json:"id,omitempty"`
	Name  string  `json:"nombre"`
	Email string  `json:"email"`
	Phone *string `json:"telefono,omitempty"`
}

// StatusError is returned for non 2xx responses.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("erp %s: status %d: %s", e.Op, e.Status, e.Body)
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the ERP REST API with bearer authentication.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: strings.TrimRight(cfg.BaseURL, "/"), apiKey: cfg.APIKey, http: httpClient}
}

// SyncAppointments pushes a batch of appointment summaries.
func (c *Client) SyncAppointments(ctx context.Context, appts []Appointment) error {
	body := struct {
		Appointments []Appointment `json:"citas"`
	}{Appointments: appts}
	return c.do(ctx, "sync appointments", http.MethodPost, "/api/citas/sync", body, nil)
}

// Customers lists the ERP customers.
func (c *Client) Customers(ctx context.Context) ([]Customer, error) {
	var out []Customer
	if err := c.do(ctx, "list customers", http.MethodGet, "/api/clientes", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Customer{}
	}
	return out, nil
}

// CreateCustomer registers a customer and returns the ERP id.
func (c *Client) CreateCustomer(ctx context.Context, customer Customer) (string, error) {
	customer.ID = ""
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "create customer", http.MethodPost, "/api/clientes", customer, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("erp create customer: response without id")
	}
	return out.ID, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("erp %s: encode: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("erp %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("erp %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("erp %s: decode: %w", op, err)
	}
	return nil
}
