package invoicing

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

// Environment names sent to the provider.
const (
	EnvironmentTest       = "test"
	EnvironmentProduction = "production"
)

// Provider invoice states.
const (
	StatusProcessing = "procesando"
	StatusAccepted   = "aceptada"
	StatusRejected   = "rechazada"
)

type Item struct {
	Code        string          `json:"codigo"`
	Description string          `json:"descripcion"`
	Quantity    int             `json:"cantidad"`
	UnitPrice   decimal.Decimal `json:"precio_unitario"`
	Total       decimal.Decimal `json:"total"`
	TaxPercent  decimal.Decimal `json:"impuesto_porcentaje"`
}

// Invoice is the electronic invoice document submitted to the provider.
type Invoice struct {
	Number        string          `json:"numero"`
	IssuedAt      time.Time       `json:"fecha_emision"`
	CustomerID    string          `json:"cliente_id"`
	CustomerName  string          `json:"cliente_nombre"`
	CustomerTaxID string          `json:"cliente_nit"`
	Items         []Item          `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"impuestos"`
	Total         decimal.Decimal `json:"total"`
	Environment   string          `json:"ambiente"`
}

// Result is the provider answer to a submission.
type Result struct {
	CUFE   string `json:"cufe"`
	QRCode string `json:"qr_code"`
	PDFURL string `json:"pdf_url"`
	XMLURL string `json:"xml_url"`
}

type Status struct {
	State        string `json:"status"`
	Observations string `json:"observations,omitempty"`
}

// RejectedError carries the provider's error message for a refused document.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("invoice rejected (%d): %s", e.Status, e.Message)
}

type Config struct {
	BaseURL  string
	NIT      string
	Token    string
	TestMode bool
	Timeout  time.Duration
}

// Client submits invoices to the electronic invoicing provider.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{cfg: cfg, http: httpClient}
}

func (c *Client) environment() string {
	if c.cfg.TestMode {
		return EnvironmentTest
	}
	return EnvironmentProduction
}

// Send submits inv. Test mode posts to the provider's sandbox endpoint.
func (c *Client) Send(ctx context.Context, inv Invoice) (*Result, error) {
	inv.Environment = c.environment()
	path := "/api/v1/invoice"
	if c.cfg.TestMode {
		path = "/api/v1/test/invoice"
	}
	var out Result
	if err := c.do(ctx, http.MethodPost, path, inv, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status queries the processing state of an accepted submission.
func (c *Client) Status(ctx context.Context, cufe string) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/invoice/"+cufe+"/status", nil, &out); err != nil {
		return nil, err
	}
	if out.State == "" {
		out.State = StatusProcessing
	}
	return &out, nil
}

// Cancel voids a previously issued invoice.
func (c *Client) Cancel(ctx context.Context, cufe, reason string) error {
	body := map[string]string{"motivo": reason, "ambiente": c.environment()}
	return c.do(ctx, http.MethodPost, "/api/v1/invoice/"+cufe+"/cancel", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode invoice request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build invoice request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("X-Company-NIT", c.cfg.NIT)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("invoice provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &failure) != nil || failure.Error == "" {
			failure.Error = strings.TrimSpace(string(raw))
		}
		if failure.Error == "" {
			failure.Error = http.StatusText(resp.StatusCode)
		}
		return &RejectedError{Status: resp.StatusCode, Message: failure.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode invoice response: %w", err)
	}
	return nil
}
