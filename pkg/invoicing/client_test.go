package invoicing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendUsesSandboxInTestMode(t *testing.T) {
	var got Invoice
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/test/invoice", r.URL.Path)
		assert.Equal(t, "900123456", r.Header.Get("X-Company-NIT"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"cufe":"abc123","qr_code":"qr","pdf_url":"https://x/pdf","xml_url":"https://x/xml"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, NIT: "900123456", Token: "tok", TestMode: true}, nil)
	res, err := c.Send(context.Background(), Invoice{Number: "FAC-1", Total: decimal.NewFromInt(119)})
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.CUFE)
	assert.Equal(t, EnvironmentTest, got.Environment)
	assert.Equal(t, "FAC-1", got.Number)
}

func TestSendProductionEndpointAndRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/invoice", r.URL.Path)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"NIT del cliente invalido"}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}, nil).Send(context.Background(), Invoice{})
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "NIT del cliente invalido", rejected.Message)
}

func TestStatusAndCancel(t *testing.T) {
	var reason map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/invoice/abc/status":
			_, _ = w.Write([]byte(`{"status":"aceptada","observations":"ok"}`))
		case "/api/v1/invoice/abc/cancel":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&reason))
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	c := NewClient(Config{BaseURL: srv.URL}, nil)

	st, err := c.Status(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, st.State)

	require.NoError(t, c.Cancel(context.Background(), "abc", "cliente desiste"))
	assert.Equal(t, "cliente desiste", reason["motivo"])
	assert.Equal(t, EnvironmentProduction, reason["ambiente"])

	_, err = c.Status(context.Background(), "missing")
	assert.Error(t, err)
}
