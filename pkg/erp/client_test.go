package erp

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

func TestSyncAppointments(t *testing.T) {
	var got struct {
		Citas []Appointment `json:"citas"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/citas/sync", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "key"}, nil)
	err := c.SyncAppointments(context.Background(), []Appointment{{ID: "a1", ClientID: "c1", Date: "2025-03-10", Total: decimal.NewFromInt(30000), Status: "CONFIRMED"}})
	require.NoError(t, err)
	require.Len(t, got.Citas, 1)
	assert.Equal(t, "c1", got.Citas[0].ClientID)
	assert.True(t, decimal.NewFromInt(30000).Equal(got.Citas[0].Total))
}

func TestSyncAppointmentsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewClient(Config{BaseURL: srv.URL}, nil).SyncAppointments(context.Background(), nil)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Status)
	assert.Contains(t, statusErr.Body, "maintenance")
}

func TestCustomers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`[{"id":"e1","nombre":"Ana","email":"ana@example.com"}]`))
		case http.MethodPost:
			var c Customer
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&c))
			assert.Empty(t, c.ID)
			assert.Equal(t, "Luis", c.Name)
			_, _ = w.Write([]byte(`{"id":"e2"}`))
		}
	}))
	defer srv.Close()
	c := NewClient(Config{BaseURL: srv.URL}, nil)

	list, err := c.Customers(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ana", list[0].Name)

	id, err := c.CreateCustomer(context.Background(), Customer{ID: "ignored", Name: "Luis", Email: "luis@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "e2", id)
}
