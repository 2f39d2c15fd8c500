package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flexprice/parkingpermits/internal/config"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) Client {
	cfg := config.GetDefaultConfig()
	cfg.Provider.BaseURL = url
	cfg.Provider.APIKey = "secret"
	cfg.Provider.Namespace = "parkingpermit"
	cfg.Provider.Timeout = time.Second
	cfg.Provider.MaxRetries = 1
	cfg.Provider.RetryWaitMin = time.Millisecond
	cfg.Provider.RetryWaitMax = time.Millisecond
	return NewClient(cfg, logger.NewNoopLogger())
}

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		assert.Equal(t, "provider_order-abc", r.Header.Get(HeaderIdempotencyKey))
		assert.Equal(t, "secret", r.Header.Get(HeaderAPIKey))
		assert.Equal(t, "parkingpermit", r.Header.Get(HeaderNamespace))

		body, _ := io.ReadAll(r.Body)
		var req CreateOrderRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "prm_1", req.PermitID)
		assert.True(t, req.TotalPrice.Equal(decimal.RequireFromString("30.00")))
		assert.Empty(t, req.IdempotencyKey)

		_, _ = w.Write([]byte(`{"order_id":"ext-1","checkout_url":"https://pay.example/ext-1"}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).CreateOrder(context.Background(), &CreateOrderRequest{
		ReferenceNumber: "PO123",
		PermitID:        "prm_1",
		Customer:        Customer{ID: "cus_1"},
		TotalPrice:      decimal.RequireFromString("30.00"),
		IdempotencyKey:  "provider_order-abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "ext-1", resp.OrderID)
	assert.Equal(t, "https://pay.example/ext-1", resp.CheckoutURL)
}

func TestCreateOrder_RequiresIdempotencyKey(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").CreateOrder(context.Background(), &CreateOrderRequest{PermitID: "prm_1"})
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestCreateOrder_ProviderFailureIsExternalServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateOrder(context.Background(), &CreateOrderRequest{
		PermitID:       "prm_1",
		IdempotencyKey: "k",
	})
	require.Error(t, err)
	assert.True(t, ierr.IsExternalService(err))
	assert.True(t, ierr.IsRetryable(err))
}

func TestCancelSubscription(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.Equal(t, "cancel-key", r.Header.Get(HeaderIdempotencyKey))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).CancelSubscription(context.Background(), "sub-9", "cancel-key")
	require.NoError(t, err)
	assert.Equal(t, "/v1/subscriptions/sub-9/cancel", path)
}
