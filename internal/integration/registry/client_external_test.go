package registry_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/flexprice/parkingpermits/internal/cache"
	"github.com/flexprice/parkingpermits/internal/config"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/integration/registry"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedClient(httpClient *testutil.MockHTTPClient) registry.Client {
	cfg := config.GetDefaultConfig()
	cfg.Registry.BaseURL = "http://registry.local/"
	cfg.Registry.APIKey = "registry-key"
	cfg.Cache.Enabled = false
	return registry.NewClientWithHTTP(cfg, httpClient, cache.NewInMemoryCache(cfg), logger.NewNoopLogger())
}

func TestLookupVehicle_ElectricWithRestrictions(t *testing.T) {
	httpClient := testutil.NewMockHTTPClient()
	httpClient.RegisterJSONResponse("/v1/vehicles/EV-1", `{
		"manufacturer": "Tesla",
		"power_type": "04",
		"restrictions": ["DRIVING_BAN"],
		"owners": ["cus_1"]
	}`)

	v, err := newMockedClient(httpClient).LookupVehicle(context.Background(), "ev-1", "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "EV-1", v.RegistrationNumber)
	assert.True(t, v.IsElectric)
	assert.Equal(t, []string{"DRIVING_BAN"}, v.Restrictions)

	requests := httpClient.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "http://registry.local/v1/vehicles/EV-1", requests[0].URL)
	assert.Equal(t, "registry-key", requests[0].Headers["X-Api-Key"])
}

func TestLookupVehicle_Errors(t *testing.T) {
	tests := []struct {
		name    string
		resp    testutil.MockResponse
		checkFn func(error) bool
	}{
		{
			name:    "not registered",
			resp:    testutil.MockResponse{StatusCode: http.StatusNotFound},
			checkFn: ierr.IsNotFound,
		},
		{
			name:    "registry unavailable",
			resp:    testutil.MockResponse{StatusCode: http.StatusServiceUnavailable},
			checkFn: ierr.IsExternalService,
		},
		{
			name:    "malformed body",
			resp:    testutil.MockResponse{StatusCode: http.StatusOK, Body: []byte("{")},
			checkFn: ierr.IsExternalService,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpClient := testutil.NewMockHTTPClient()
			httpClient.RegisterResponse("/v1/vehicles/ABC-123", tt.resp)

			_, err := newMockedClient(httpClient).LookupVehicle(context.Background(), "ABC-123", "")
			require.Error(t, err)
			assert.True(t, tt.checkFn(err), "unexpected error: %v", err)
		})
	}
}

func TestLookupVehicle_EmptyRegistration(t *testing.T) {
	httpClient := testutil.NewMockHTTPClient()

	_, err := newMockedClient(httpClient).LookupVehicle(context.Background(), "  ", "")
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
	assert.Empty(t, httpClient.Requests())
}
