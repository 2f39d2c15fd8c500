// Package registry looks vehicles up from the national vehicle registry.
package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flexprice/parkingpermits/internal/cache"
	"github.com/flexprice/parkingpermits/internal/config"
	"github.com/flexprice/parkingpermits/internal/domain/vehicle"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/httpclient"
	"github.com/flexprice/parkingpermits/internal/logger"
	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client resolves a registration number to a vehicle snapshot
type Client interface {
	// LookupVehicle returns the vehicle when ownerID is one of its registered owners or holders
	LookupVehicle(ctx context.Context, registrationNumber, ownerID string) (vehicle.Vehicle, error)
}

type client struct {
	baseURL    string
	apiKey     string
	cacheTTL   time.Duration
	httpClient httpclient.Client
	limiter    *rate.Limiter
	cache      cache.Cache
	logger     *logger.Logger
}

// NewClient creates a rate limited, cached registry client
func NewClient(cfg *config.Configuration, c cache.Cache, logger *logger.Logger) Client {
	return NewClientWithHTTP(cfg, httpclient.NewRetryableClient(httpclient.ClientConfig{
		Timeout:      cfg.Registry.Timeout,
		MaxRetries:   1,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: time.Second,
	}, logger), c, logger)
}

// NewClientWithHTTP creates a registry client that sends through httpClient
func NewClientWithHTTP(cfg *config.Configuration, httpClient httpclient.Client, c cache.Cache, logger *logger.Logger) Client {
	limit := rate.Limit(cfg.Registry.RequestsPerSecond)
	if cfg.Registry.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &client{
		baseURL:    strings.TrimSuffix(cfg.Registry.BaseURL, "/"),
		apiKey:     cfg.Registry.APIKey,
		cacheTTL:   cfg.Registry.CacheTTL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, lo.Max([]int{cfg.Registry.Burst, 1})),
		cache:      c,
		logger:     logger,
	}
}

func (c *client) LookupVehicle(ctx context.Context, registrationNumber, ownerID string) (vehicle.Vehicle, error) {
	registrationNumber = strings.ToUpper(strings.TrimSpace(registrationNumber))
	if registrationNumber == "" {
		return vehicle.Vehicle{}, ierr.NewError("registration number is required").
			WithHint("Please provide a registration number").
			Mark(ierr.ErrValidation)
	}

	key := cache.GenerateKey(cache.PrefixVehicle, registrationNumber)
	record, ok := c.cached(ctx, key)
	if !ok {
		fetched, err := c.fetch(ctx, registrationNumber)
		if err != nil {
			return vehicle.Vehicle{}, err
		}
		record = fetched
		c.cache.Set(ctx, key, record, c.cacheTTL)
	}

	if ownerID != "" && !lo.Contains(record.Owners, ownerID) {
		return vehicle.Vehicle{}, ierr.NewError("customer is not an owner or holder of the vehicle").
			WithHint("The vehicle is not registered to the customer").
			WithReportableDetails(map[string]any{"registration_number": registrationNumber}).
			Mark(ierr.ErrPermissionDenied)
	}
	return record.toVehicle(), nil
}

func (c *client) cached(ctx context.Context, key string) (*vehicleResponse, bool) {
	value, ok := c.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	record, ok := value.(*vehicleResponse)
	return record, ok
}

func (c *client) fetch(ctx context.Context, registrationNumber string) (*vehicleResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, ierr.WithError(err).
			WithHint("The vehicle registry is busy, please try again").
			Mark(ierr.ErrExternalService)
	}

	resp, err := c.httpClient.Send(ctx, &httpclient.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/v1/vehicles/%s", c.baseURL, url.PathEscape(registrationNumber)),
		Headers: map[string]string{
			"Accept":    "application/json",
			"X-Api-Key": c.apiKey,
		},
	})
	if err != nil {
		if httpErr, ok := httpclient.IsHTTPError(err); ok && httpErr.StatusCode == http.StatusNotFound {
			return nil, ierr.NewError("vehicle not found").
				WithHintf("No vehicle is registered as %s", registrationNumber).
				Mark(ierr.ErrNotFound)
		}
		c.logger.Errorw("vehicle registry lookup failed",
			"registration_number", registrationNumber,
			"error", err)
		return nil, ierr.WithError(err).
			WithHint("The vehicle registry is unavailable, please try again").
			Mark(ierr.ErrExternalService)
	}

	var record vehicleResponse
	if err := json.Unmarshal(resp.Body, &record); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Unexpected response from the vehicle registry").
			Mark(ierr.ErrExternalService)
	}
	if record.RegistrationNumber == "" {
		record.RegistrationNumber = registrationNumber
	}
	return &record, nil
}
