package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/flexprice/parkingpermits/internal/config"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/httpclient"
	"github.com/flexprice/parkingpermits/internal/logger"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client is the outbound surface of the payment and subscription provider
type Client interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error)
	CancelOrder(ctx context.Context, orderID string, idempotencyKey string) error
	CancelSubscription(ctx context.Context, subscriptionID string, idempotencyKey string) error
}

type client struct {
	baseURL    string
	apiKey     string
	namespace  string
	httpClient httpclient.Client
	logger     *logger.Logger
}

// NewClient creates a provider client on top of the retrying HTTP client
func NewClient(cfg *config.Configuration, logger *logger.Logger) Client {
	return NewClientWithHTTP(cfg, httpclient.NewRetryableClient(httpclient.ClientConfig{
		Timeout:      cfg.Provider.Timeout,
		MaxRetries:   cfg.Provider.MaxRetries,
		RetryWaitMin: cfg.Provider.RetryWaitMin,
		RetryWaitMax: cfg.Provider.RetryWaitMax,
	}, logger), logger)
}

// NewClientWithHTTP creates a provider client that sends through httpClient
func NewClientWithHTTP(cfg *config.Configuration, httpClient httpclient.Client, logger *logger.Logger) Client {
	return &client{
		baseURL:    strings.TrimSuffix(cfg.Provider.BaseURL, "/"),
		apiKey:     cfg.Provider.APIKey,
		namespace:  cfg.Provider.Namespace,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *client) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	if req.IdempotencyKey == "" {
		return nil, ierr.NewError("idempotency key is required").
			WithHint("Remote orders must carry an idempotency key").
			Mark(ierr.ErrValidation)
	}

	var resp CreateOrderResponse
	if err := c.do(ctx, http.MethodPost, "/v1/orders", req, req.IdempotencyKey, &resp); err != nil {
		return nil, err
	}
	if resp.OrderID == "" {
		return nil, ierr.NewError("provider returned no order id").
			WithHint("The payment provider did not create the order").
			WithReportableDetails(map[string]any{"permit_id": req.PermitID}).
			Mark(ierr.ErrExternalService)
	}

	c.logger.Infow("created provider order",
		"permit_id", req.PermitID,
		"reference_number", req.ReferenceNumber,
		"order_id", resp.OrderID,
		"subscription", req.Subscription)
	return &resp, nil
}

func (c *client) CancelOrder(ctx context.Context, orderID string, idempotencyKey string) error {
	path := fmt.Sprintf("/v1/orders/%s/cancel", url.PathEscape(orderID))
	if err := c.do(ctx, http.MethodPost, path, cancelRequest{}, idempotencyKey, nil); err != nil {
		return err
	}
	c.logger.Infow("cancelled provider order", "order_id", orderID)
	return nil
}

func (c *client) CancelSubscription(ctx context.Context, subscriptionID string, idempotencyKey string) error {
	path := fmt.Sprintf("/v1/subscriptions/%s/cancel", url.PathEscape(subscriptionID))
	if err := c.do(ctx, http.MethodPost, path, cancelRequest{}, idempotencyKey, nil); err != nil {
		return err
	}
	c.logger.Infow("cancelled provider subscription", "subscription_id", subscriptionID)
	return nil
}

// do sends a JSON request and decodes the JSON response into out when out is not nil
func (c *client) do(ctx context.Context, method, path string, body interface{}, idempotencyKey string, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Invalid provider request").
				Mark(ierr.ErrSystem)
		}
	}

	headers := map[string]string{
		"Accept":        "application/json",
		HeaderAPIKey:    c.apiKey,
		HeaderNamespace: c.namespace,
	}
	if idempotencyKey != "" {
		headers[HeaderIdempotencyKey] = idempotencyKey
	}

	resp, err := c.httpClient.Send(ctx, &httpclient.Request{
		Method:  method,
		URL:     c.baseURL + path,
		Headers: headers,
		Body:    payload,
	})
	if err != nil {
		details := map[string]any{"path": path}
		if httpErr, ok := httpclient.IsHTTPError(err); ok {
			details["status_code"] = httpErr.StatusCode
		}
		c.logger.Errorw("provider request failed", "method", method, "path", path, "error", err)
		return ierr.WithError(err).
			WithHint("The payment provider is unavailable, please try again").
			WithReportableDetails(details).
			Mark(ierr.ErrExternalService)
	}

	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return ierr.WithError(err).
			WithHint("Unexpected response from the payment provider").
			Mark(ierr.ErrExternalService)
	}
	return nil
}
