package testutil

import (
	"context"
	"fmt"
	"sync"

	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/integration/provider"
)

var _ provider.Client = (*MockProviderClient)(nil)

// MockProviderClient records calls to the payment provider. A retried create
// with a known idempotency key returns the order created the first time.
type MockProviderClient struct {
	mu sync.Mutex

	Orders             []*provider.CreateOrderRequest
	CancelledOrders    []string
	CancelledSubs      []string
	byKey              map[string]*provider.CreateOrderResponse
	createErr          error
	cancelErr          error
	cancelFailuresLeft int
	cancelCalls        int
	nextID             int
}

func NewMockProviderClient() *MockProviderClient {
	return &MockProviderClient{
		byKey: make(map[string]*provider.CreateOrderResponse),
	}
}

// FailCreate makes every CreateOrder call fail with err until cleared with nil
func (m *MockProviderClient) FailCreate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

// FailCancel makes the next n cancel calls fail with err
func (m *MockProviderClient) FailCancel(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelFailuresLeft = n
	m.cancelErr = err
}

func (m *MockProviderClient) CreateOrder(ctx context.Context, req *provider.CreateOrderRequest) (*provider.CreateOrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return nil, m.createErr
	}
	if resp, ok := m.byKey[req.IdempotencyKey]; ok {
		return resp, nil
	}

	m.nextID++
	resp := &provider.CreateOrderResponse{
		OrderID:     fmt.Sprintf("ext_order_%d", m.nextID),
		CheckoutURL: fmt.Sprintf("https://pay.example.com/checkout/%d", m.nextID),
	}
	if req.Subscription {
		resp.SubscriptionID = fmt.Sprintf("ext_sub_%d", m.nextID)
	}
	m.byKey[req.IdempotencyKey] = resp
	m.Orders = append(m.Orders, req)
	return resp, nil
}

func (m *MockProviderClient) CancelOrder(ctx context.Context, orderID string, idempotencyKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.cancelFailure(); err != nil {
		return err
	}
	m.CancelledOrders = append(m.CancelledOrders, orderID)
	return nil
}

func (m *MockProviderClient) CancelSubscription(ctx context.Context, subscriptionID string, idempotencyKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.cancelFailure(); err != nil {
		return err
	}
	m.CancelledSubs = append(m.CancelledSubs, subscriptionID)
	return nil
}

func (m *MockProviderClient) cancelFailure() error {
	m.cancelCalls++
	if m.cancelFailuresLeft == 0 {
		return nil
	}
	m.cancelFailuresLeft--
	return m.cancelErr
}

// CancelCalls counts cancel attempts, failed ones included
func (m *MockProviderClient) CancelCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelCalls
}

// OrderCount returns how many distinct provider orders were created
func (m *MockProviderClient) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Orders)
}

// ErrProviderDown is a provider outage as the HTTP provider client reports it
var ErrProviderDown = ierr.NewError("provider unavailable").
	WithHint("The payment provider is unavailable, please try again").
	Mark(ierr.ErrExternalService)
