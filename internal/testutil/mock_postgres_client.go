package testutil

import (
	"context"
	"sync/atomic"

	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

// MockPostgresClient is a mock implementation of postgres client for testing.
// Nothing is rolled back: a failing fn keeps the writes it made before failing.
type MockPostgresClient struct {
	logger *logger.Logger
	txs    atomic.Int64
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger) *MockPostgresClient {
	return &MockPostgresClient{
		logger: logger,
	}
}

// WithTx executes the given function without a real transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	c.txs.Add(1)
	return fn(ctx)
}

// Transactions returns how many transactions were started
func (c *MockPostgresClient) Transactions() int {
	return int(c.txs.Load())
}
