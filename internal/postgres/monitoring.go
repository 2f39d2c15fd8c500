package postgres

import (
	"context"

	"github.com/getsentry/sentry-go"
)

// SpanStarter starts a sentry span around a database operation
type SpanStarter interface {
	StartDBSpan(ctx context.Context, operation string, params map[string]interface{}) (*sentry.Span, context.Context)
}

// SentryClient wraps the standard postgres client with Sentry monitoring
type SentryClient struct {
	client IClient
	sentry SpanStarter
}

// NewSentryClient creates a new Sentry-instrumented Postgres client
func NewSentryClient(client IClient, sentry SpanStarter) IClient {
	return &SentryClient{
		client: client,
		sentry: sentry,
	}
}

// WithTx wraps the given function in a transaction with Sentry span tracking
func (c *SentryClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	span, spanCtx := c.sentry.StartDBSpan(ctx, "postgres.transaction", map[string]interface{}{
		"operation": "transaction",
	})
	if span != nil {
		defer span.Finish()
	}

	return c.client.WithTx(spanCtx, fn)
}
