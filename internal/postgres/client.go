package postgres

import (
	"context"

	"go.uber.org/fx"
)

// IClient defines the interface for postgres client operations
type IClient interface {
	// WithTx wraps the given function in a transaction
	WithTx(ctx context.Context, fn func(context.Context) error) error
}

// Module provides an fx.Option to integrate the database with the application
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDB,
			NewClient,
		),
		fx.Invoke(registerHooks),
	)
}

// NewClient returns the transaction runner services depend on, instrumented with sentry spans
func NewClient(db *DB, sentry SpanStarter) IClient {
	return NewSentryClient(db, sentry)
}

func registerHooks(lc fx.Lifecycle, db *DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			db.Close()
			return nil
		},
	})
}
