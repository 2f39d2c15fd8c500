package testutil

import (
	"context"

	"github.com/flexprice/parkingpermits/internal/types"
)

const DefaultTestUserID = "user_test"

func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetUserID(ctx, DefaultTestUserID)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	return ctx
}
