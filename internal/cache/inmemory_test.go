package cache

import (
	"context"
	"testing"
	"time"

	"github.com/flexprice/parkingpermits/internal/config"
	"github.com/stretchr/testify/assert"
)

func newCache(enabled bool) Cache {
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = enabled
	return NewInMemoryCache(cfg)
}

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := newCache(true)

	key := GenerateKey(PrefixVehicle, "ABC-123")
	assert.Equal(t, "vehicle:v1:ABC-123", key)

	c.Set(ctx, key, "snapshot", time.Minute)
	v, ok := c.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, "snapshot", v)

	c.DeleteByPrefix(ctx, PrefixVehicle)
	_, ok = c.Get(ctx, key)
	assert.False(t, ok)
}

func TestInMemoryCache_Add(t *testing.T) {
	ctx := context.Background()
	c := newCache(true)

	key := GenerateKey(PrefixProviderEvent, "PAYMENT_PAID", "ext-1")
	assert.True(t, c.Add(ctx, key, true, time.Minute))
	assert.False(t, c.Add(ctx, key, true, time.Minute))
}

func TestInMemoryCache_Disabled(t *testing.T) {
	ctx := context.Background()
	c := newCache(false)

	c.Set(ctx, "k", "v", time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.True(t, c.Add(ctx, "k", "v", time.Minute))
	assert.True(t, c.Add(ctx, "k", "v", time.Minute))
}
