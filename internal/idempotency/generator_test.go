package idempotency

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKey(t *testing.T) {
	g := NewGenerator()

	a := g.GenerateKey(ScopeProviderOrder, map[string]interface{}{"order_id": "ord_1", "total": "55.00"})
	b := g.GenerateKey(ScopeProviderOrder, map[string]interface{}{"total": "55.00", "order_id": "ord_1"})
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "provider_order-"))
	assert.Len(t, strings.TrimPrefix(a, "provider_order-"), 16)

	other := g.GenerateKey(ScopeCancelOrder, map[string]interface{}{"order_id": "ord_1", "total": "55.00"})
	assert.NotEqual(t, a, other)

	assert.True(t, g.ValidateKey(ScopeProviderOrder, map[string]interface{}{"order_id": "ord_1", "total": "55.00"}, a))
	assert.False(t, g.ValidateKey(ScopeProviderOrder, map[string]interface{}{"order_id": "ord_2", "total": "55.00"}, a))
}
