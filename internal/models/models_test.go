package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusConfirmed, OrderStatusPreparing, true},
		{OrderStatusPreparing, OrderStatusReady, true},
		{OrderStatusReady, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusReady, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusReady, false},
		{OrderStatusConfirmed, OrderStatusPending, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusPending, OrderStatus("shipped"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestParseEnums(t *testing.T) {
	status, err := ParseOrderStatus("ready")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusReady, status)

	_, err = ParseOrderStatus("shipped")
	assert.Error(t, err)

	orderType, err := ParseOrderType("delivery")
	require.NoError(t, err)
	assert.Equal(t, OrderTypeDelivery, orderType)

	_, err = ParseOrderType("drive_through")
	assert.Error(t, err)

	assert.True(t, LoyaltyTransactionBonus.IsValid())
	assert.False(t, LoyaltyTransactionType("gift").IsValid())
}

func TestJSONMapScan(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan([]byte(`{"calories": 320, "spicy": false}`)))
	assert.Equal(t, float64(320), m["calories"])

	require.NoError(t, m.Scan(nil))
	assert.Empty(t, m)

	assert.Error(t, m.Scan(42))

	v, err := JSONMap(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)
}

func TestProductVariantLookup(t *testing.T) {
	large := ProductVariant{ID: uuid.New(), Name: "Large"}
	p := ProductWithVariants{Variants: []ProductVariant{{ID: uuid.New()}, large}}

	got, ok := p.Variant(large.ID)
	assert.True(t, ok)
	assert.Equal(t, "Large", got.Name)

	_, ok = p.Variant(uuid.New())
	assert.False(t, ok)
}
