package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockItemsFromPayload(t *testing.T) {
	raw := []any{
		map[string]any{"productId": json.Number("1234"), "quantity": json.Number("2"), "unitPrice": json.Number("15.50")},
		map[string]any{"itemCode": "SKU-9", "quantity": float64(3)},
		map[string]any{"description": "Delivery fee", "quantity": 1},
		"not a line",
	}

	items, err := StockItemsFromPayload(raw)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "1234", items[0].ProductID)
	assert.Equal(t, int64(2), items[0].Quantity)
	require.True(t, items[0].UnitPrice.Valid)
	assert.Equal(t, "15.5", items[0].UnitPrice.Decimal.String())

	assert.Equal(t, "SKU-9", items[1].SKU)
	assert.Equal(t, int64(3), items[1].Quantity)
	assert.False(t, items[1].UnitPrice.Valid)
}

func TestStockItemsFromPayload_TypedMaps(t *testing.T) {
	items, err := StockItemsFromPayload([]map[string]any{{"sku": "A", "quantity": 4}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(4), items[0].Quantity)
}

func TestStockItemsFromPayload_Invalid(t *testing.T) {
	items, err := StockItemsFromPayload(nil)
	assert.NoError(t, err)
	assert.Nil(t, items)

	_, err = StockItemsFromPayload(map[string]any{"sku": "A"})
	assert.True(t, errors.Is(err, ErrInvalidItems))

	for _, qty := range []any{json.Number("1.5"), float64(0), "-2", nil} {
		_, err = StockItemsFromPayload([]any{map[string]any{"sku": "A", "quantity": qty}})
		assert.True(t, errors.Is(err, ErrInvalidQuantity), "quantity %v", qty)
	}
}

func TestMergeStockItems(t *testing.T) {
	merged := MergeStockItems([]StockItem{
		{SKU: "A", Quantity: 1},
		{ProductID: "7", Quantity: 2},
		{SKU: "A", Quantity: 4},
		{ProductID: "7", Quantity: 1},
	})
	require.Len(t, merged, 2)
	assert.Equal(t, StockItem{SKU: "A", Quantity: 5}, merged[0])
	assert.Equal(t, StockItem{ProductID: "7", Quantity: 3}, merged[1])
}

func TestShortageError(t *testing.T) {
	err := error(&ShortageError{Items: []Shortage{
		{SKU: "A", Requested: 3, Available: 1},
		{SKU: "B", Requested: 2, Available: 0},
	}})
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, "insufficient stock: A requested 3 available 1; B requested 2 available 0", err.Error())
}
