package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// StockItem is one invoice line resolved to a product by id or SKU.
type StockItem struct {
	ProductID string              `json:"product_id,omitempty"`
	SKU       string              `json:"sku,omitempty"`
	Quantity  int64               `json:"quantity"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
}

func (i StockItem) key() string {
	if i.ProductID != "" {
		return "id:" + i.ProductID
	}
	return "sku:" + i.SKU
}

var (
	productIDKeys = []string{"productId", "product_id"}
	skuKeys       = []string{"sku", "itemCode"}
)

// StockItemsFromPayload picks the stock-bearing lines out of a submission's
// items array. Lines that name no product are not inventory lines and are
// skipped.
func StockItemsFromPayload(raw any) ([]StockItem, error) {
	lines, ok := raw.([]any)
	if !ok {
		if raw == nil {
			return nil, nil
		}
		if typed, isMaps := raw.([]map[string]any); isMaps {
			lines = make([]any, 0, len(typed))
			for _, line := range typed {
				lines = append(lines, line)
			}
		} else {
			return nil, fmt.Errorf("%w: items must be an array", ErrInvalidItems)
		}
	}

	var items []StockItem
	for i, rawLine := range lines {
		line, ok := rawLine.(map[string]any)
		if !ok {
			continue
		}
		item := StockItem{
			ProductID: firstString(line, productIDKeys),
			SKU:       firstString(line, skuKeys),
		}
		if item.ProductID == "" && item.SKU == "" {
			continue
		}

		qty, err := toDecimal(line["quantity"])
		if err != nil || !qty.IsInteger() || qty.Sign() <= 0 {
			return nil, fmt.Errorf("%w: item %d quantity must be a positive whole number", ErrInvalidQuantity, i)
		}
		item.Quantity = qty.IntPart()

		if price, err := toDecimal(line["unitPrice"]); err == nil {
			item.UnitPrice = decimal.NullDecimal{Decimal: price, Valid: true}
		}
		items = append(items, item)
	}
	return items, nil
}

// MergeStockItems sums quantities of lines naming the same product so a
// sale is checked against its total demand.
func MergeStockItems(items []StockItem) []StockItem {
	index := make(map[string]int, len(items))
	out := make([]StockItem, 0, len(items))
	for _, item := range items {
		if at, seen := index[item.key()]; seen {
			out[at].Quantity += item.Quantity
			continue
		}
		index[item.key()] = len(out)
		out = append(out, item)
	}
	return out
}

func firstString(line map[string]any, keys []string) string {
	for _, key := range keys {
		value, ok := line[key]
		if !ok || value == nil {
			continue
		}
		var str string
		switch v := value.(type) {
		case string:
			str = v
		case json.Number:
			str = v.String()
		case float64:
			str = decimal.NewFromFloat(v).String()
		default:
			str = fmt.Sprint(v)
		}
		if str = strings.TrimSpace(str); str != "" {
			return str
		}
	}
	return ""
}

func toDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported number %T", value)
	}
}
