package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	taxdomain "github.com/smallbiznis/smartinvoice/internal/tax/domain"
)

var lineItemKeys = map[string]struct{}{
	"name":              {},
	"unitPrice":         {},
	"quantity":          {},
	"taxCategory":       {},
	"exemptionCategory": {},
}

// DecodeLineItems converts a decoded JSON items array into line items.
// Prices and quantities may be JSON numbers or numeric strings.
func DecodeLineItems(raw any) ([]taxdomain.LineItem, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", taxdomain.ErrInvalidItems, err)
	}

	var rawItems []json.RawMessage
	if err := json.Unmarshal(encoded, &rawItems); err != nil {
		return nil, fmt.Errorf("%w: items must be an array", taxdomain.ErrInvalidItems)
	}

	items := make([]taxdomain.LineItem, 0, len(rawItems))
	for i, rawItem := range rawItems {
		var item taxdomain.LineItem
		if err := json.Unmarshal(rawItem, &item); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", taxdomain.ErrInvalidItems, i, err)
		}

		dec := json.NewDecoder(bytes.NewReader(rawItem))
		dec.UseNumber()
		var fields map[string]any
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", taxdomain.ErrInvalidItems, i, err)
		}
		for k, v := range fields {
			if _, known := lineItemKeys[k]; known {
				continue
			}
			if item.Extra == nil {
				item.Extra = make(map[string]any)
			}
			item.Extra[k] = v
		}
		items = append(items, item)
	}
	return items, nil
}
