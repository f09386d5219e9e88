package service

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/smartinvoice/internal/catalog"
	taxdomain "github.com/smallbiznis/smartinvoice/internal/tax/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAggregator(cat catalog.Catalog) taxdomain.Aggregator {
	return NewAggregator(Params{Catalog: catalog.NewStaticHolder(cat)})
}

func item(price, qty, category, exemption string) taxdomain.LineItem {
	return taxdomain.LineItem{
		UnitPrice:         decimal.NewNullDecimal(dec(price)),
		Quantity:          decimal.NewNullDecimal(dec(qty)),
		TaxCategory:       category,
		ExemptionCategory: exemption,
	}
}

func TestCalculateInvoiceTax_MixedCategories(t *testing.T) {
	agg := newTestAggregator(catalog.Default())

	result, err := agg.CalculateInvoiceTax([]taxdomain.LineItem{
		item("100", "2", "VAT", ""),
		item("50", "1", "ZERO_RATED", ""),
		item("200", "1", "VAT", "DIPLOMATIC"),
	})
	require.NoError(t, err)

	assert.Equal(t, "450.00", result.TotalBeforeTax.StringFixed(2))
	assert.Equal(t, "32.00", result.TotalTax.StringFixed(2))
	assert.Equal(t, "482.00", result.TotalAmount.StringFixed(2))

	require.Len(t, result.TaxSummary, 2)
	assert.Equal(t, "32.00", result.TaxSummary["VAT"].Amount.StringFixed(2))
	assert.Equal(t, "Value Added Tax", result.TaxSummary["VAT"].Name)
	assert.True(t, result.TaxSummary["ZERO_RATED"].Amount.IsZero())
	assert.True(t, result.SummaryTotal().Equal(result.TotalTax))
}

func TestCalculateInvoiceTax_SumsPerItemRounding(t *testing.T) {
	agg := newTestAggregator(catalog.Default())

	// Each line rounds 0.015 to 0.02; totals must not be recomputed from the grand total.
	items := []taxdomain.LineItem{
		item("1", "1", "TOURISM_LEVY", ""),
		item("1", "1", "TOURISM_LEVY", ""),
		item("1", "1", "TOURISM_LEVY", ""),
	}
	result, err := agg.CalculateInvoiceTax(items)
	require.NoError(t, err)

	assert.Equal(t, "0.06", result.TotalTax.StringFixed(2))
	sum := decimal.Zero
	for _, it := range result.Items {
		sum = sum.Add(it.Breakdown.TaxAmount)
	}
	assert.True(t, sum.Equal(result.TotalTax))
	assert.True(t, result.TotalAmount.Equal(result.TotalBeforeTax.Add(result.TotalTax)))
}

func TestCalculateInvoiceTax_MissingFields(t *testing.T) {
	agg := newTestAggregator(catalog.Default())

	_, err := agg.CalculateInvoiceTax([]taxdomain.LineItem{
		item("10", "1", "VAT", ""),
		{Quantity: decimal.NewNullDecimal(dec("1"))},
	})
	assert.True(t, errors.Is(err, taxdomain.ErrMissingRequiredField))

	_, err = agg.CalculateInvoiceTax([]taxdomain.LineItem{
		{UnitPrice: decimal.NewNullDecimal(dec("1"))},
	})
	assert.True(t, errors.Is(err, taxdomain.ErrMissingRequiredField))
}

func TestCalculateInvoiceTax_Empty(t *testing.T) {
	agg := newTestAggregator(catalog.Default())

	result, err := agg.CalculateInvoiceTax(nil)
	require.NoError(t, err)
	assert.True(t, result.TotalAmount.IsZero())
	assert.Empty(t, result.TaxSummary)
}

func TestFormatForSubmission(t *testing.T) {
	agg := newTestAggregator(catalog.Default())

	first := item("100", "2", "VAT", "")
	first.Name = "Widget"
	first.Extra = map[string]any{"itemCode": "W-1"}

	result, err := agg.CalculateInvoiceTax([]taxdomain.LineItem{
		first,
		item("50", "1", "ZERO_RATED", ""),
		item("200", "1", "VAT", "DIPLOMATIC"),
	})
	require.NoError(t, err)

	payload := agg.FormatForSubmission(result)
	encoded, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded struct {
		Items []struct {
			Name              string  `json:"name"`
			ItemCode          string  `json:"itemCode"`
			Quantity          float64 `json:"quantity"`
			UnitPrice         float64 `json:"unitPrice"`
			TaxRate           float64 `json:"taxRate"`
			TaxCategory       string  `json:"taxCategory"`
			ExemptionCategory *string `json:"exemptionCategory"`
		} `json:"items"`
		TaxSummary map[string]map[string]any `json:"taxSummary"`
	}
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	require.Len(t, decoded.Items, 3)
	assert.Equal(t, "Widget", decoded.Items[0].Name)
	assert.Equal(t, "W-1", decoded.Items[0].ItemCode)
	assert.Equal(t, float64(16), decoded.Items[0].TaxRate)
	assert.Nil(t, decoded.Items[0].ExemptionCategory)
	assert.Equal(t, "Product", decoded.Items[1].Name)
	require.NotNil(t, decoded.Items[2].ExemptionCategory)
	assert.Equal(t, "DIPLOMATIC", *decoded.Items[2].ExemptionCategory)
	assert.Len(t, decoded.TaxSummary, 2)

	assert.Contains(t, string(encoded), `"totalTax":32.00`)
	assert.Contains(t, string(encoded), `"totalAmount":482.00`)
	assert.Contains(t, string(encoded), `"totalBeforeTax":450.00`)
}

func TestFormatForSubmission_DropsZeroSummary(t *testing.T) {
	cat := catalog.Default()
	cat.DropZeroSummary = true
	agg := newTestAggregator(cat)

	result, err := agg.CalculateInvoiceTax([]taxdomain.LineItem{
		item("100", "2", "VAT", ""),
		item("50", "1", "ZERO_RATED", ""),
	})
	require.NoError(t, err)

	summary := agg.FormatForSubmission(result)["taxSummary"].(map[string]any)
	assert.Len(t, summary, 1)
	assert.Contains(t, summary, "VAT")
}

func TestDecodeLineItems(t *testing.T) {
	raw := []any{
		map[string]any{"name": "A", "unitPrice": json.Number("19.99"), "quantity": "3", "taxCategory": "VAT", "sku": "A-1"},
		map[string]any{"unitPrice": 5, "quantity": 1},
	}

	items, err := DecodeLineItems(raw)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "A", items[0].Name)
	assert.True(t, items[0].UnitPrice.Valid)
	assert.Equal(t, "19.99", items[0].UnitPrice.Decimal.String())
	assert.Equal(t, "3", items[0].Quantity.Decimal.String())
	assert.Equal(t, "A-1", items[0].Extra["sku"])
	assert.Nil(t, items[1].Extra)

	_, err = DecodeLineItems(map[string]any{"unitPrice": 1})
	assert.True(t, errors.Is(err, taxdomain.ErrInvalidItems))

	items, err = DecodeLineItems([]any{map[string]any{"quantity": 1}})
	require.NoError(t, err)
	assert.False(t, items[0].UnitPrice.Valid)
}
