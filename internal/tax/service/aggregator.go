package service

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/smartinvoice/internal/catalog"
	taxdomain "github.com/smallbiznis/smartinvoice/internal/tax/domain"
)

const defaultItemName = "Product"

type aggregator struct {
	catalog *catalog.Holder
}

func NewAggregator(p Params) taxdomain.Aggregator {
	return &aggregator{catalog: p.Catalog}
}

func (a *aggregator) CalculateInvoiceTax(items []taxdomain.LineItem) (*taxdomain.InvoiceResult, error) {
	// One snapshot for the whole invoice, even if the catalog reloads mid-call.
	cat := a.catalog.Get()

	result := &taxdomain.InvoiceResult{
		Items:          make([]taxdomain.CalculatedItem, 0, len(items)),
		TotalBeforeTax: decimal.Zero,
		TotalTax:       decimal.Zero,
		TaxSummary:     make(map[string]taxdomain.CategorySummary),
		Precision:      cat.Precision,
	}

	for _, item := range items {
		if !item.UnitPrice.Valid || !item.Quantity.Valid {
			return nil, taxdomain.ErrMissingRequiredField
		}

		breakdown, err := calculate(cat, item.UnitPrice.Decimal, item.Quantity.Decimal, item.TaxCategory, item.ExemptionCategory)
		if err != nil {
			return nil, err
		}

		result.TotalBeforeTax = result.TotalBeforeTax.Add(breakdown.TotalBeforeTax)
		result.TotalTax = result.TotalTax.Add(breakdown.TaxAmount)

		summary, ok := result.TaxSummary[breakdown.TaxCategory]
		if !ok {
			category, _ := cat.TaxCategory(breakdown.TaxCategory)
			summary = taxdomain.CategorySummary{
				Name:   category.Name,
				Rate:   breakdown.TaxRate,
				Amount: decimal.Zero,
			}
		}
		summary.Amount = summary.Amount.Add(breakdown.TaxAmount)
		result.TaxSummary[breakdown.TaxCategory] = summary

		result.Items = append(result.Items, taxdomain.CalculatedItem{Item: item, Breakdown: breakdown})
	}

	result.TotalAmount = result.TotalBeforeTax.Add(result.TotalTax)
	return result, nil
}

// FormatForSubmission shapes a result into the authority's wire format.
// Amounts are emitted as JSON numbers with at least the configured precision.
func (a *aggregator) FormatForSubmission(result *taxdomain.InvoiceResult) map[string]any {
	if result == nil {
		return map[string]any{}
	}
	cat := a.catalog.Get()
	precision := result.Precision

	items := make([]any, 0, len(result.Items))
	for _, calculated := range result.Items {
		out := make(map[string]any, len(calculated.Item.Extra)+8)
		for k, v := range calculated.Item.Extra {
			out[k] = v
		}

		name := calculated.Item.Name
		if name == "" {
			name = defaultItemName
		}
		var exemption any
		if calculated.Breakdown.ExemptionCategory != "" {
			exemption = calculated.Breakdown.ExemptionCategory
		}

		out["name"] = name
		out["quantity"] = number(calculated.Item.Quantity.Decimal)
		out["unitPrice"] = number(calculated.Item.UnitPrice.Decimal)
		out["totalAmount"] = amount(calculated.Breakdown.TotalAmount, precision)
		out["taxRate"] = number(calculated.Breakdown.TaxRate)
		out["taxAmount"] = amount(calculated.Breakdown.TaxAmount, precision)
		out["taxCategory"] = calculated.Breakdown.TaxCategory
		out["exemptionCategory"] = exemption
		items = append(items, out)
	}

	summary := make(map[string]any, len(result.TaxSummary))
	for code, s := range result.TaxSummary {
		if cat.DropZeroSummary && s.Amount.IsZero() {
			continue
		}
		summary[code] = map[string]any{
			"name":       s.Name,
			"tax_rate":   number(s.Rate),
			"tax_amount": amount(s.Amount, precision),
		}
	}

	return map[string]any{
		"items":          items,
		"totalBeforeTax": amount(result.TotalBeforeTax, precision),
		"totalAmount":    amount(result.TotalAmount, precision),
		"totalTax":       amount(result.TotalTax, precision),
		"taxSummary":     summary,
	}
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// amount pads to the precision but never drops digits, so a formatted total
// still equals the sum of its formatted parts.
func amount(d decimal.Decimal, precision int32) json.Number {
	if !d.Equal(d.Round(precision)) {
		return json.Number(d.String())
	}
	return json.Number(d.StringFixed(precision))
}
