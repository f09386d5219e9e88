package domain

import (
	"github.com/shopspring/decimal"
)

// Tax category codes that carry special meaning for reporting.
// The rates themselves come from the catalog.
const (
	TaxCategoryZeroRated = "ZERO_RATED"
	TaxCategoryExempt    = "EXEMPT"
)

// LineItem is one invoice line as submitted by the caller.
// UnitPrice and Quantity are nullable so a missing field can be told apart from zero.
type LineItem struct {
	Name              string              `json:"name"`
	UnitPrice         decimal.NullDecimal `json:"unitPrice"`
	Quantity          decimal.NullDecimal `json:"quantity"`
	TaxCategory       string              `json:"taxCategory"`
	ExemptionCategory string              `json:"exemptionCategory"`

	// Extra holds any other fields of the line so they survive formatting.
	Extra map[string]any `json:"-"`
}

// Breakdown is the tax computed for a single line.
// TotalAmount is always TotalBeforeTax + TaxAmount.
type Breakdown struct {
	TotalBeforeTax    decimal.Decimal `json:"total_before_tax"`
	TaxAmount         decimal.Decimal `json:"tax_amount"`
	TaxRate           decimal.Decimal `json:"tax_rate"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	TaxCategory       string          `json:"tax_category"`
	ExemptionCategory string          `json:"exemption_category,omitempty"`
}

type CalculatedItem struct {
	Item      LineItem
	Breakdown Breakdown
}

// CategorySummary accumulates the tax collected under one effective category.
type CategorySummary struct {
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"tax_rate"`
	Amount decimal.Decimal `json:"tax_amount"`
}

type InvoiceResult struct {
	Items          []CalculatedItem
	TotalBeforeTax decimal.Decimal
	TotalTax       decimal.Decimal
	TotalAmount    decimal.Decimal
	TaxSummary     map[string]CategorySummary

	// Precision is the rounding precision the result was computed with.
	Precision int32
}

// SummaryTotal sums the per-category amounts. It equals TotalTax for any result
// produced by the aggregator.
func (r InvoiceResult) SummaryTotal() decimal.Decimal {
	total := decimal.Zero
	for _, s := range r.TaxSummary {
		total = total.Add(s.Amount)
	}
	return total
}
