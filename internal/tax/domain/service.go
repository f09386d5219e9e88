package domain

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/smartinvoice/internal/catalog"
)

// Calculator computes the tax of a single line. It performs no I/O.
type Calculator interface {
	CalculateItemTax(unitPrice, quantity decimal.Decimal, taxCategory, exemptionCategory string) (Breakdown, error)
	IsZeroRated(taxCategory string) bool
	IsExempt(taxCategory string) bool
	Categories() []catalog.TaxCategory
	Exemptions() []catalog.ExemptionCategory
}

// Aggregator composes the calculator over a whole invoice.
type Aggregator interface {
	CalculateInvoiceTax(items []LineItem) (*InvoiceResult, error)
	FormatForSubmission(result *InvoiceResult) map[string]any
}
