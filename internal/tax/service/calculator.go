package service

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/smartinvoice/internal/catalog"
	taxdomain "github.com/smallbiznis/smartinvoice/internal/tax/domain"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Catalog *catalog.Holder
}

type calculator struct {
	catalog *catalog.Holder
}

func NewCalculator(p Params) taxdomain.Calculator {
	return &calculator{catalog: p.Catalog}
}

func (c *calculator) CalculateItemTax(unitPrice, quantity decimal.Decimal, taxCategory, exemptionCategory string) (taxdomain.Breakdown, error) {
	return calculate(c.catalog.Get(), unitPrice, quantity, taxCategory, exemptionCategory)
}

func (c *calculator) IsZeroRated(taxCategory string) bool {
	cat, ok := c.catalog.Get().TaxCategory(taxCategory)
	return ok && cat.Code == taxdomain.TaxCategoryZeroRated
}

func (c *calculator) IsExempt(taxCategory string) bool {
	cat, ok := c.catalog.Get().TaxCategory(taxCategory)
	return ok && cat.Code == taxdomain.TaxCategoryExempt
}

func (c *calculator) Categories() []catalog.TaxCategory {
	return c.catalog.Get().SortedTaxCategories()
}

func (c *calculator) Exemptions() []catalog.ExemptionCategory {
	return c.catalog.Get().SortedExemptions()
}

// calculate is the single source of truth for line tax. Rounding happens only on
// the tax amount, half away from zero, so the totals stay exact sums.
func calculate(cat catalog.Catalog, unitPrice, quantity decimal.Decimal, taxCategory, exemptionCategory string) (taxdomain.Breakdown, error) {
	if unitPrice.IsNegative() || quantity.IsNegative() {
		return taxdomain.Breakdown{}, taxdomain.ErrNegativeAmount
	}

	if taxCategory == "" {
		taxCategory = cat.DefaultTaxCategory
	}
	category, ok := cat.TaxCategory(taxCategory)
	if !ok {
		return taxdomain.Breakdown{}, fmt.Errorf("%w: %s", taxdomain.ErrInvalidTaxCategory, taxCategory)
	}

	rate := category.DefaultRate
	exemptionCode := ""
	if exemptionCategory != "" {
		exemption, ok := cat.Exemption(exemptionCategory)
		if !ok {
			return taxdomain.Breakdown{}, fmt.Errorf("%w: %s", taxdomain.ErrInvalidExemptionCategory, exemptionCategory)
		}
		exemptionCode = exemption.Code
		rate = decimal.Zero
	}

	totalBeforeTax := unitPrice.Mul(quantity)
	taxAmount := decimal.Zero
	if rate.IsPositive() {
		// Shift divides by 100 exactly; Div would truncate to DivisionPrecision first.
		taxAmount = totalBeforeTax.Mul(rate).Shift(-2)
	}
	taxAmount = taxAmount.Round(cat.Precision)

	return taxdomain.Breakdown{
		TotalBeforeTax:    totalBeforeTax,
		TaxAmount:         taxAmount,
		TaxRate:           rate,
		TotalAmount:       totalBeforeTax.Add(taxAmount),
		TaxCategory:       category.Code,
		ExemptionCategory: exemptionCode,
	}, nil
}
