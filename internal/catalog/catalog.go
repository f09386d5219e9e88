package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyTaxCategories    = errors.New("catalog: tax categories cannot be empty")
	ErrNegativeRate          = errors.New("catalog: tax category rate cannot be negative")
	ErrUnknownDefault        = errors.New("catalog: default code is not in its catalog")
	ErrInvalidPrecision      = errors.New("catalog: tax rounding precision must be between 0 and 8")
	ErrEmptyInvoiceTypes     = errors.New("catalog: invoice types cannot be empty")
	ErrEmptyTransactionTypes = errors.New("catalog: transaction types cannot be empty")
)

// TaxCategory is a static classification that determines the nominal tax rate.
// Code is the lookup key used by line items; ShortCode is the authority's own code.
type TaxCategory struct {
	Code        string          `json:"code"`
	ShortCode   string          `json:"short_code"`
	Name        string          `json:"name"`
	DefaultRate decimal.Decimal `json:"rate"`
	AppliesTo   string          `json:"applies_to"`
}

// ExemptionCategory zeroes the effective rate of any line item it is attached to.
type ExemptionCategory struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Catalog is the immutable configuration consumed by the tax engine and the submitter.
// Callers receive it by value and must treat the maps as read-only.
type Catalog struct {
	TaxCategories    map[string]TaxCategory
	Exemptions       map[string]ExemptionCategory
	InvoiceTypes     map[string]string
	TransactionTypes map[string]string

	DefaultTaxCategory     string
	DefaultInvoiceType     string
	DefaultTransactionType string

	Precision        int32
	AutoCalculateTax bool
	DropZeroSummary  bool
}

func (c Catalog) TaxCategory(code string) (TaxCategory, bool) {
	cat, ok := c.TaxCategories[normalizeCode(code)]
	return cat, ok
}

func (c Catalog) Exemption(code string) (ExemptionCategory, bool) {
	ex, ok := c.Exemptions[normalizeCode(code)]
	return ex, ok
}

func (c Catalog) HasInvoiceType(code string) bool {
	_, ok := c.InvoiceTypes[normalizeCode(code)]
	return ok
}

func (c Catalog) HasTransactionType(code string) bool {
	_, ok := c.TransactionTypes[normalizeCode(code)]
	return ok
}

// SortedTaxCategories returns the categories ordered by code.
func (c Catalog) SortedTaxCategories() []TaxCategory {
	out := make([]TaxCategory, 0, len(c.TaxCategories))
	for _, cat := range c.TaxCategories {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// SortedExemptions returns the exemption categories ordered by code.
func (c Catalog) SortedExemptions() []ExemptionCategory {
	out := make([]ExemptionCategory, 0, len(c.Exemptions))
	for _, ex := range c.Exemptions {
		out = append(out, ex)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (c Catalog) Validate() error {
	if len(c.TaxCategories) == 0 {
		return ErrEmptyTaxCategories
	}
	for code, cat := range c.TaxCategories {
		if cat.DefaultRate.IsNegative() {
			return fmt.Errorf("%w: %s", ErrNegativeRate, code)
		}
	}
	if len(c.InvoiceTypes) == 0 {
		return ErrEmptyInvoiceTypes
	}
	if len(c.TransactionTypes) == 0 {
		return ErrEmptyTransactionTypes
	}
	if _, ok := c.TaxCategory(c.DefaultTaxCategory); !ok {
		return fmt.Errorf("%w: tax category %q", ErrUnknownDefault, c.DefaultTaxCategory)
	}
	if !c.HasInvoiceType(c.DefaultInvoiceType) {
		return fmt.Errorf("%w: invoice type %q", ErrUnknownDefault, c.DefaultInvoiceType)
	}
	if !c.HasTransactionType(c.DefaultTransactionType) {
		return fmt.Errorf("%w: transaction type %q", ErrUnknownDefault, c.DefaultTransactionType)
	}
	if c.Precision < 0 || c.Precision > 8 {
		return ErrInvalidPrecision
	}
	return nil
}

// Default mirrors the VSDC rates in force when the integration was written.
func Default() Catalog {
	return Catalog{
		TaxCategories: map[string]TaxCategory{
			"VAT":          {Code: "VAT", ShortCode: "VAT", Name: "Value Added Tax", DefaultRate: decimal.RequireFromString("16"), AppliesTo: "goods_and_services"},
			"TOURISM_LEVY": {Code: "TOURISM_LEVY", ShortCode: "TL", Name: "Tourism Levy", DefaultRate: decimal.RequireFromString("1.5"), AppliesTo: "tourism_services"},
			"EXCISE":       {Code: "EXCISE", ShortCode: "EXCISE", Name: "Excise Duty", DefaultRate: decimal.RequireFromString("10"), AppliesTo: "excise_goods"},
			"ZERO_RATED":   {Code: "ZERO_RATED", ShortCode: "ZR", Name: "Zero Rated", DefaultRate: decimal.Zero, AppliesTo: "zero_rated_goods"},
			"EXEMPT":       {Code: "EXEMPT", ShortCode: "EXEMPT", Name: "Tax Exempt", DefaultRate: decimal.Zero, AppliesTo: "exempt_goods"},
		},
		Exemptions: map[string]ExemptionCategory{
			"DIPLOMATIC": {Code: "DIPLOMATIC", Name: "Diplomatic Exemption"},
			"GOVERNMENT": {Code: "GOVERNMENT", Name: "Government Institution"},
			"HEALTHCARE": {Code: "HEALTHCARE", Name: "Healthcare Related"},
			"EDUCATION":  {Code: "EDUCATION", Name: "Educational Institution"},
			"NGO":        {Code: "NGO", Name: "Non-Governmental Organization"},
			"OTHER":      {Code: "OTHER", Name: "Other Exemption"},
		},
		InvoiceTypes: map[string]string{
			"NORMAL":   "Normal Invoice",
			"COPY":     "Copy of Invoice",
			"TRAINING": "Training Invoice",
			"PROFORMA": "Proforma Invoice",
		},
		TransactionTypes: map[string]string{
			"SALE":        "Sale",
			"CREDIT_NOTE": "Credit Note",
			"DEBIT_NOTE":  "Debit Note",
			"ADJUSTMENT":  "Adjustment",
			"REFUND":      "Refund",
		},
		DefaultTaxCategory:     "VAT",
		DefaultInvoiceType:     "NORMAL",
		DefaultTransactionType: "SALE",
		Precision:              2,
		AutoCalculateTax:       true,
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
