package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/smartinvoice/internal/tax/domain"
	taxservice "github.com/smallbiznis/smartinvoice/internal/tax/service"
)

type taxItemsRequest struct {
	Items any `json:"items"`
}

type calculatedItemView struct {
	Name              string      `json:"name"`
	UnitPrice         json.Number `json:"unitPrice"`
	Quantity          json.Number `json:"quantity"`
	TotalBeforeTax    json.Number `json:"total_before_tax"`
	TaxRate           json.Number `json:"tax_rate"`
	TaxAmount         json.Number `json:"tax_amount"`
	TotalAmount       json.Number `json:"total_amount"`
	TaxCategory       string      `json:"tax_category"`
	ExemptionCategory string      `json:"exemption_category,omitempty"`
}

type categorySummaryView struct {
	Name   string      `json:"name"`
	Rate   json.Number `json:"tax_rate"`
	Amount json.Number `json:"tax_amount"`
}

type calculationView struct {
	Items          []calculatedItemView           `json:"items"`
	TotalBeforeTax json.Number                    `json:"total_before_tax"`
	TotalTax       json.Number                    `json:"total_tax"`
	TotalAmount    json.Number                    `json:"total_amount"`
	TaxSummary     map[string]categorySummaryView `json:"tax_summary"`
}

func newCalculationView(result *taxdomain.InvoiceResult) calculationView {
	// Pads to the precision without dropping digits an unrounded base carries.
	fixed := func(d decimal.Decimal) json.Number {
		if !d.Equal(d.Round(result.Precision)) {
			return json.Number(d.String())
		}
		return json.Number(d.StringFixed(result.Precision))
	}
	plain := func(d decimal.Decimal) json.Number {
		return json.Number(d.String())
	}

	view := calculationView{
		Items:          make([]calculatedItemView, 0, len(result.Items)),
		TotalBeforeTax: fixed(result.TotalBeforeTax),
		TotalTax:       fixed(result.TotalTax),
		TotalAmount:    fixed(result.TotalAmount),
		TaxSummary:     make(map[string]categorySummaryView, len(result.TaxSummary)),
	}
	for _, item := range result.Items {
		view.Items = append(view.Items, calculatedItemView{
			Name:              item.Item.Name,
			UnitPrice:         plain(item.Item.UnitPrice.Decimal),
			Quantity:          plain(item.Item.Quantity.Decimal),
			TotalBeforeTax:    fixed(item.Breakdown.TotalBeforeTax),
			TaxRate:           plain(item.Breakdown.TaxRate),
			TaxAmount:         fixed(item.Breakdown.TaxAmount),
			TotalAmount:       fixed(item.Breakdown.TotalAmount),
			TaxCategory:       item.Breakdown.TaxCategory,
			ExemptionCategory: item.Breakdown.ExemptionCategory,
		})
	}
	for code, summary := range result.TaxSummary {
		view.TaxSummary[code] = categorySummaryView{
			Name:   summary.Name,
			Rate:   plain(summary.Rate),
			Amount: fixed(summary.Amount),
		}
	}
	return view
}

func (s *Server) ListTaxCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"categories": s.calculator.Categories(),
	})
}

func (s *Server) ListTaxExemptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"exemptions": s.calculator.Exemptions(),
	})
}

func (s *Server) CalculateTax(c *gin.Context) {
	result, ok := s.calculateRequestItems(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"calculation": newCalculationView(result),
	})
}

func (s *Server) FormatTax(c *gin.Context) {
	result, ok := s.calculateRequestItems(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"formatted": s.aggregator.FormatForSubmission(result),
	})
}

func (s *Server) calculateRequestItems(c *gin.Context) (*taxdomain.InvoiceResult, bool) {
	var req taxItemsRequest
	if err := decodeJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return nil, false
	}
	if req.Items == nil {
		AbortWithError(c, newValidationError("items", "required", "items is required"))
		return nil, false
	}

	items, err := taxservice.DecodeLineItems(req.Items)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	result, err := s.aggregator.CalculateInvoiceTax(items)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	return result, true
}
