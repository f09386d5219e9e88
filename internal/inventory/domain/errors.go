package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("product_not_found")
	ErrDuplicateSKU        = errors.New("duplicate_sku")
	ErrInvalidSKU          = errors.New("invalid_sku")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidUnitPrice    = errors.New("invalid_unit_price")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidItems        = errors.New("invalid_stock_items")
	ErrInvalidTaxCategory  = errors.New("invalid_tax_category")
	ErrInvalidTaxRate      = errors.New("invalid_tax_rate")
	ErrInvalidMovementType = errors.New("invalid_movement_type")
	ErrInvalidReportType   = errors.New("invalid_report_type")
	ErrInsufficientStock   = errors.New("insufficient_stock")
)

// Shortage is one line that cannot be covered by the stock on hand.
type Shortage struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Requested int64  `json:"requested_quantity"`
	Available int64  `json:"available_quantity"`
}

// ShortageError lists every short line of a sale, not only the first.
type ShortageError struct {
	Items []Shortage
}

func (e *ShortageError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		parts = append(parts, fmt.Sprintf("%s requested %d available %d", item.SKU, item.Requested, item.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *ShortageError) Is(target error) bool {
	return target == ErrInsufficientStock
}
