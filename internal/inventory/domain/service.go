package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidID = errors.New("invalid_product_id")

type CreateProductRequest struct {
	SKU            string              `json:"sku"`
	Name           string              `json:"name"`
	Description    *string             `json:"description"`
	Category       *string             `json:"category"`
	UnitPrice      decimal.NullDecimal `json:"unit_price"`
	TaxCategory    string              `json:"tax_category"`
	TaxRate        decimal.NullDecimal `json:"tax_rate"`
	UnitOfMeasure  string              `json:"unit_of_measure"`
	InitialStock   int64               `json:"initial_stock"`
	ReorderLevel   *int64              `json:"reorder_level"`
	TrackInventory *bool               `json:"track_inventory"`
	Active         *bool               `json:"active"`
}

// UpdateProductRequest changes only the fields that are set. Stock is never
// changed here; use AdjustStock.
type UpdateProductRequest struct {
	SKU            *string             `json:"sku"`
	Name           *string             `json:"name"`
	Description    *string             `json:"description"`
	Category       *string             `json:"category"`
	UnitPrice      decimal.NullDecimal `json:"unit_price"`
	TaxCategory    *string             `json:"tax_category"`
	TaxRate        decimal.NullDecimal `json:"tax_rate"`
	UnitOfMeasure  *string             `json:"unit_of_measure"`
	ReorderLevel   *int64              `json:"reorder_level"`
	TrackInventory *bool               `json:"track_inventory"`
	Active         *bool               `json:"active"`
}

type MovementRequest struct {
	ProductID    string
	MovementType MovementType
	Quantity     int64
	// UnitPrice falls back to the product's price when not set.
	UnitPrice decimal.NullDecimal
	Reference string
	Notes     string
	Metadata  map[string]any
}

type ListResponse struct {
	Total    int64     `json:"total"`
	Products []Product `json:"products"`
}

// ItemOutcome reports what happened to one line of a sale or purchase.
type ItemOutcome struct {
	ProductID     string `json:"product_id,omitempty"`
	SKU           string `json:"sku,omitempty"`
	Quantity      int64  `json:"quantity"`
	Processed     bool   `json:"processed"`
	Reason        string `json:"reason,omitempty"`
	PreviousStock int64  `json:"previous_stock"`
	NewStock      int64  `json:"new_stock"`
}

type ReportType string

const (
	ReportSummary  ReportType = "summary"
	ReportDetail   ReportType = "detail"
	ReportValue    ReportType = "value"
	ReportMovement ReportType = "movement"
)

func (t ReportType) Valid() bool {
	switch t {
	case ReportSummary, ReportDetail, ReportValue, ReportMovement:
		return true
	}
	return false
}

type ReportRequest struct {
	Type         ReportType
	Category     string
	Active       *bool
	LowStockOnly bool
	ProductID    string
	MovementType MovementType
	StartAt      *time.Time
	EndAt        *time.Time
}

type CategoryTotal struct {
	Category   string          `json:"category"`
	Count      int64           `json:"count"`
	TotalStock int64           `json:"total_stock"`
	TotalValue decimal.Decimal `json:"total_value"`
}

type StockSummary struct {
	ActiveProducts   int64           `json:"active_products"`
	TotalProducts    int64           `json:"total_products"`
	LowStockProducts int64           `json:"low_stock_products"`
	TotalValue       decimal.Decimal `json:"total_inventory_value"`
	Categories       []CategoryTotal `json:"category_summary"`
}

type ProductValue struct {
	ID           string          `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Category     string          `json:"category,omitempty"`
	CurrentStock int64           `json:"current_stock"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Value        decimal.Decimal `json:"value"`
}

type Report struct {
	Type        ReportType      `json:"type"`
	GeneratedAt time.Time       `json:"generated_at"`
	Count       int             `json:"count"`
	Summary     *StockSummary   `json:"summary,omitempty"`
	Products    []Product       `json:"products,omitempty"`
	Values      []ProductValue  `json:"values,omitempty"`
	TotalValue  decimal.Decimal `json:"total_value"`
	Movements   []Movement      `json:"movements,omitempty"`
}

type Service interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error)
	UpdateProduct(ctx context.Context, id string, req UpdateProductRequest) (*Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	DeleteProduct(ctx context.Context, id string) error
	SearchProducts(ctx context.Context, filter ProductFilter) (ListResponse, error)

	// AdjustStock sets the absolute stock level and records the difference.
	AdjustStock(ctx context.Context, id string, quantity int64, reason string) (*Product, error)
	RecordMovement(ctx context.Context, req MovementRequest) (*Movement, error)
	MovementHistory(ctx context.Context, id string, limit, offset int) ([]Movement, error)
	LowStock(ctx context.Context, limit int) ([]Product, error)
	IsAvailable(ctx context.Context, id string, quantity int64) (bool, error)

	// CheckAvailability fails with a *ShortageError naming every short line.
	CheckAvailability(ctx context.Context, items []StockItem) error
	// ProcessSaleItems removes stock for every tracked line or for none.
	ProcessSaleItems(ctx context.Context, items []StockItem, reference string) ([]ItemOutcome, error)
	ProcessPurchaseItems(ctx context.Context, items []StockItem, reference string) ([]ItemOutcome, error)

	Report(ctx context.Context, req ReportRequest) (*Report, error)
}
