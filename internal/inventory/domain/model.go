package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MaxSKULength         = 64
	DefaultUnitOfMeasure = "EACH"
	DefaultReorderLevel  = 10
)

// MovementType classifies a change of stock. Quantities are signed: positive
// adds stock, negative removes it.
type MovementType string

const (
	MovementInitial    MovementType = "INITIAL"
	MovementSale       MovementType = "SALE"
	MovementPurchase   MovementType = "PURCHASE"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementReturn     MovementType = "RETURN"
)

func (m MovementType) Valid() bool {
	switch m {
	case MovementInitial, MovementSale, MovementPurchase, MovementAdjustment, MovementReturn:
		return true
	}
	return false
}

func ParseMovementType(value string) (MovementType, error) {
	m := MovementType(strings.ToUpper(strings.TrimSpace(value)))
	if !m.Valid() {
		return "", ErrInvalidMovementType
	}
	return m, nil
}

type Product struct {
	ID             snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	SKU            string          `gorm:"column:sku;type:varchar(64);not null;uniqueIndex" json:"sku"`
	Name           string          `gorm:"type:varchar(255);not null;index" json:"name"`
	Description    *string         `gorm:"type:text" json:"description,omitempty"`
	Category       *string         `gorm:"type:varchar(255);index" json:"category,omitempty"`
	UnitPrice      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	TaxCategory    string          `gorm:"type:varchar(50);not null;index" json:"tax_category"`
	TaxRate        decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"tax_rate"`
	UnitOfMeasure  string          `gorm:"type:varchar(20);not null" json:"unit_of_measure"`
	CurrentStock   int64           `gorm:"not null" json:"current_stock"`
	ReorderLevel   int64           `gorm:"not null" json:"reorder_level"`
	TrackInventory bool            `gorm:"not null" json:"track_inventory"`
	Active         bool            `gorm:"not null;index" json:"active"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Product) TableName() string { return "inventory_products" }

// HasStock reports whether quantity can be taken. Untracked products always can.
func (p *Product) HasStock(quantity int64) bool {
	if !p.TrackInventory {
		return true
	}
	return p.CurrentStock >= quantity
}

// IsLowStock is true for tracked, active products at or below their reorder level.
func (p *Product) IsLowStock() bool {
	return p.TrackInventory && p.Active && p.CurrentStock <= p.ReorderLevel
}

func (p *Product) StockValue() decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(p.CurrentStock))
}

// Movement is one stock change. Movements are never updated.
type Movement struct {
	ID           snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ProductID    snowflake.ID      `gorm:"column:product_id;not null;index" json:"product_id"`
	Reference    string            `gorm:"type:varchar(255);not null;index" json:"reference"`
	MovementType MovementType      `gorm:"type:varchar(20);not null;index" json:"movement_type"`
	Quantity     int64             `gorm:"not null" json:"quantity"`
	UnitPrice    decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	StockAfter   int64             `gorm:"not null" json:"stock_after"`
	Metadata     datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	Notes        *string           `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;index" json:"created_at"`
}

func (Movement) TableName() string { return "inventory_movements" }

func (m Movement) TotalValue() decimal.Decimal {
	return m.UnitPrice.Mul(decimal.NewFromInt(m.Quantity).Abs())
}

type ProductFilter struct {
	Query       string
	Category    string
	TaxCategory string
	Active      *bool
	MinStock    *int64
	MaxStock    *int64
	LowStock    bool
	Limit       int
	Offset      int
}

type MovementFilter struct {
	ProductID    snowflake.ID
	MovementType MovementType
	Reference    string
	StartAt      *time.Time
	EndAt        *time.Time
	Limit        int
	Offset       int
}
