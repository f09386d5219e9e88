package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, product *Product) error
	Update(ctx context.Context, db *gorm.DB, product *Product) error
	// FindByID returns ErrNotFound for missing or deleted products. forUpdate
	// takes a row lock where the dialect supports one.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Product, error)
	FindBySKU(ctx context.Context, db *gorm.DB, sku string, forUpdate bool) (*Product, error)
	// SKUTaken includes soft-deleted rows, which still hold the unique index.
	SKUTaken(ctx context.Context, db *gorm.DB, sku string, exceptID snowflake.ID) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	List(ctx context.Context, db *gorm.DB, filter ProductFilter) ([]Product, int64, error)
	SetStock(ctx context.Context, db *gorm.DB, id snowflake.ID, stock int64, at time.Time) error
	InsertMovement(ctx context.Context, db *gorm.DB, movement *Movement) error
	ListMovements(ctx context.Context, db *gorm.DB, filter MovementFilter) ([]Movement, error)
}
