package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/smartinvoice/internal/inventory/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	if product == nil {
		return nil
	}
	return db.WithContext(ctx).Create(product).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	if product == nil {
		return nil
	}
	result := db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("id = ?", product.ID).
		Select("sku", "name", "description", "category", "unit_price", "tax_category",
			"tax_rate", "unit_of_measure", "reorder_level", "track_inventory", "active", "updated_at").
		Updates(product)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.Product, error) {
	return r.find(ctx, db, forUpdate, "id = ?", id)
}

func (r *repo) FindBySKU(ctx context.Context, db *gorm.DB, sku string, forUpdate bool) (*domain.Product, error) {
	return r.find(ctx, db, forUpdate, "sku = ?", strings.TrimSpace(sku))
}

func (r *repo) find(ctx context.Context, db *gorm.DB, forUpdate bool, query string, arg any) (*domain.Product, error) {
	stmt := db.WithContext(ctx)
	if forUpdate {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var product domain.Product
	err := stmt.Where(query, arg).Take(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repo) SKUTaken(ctx context.Context, db *gorm.DB, sku string, exceptID snowflake.ID) (bool, error) {
	var count int64
	stmt := db.WithContext(ctx).Unscoped().
		Model(&domain.Product{}).
		Where("sku = ?", sku)
	if exceptID != 0 {
		stmt = stmt.Where("id <> ?", exceptID)
	}
	if err := stmt.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	result := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Product{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ProductFilter) ([]domain.Product, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Product{})

	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		stmt = stmt.Where("(LOWER(sku) LIKE ? OR LOWER(name) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?)", like, like, like)
	}
	if filter.Category != "" {
		stmt = stmt.Where("category = ?", filter.Category)
	}
	if filter.TaxCategory != "" {
		stmt = stmt.Where("tax_category = ?", filter.TaxCategory)
	}
	if filter.Active != nil {
		stmt = stmt.Where("active = ?", *filter.Active)
	}
	if filter.MinStock != nil {
		stmt = stmt.Where("current_stock >= ?", *filter.MinStock)
	}
	if filter.MaxStock != nil {
		stmt = stmt.Where("current_stock <= ?", *filter.MaxStock)
	}
	if filter.LowStock {
		stmt = stmt.Where("track_inventory = ? AND active = ? AND current_stock <= reorder_level", true, true)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.LowStock {
		// Emptiest shelves first, relative to their reorder level.
		stmt = stmt.Order("current_stock - reorder_level asc, name asc")
	} else {
		stmt = stmt.Order("name asc, id asc")
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		stmt = stmt.Offset(filter.Offset)
	}

	var products []domain.Product
	if err := stmt.Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *repo) SetStock(ctx context.Context, db *gorm.DB, id snowflake.ID, stock int64, at time.Time) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE inventory_products SET current_stock = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		stock,
		at.UTC(),
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) InsertMovement(ctx context.Context, db *gorm.DB, movement *domain.Movement) error {
	if movement == nil {
		return nil
	}
	return db.WithContext(ctx).Create(movement).Error
}

func (r *repo) ListMovements(ctx context.Context, db *gorm.DB, filter domain.MovementFilter) ([]domain.Movement, error) {
	stmt := db.WithContext(ctx).Model(&domain.Movement{})

	if filter.ProductID != 0 {
		stmt = stmt.Where("product_id = ?", filter.ProductID)
	}
	if filter.MovementType != "" {
		stmt = stmt.Where("movement_type = ?", filter.MovementType)
	}
	if filter.Reference != "" {
		stmt = stmt.Where("reference = ?", filter.Reference)
	}
	if filter.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", filter.EndAt.UTC())
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		stmt = stmt.Offset(filter.Offset)
	}

	var movements []domain.Movement
	if err := stmt.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
