package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/smartinvoice/internal/catalog"
	"github.com/smallbiznis/smartinvoice/internal/clock"
	"github.com/smallbiznis/smartinvoice/internal/inventory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize      = 50
	maxPageSize          = 250
	defaultHistoryLimit  = 100
	maxHistoryLimit      = 500
	initialStockNote     = "Initial stock setup"
	uncategorized        = "uncategorized"
	reasonNotFound       = "product not found"
	reasonNotTracked     = "inventory tracking disabled"
	defaultAdjustmentMsg = "Stock adjustment"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Catalog *catalog.Holder
	Repo    domain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	catalog *catalog.Holder
	repo    domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("inventory.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		catalog: p.Catalog,
		repo:    p.Repo,
	}
}

func (s *Service) CreateProduct(ctx context.Context, req domain.CreateProductRequest) (*domain.Product, error) {
	sku, err := normalizeSKU(req.SKU)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if !req.UnitPrice.Valid || req.UnitPrice.Decimal.IsNegative() {
		return nil, domain.ErrInvalidUnitPrice
	}
	if req.InitialStock < 0 {
		return nil, domain.ErrInvalidQuantity
	}

	taxCategory, taxRate, err := s.resolveTax(req.TaxCategory, req.TaxRate)
	if err != nil {
		return nil, err
	}

	reorderLevel := int64(domain.DefaultReorderLevel)
	if req.ReorderLevel != nil {
		if *req.ReorderLevel < 0 {
			return nil, domain.ErrInvalidQuantity
		}
		reorderLevel = *req.ReorderLevel
	}

	unit := strings.ToUpper(strings.TrimSpace(req.UnitOfMeasure))
	if unit == "" {
		unit = domain.DefaultUnitOfMeasure
	}

	now := s.clock.Now().UTC()
	product := &domain.Product{
		ID:             s.genID.Generate(),
		SKU:            sku,
		Name:           name,
		Description:    optional(req.Description),
		Category:       optional(req.Category),
		UnitPrice:      req.UnitPrice.Decimal,
		TaxCategory:    taxCategory,
		TaxRate:        taxRate,
		UnitOfMeasure:  unit,
		CurrentStock:   req.InitialStock,
		ReorderLevel:   reorderLevel,
		TrackInventory: boolOr(req.TrackInventory, true),
		Active:         boolOr(req.Active, true),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := s.repo.SKUTaken(ctx, tx, sku, 0)
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrDuplicateSKU
		}
		if err := s.repo.Create(ctx, tx, product); err != nil {
			return err
		}
		if product.CurrentStock > 0 {
			movement := s.newMovement(product, domain.MovementInitial, product.CurrentStock, product.UnitPrice, string(domain.MovementInitial))
			movement.StockAfter = product.CurrentStock
			note := initialStockNote
			movement.Notes = &note
			movement.Metadata = datatypes.JSONMap{"reference_type": "SYSTEM"}
			return s.repo.InsertMovement(ctx, tx, movement)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("product created",
		zap.String("product_id", product.ID.String()),
		zap.String("sku", product.SKU),
		zap.Int64("initial_stock", product.CurrentStock),
	)
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.UpdateProductRequest) (*domain.Product, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var product *domain.Product
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		product, err = s.repo.FindByID(ctx, tx, productID, true)
		if err != nil {
			return err
		}

		if req.SKU != nil {
			sku, err := normalizeSKU(*req.SKU)
			if err != nil {
				return err
			}
			if sku != product.SKU {
				taken, err := s.repo.SKUTaken(ctx, tx, sku, product.ID)
				if err != nil {
					return err
				}
				if taken {
					return domain.ErrDuplicateSKU
				}
				product.SKU = sku
			}
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			product.Name = name
		}
		if req.Description != nil {
			product.Description = optional(req.Description)
		}
		if req.Category != nil {
			product.Category = optional(req.Category)
		}
		if req.UnitPrice.Valid {
			if req.UnitPrice.Decimal.IsNegative() {
				return domain.ErrInvalidUnitPrice
			}
			product.UnitPrice = req.UnitPrice.Decimal
		}
		if req.TaxCategory != nil {
			// A new category brings its catalog rate unless a rate is given too.
			category, rate, err := s.resolveTax(*req.TaxCategory, req.TaxRate)
			if err != nil {
				return err
			}
			product.TaxCategory = category
			product.TaxRate = rate
		} else if req.TaxRate.Valid {
			if req.TaxRate.Decimal.IsNegative() {
				return domain.ErrInvalidTaxRate
			}
			product.TaxRate = req.TaxRate.Decimal
		}
		if req.UnitOfMeasure != nil {
			if unit := strings.ToUpper(strings.TrimSpace(*req.UnitOfMeasure)); unit != "" {
				product.UnitOfMeasure = unit
			}
		}
		if req.ReorderLevel != nil {
			if *req.ReorderLevel < 0 {
				return domain.ErrInvalidQuantity
			}
			product.ReorderLevel = *req.ReorderLevel
		}
		if req.TrackInventory != nil {
			product.TrackInventory = *req.TrackInventory
		}
		if req.Active != nil {
			product.Active = *req.Active
		}

		product.UpdatedAt = s.clock.Now().UTC()
		return s.repo.Update(ctx, tx, product)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, s.db, productID, false)
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	productID, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, s.db, productID); err != nil {
		return err
	}
	s.log.Info("product deleted", zap.String("product_id", productID.String()))
	return nil
}

func (s *Service) SearchProducts(ctx context.Context, filter domain.ProductFilter) (domain.ListResponse, error) {
	filter.Limit = clamp(filter.Limit, defaultPageSize, maxPageSize)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.TaxCategory = strings.ToUpper(strings.TrimSpace(filter.TaxCategory))
	filter.Category = strings.TrimSpace(filter.Category)

	products, total, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return domain.ListResponse{Total: total, Products: products}, nil
}

func (s *Service) AdjustStock(ctx context.Context, id string, quantity int64, reason string) (*domain.Product, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultAdjustmentMsg
	}

	var product *domain.Product
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		product, err = s.repo.FindByID(ctx, tx, productID, true)
		if err != nil {
			return err
		}
		delta := quantity - product.CurrentStock
		if delta == 0 {
			return nil
		}

		movement := s.newMovement(product, domain.MovementAdjustment, delta, product.UnitPrice, string(domain.MovementAdjustment))
		movement.StockAfter = quantity
		movement.Notes = &reason
		movement.Metadata = datatypes.JSONMap{"reference_type": "ADJUSTMENT", "reason": reason}
		if err := s.repo.InsertMovement(ctx, tx, movement); err != nil {
			return err
		}
		if err := s.repo.SetStock(ctx, tx, product.ID, quantity, movement.CreatedAt); err != nil {
			return err
		}
		product.CurrentStock = quantity
		product.UpdatedAt = movement.CreatedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("stock adjusted",
		zap.String("product_id", product.ID.String()),
		zap.Int64("stock", product.CurrentStock),
		zap.String("reason", reason),
	)
	return product, nil
}

// RecordMovement applies a signed quantity to a product's stock. INITIAL
// movements are recorded without touching the stock they describe.
func (s *Service) RecordMovement(ctx context.Context, req domain.MovementRequest) (*domain.Movement, error) {
	productID, err := parseID(req.ProductID)
	if err != nil {
		return nil, err
	}
	if !req.MovementType.Valid() {
		return nil, domain.ErrInvalidMovementType
	}
	if req.Quantity == 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if req.UnitPrice.Valid && req.UnitPrice.Decimal.IsNegative() {
		return nil, domain.ErrInvalidUnitPrice
	}

	var movement *domain.Movement
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.repo.FindByID(ctx, tx, productID, true)
		if err != nil {
			return err
		}
		reference := strings.TrimSpace(req.Reference)
		if reference == "" {
			reference = string(req.MovementType)
		}
		price := product.UnitPrice
		if req.UnitPrice.Valid {
			price = req.UnitPrice.Decimal
		}

		movement, err = s.apply(ctx, tx, product, req.MovementType, req.Quantity, price, reference, req.Metadata)
		if err != nil {
			return err
		}
		if notes := strings.TrimSpace(req.Notes); notes != "" {
			movement.Notes = &notes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *Service) MovementHistory(ctx context.Context, id string, limit, offset int) ([]domain.Movement, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByID(ctx, s.db, productID, false); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	movements, err := s.repo.ListMovements(ctx, s.db, domain.MovementFilter{
		ProductID: productID,
		Limit:     clamp(limit, defaultHistoryLimit, maxHistoryLimit),
		Offset:    offset,
	})
	if err != nil {
		return nil, err
	}
	if movements == nil {
		movements = []domain.Movement{}
	}
	return movements, nil
}

func (s *Service) LowStock(ctx context.Context, limit int) ([]domain.Product, error) {
	products, _, err := s.repo.List(ctx, s.db, domain.ProductFilter{
		LowStock: true,
		Limit:    clamp(limit, defaultPageSize, maxHistoryLimit),
	})
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// IsAvailable treats unknown and untracked products as always available.
func (s *Service) IsAvailable(ctx context.Context, id string, quantity int64) (bool, error) {
	productID, err := parseID(id)
	if err != nil {
		return false, err
	}
	product, err := s.repo.FindByID(ctx, s.db, productID, false)
	if errors.Is(err, domain.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return product.HasStock(quantity), nil
}

func (s *Service) CheckAvailability(ctx context.Context, items []domain.StockItem) error {
	if err := validateItems(items); err != nil {
		return err
	}
	_, shortages, err := s.resolve(ctx, s.db, domain.MergeStockItems(items), false)
	if err != nil {
		return err
	}
	if len(shortages) > 0 {
		return &domain.ShortageError{Items: shortages}
	}
	return nil
}

func (s *Service) ProcessSaleItems(ctx context.Context, items []domain.StockItem, reference string) ([]domain.ItemOutcome, error) {
	return s.process(ctx, items, reference, domain.MovementSale)
}

func (s *Service) ProcessPurchaseItems(ctx context.Context, items []domain.StockItem, reference string) ([]domain.ItemOutcome, error) {
	return s.process(ctx, items, reference, domain.MovementPurchase)
}

// resolved pairs a merged line with its product; product is nil when the
// line names nothing known.
type resolved struct {
	item    domain.StockItem
	product *domain.Product
}

func (s *Service) process(ctx context.Context, items []domain.StockItem, reference string, kind domain.MovementType) ([]domain.ItemOutcome, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		reference = string(kind)
	}
	merged := domain.MergeStockItems(items)

	var outcomes []domain.ItemOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lines, shortages, err := s.resolve(ctx, tx, merged, true)
		if err != nil {
			return err
		}
		if kind == domain.MovementSale && len(shortages) > 0 {
			return &domain.ShortageError{Items: shortages}
		}

		outcomes = make([]domain.ItemOutcome, 0, len(lines))
		for _, line := range lines {
			outcome := domain.ItemOutcome{
				ProductID: line.item.ProductID,
				SKU:       line.item.SKU,
				Quantity:  line.item.Quantity,
			}
			switch {
			case line.product == nil:
				outcome.Reason = reasonNotFound
			case !line.product.TrackInventory:
				outcome.ProductID = line.product.ID.String()
				outcome.SKU = line.product.SKU
				outcome.Reason = reasonNotTracked
				outcome.PreviousStock = line.product.CurrentStock
				outcome.NewStock = line.product.CurrentStock
			default:
				delta := line.item.Quantity
				if kind == domain.MovementSale {
					delta = -delta
				}
				price := line.product.UnitPrice
				if line.item.UnitPrice.Valid {
					price = line.item.UnitPrice.Decimal
				}

				outcome.ProductID = line.product.ID.String()
				outcome.SKU = line.product.SKU
				outcome.PreviousStock = line.product.CurrentStock
				movement, err := s.apply(ctx, tx, line.product, kind, delta, price, reference, map[string]any{
					"reference_type": string(kind),
					"reference":      reference,
				})
				if err != nil {
					return err
				}
				outcome.Processed = true
				outcome.NewStock = movement.StockAfter
			}
			outcomes = append(outcomes, outcome)
		}
		return nil
	})
	if err != nil {
		s.log.Error("failed to process stock movements",
			zap.String("reference", reference),
			zap.String("movement_type", string(kind)),
			zap.Int("items", len(merged)),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("stock movements processed",
		zap.String("reference", reference),
		zap.String("movement_type", string(kind)),
		zap.Int("items", len(outcomes)),
	)
	return outcomes, nil
}

// resolve loads the product of every line and collects the lines a sale of
// that size could not cover.
func (s *Service) resolve(ctx context.Context, db *gorm.DB, items []domain.StockItem, lock bool) ([]resolved, []domain.Shortage, error) {
	lines := make([]resolved, 0, len(items))
	var shortages []domain.Shortage
	for _, item := range items {
		product, err := s.lookup(ctx, db, item, lock)
		if err != nil {
			return nil, nil, err
		}
		lines = append(lines, resolved{item: item, product: product})
		if product != nil && !product.HasStock(item.Quantity) {
			shortages = append(shortages, domain.Shortage{
				ProductID: product.ID.String(),
				SKU:       product.SKU,
				Name:      product.Name,
				Requested: item.Quantity,
				Available: product.CurrentStock,
			})
		}
	}
	return lines, shortages, nil
}

func (s *Service) lookup(ctx context.Context, db *gorm.DB, item domain.StockItem, lock bool) (*domain.Product, error) {
	var (
		product *domain.Product
		err     error
	)
	if item.ProductID != "" {
		id, parseErr := snowflake.ParseString(item.ProductID)
		if parseErr != nil {
			return nil, nil
		}
		product, err = s.repo.FindByID(ctx, db, id, lock)
	} else {
		product, err = s.repo.FindBySKU(ctx, db, item.SKU, lock)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return product, err
}

// apply inserts one movement and moves the product's stock by quantity.
// Tracked products may not go below zero.
func (s *Service) apply(ctx context.Context, tx *gorm.DB, product *domain.Product, kind domain.MovementType, quantity int64, price decimal.Decimal, reference string, metadata map[string]any) (*domain.Movement, error) {
	stockAfter := product.CurrentStock
	if kind != domain.MovementInitial {
		stockAfter += quantity
	}
	if product.TrackInventory && stockAfter < 0 {
		return nil, &domain.ShortageError{Items: []domain.Shortage{{
			ProductID: product.ID.String(),
			SKU:       product.SKU,
			Name:      product.Name,
			Requested: -quantity,
			Available: product.CurrentStock,
		}}}
	}

	movement := s.newMovement(product, kind, quantity, price, reference)
	movement.StockAfter = stockAfter
	if len(metadata) > 0 {
		movement.Metadata = datatypes.JSONMap(metadata)
	}
	if err := s.repo.InsertMovement(ctx, tx, movement); err != nil {
		return nil, err
	}
	if stockAfter != product.CurrentStock {
		if err := s.repo.SetStock(ctx, tx, product.ID, stockAfter, movement.CreatedAt); err != nil {
			return nil, err
		}
		product.CurrentStock = stockAfter
		product.UpdatedAt = movement.CreatedAt
	}
	return movement, nil
}

func (s *Service) newMovement(product *domain.Product, kind domain.MovementType, quantity int64, price decimal.Decimal, reference string) *domain.Movement {
	return &domain.Movement{
		ID:           s.genID.Generate(),
		ProductID:    product.ID,
		Reference:    reference,
		MovementType: kind,
		Quantity:     quantity,
		UnitPrice:    price,
		CreatedAt:    s.clock.Now().UTC(),
	}
}

func (s *Service) resolveTax(code string, rate decimal.NullDecimal) (string, decimal.Decimal, error) {
	cat := s.catalog.Get()
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = cat.DefaultTaxCategory
	}
	category, ok := cat.TaxCategory(code)
	if !ok {
		return "", decimal.Zero, domain.ErrInvalidTaxCategory
	}
	if rate.Valid {
		if rate.Decimal.IsNegative() {
			return "", decimal.Zero, domain.ErrInvalidTaxRate
		}
		return category.Code, rate.Decimal, nil
	}
	return category.Code, category.DefaultRate, nil
}

func (s *Service) Report(ctx context.Context, req domain.ReportRequest) (*domain.Report, error) {
	if !req.Type.Valid() {
		return nil, domain.ErrInvalidReportType
	}
	report := &domain.Report{
		Type:        req.Type,
		GeneratedAt: s.clock.Now().UTC(),
		TotalValue:  decimal.Zero,
	}

	switch req.Type {
	case domain.ReportSummary:
		products, _, err := s.repo.List(ctx, s.db, domain.ProductFilter{})
		if err != nil {
			return nil, err
		}
		report.Summary = summarize(products)
		report.TotalValue = report.Summary.TotalValue
		report.Count = len(products)

	case domain.ReportDetail:
		products, _, err := s.repo.List(ctx, s.db, domain.ProductFilter{
			Category: strings.TrimSpace(req.Category),
			Active:   req.Active,
			LowStock: req.LowStockOnly,
		})
		if err != nil {
			return nil, err
		}
		report.Products = nonNil(products)
		report.Count = len(products)

	case domain.ReportValue:
		active := true
		products, _, err := s.repo.List(ctx, s.db, domain.ProductFilter{
			Category: strings.TrimSpace(req.Category),
			Active:   &active,
		})
		if err != nil {
			return nil, err
		}
		report.Values = make([]domain.ProductValue, 0, len(products))
		for i := range products {
			p := &products[i]
			value := p.StockValue()
			report.TotalValue = report.TotalValue.Add(value)
			report.Values = append(report.Values, domain.ProductValue{
				ID:           p.ID.String(),
				SKU:          p.SKU,
				Name:         p.Name,
				Category:     stringValue(p.Category),
				CurrentStock: p.CurrentStock,
				UnitPrice:    p.UnitPrice,
				Value:        value,
			})
		}
		sort.SliceStable(report.Values, func(i, j int) bool {
			return report.Values[i].Value.GreaterThan(report.Values[j].Value)
		})
		report.Count = len(report.Values)

	case domain.ReportMovement:
		filter := domain.MovementFilter{
			MovementType: req.MovementType,
			StartAt:      req.StartAt,
			EndAt:        req.EndAt,
		}
		if req.MovementType != "" && !req.MovementType.Valid() {
			return nil, domain.ErrInvalidMovementType
		}
		if strings.TrimSpace(req.ProductID) != "" {
			id, err := parseID(req.ProductID)
			if err != nil {
				return nil, err
			}
			filter.ProductID = id
		}
		movements, err := s.repo.ListMovements(ctx, s.db, filter)
		if err != nil {
			return nil, err
		}
		report.Movements = movements
		if report.Movements == nil {
			report.Movements = []domain.Movement{}
		}
		report.Count = len(movements)
	}
	return report, nil
}

func summarize(products []domain.Product) *domain.StockSummary {
	summary := &domain.StockSummary{TotalValue: decimal.Zero}
	byCategory := map[string]*domain.CategoryTotal{}

	for i := range products {
		p := &products[i]
		summary.TotalProducts++
		if p.IsLowStock() {
			summary.LowStockProducts++
		}
		if !p.Active {
			continue
		}
		summary.ActiveProducts++
		value := p.StockValue()
		summary.TotalValue = summary.TotalValue.Add(value)

		name := stringValue(p.Category)
		if name == "" {
			name = uncategorized
		}
		total, ok := byCategory[name]
		if !ok {
			total = &domain.CategoryTotal{Category: name, TotalValue: decimal.Zero}
			byCategory[name] = total
		}
		total.Count++
		total.TotalStock += p.CurrentStock
		total.TotalValue = total.TotalValue.Add(value)
	}

	summary.Categories = make([]domain.CategoryTotal, 0, len(byCategory))
	for _, total := range byCategory {
		summary.Categories = append(summary.Categories, *total)
	}
	sort.Slice(summary.Categories, func(i, j int) bool {
		return summary.Categories[i].Category < summary.Categories[j].Category
	})
	return summary
}

func validateItems(items []domain.StockItem) error {
	for _, item := range items {
		if item.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
		if strings.TrimSpace(item.ProductID) == "" && strings.TrimSpace(item.SKU) == "" {
			return domain.ErrInvalidItems
		}
	}
	return nil
}

func parseID(id string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return 0, domain.ErrInvalidID
	}
	return parsed, nil
}

func normalizeSKU(value string) (string, error) {
	sku := strings.TrimSpace(value)
	if sku == "" || utf8.RuneCountInString(sku) > domain.MaxSKULength {
		return "", domain.ErrInvalidSKU
	}
	return sku, nil
}

func clamp(value, def, max int) int {
	if value <= 0 {
		return def
	}
	if value > max {
		return max
	}
	return value
}

func optional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func boolOr(value *bool, def bool) bool {
	if value == nil {
		return def
	}
	return *value
}

func nonNil(products []domain.Product) []domain.Product {
	if products == nil {
		return []domain.Product{}
	}
	return products
}
