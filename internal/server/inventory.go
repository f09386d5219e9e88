package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	inventorydomain "github.com/smallbiznis/smartinvoice/internal/inventory/domain"
)

func (s *Server) inventory(c *gin.Context) (inventorydomain.Service, bool) {
	if s.inventorySvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return nil, false
	}
	return s.inventorySvc, true
}

func (s *Server) ListProducts(c *gin.Context) {
	svc, ok := s.inventory(c)
	if !ok {
		return
	}

	var query struct {
		Query       string `form:"q"`
		Category    string `form:"category"`
		TaxCategory string `form:"tax_category"`
		Active      string `form:"active"`
		MinStock    string `form:"min_stock"`
		MaxStock    string `form:"max_stock"`
		LowStock    string `form:"low_stock"`
		Limit       string `form:"limit"`
		Offset      string `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	filter := inventorydomain.ProductFilter{
		Query:       strings.TrimSpace(query.Query),
		Category:    query.Category,
		TaxCategory: query.TaxCategory,
	}
	var err error
	if filter.Active, err = parseOptionalBool(query.Active); err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}
	lowStock, err := parseOptionalBool(query.LowStock)
	if err != nil {
		AbortWithError(c, newValidationError("low_stock", "invalid_low_stock", "invalid low_stock"))
		return
	}
	filter.LowStock = lowStock != nil && *lowStock
	if filter.MinStock, err = parseOptionalInt64(query.MinStock); err != nil {
		AbortWithError(c, newValidationError("min_stock", "invalid_min_stock", "invalid min_stock"))
		return
	}
	if filter.MaxStock, err = parseOptionalInt64(query.MaxStock); err != nil {
		AbortWithError(c, newValidationError("max_stock", "invalid_max_stock", "invalid max_stock"))
		return
	}
	limit, err := parseOptionalInt(query.Limit)
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}
	offset, err := parseOptionalInt(query.Offset)
	if err != nil {
		AbortWithError(c, newValidationError("offset", "invalid_offset", "invalid offset"))
		return
	}
	if limit != nil {
		filter.Limit = *limit
	}
	if offset != nil {
		filter.Offset = *offset
	}

	resp, err := svc.SearchProducts(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) CreateProduct(c *gin.Context) {
	svc, ok := s.inventory(c)
	if !ok {
		return
	}

	var req inventorydomain.CreateProductRequest
	if err := decodeJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	product, err := svc.CreateProduct(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (s *Server) GetProduct(c *gin.Context) {
	svc, ok := s.inventory(c)
	if !ok {
		return
	}

	product, err := svc.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (s *Server) UpdateProduct(c *gin.Context) {
	svc, ok := s.inventory(c)
	if !ok {
		return
	}

	var req inventorydomain.UpdateProductRequest
	if err := decodeJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	product, err := svc.UpdateProduct(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (s *Server) DeleteProduct(c *gin.Context) {
	svc, ok := s.inventory(c)
	if !ok {
		return
	}

	if err := svc.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type adjustStockRequest struct {
	Quantity *int64 `json:"quantity"`
	Reason   string `json:"reason"`
}

func (s *Server) AdjustStock(c *gin.Context) {
	svc, ok := s.inventory(c)
	if !ok {
		return
	}

	var req adjustStockRequest
	if err := decodeJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Quantity == nil {
		AbortWithError(c, newValidationError("quantity", "required", "quantity is required"))
		return
	}

	product, err := svc.AdjustStock(c.Request.Context(), c.Param("id"), *req.Quantity, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

type recordMovementRequest struct {
	MovementType string              `json:"movement_type"`
	Quantity     int64               `json:"quantity"`
	UnitPrice    decimal.NullDecimal `json:"unit_price"`
	Reference    string              `json:"reference"`
	Notes        string              `json:"notes"`
	Metadata     map[string]any      `json:"metadata"`
}

func (s *Server) RecordMovement(c *gin.Context) {
	svc, ok := s.inventory(c)
	if !ok {
		return
	}

	var req recordMovementRequest
	if err := decodeJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	movementType, err := inventorydomain.ParseMovementType(req.MovementType)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	movement, err := svc.RecordMovement(c.Request.Context(), inventorydomain.MovementRequest{
		ProductID:    c.Param("id"),
		MovementType: movementType,
		Quantity:     req.Quantity,
		UnitPrice:    req.UnitPrice,
		Reference:    req.Reference,
		Notes:        req.Notes,
		Metadata:     req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

func (s *Server) ListMovements(c *gin.Context) {
	svc, ok := s.inventory(c)
	if !ok {
		return
	}

	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}
	offset, err := parseOptionalInt(c.Query("offset"))
	if err != nil {
		AbortWithError(c, newValidationError("offset", "invalid_offset", "invalid offset"))
		return
	}

	movements, err := svc.MovementHistory(c.Request.Context(), c.Param("id"), derefInt(limit), derefInt(offset))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

func (s *Server) LowStock(c *gin.Context) {
	svc, ok := s.inventory(c)
	if !ok {
		return
	}

	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	products, err := svc.LowStock(c.Request.Context(), derefInt(limit))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

type checkStockRequest struct {
	Items []any `json:"items"`
}

// CheckStock answers whether a prospective sale could be covered.
func (s *Server) CheckStock(c *gin.Context) {
	svc, ok := s.inventory(c)
	if !ok {
		return
	}

	var req checkStockRequest
	if err := decodeJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	items, err := inventorydomain.StockItemsFromPayload(req.Items)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if len(items) == 0 {
		AbortWithError(c, newValidationError("items", "required", "at least one product line is required"))
		return
	}

	err = svc.CheckAvailability(c.Request.Context(), items)
	var shortage *inventorydomain.ShortageError
	switch {
	case errors.As(err, &shortage):
		c.JSON(http.StatusOK, gin.H{"available": false, "shortages": shortage.Items})
	case err != nil:
		AbortWithError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"available": true, "shortages": []inventorydomain.Shortage{}})
	}
}

func (s *Server) InventoryReport(c *gin.Context) {
	svc, ok := s.inventory(c)
	if !ok {
		return
	}

	req := inventorydomain.ReportRequest{
		Type:         inventorydomain.ReportType(strings.ToLower(strings.TrimSpace(c.Param("type")))),
		Category:     c.Query("category"),
		ProductID:    c.Query("product_id"),
		MovementType: inventorydomain.MovementType(strings.ToUpper(strings.TrimSpace(c.Query("movement_type")))),
	}
	var err error
	if req.Active, err = parseOptionalBool(c.Query("active")); err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}
	lowStock, err := parseOptionalBool(c.Query("low_stock"))
	if err != nil {
		AbortWithError(c, newValidationError("low_stock", "invalid_low_stock", "invalid low_stock"))
		return
	}
	req.LowStockOnly = lowStock != nil && *lowStock
	if req.StartAt, err = parseOptionalTime(c.Query("start_at"), false); err != nil {
		AbortWithError(c, newValidationError("start_at", "invalid_start_at", "invalid start_at"))
		return
	}
	if req.EndAt, err = parseOptionalTime(c.Query("end_at"), true); err != nil {
		AbortWithError(c, newValidationError("end_at", "invalid_end_at", "invalid end_at"))
		return
	}

	report, err := svc.Report(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalInt64(value string) (*int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func derefInt(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}
