package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	devicedomain "github.com/smallbiznis/smartinvoice/internal/device/domain"
	inventorydomain "github.com/smallbiznis/smartinvoice/internal/inventory/domain"
	reportdomain "github.com/smallbiznis/smartinvoice/internal/report/domain"
	submissiondomain "github.com/smallbiznis/smartinvoice/internal/submission/domain"
	taxdomain "github.com/smallbiznis/smartinvoice/internal/tax/domain"
	logdomain "github.com/smallbiznis/smartinvoice/internal/transactionlog/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type      string                     `json:"type"`
	Message   string                     `json:"message"`
	Reference string                     `json:"reference,omitempty"`
	Errors    []ValidationError          `json:"errors,omitempty"`
	Shortages []inventorydomain.Shortage `json:"shortages,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// referencedError ties a failure to the submission reference minted for it.
type referencedError struct {
	err       error
	reference string
}

func (e *referencedError) Error() string { return e.err.Error() }

func (e *referencedError) Unwrap() error { return e.err }

func withReference(err error, reference string) error {
	if err == nil || strings.TrimSpace(reference) == "" {
		return err
	}
	return &referencedError{err: err, reference: reference}
}

func referenceOf(err error) string {
	var rErr *referencedError
	if errors.As(err, &rErr) {
		return rErr.reference
	}
	return ""
}

// validationSentinels are the domain errors a caller can fix by changing the request.
var validationSentinels = []error{
	ErrInvalidRequest,
	submissiondomain.ErrInvalidKind,
	submissiondomain.ErrInvalidInvoiceType,
	submissiondomain.ErrInvalidTransactionType,
	devicedomain.ErrInvalidTaxpayerID,
	devicedomain.ErrInvalidBranchID,
	devicedomain.ErrInvalidDeviceSerial,
	taxdomain.ErrInvalidTaxCategory,
	taxdomain.ErrInvalidExemptionCategory,
	taxdomain.ErrMissingRequiredField,
	taxdomain.ErrNegativeAmount,
	taxdomain.ErrInvalidItems,
	logdomain.ErrInvalidKind,
	logdomain.ErrInvalidStatus,
	logdomain.ErrInvalidRetention,
	logdomain.ErrInvalidPageToken,
	logdomain.ErrInvalidTimeRange,
	inventorydomain.ErrInvalidID,
	inventorydomain.ErrInvalidSKU,
	inventorydomain.ErrInvalidName,
	inventorydomain.ErrInvalidUnitPrice,
	inventorydomain.ErrInvalidQuantity,
	inventorydomain.ErrInvalidItems,
	inventorydomain.ErrInvalidTaxCategory,
	inventorydomain.ErrInvalidTaxRate,
	inventorydomain.ErrInvalidMovementType,
	inventorydomain.ErrInvalidReportType,
	reportdomain.ErrInvalidType,
	reportdomain.ErrInvalidDate,
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	if reference := referenceOf(err); reference != "" {
		c.Set("reference", reference)
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if sentinel := validationSentinel(err); sentinel != nil {
		code := sentinel.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code, err),
				},
			},
		}
	}

	switch {
	case errors.Is(err, submissiondomain.ErrDeviceNotInitialized):
		return http.StatusConflict, errorPayload{
			Type:    "device_not_initialized",
			Message: "device not initialized, initialize the device first",
		}
	case errors.Is(err, reportdomain.ErrDeviceNotRegistered):
		return http.StatusConflict, errorPayload{
			Type:    "device_not_registered",
			Message: "no device registration found, initialize the device first",
		}
	case errors.Is(err, inventorydomain.ErrInsufficientStock):
		payload := errorPayload{
			Type:    "insufficient_stock",
			Message: "insufficient stock",
		}
		var shortage *inventorydomain.ShortageError
		if errors.As(err, &shortage) {
			payload.Message = shortage.Error()
			payload.Shortages = shortage.Items
		}
		return http.StatusConflict, payload
	case errors.Is(err, inventorydomain.ErrDuplicateSKU):
		return http.StatusConflict, errorPayload{
			Type:    "duplicate_sku",
			Message: "a product with this sku already exists",
		}
	case errors.Is(err, submissiondomain.ErrTransport):
		return http.StatusBadGateway, errorPayload{
			Type:      "authority_unreachable",
			Message:   "tax authority could not be reached",
			Reference: referenceOf(err),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests, try again later",
		}
	case errors.Is(err, ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, errorPayload{
			Type:    "unsupported_media_type",
			Message: "content type must be application/json",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, submissiondomain.ErrQueueUnavailable),
		errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:      "internal_error",
			Message:   "internal server error",
			Reference: referenceOf(err),
		}
	}
}

// classifyErrorForLog feeds the request logger the same type and code the client sees.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	if vErr := asValidationErrors(err); vErr != nil {
		code := ""
		if len(vErr.Errors) > 0 {
			code = vErr.Errors[0].Code
		}
		return "validation_error", code
	}
	if sentinel := validationSentinel(err); sentinel != nil {
		return "validation_error", sentinel.Error()
	}
	_, payload := mapError(err)
	return payload.Type, payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationSentinel(err error) error {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, devicedomain.ErrNotFound),
		errors.Is(err, inventorydomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "invalid_submission_kind":
		return "kind"
	case "invalid_transaction_kind":
		return "transaction_type"
	case "invalid_retention_days":
		return "days"
	case "invalid_time_range":
		return "start_at"
	case "missing_required_field", "negative_amount", "invalid_items", "invalid_stock_items":
		return "items"
	case "invalid_report_type":
		return "type"
	case "invalid_report_date":
		return "date"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string, err error) string {
	if code == "invalid_request" {
		return "invalid request"
	}
	if detail := err.Error(); detail != code {
		return detail
	}
	return "invalid value"
}
