package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	submissiondomain "github.com/smallbiznis/smartinvoice/internal/submission/domain"
	taxservice "github.com/smallbiznis/smartinvoice/internal/tax/service"
)

type submitTransactionRequest struct {
	Data            map[string]any `json:"data"`
	InvoiceType     string         `json:"invoice_type"`
	TransactionType string         `json:"transaction_type"`
	Queue           bool           `json:"queue"`
}

func (s *Server) SubmitTransaction(c *gin.Context) {
	kind, err := submissiondomain.ParseKind(c.Param("kind"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req submitTransactionRequest
	if err := decodeJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Data) == 0 {
		AbortWithError(c, newValidationError("data", "required", "data is required"))
		return
	}

	result, err := s.submitSvc.Submit(c.Request.Context(), submissiondomain.Request{
		Kind:            kind,
		Data:            req.Data,
		InvoiceType:     req.InvoiceType,
		TransactionType: req.TransactionType,
		Queue:           req.Queue,
	})
	if err != nil {
		AbortWithError(c, withReference(err, referenceOfResult(result)))
		return
	}

	c.Set("reference", result.Reference)
	c.JSON(resultStatus(result), result)
}

type testSalesRequest struct {
	InvoiceType     string `json:"invoice_type"`
	TransactionType string `json:"transaction_type"`
}

// TestSales submits a fixed three-line invoice so operators can verify the
// whole path against the authority.
func (s *Server) TestSales(c *gin.Context) {
	var req testSalesRequest
	if err := decodeJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	cat := s.catalog.Get()
	invoiceType := strings.ToUpper(strings.TrimSpace(req.InvoiceType))
	if invoiceType == "" {
		invoiceType = cat.DefaultInvoiceType
	}
	transactionType := strings.ToUpper(strings.TrimSpace(req.TransactionType))
	if transactionType == "" {
		transactionType = cat.DefaultTransactionType
	}

	data := sampleSalesData(s.clock.Now())
	result, err := s.submitSvc.Submit(c.Request.Context(), submissiondomain.Request{
		Kind:            submissiondomain.KindSales,
		Data:            data,
		InvoiceType:     invoiceType,
		TransactionType: transactionType,
	})
	if err != nil {
		AbortWithError(c, withReference(err, referenceOfResult(result)))
		return
	}
	c.Set("reference", result.Reference)

	message := fmt.Sprintf("Test sales data sent successfully with invoice type: %s and transaction type: %s", invoiceType, transactionType)
	if !result.Success {
		message = result.Error
		if message == "" {
			message = "Failed to send test sales data"
		}
	}

	c.JSON(resultStatus(result), gin.H{
		"success":          result.Success,
		"message":          message,
		"reference":        result.Reference,
		"data":             result.Data,
		"invoice_type":     invoiceType,
		"transaction_type": transactionType,
		"tax_details":      s.sampleTaxSummary(data),
	})
}

func sampleSalesData(now time.Time) map[string]any {
	return map[string]any{
		"invoiceNumber": fmt.Sprintf("INV-%d", 1000+rand.IntN(9000)),
		"timestamp":     now.Format(time.DateTime),
		"items": []any{
			map[string]any{
				"name":        "Standard VAT Product",
				"quantity":    json.Number("2"),
				"unitPrice":   json.Number("100.00"),
				"taxCategory": "VAT",
			},
			map[string]any{
				"name":        "Zero-Rated Product",
				"quantity":    json.Number("1"),
				"unitPrice":   json.Number("50.00"),
				"taxCategory": "ZERO_RATED",
			},
			map[string]any{
				"name":        "Tourism Service",
				"quantity":    json.Number("1"),
				"unitPrice":   json.Number("200.00"),
				"taxCategory": "TOURISM_LEVY",
			},
		},
		"paymentType":  "CASH",
		"customerTpin": "",
	}
}

func (s *Server) sampleTaxSummary(data map[string]any) any {
	items, err := taxservice.DecodeLineItems(data["items"])
	if err != nil {
		return map[string]any{}
	}
	result, err := s.aggregator.CalculateInvoiceTax(items)
	if err != nil {
		return map[string]any{}
	}
	return s.aggregator.FormatForSubmission(result)["taxSummary"]
}

// resultStatus maps an authority outcome onto the response code: accepted
// submissions are 200 (202 when queued), rejections are 422, and authority
// failures are 502.
func resultStatus(result *submissiondomain.Result) int {
	switch {
	case result == nil:
		return http.StatusInternalServerError
	case result.Success && strings.HasPrefix(result.Reference, submissiondomain.QueuedReferencePrefix):
		return http.StatusAccepted
	case result.Success:
		return http.StatusOK
	case result.StatusCode >= http.StatusBadRequest && result.StatusCode < http.StatusInternalServerError:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func referenceOfResult(result *submissiondomain.Result) string {
	if result == nil {
		return ""
	}
	return result.Reference
}

// decodeJSON keeps numbers as json.Number so amounts reach the tax engine
// without a float round trip. An empty body leaves dst untouched.
func decodeJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil {
		return nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected trailing data")
	}
	return nil
}
