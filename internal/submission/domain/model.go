package domain

import (
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/smartinvoice/internal/authority"
	inventorydomain "github.com/smallbiznis/smartinvoice/internal/inventory/domain"
	logdomain "github.com/smallbiznis/smartinvoice/internal/transactionlog/domain"
)

const (
	ReferencePrefix       = "zra_"
	QueuedReferencePrefix = "zra_queued_"
)

// Kind selects the authority endpoint a payload is submitted to.
type Kind string

const (
	KindSales    Kind = "sales"
	KindPurchase Kind = "purchase"
	KindStock    Kind = "stock"
)

// ParseKind accepts the plural route forms as well.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sales", "sale":
		return KindSales, nil
	case "purchase", "purchases":
		return KindPurchase, nil
	case "stock", "stocks":
		return KindStock, nil
	default:
		return "", ErrInvalidKind
	}
}

func (k Kind) Valid() bool {
	switch k {
	case KindSales, KindPurchase, KindStock:
		return true
	default:
		return false
	}
}

func (k Kind) Endpoint() string {
	switch k {
	case KindSales:
		return authority.EndpointSales
	case KindPurchase:
		return authority.EndpointPurchases
	case KindStock:
		return authority.EndpointStock
	default:
		return ""
	}
}

func (k Kind) LedgerKind() logdomain.Kind {
	switch k {
	case KindSales:
		return logdomain.KindSales
	case KindPurchase:
		return logdomain.KindPurchase
	case KindStock:
		return logdomain.KindStock
	default:
		return logdomain.KindGeneral
	}
}

type Request struct {
	Kind            Kind
	Data            map[string]any
	InvoiceType     string
	TransactionType string
	Queue           bool
}

type InitRequest struct {
	TPIN         string `json:"tpin"`
	BranchID     string `json:"branch_id"`
	DeviceSerial string `json:"device_serial"`
}

// Result is the outcome of one exchange with the authority, or of an enqueue.
type Result struct {
	Success    bool           `json:"success"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	Reference  string         `json:"reference"`
	Message    string         `json:"message,omitempty"`
	// Stock lists the inventory movements an accepted sale or purchase made.
	Stock []inventorydomain.ItemOutcome `json:"stock,omitempty"`
}

// Retryable reports an authority-side failure worth another attempt.
func (r *Result) Retryable() bool {
	return r != nil && !r.Success && r.StatusCode >= http.StatusInternalServerError
}

// Command is a prepared submission handed to the queue. Payload already
// carries the resolved codes and tax breakdown.
type Command struct {
	ID              string         `json:"id"`
	Reference       string         `json:"reference"`
	Kind            Kind           `json:"kind"`
	Payload         map[string]any `json:"payload"`
	InvoiceType     string         `json:"invoice_type"`
	TransactionType string         `json:"transaction_type"`
	EnqueuedAt      time.Time      `json:"enqueued_at"`
}

type HealthStatus string

const (
	HealthConnected      HealthStatus = "connected"
	HealthError          HealthStatus = "error"
	HealthNotInitialized HealthStatus = "not_initialized"
)

type Health struct {
	Success    bool         `json:"success"`
	Status     HealthStatus `json:"status"`
	Message    string       `json:"message"`
	StatusCode int          `json:"status_code,omitempty"`
	Error      string       `json:"error,omitempty"`
}
