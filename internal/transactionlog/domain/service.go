package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/smartinvoice/pkg/db/pagination"
)

var (
	ErrInvalidKind      = errors.New("invalid_transaction_kind")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrInvalidRetention = errors.New("invalid_retention_days")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)

type CreateRequest struct {
	Kind         Kind
	Reference    string
	Request      map[string]any
	Response     map[string]any
	Status       Status
	ErrorMessage string
}

type Statistics struct {
	TotalTransactions      int64      `json:"total_transactions"`
	SuccessfulTransactions int64      `json:"successful_transactions"`
	FailedTransactions     int64      `json:"failed_transactions"`
	SuccessRate            float64    `json:"success_rate"`
	LastTransaction        *time.Time `json:"last_transaction"`
}

type ListRequest struct {
	pagination.Pagination
	Kind    Kind
	Status  Status
	StartAt *time.Time
	EndAt   *time.Time
}

type ListResponse struct {
	pagination.PageInfo
	Logs []Entry `json:"logs"`
}

type Service interface {
	CreateLog(ctx context.Context, req CreateRequest) (*Entry, error)
	Statistics(ctx context.Context) (Statistics, error)
	Retention(ctx context.Context, maxAgeDays int) (int64, error)
	Recent(ctx context.Context, limit int) ([]Entry, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	CountFailuresSince(ctx context.Context, since time.Time) (int64, error)
	// Between returns every entry created in [start, end], oldest first.
	Between(ctx context.Context, start, end time.Time) ([]Entry, error)
}
