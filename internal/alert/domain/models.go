package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidThreshold = errors.New("invalid_alert_threshold")
	ErrInvalidPeriod    = errors.New("invalid_alert_period")
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	ReasonFailureThreshold = "failure_threshold"
	ReasonRetryExhausted   = "retry_exhausted"
	ReasonCommandDropped   = "command_dropped"
)

// Alert describes failed authority exchanges that need operator attention.
type Alert struct {
	Severity     Severity        `json:"severity"`
	Reason       string          `json:"reason"`
	Message      string          `json:"message"`
	Kind         string          `json:"kind,omitempty"`
	Reference    string          `json:"reference,omitempty"`
	FailureCount int64           `json:"failure_count,omitempty"`
	Period       time.Duration   `json:"period,omitempty"`
	Failures     []FailureRecord `json:"failures,omitempty"`
	Details      map[string]any  `json:"details,omitempty"`
	RaisedAt     time.Time       `json:"raised_at"`
}

// FailureRecord is a ledger entry summarized for an alert.
type FailureRecord struct {
	Reference    string    `json:"reference"`
	Kind         string    `json:"kind"`
	ErrorMessage string    `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
}

// Notifier delivers alerts. Delivery channels beyond the log are out of scope.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

type Service interface {
	// AlertForFailures notifies when failed entries within period reach threshold.
	AlertForFailures(ctx context.Context, threshold int, period time.Duration) (bool, error)
	AlertForCriticalFailure(ctx context.Context, alert Alert) error
}
