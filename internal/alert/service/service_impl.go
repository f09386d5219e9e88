package service

import (
	"context"
	"fmt"
	"time"

	alertdomain "github.com/smallbiznis/smartinvoice/internal/alert/domain"
	"github.com/smallbiznis/smartinvoice/internal/clock"
	obsmetrics "github.com/smallbiznis/smartinvoice/internal/observability/metrics"
	logdomain "github.com/smallbiznis/smartinvoice/internal/transactionlog/domain"
	"github.com/smallbiznis/smartinvoice/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const maxFailuresInAlert = 10

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Ledger   logdomain.Service
	Notifier alertdomain.Notifier
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	ledger   logdomain.Service
	notifier alertdomain.Notifier
	metrics  *obsmetrics.Metrics
}

func NewService(p Params) alertdomain.Service {
	return &Service{
		log:      p.Log.Named("alert.service"),
		clock:    p.Clock,
		ledger:   p.Ledger,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
}

func (s *Service) AlertForFailures(ctx context.Context, threshold int, period time.Duration) (bool, error) {
	if threshold <= 0 {
		return false, alertdomain.ErrInvalidThreshold
	}
	if period <= 0 {
		return false, alertdomain.ErrInvalidPeriod
	}

	now := s.clock.Now()
	since := now.Add(-period)
	count, err := s.ledger.CountFailuresSince(ctx, since)
	if err != nil {
		return false, fmt.Errorf("count failures: %w", err)
	}
	if count < int64(threshold) {
		s.log.Debug("failure count below threshold",
			zap.Int64("failure_count", count),
			zap.Int("threshold", threshold),
		)
		return false, nil
	}

	recent, err := s.ledger.List(ctx, logdomain.ListRequest{
		Pagination: pagination.Pagination{PageSize: maxFailuresInAlert},
		Status:     logdomain.StatusFailed,
		StartAt:    &since,
	})
	if err != nil {
		return false, fmt.Errorf("list failures: %w", err)
	}

	alert := alertdomain.Alert{
		Severity:     alertdomain.SeverityWarning,
		Reason:       alertdomain.ReasonFailureThreshold,
		Message:      "ZRA Smart Invoice Failures Detected",
		FailureCount: count,
		Period:       period,
		Failures:     failureRecords(recent.Logs),
		RaisedAt:     now,
	}
	if err := s.notify(ctx, alert); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) AlertForCriticalFailure(ctx context.Context, alert alertdomain.Alert) error {
	alert.Severity = alertdomain.SeverityCritical
	if alert.Message == "" {
		alert.Message = "ZRA Smart Invoice Critical Failure"
	}
	if alert.RaisedAt.IsZero() {
		alert.RaisedAt = s.clock.Now()
	}
	return s.notify(ctx, alert)
}

func (s *Service) notify(ctx context.Context, alert alertdomain.Alert) error {
	s.metrics.RecordAlert(ctx, alert.Reason)
	if err := s.notifier.Notify(ctx, alert); err != nil {
		s.log.Warn("alert delivery failed",
			zap.String("reason", alert.Reason),
			zap.Error(err),
		)
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func failureRecords(entries []logdomain.Entry) []alertdomain.FailureRecord {
	out := make([]alertdomain.FailureRecord, 0, len(entries))
	for _, entry := range entries {
		record := alertdomain.FailureRecord{
			Kind:      string(entry.Kind),
			CreatedAt: entry.CreatedAt,
		}
		if entry.Reference != nil {
			record.Reference = *entry.Reference
		}
		if entry.ErrorMessage != nil {
			record.ErrorMessage = *entry.ErrorMessage
		}
		out = append(out, record)
	}
	return out
}
