package service

import (
	"context"

	alertdomain "github.com/smallbiznis/smartinvoice/internal/alert/domain"
	"go.uber.org/zap"
)

// LogNotifier writes alerts as structured error logs.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) alertdomain.Notifier {
	return &LogNotifier{log: log.Named("alert.notifier")}
}

func (n *LogNotifier) Notify(_ context.Context, alert alertdomain.Alert) error {
	fields := []zap.Field{
		zap.String("severity", string(alert.Severity)),
		zap.String("reason", alert.Reason),
		zap.Bool("critical", alert.Severity == alertdomain.SeverityCritical),
		zap.Time("raised_at", alert.RaisedAt),
	}
	if alert.Kind != "" {
		fields = append(fields, zap.String("kind", alert.Kind))
	}
	if alert.Reference != "" {
		fields = append(fields, zap.String("reference", alert.Reference))
	}
	if alert.FailureCount > 0 {
		fields = append(fields,
			zap.Int64("failure_count", alert.FailureCount),
			zap.Duration("period", alert.Period),
		)
	}
	if len(alert.Failures) > 0 {
		fields = append(fields, zap.Any("failures", alert.Failures))
	}
	if len(alert.Details) > 0 {
		fields = append(fields, zap.Any("details", alert.Details))
	}

	n.log.Error(alert.Message, fields...)
	return nil
}
