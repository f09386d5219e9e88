package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	alertdomain "github.com/smallbiznis/smartinvoice/internal/alert/domain"
	"github.com/smallbiznis/smartinvoice/internal/config"
	obscontext "github.com/smallbiznis/smartinvoice/internal/observability/context"
	obsmetrics "github.com/smallbiznis/smartinvoice/internal/observability/metrics"
	submissiondomain "github.com/smallbiznis/smartinvoice/internal/submission/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeRetry    = "retry"
	outcomeError    = "error"

	receiveBackoff = time.Second
)

// Alerter raises operator alerts for commands that could not be delivered.
type Alerter interface {
	AlertForCriticalFailure(ctx context.Context, alert alertdomain.Alert) error
}

type WorkerParams struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	Queue    Queue
	Executor submissiondomain.Executor
	Alerts   alertdomain.Service
}

// Worker drains the queue and executes each command with bounded retries.
type Worker struct {
	queue    Queue
	executor submissiondomain.Executor
	alerts   Alerter
	log      *zap.Logger
	metrics  *obsmetrics.SubmissionMetrics

	attempts    int
	delay       time.Duration
	concurrency int
}

func NewWorker(p WorkerParams) *Worker {
	return newWorker(p.Queue, p.Executor, p.Alerts, p.Log, p.Config.Retry, p.Config.Queue.Workers)
}

func newWorker(q Queue, executor submissiondomain.Executor, alerts Alerter, log *zap.Logger, retry config.RetryConfig, concurrency int) *Worker {
	attempts := 1
	if retry.Enabled && retry.Attempts > 1 {
		attempts = retry.Attempts
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	delay := retry.Delay
	if delay < 0 {
		delay = 0
	}
	return &Worker{
		queue:       q,
		executor:    executor,
		alerts:      alerts,
		log:         log.Named("queue.worker"),
		metrics:     obsmetrics.Submission(),
		attempts:    attempts,
		delay:       delay,
		concurrency: concurrency,
	}
}

// Run consumes until ctx is cancelled or the queue is closed.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.loop(ctx, slot)
		}(i)
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context, slot int) {
	log := w.log.With(zap.Int("slot", slot))
	for {
		cmd, err := w.queue.Receive(ctx)
		switch {
		case err == nil:
			w.Process(ctx, cmd)
		case errors.Is(err, ErrClosed), errors.Is(err, context.Canceled), ctx.Err() != nil:
			log.Debug("worker stopped")
			return
		default:
			log.Warn("receive failed", zap.Error(err))
			if !sleep(ctx, receiveBackoff) {
				return
			}
		}
	}
}

// Process executes cmd up to the configured number of attempts. Only
// transport errors and 5xx responses are retried.
func (w *Worker) Process(ctx context.Context, cmd submissiondomain.Command) {
	ctx = obscontext.WithReference(ctx, cmd.Reference)
	log := w.log.With(
		zap.String("command_id", cmd.ID),
		zap.String("queued_reference", cmd.Reference),
		zap.String("kind", string(cmd.Kind)),
	)
	kind := string(cmd.Kind)

	var (
		result *submissiondomain.Result
		err    error
	)
	for attempt := 1; attempt <= w.attempts; attempt++ {
		result, err = w.executor.Execute(ctx, cmd)

		switch {
		case err == nil && result != nil && result.Success:
			w.metrics.IncAttempt(kind, outcomeSuccess)
			log.Info("queued submission delivered",
				zap.Int("attempt", attempt),
				zap.String("reference", result.Reference),
			)
			return
		case err == nil && !result.Retryable():
			w.metrics.IncAttempt(kind, outcomeRejected)
			log.Warn("queued submission rejected",
				zap.Int("attempt", attempt),
				zap.String("reference", referenceOf(result)),
				zap.Int("status_code", statusOf(result)),
				zap.String("error", errorOf(result)),
			)
			return
		case err != nil && !errors.Is(err, submissiondomain.ErrTransport):
			w.metrics.IncAttempt(kind, outcomeError)
			log.Error("queued submission dropped", zap.Int("attempt", attempt), zap.Error(err))
			w.alert(ctx, log, cmd, alertdomain.ReasonCommandDropped, attempt, result, err)
			return
		}

		w.metrics.IncAttempt(kind, outcomeRetry)
		log.Warn("queued submission attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", w.attempts),
			zap.String("reference", referenceOf(result)),
			zap.Int("status_code", statusOf(result)),
			zap.Error(err),
		)
		if attempt < w.attempts && !sleep(ctx, w.delay) {
			log.Warn("worker stopping with attempts remaining", zap.Int("attempt", attempt))
			return
		}
	}

	w.metrics.IncExhausted(kind)
	w.alert(ctx, log, cmd, alertdomain.ReasonRetryExhausted, w.attempts, result, err)
}

func (w *Worker) alert(ctx context.Context, log *zap.Logger, cmd submissiondomain.Command, reason string, attempts int, result *submissiondomain.Result, cause error) {
	if w.alerts == nil {
		return
	}
	details := map[string]any{
		"command_id": cmd.ID,
		"attempts":   attempts,
	}
	if ref := referenceOf(result); ref != "" {
		details["last_reference"] = ref
	}
	if code := statusOf(result); code != 0 {
		details["status_code"] = code
	}
	message := errorOf(result)
	if cause != nil {
		message = cause.Error()
	}
	if message != "" {
		details["error"] = message
	}

	err := w.alerts.AlertForCriticalFailure(ctx, alertdomain.Alert{
		Reason:    reason,
		Message:   "ZRA queued submission failed",
		Kind:      string(cmd.Kind),
		Reference: cmd.Reference,
		Details:   details,
	})
	if err != nil {
		log.Warn("critical alert failed", zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func referenceOf(r *submissiondomain.Result) string {
	if r == nil {
		return ""
	}
	return r.Reference
}

func statusOf(r *submissiondomain.Result) int {
	if r == nil {
		return 0
	}
	return r.StatusCode
}

func errorOf(r *submissiondomain.Result) string {
	if r == nil {
		return ""
	}
	return r.Error
}
