package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	alertdomain "github.com/smallbiznis/smartinvoice/internal/alert/domain"
	"github.com/smallbiznis/smartinvoice/internal/clock"
	obsmetrics "github.com/smallbiznis/smartinvoice/internal/observability/metrics"
	logdomain "github.com/smallbiznis/smartinvoice/internal/transactionlog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Ledger logdomain.Service
	Alerts alertdomain.Service
	Locker Locker `optional:"true"`
	Config Config `optional:"true"`
}

// Scheduler runs periodic ledger maintenance.
type Scheduler struct {
	log    *zap.Logger
	cfg    Config
	genID  *snowflake.Node
	clock  clock.Clock
	ledger logdomain.Service
	alerts alertdomain.Service
	locker Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Ledger == nil || p.Alerts == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:    p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:    p.Config.withDefaults(),
		genID:  p.GenID,
		clock:  p.Clock,
		ledger: p.Ledger,
		alerts: p.Alerts,
		locker: p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	release, acquired, err := s.acquire(ctx, name)
	if err != nil {
		return fmt.Errorf("%s: lock: %w", name, err)
	}
	if !acquired {
		s.log.Debug("job held by another instance", zap.String("job", name))
		return nil
	}
	defer release()

	ctx, run := s.startJobRun(ctx, name)
	s.logJobStart(ctx, run)

	err = fn(ctx, run)
	if err != nil {
		run.IncError()
	}
	obsmetrics.Scheduler().ObserveJob(name, time.Since(start), err)
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	// Deadline is a soft timeout; the next tick picks the job up again.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	s.logSchedulerError(ctx, run, "scheduler.job.failed", err)
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context, *jobRun) error
	}{
		{JobFailureAlerts, s.FailureAlertsJob},
		{JobLogRetention, s.LogRetentionJob},
	}

	for _, job := range jobs {
		if !s.cfg.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// FailureAlertsJob raises an alert when recent ledger failures reach the threshold.
func (s *Scheduler) FailureAlertsJob(ctx context.Context, run *jobRun) error {
	raised, err := s.alerts.AlertForFailures(ctx, s.cfg.FailureThreshold, s.cfg.FailurePeriod)
	if err != nil {
		return err
	}
	if raised {
		run.AddProcessed(1)
		obsmetrics.Scheduler().AddJobItems(JobFailureAlerts, 1)
	}
	return nil
}

// LogRetentionJob prunes ledger entries older than the retention window. A
// zero window disables pruning.
func (s *Scheduler) LogRetentionJob(ctx context.Context, run *jobRun) error {
	if s.cfg.LogRetentionDays <= 0 {
		return nil
	}
	deleted, err := s.ledger.Retention(ctx, s.cfg.LogRetentionDays)
	if err != nil {
		return err
	}
	run.AddProcessed(int(deleted))
	obsmetrics.Scheduler().AddJobItems(JobLogRetention, deleted)
	return nil
}
