package scheduler

import (
	"strings"
	"time"

	"github.com/smallbiznis/smartinvoice/internal/config"
)

const (
	JobFailureAlerts = "failure_alerts"
	JobLogRetention  = "log_retention"
)

// Config controls scheduler intervals and job parameters.
type Config struct {
	Enabled          bool
	RunInterval      time.Duration
	JobTimeout       time.Duration
	LockTTL          time.Duration
	FailureThreshold int
	FailurePeriod    time.Duration
	LogRetentionDays int
	EnabledJobs      []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		RunInterval:      5 * time.Minute,
		JobTimeout:       30 * time.Second,
		LockTTL:          time.Minute,
		FailureThreshold: 3,
		FailurePeriod:    time.Hour,
	}
}

func ProvideConfig(cfg config.Config) Config {
	out := Config{
		Enabled:          cfg.Scheduler.Enabled,
		RunInterval:      cfg.Scheduler.RunInterval,
		FailureThreshold: cfg.Alerts.FailureThreshold,
		FailurePeriod:    cfg.Alerts.Period,
		LogRetentionDays: cfg.Scheduler.LogRetentionDays,
		EnabledJobs:      cfg.Scheduler.Jobs,
	}
	return out.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaults.FailureThreshold
	}
	if c.FailurePeriod <= 0 {
		c.FailurePeriod = defaults.FailurePeriod
	}
	return c
}

func (c Config) isJobEnabled(job string) bool {
	// An empty list enables every job.
	if len(c.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range c.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), job) {
			return true
		}
	}
	return false
}
