package main

import (
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/smartinvoice/internal/alert"
	"github.com/smallbiznis/smartinvoice/internal/authority"
	"github.com/smallbiznis/smartinvoice/internal/catalog"
	"github.com/smallbiznis/smartinvoice/internal/clock"
	"github.com/smallbiznis/smartinvoice/internal/config"
	"github.com/smallbiznis/smartinvoice/internal/device"
	"github.com/smallbiznis/smartinvoice/internal/observability"
	"github.com/smallbiznis/smartinvoice/internal/queue"
	"github.com/smallbiznis/smartinvoice/internal/scheduler"
	"github.com/smallbiznis/smartinvoice/internal/signing"
	"github.com/smallbiznis/smartinvoice/internal/submission"
	"github.com/smallbiznis/smartinvoice/internal/tax"
	"github.com/smallbiznis/smartinvoice/internal/transactionlog"
	"github.com/smallbiznis/smartinvoice/pkg/db"
	"go.uber.org/fx"
)

var errMemoryQueue = errors.New("worker requires QUEUE_DRIVER=redis; the memory queue only drains inside the process that fills it")

func main() {
	app := fx.New(
		config.Module,
		fx.Invoke(RequireSharedQueue),
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		catalog.Module,

		// Domain services required by the worker
		device.Module,
		transactionlog.Module,
		tax.Module,
		authority.Module,
		signing.Module,
		alert.Module,
		submission.Module,
		queue.Module,
		queue.WorkerModule,
		scheduler.Module,

		// No server module!
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

func RequireSharedQueue(cfg config.Config) error {
	if cfg.Queue.Driver != "redis" {
		return errMemoryQueue
	}
	return nil
}
