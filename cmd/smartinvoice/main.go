package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/smartinvoice/internal/alert"
	"github.com/smallbiznis/smartinvoice/internal/authority"
	"github.com/smallbiznis/smartinvoice/internal/catalog"
	"github.com/smallbiznis/smartinvoice/internal/clock"
	"github.com/smallbiznis/smartinvoice/internal/config"
	"github.com/smallbiznis/smartinvoice/internal/device"
	"github.com/smallbiznis/smartinvoice/internal/inventory"
	"github.com/smallbiznis/smartinvoice/internal/migration"
	"github.com/smallbiznis/smartinvoice/internal/observability"
	"github.com/smallbiznis/smartinvoice/internal/queue"
	"github.com/smallbiznis/smartinvoice/internal/report"
	"github.com/smallbiznis/smartinvoice/internal/scheduler"
	"github.com/smallbiznis/smartinvoice/internal/server"
	"github.com/smallbiznis/smartinvoice/internal/signing"
	"github.com/smallbiznis/smartinvoice/internal/submission"
	"github.com/smallbiznis/smartinvoice/internal/tax"
	"github.com/smallbiznis/smartinvoice/internal/transactionlog"
	"github.com/smallbiznis/smartinvoice/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		catalog.Module,

		// Functional Domains
		device.Module,
		transactionlog.Module,
		tax.Module,
		inventory.Module,
		report.Module,
		authority.Module,
		signing.Module,
		alert.Module,
		queue.Module,
		queue.WorkerModule,
		submission.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
