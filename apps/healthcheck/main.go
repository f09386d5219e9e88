package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/smartinvoice/internal/authority"
	"github.com/smallbiznis/smartinvoice/internal/clock"
	"github.com/smallbiznis/smartinvoice/internal/config"
	"github.com/smallbiznis/smartinvoice/internal/device"
	"github.com/smallbiznis/smartinvoice/internal/healthcheck"
	"github.com/smallbiznis/smartinvoice/internal/observability"
	"github.com/smallbiznis/smartinvoice/internal/transactionlog"
	"github.com/smallbiznis/smartinvoice/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	ping := flag.Bool("ping", false, "test the connection to the ZRA API")
	cleanup := flag.Int("cleanup", 0, "delete transaction logs older than N days")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout for the checks")
	flag.Parse()

	var (
		checker *healthcheck.Checker
		conn    *gorm.DB
	)

	// Lifecycle hooks are never started so a down database is reported
	// instead of aborting startup.
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		device.Module,
		transactionlog.Module,
		authority.Module,
		healthcheck.Module,
		fx.Populate(&checker, &conn),
	)
	if err := app.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	report := checker.Run(ctx, os.Stdout, healthcheck.Options{
		Ping:        *ping,
		CleanupDays: *cleanup,
	})
	cancel()

	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}

	if !report.Healthy {
		os.Exit(1)
	}
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
