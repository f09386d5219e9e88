// Package healthcheck runs the operator checks behind the healthcheck binary:
// database reachability, device configuration, authority reachability, ledger
// statistics and optional log retention.
package healthcheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/smallbiznis/smartinvoice/internal/clock"
	"github.com/smallbiznis/smartinvoice/internal/config"
	devicedomain "github.com/smallbiznis/smartinvoice/internal/device/domain"
	logdomain "github.com/smallbiznis/smartinvoice/internal/transactionlog/domain"
	"github.com/smallbiznis/smartinvoice/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dbPingTimeout = 5 * time.Second

// Pinger reaches the authority base URL and reports the HTTP status.
type Pinger interface {
	Ping(ctx context.Context) (int, error)
}

type Options struct {
	Ping        bool
	CleanupDays int
}

// Report is the machine-readable outcome of a run. Healthy is false when the
// database or a requested ping failed.
type Report struct {
	Healthy     bool
	DatabaseOK  bool
	Initialized bool
	PingStatus  int
	Deleted     int64
}

type Params struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Device devicedomain.Service
	Ledger logdomain.Service
	Pinger Pinger
}

type Checker struct {
	cfg    config.Config
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	device devicedomain.Service
	ledger logdomain.Service
	pinger Pinger
}

func New(p Params) *Checker {
	return &Checker{
		cfg:    p.Config,
		db:     p.DB,
		log:    p.Log.Named("healthcheck"),
		clock:  p.Clock,
		device: p.Device,
		ledger: p.Ledger,
		pinger: p.Pinger,
	}
}

// Run writes a human-readable report to w.
func (c *Checker) Run(ctx context.Context, w io.Writer, opts Options) Report {
	report := Report{Healthy: true}

	fmt.Fprintln(w, "ZRA Smart Invoice Health Check")
	fmt.Fprintln(w, "==============================")

	report.DatabaseOK = c.checkDatabase(ctx, w)
	if !report.DatabaseOK {
		report.Healthy = false
		return report
	}

	report.Initialized = c.checkConfiguration(ctx, w)

	if opts.Ping {
		status, ok := c.checkAPI(ctx, w, report.Initialized)
		report.PingStatus = status
		if !ok {
			report.Healthy = false
		}
	}

	c.showStatistics(ctx, w)

	if opts.CleanupDays > 0 {
		deleted, err := c.cleanup(ctx, w, opts.CleanupDays)
		if err != nil {
			report.Healthy = false
		}
		report.Deleted = deleted
	}

	return report
}

func (c *Checker) checkDatabase(ctx context.Context, w io.Writer) bool {
	fmt.Fprintln(w, "Checking database connection...")
	if err := db.Ping(ctx, c.db, dbPingTimeout); err != nil {
		c.log.Error("database ping failed", zap.Error(err))
		fmt.Fprintln(w, "✗ Database connection: FAILED")
		fmt.Fprintf(w, "  Error: %v\n", err)
		return false
	}
	fmt.Fprintf(w, "✓ Database connection: OK (%s)\n", c.db.Dialector.Name())
	return true
}

func (c *Checker) checkConfiguration(ctx context.Context, w io.Writer) bool {
	fmt.Fprintln(w, "Checking ZRA configuration...")
	reg, err := c.device.Active(ctx)
	if err != nil {
		fmt.Fprintln(w, "✗ Configuration: UNREADABLE")
		fmt.Fprintf(w, "  Error: %v\n", err)
		return false
	}
	if reg == nil {
		fmt.Fprintln(w, "! Configuration: NOT FOUND")
		fmt.Fprintf(w, "  • API environment: %s\n", c.cfg.DeviceEnvironment())
		return false
	}

	now := c.clock.Now()
	initialized := reg.IsInitialized()
	state := "Not Initialized"
	if initialized {
		state = "Initialized"
	}

	fmt.Fprintln(w, "✓ Configuration: FOUND")
	fmt.Fprintf(w, "  • TPIN: %s\n", devicedomain.MaskTPIN(reg.TPIN))
	fmt.Fprintf(w, "  • Branch ID: %s\n", reg.BranchID)
	fmt.Fprintf(w, "  • Environment: %s\n", reg.Environment)
	fmt.Fprintf(w, "  • Device Status: %s\n", state)
	if initialized {
		fmt.Fprintf(w, "  • Last Initialized: %s\n", humanize.RelTime(*reg.LastInitializedAt, now, "ago", "from now"))
	}
	if reg.LastSyncAt != nil {
		fmt.Fprintf(w, "  • Last Sync: %s\n", humanize.RelTime(*reg.LastSyncAt, now, "ago", "from now"))
	}
	return initialized
}

func (c *Checker) checkAPI(ctx context.Context, w io.Writer, initialized bool) (int, bool) {
	fmt.Fprintln(w, "Testing API connection...")
	if !initialized {
		fmt.Fprintln(w, "! Cannot test API connection: Device not initialized")
		return 0, true
	}

	status, err := c.pinger.Ping(ctx)
	if err != nil {
		c.log.Warn("authority ping failed", zap.Error(err))
		fmt.Fprintln(w, "✗ API connection: FAILED")
		fmt.Fprintf(w, "  Error: %v\n", err)
		return 0, false
	}
	if status >= http.StatusOK && status < http.StatusInternalServerError {
		fmt.Fprintf(w, "✓ API connection: OK (Status %d)\n", status)
		return status, true
	}
	fmt.Fprintf(w, "✗ API connection: FAILED (Status %d)\n", status)
	return status, false
}

func (c *Checker) showStatistics(ctx context.Context, w io.Writer) {
	fmt.Fprintln(w, "Transaction statistics:")
	stats, err := c.ledger.Statistics(ctx)
	if err != nil {
		fmt.Fprintf(w, "  Error: %v\n", err)
		return
	}

	fmt.Fprintf(w, "  • Total transactions: %s\n", humanize.Comma(stats.TotalTransactions))
	fmt.Fprintf(w, "  • Successful: %s\n", humanize.Comma(stats.SuccessfulTransactions))
	fmt.Fprintf(w, "  • Failed: %s\n", humanize.Comma(stats.FailedTransactions))
	fmt.Fprintf(w, "  • Success rate: %s%%\n", humanize.Ftoa(stats.SuccessRate))

	if stats.LastTransaction != nil {
		latest, err := c.ledger.Recent(ctx, 1)
		status := ""
		if err == nil && len(latest) > 0 {
			status = fmt.Sprintf(" (%s)", latest[0].Status)
		}
		fmt.Fprintf(w, "  • Last transaction: %s%s\n", humanize.RelTime(*stats.LastTransaction, c.clock.Now(), "ago", "from now"), status)
	}
}

func (c *Checker) cleanup(ctx context.Context, w io.Writer, days int) (int64, error) {
	fmt.Fprintf(w, "Cleaning up logs older than %d days...\n", days)
	deleted, err := c.ledger.Retention(ctx, days)
	if err != nil {
		fmt.Fprintln(w, "  ✗ Cleanup failed")
		fmt.Fprintf(w, "  Error: %v\n", err)
		return 0, err
	}
	if deleted == 0 {
		fmt.Fprintln(w, "  No logs to clean up.")
		return 0, nil
	}
	fmt.Fprintf(w, "  ✓ Deleted %s old transaction logs.\n", humanize.Comma(deleted))
	return deleted, nil
}
