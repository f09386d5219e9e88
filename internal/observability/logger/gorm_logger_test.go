package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	obscontext "github.com/smallbiznis/smartinvoice/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func observeGlobals(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestGormLoggerTagsQueriesWithTableAndReference(t *testing.T) {
	logs := observeGlobals(t)
	l := NewGormLogger(DefaultGormLoggerConfig())

	ctx := obscontext.WithReference(context.Background(), "zra_01HX")
	sql := `INSERT INTO "transaction_logs" ("id","transaction_type") VALUES ($1,$2)`
	l.Trace(ctx, time.Now(), func() (string, int64) { return sql, 1 }, errors.New("duplicate key"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "gorm.query", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "transaction_logs", fields["table"])
	assert.Equal(t, "INSERT", fields["operation"])
	assert.Equal(t, "zra_01HX", fields["reference"])
}

func TestGormLoggerFlagsAppendOnlyUpdates(t *testing.T) {
	logs := observeGlobals(t)
	l := NewGormLogger(DefaultGormLoggerConfig())

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `UPDATE "transaction_logs" SET "status"=$1 WHERE id = $2`, 1
	}, nil)
	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `UPDATE "device_registrations" SET "last_sync_at"=$1 WHERE id = $2`, 1
	}, nil)
	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `DELETE FROM "transaction_logs" WHERE created_at < $1`, 12
	}, nil)
	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `UPDATE inventory_products SET current_stock = 3 WHERE id = 9`, 1
	}, nil)
	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `UPDATE "inventory_movements" SET "quantity"=$1 WHERE id = $2`, 1
	}, nil)

	mutations := logs.FilterMessage("append-only table mutated").All()
	require.Len(t, mutations, 2)
	assert.Equal(t, "transaction_logs", mutations[0].ContextMap()["table"])
	assert.Equal(t, "inventory_movements", mutations[1].ContextMap()["table"])
}

func TestGormLoggerIgnoresRecordNotFound(t *testing.T) {
	logs := observeGlobals(t)
	l := NewGormLogger(DefaultGormLoggerConfig())

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `SELECT * FROM "device_registrations" ORDER BY created_at desc LIMIT 1`, 0
	}, gormlogger.ErrRecordNotFound)

	assert.Zero(t, logs.Len())
}

func TestTableFromSQL(t *testing.T) {
	assert.Equal(t, "device_registrations", tableFromSQL("SELECT * FROM `device_registrations` WHERE id = ?"))
	assert.Equal(t, "transaction_logs", tableFromSQL(`INSERT INTO "transaction_logs" (id) VALUES ($1)`))
	assert.Equal(t, "", tableFromSQL("SELECT 1"))
}
