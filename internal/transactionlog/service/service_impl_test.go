package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/smartinvoice/internal/clock"
	logdomain "github.com/smallbiznis/smartinvoice/internal/transactionlog/domain"
	"github.com/smallbiznis/smartinvoice/internal/transactionlog/masking"
	"github.com/smallbiznis/smartinvoice/internal/transactionlog/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupLedger(t *testing.T) (*Service, *clock.FakeClock, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&logdomain.Entry{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	}).(*Service)
	return svc, fake, db
}

func TestCreateLog_SanitizesPayloads(t *testing.T) {
	svc, _, db := setupLedger(t)
	ctx := context.Background()

	request := map[string]any{
		"tpin":     "1234567890",
		"api_key":  "live-secret",
		"password": "hunter2",
		"items":    []any{map[string]any{"name": "A", "key": "k"}},
	}
	response := map[string]any{"data": map[string]any{"api_key": "issued"}}

	entry, err := svc.CreateLog(ctx, logdomain.CreateRequest{
		Kind:      logdomain.KindSales,
		Reference: "zra_1",
		Request:   request,
		Response:  response,
		Status:    logdomain.StatusSuccess,
	})
	require.NoError(t, err)
	require.NotNil(t, entry.Reference)
	assert.Equal(t, "zra_1", *entry.Reference)

	// caller maps stay untouched
	assert.Equal(t, "live-secret", request["api_key"])

	var stored logdomain.Entry
	require.NoError(t, db.First(&stored, "id = ?", entry.ID).Error)
	assert.Equal(t, masking.Mask, stored.RequestPayload["api_key"])
	assert.Equal(t, masking.Mask, stored.RequestPayload["password"])
	assert.Equal(t, "1234567890", stored.RequestPayload["tpin"])
	items := stored.RequestPayload["items"].([]any)
	assert.Equal(t, masking.Mask, items[0].(map[string]any)["key"])
	data := stored.ResponsePayload["data"].(map[string]any)
	assert.Equal(t, masking.Mask, data["api_key"])
	assert.NotContains(t, fmt.Sprint(stored.RequestPayload, stored.ResponsePayload), "live-secret")
}

func TestCreateLog_FailedWithoutResponse(t *testing.T) {
	svc, _, db := setupLedger(t)

	entry, err := svc.CreateLog(context.Background(), logdomain.CreateRequest{
		Kind:         logdomain.KindPurchase,
		Reference:    "zra_2",
		Request:      map[string]any{"a": 1},
		Status:       logdomain.StatusFailed,
		ErrorMessage: "HTTP Error: 400",
	})
	require.NoError(t, err)

	var stored logdomain.Entry
	require.NoError(t, db.First(&stored, "id = ?", entry.ID).Error)
	assert.Equal(t, logdomain.StatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "HTTP Error: 400", *stored.ErrorMessage)
	assert.Empty(t, stored.ResponsePayload)
}

func TestCreateLog_RejectsUnknownKindAndStatus(t *testing.T) {
	svc, _, _ := setupLedger(t)
	ctx := context.Background()

	_, err := svc.CreateLog(ctx, logdomain.CreateRequest{Kind: "refund", Status: logdomain.StatusSuccess})
	assert.True(t, errors.Is(err, logdomain.ErrInvalidKind))

	_, err = svc.CreateLog(ctx, logdomain.CreateRequest{Kind: logdomain.KindSales, Status: "pending"})
	assert.True(t, errors.Is(err, logdomain.ErrInvalidStatus))
}

func TestStatistics(t *testing.T) {
	svc, fake, _ := setupLedger(t)
	ctx := context.Background()

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalTransactions)
	assert.Equal(t, float64(0), stats.SuccessRate)
	assert.Nil(t, stats.LastTransaction)

	for _, status := range []logdomain.Status{logdomain.StatusSuccess, logdomain.StatusSuccess, logdomain.StatusFailed} {
		fake.Advance(time.Minute)
		_, err := svc.CreateLog(ctx, logdomain.CreateRequest{
			Kind:    logdomain.KindSales,
			Request: map[string]any{},
			Status:  status,
		})
		require.NoError(t, err)
	}

	stats, err = svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalTransactions)
	assert.Equal(t, int64(2), stats.SuccessfulTransactions)
	assert.Equal(t, int64(1), stats.FailedTransactions)
	assert.Equal(t, 66.7, stats.SuccessRate)
	require.NotNil(t, stats.LastTransaction)
	assert.True(t, stats.LastTransaction.Equal(fake.Now()))
}

func TestSuccessRate(t *testing.T) {
	assert.Equal(t, float64(0), SuccessRate(0, 0))
	assert.Equal(t, float64(100), SuccessRate(4, 4))
	assert.Equal(t, 33.3, SuccessRate(1, 3))
	assert.Equal(t, 12.5, SuccessRate(1, 8))
}

func TestRetention(t *testing.T) {
	svc, fake, db := setupLedger(t)
	ctx := context.Background()

	_, err := svc.Retention(ctx, 0)
	assert.True(t, errors.Is(err, logdomain.ErrInvalidRetention))

	create := func() {
		_, err := svc.CreateLog(ctx, logdomain.CreateRequest{
			Kind:    logdomain.KindStock,
			Request: map[string]any{},
			Status:  logdomain.StatusSuccess,
		})
		require.NoError(t, err)
	}

	create()
	create()
	fake.Advance(40 * 24 * time.Hour)
	create()

	deleted, err := svc.Retention(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var remaining int64
	require.NoError(t, db.Model(&logdomain.Entry{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}

func TestRecentAndList(t *testing.T) {
	svc, fake, _ := setupLedger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		fake.Advance(time.Second)
		status := logdomain.StatusSuccess
		if i%2 == 1 {
			status = logdomain.StatusFailed
		}
		_, err := svc.CreateLog(ctx, logdomain.CreateRequest{
			Kind:      logdomain.KindSales,
			Reference: fmt.Sprintf("zra_%d", i),
			Request:   map[string]any{},
			Status:    status,
		})
		require.NoError(t, err)
	}

	recent, err := svc.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "zra_4", *recent[0].Reference)

	page, err := svc.List(ctx, logdomain.ListRequest{Pagination: paginationOf("", 2)})
	require.NoError(t, err)
	require.Len(t, page.Logs, 2)
	assert.True(t, page.HasMore)
	require.NotEmpty(t, page.NextPageToken)

	next, err := svc.List(ctx, logdomain.ListRequest{Pagination: paginationOf(page.NextPageToken, 2)})
	require.NoError(t, err)
	require.Len(t, next.Logs, 2)
	assert.Equal(t, "zra_2", *next.Logs[0].Reference)

	failed, err := svc.List(ctx, logdomain.ListRequest{Status: logdomain.StatusFailed})
	require.NoError(t, err)
	assert.Len(t, failed.Logs, 2)
	assert.False(t, failed.HasMore)

	_, err = svc.List(ctx, logdomain.ListRequest{Pagination: paginationOf("not-a-token", 2)})
	assert.True(t, errors.Is(err, logdomain.ErrInvalidPageToken))

	count, err := svc.CountFailuresSince(ctx, fake.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestBetween(t *testing.T) {
	svc, fake, _ := setupLedger(t)
	ctx := context.Background()

	start := fake.Now()
	for i := 0; i < 3; i++ {
		_, err := svc.CreateLog(ctx, logdomain.CreateRequest{
			Kind:      logdomain.KindSales,
			Reference: fmt.Sprintf("zra_%d", i),
			Status:    logdomain.StatusSuccess,
		})
		require.NoError(t, err)
		fake.Advance(time.Hour)
	}

	entries, err := svc.Between(ctx, start, start.Add(90*time.Minute))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "zra_0", *entries[0].Reference, "oldest first")
	assert.Equal(t, "zra_1", *entries[1].Reference)

	_, err = svc.Between(ctx, start, start.Add(-time.Second))
	assert.True(t, errors.Is(err, logdomain.ErrInvalidTimeRange))
}
