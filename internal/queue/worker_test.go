package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	alertdomain "github.com/smallbiznis/smartinvoice/internal/alert/domain"
	"github.com/smallbiznis/smartinvoice/internal/config"
	submissiondomain "github.com/smallbiznis/smartinvoice/internal/submission/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Execute(ctx context.Context, cmd submissiondomain.Command) (*submissiondomain.Result, error) {
	args := m.Called(ctx, cmd)
	result, _ := args.Get(0).(*submissiondomain.Result)
	return result, args.Error(1)
}

type mockAlerter struct {
	mock.Mock
}

func (m *mockAlerter) AlertForCriticalFailure(ctx context.Context, alert alertdomain.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func testCommand() submissiondomain.Command {
	return submissiondomain.Command{
		ID:        "cmd-1",
		Reference: "zra_queued_01",
		Kind:      submissiondomain.KindSales,
		Payload:   map[string]any{"invoice_type": "NORMAL"},
	}
}

func newTestWorker(t *testing.T, exec *mockExecutor, alerts *mockAlerter, retry config.RetryConfig) *Worker {
	t.Helper()
	return newWorker(NewMemoryQueue(4), exec, alerts, zaptest.NewLogger(t), retry, 1)
}

var fastRetry = config.RetryConfig{Enabled: true, Attempts: 3, Delay: time.Millisecond}

func TestProcess_SuccessFirstAttempt(t *testing.T) {
	exec := &mockExecutor{}
	alerts := &mockAlerter{}
	exec.On("Execute", mock.Anything, mock.Anything).
		Return(&submissiondomain.Result{Success: true, Reference: "zra_a"}, nil).Once()

	newTestWorker(t, exec, alerts, fastRetry).Process(context.Background(), testCommand())

	exec.AssertNumberOfCalls(t, "Execute", 1)
	alerts.AssertNotCalled(t, "AlertForCriticalFailure", mock.Anything, mock.Anything)
}

func TestProcess_RetriesServerErrorsThenSucceeds(t *testing.T) {
	exec := &mockExecutor{}
	alerts := &mockAlerter{}
	exec.On("Execute", mock.Anything, mock.Anything).
		Return(&submissiondomain.Result{StatusCode: 503, Reference: "zra_a", Error: "HTTP Error: 503"}, nil).Once()
	exec.On("Execute", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: connection reset", submissiondomain.ErrTransport)).Once()
	exec.On("Execute", mock.Anything, mock.Anything).
		Return(&submissiondomain.Result{Success: true, Reference: "zra_c"}, nil).Once()

	newTestWorker(t, exec, alerts, fastRetry).Process(context.Background(), testCommand())

	exec.AssertNumberOfCalls(t, "Execute", 3)
	alerts.AssertNotCalled(t, "AlertForCriticalFailure", mock.Anything, mock.Anything)
}

func TestProcess_ClientErrorIsNotRetried(t *testing.T) {
	exec := &mockExecutor{}
	alerts := &mockAlerter{}
	exec.On("Execute", mock.Anything, mock.Anything).
		Return(&submissiondomain.Result{StatusCode: 400, Error: "Invalid input"}, nil).Once()

	newTestWorker(t, exec, alerts, fastRetry).Process(context.Background(), testCommand())

	exec.AssertNumberOfCalls(t, "Execute", 1)
	alerts.AssertNotCalled(t, "AlertForCriticalFailure", mock.Anything, mock.Anything)
}

func TestProcess_ExhaustedRaisesCriticalAlert(t *testing.T) {
	exec := &mockExecutor{}
	alerts := &mockAlerter{}
	exec.On("Execute", mock.Anything, mock.Anything).
		Return(&submissiondomain.Result{StatusCode: 500, Reference: "zra_last", Error: "HTTP Error: 500"}, nil)
	alerts.On("AlertForCriticalFailure", mock.Anything, mock.MatchedBy(func(a alertdomain.Alert) bool {
		return a.Reason == alertdomain.ReasonRetryExhausted &&
			a.Reference == "zra_queued_01" &&
			a.Kind == "sales" &&
			a.Details["attempts"] == 3 &&
			a.Details["last_reference"] == "zra_last"
	})).Return(nil).Once()

	newTestWorker(t, exec, alerts, fastRetry).Process(context.Background(), testCommand())

	exec.AssertNumberOfCalls(t, "Execute", 3)
	alerts.AssertExpectations(t)
}

func TestProcess_RetryDisabledMeansOneAttempt(t *testing.T) {
	exec := &mockExecutor{}
	alerts := &mockAlerter{}
	exec.On("Execute", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: timeout", submissiondomain.ErrTransport))
	alerts.On("AlertForCriticalFailure", mock.Anything, mock.Anything).Return(nil).Once()

	retry := config.RetryConfig{Enabled: false, Attempts: 5, Delay: time.Millisecond}
	newTestWorker(t, exec, alerts, retry).Process(context.Background(), testCommand())

	exec.AssertNumberOfCalls(t, "Execute", 1)
	alerts.AssertExpectations(t)
}

func TestProcess_PreconditionErrorDropsCommand(t *testing.T) {
	exec := &mockExecutor{}
	alerts := &mockAlerter{}
	exec.On("Execute", mock.Anything, mock.Anything).Return(nil, submissiondomain.ErrDeviceNotInitialized).Once()
	alerts.On("AlertForCriticalFailure", mock.Anything, mock.MatchedBy(func(a alertdomain.Alert) bool {
		return a.Reason == alertdomain.ReasonCommandDropped && a.Details["error"] == "device_not_initialized"
	})).Return(nil).Once()

	newTestWorker(t, exec, alerts, fastRetry).Process(context.Background(), testCommand())

	exec.AssertNumberOfCalls(t, "Execute", 1)
	alerts.AssertExpectations(t)
}

func TestProcess_StopsWaitingOnCancel(t *testing.T) {
	exec := &mockExecutor{}
	alerts := &mockAlerter{}
	exec.On("Execute", mock.Anything, mock.Anything).
		Return(&submissiondomain.Result{StatusCode: 502}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	retry := config.RetryConfig{Enabled: true, Attempts: 3, Delay: time.Hour}
	newTestWorker(t, exec, alerts, retry).Process(ctx, testCommand())

	exec.AssertNumberOfCalls(t, "Execute", 1)
	alerts.AssertNotCalled(t, "AlertForCriticalFailure", mock.Anything, mock.Anything)
}

func TestRun_DrainsQueueUntilClosed(t *testing.T) {
	q := NewMemoryQueue(4)
	exec := &mockExecutor{}
	done := make(chan struct{}, 2)
	exec.On("Execute", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { done <- struct{}{} }).
		Return(&submissiondomain.Result{Success: true}, nil)

	w := newWorker(q, exec, nil, zaptest.NewLogger(t), fastRetry, 2)

	ctx := context.Background()
	require.NoError(t, q.Dispatch(ctx, testCommand()))
	require.NoError(t, q.Dispatch(ctx, testCommand()))

	stopped := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(stopped)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("command not processed")
		}
	}

	require.NoError(t, q.Close())
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	exec.AssertNumberOfCalls(t, "Execute", 2)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, time.Hour))
	assert.True(t, sleep(context.Background(), 0))
}
