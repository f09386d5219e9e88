package queue

import (
	"context"

	submissiondomain "github.com/smallbiznis/smartinvoice/internal/submission/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("queue",
	fx.Provide(New),
	fx.Provide(func(q Queue) submissiondomain.Dispatcher { return q }),
)

// WorkerModule runs the consumer. Processes that only enqueue leave it out.
var WorkerModule = fx.Module("queue.worker",
	fx.Provide(NewWorker),
	fx.Invoke(registerWorker),
)

func registerWorker(lc fx.Lifecycle, w *Worker, log *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				w.Run(ctx)
			}()
			log.Info("queue worker started", zap.Int("concurrency", w.concurrency), zap.Int("max_attempts", w.attempts))
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
			return nil
		},
	})
}
