package domain

import "context"

// Dispatcher hands prepared commands to a background queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd Command) error
}

// Executor performs a single synchronous attempt for a queued command.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*Result, error)
}

type Service interface {
	Executor
	Submit(ctx context.Context, req Request) (*Result, error)
	InitializeDevice(ctx context.Context, req InitRequest) (*Result, error)
	HealthCheck(ctx context.Context) (Health, error)
	IsInitialized(ctx context.Context) (bool, error)
}
