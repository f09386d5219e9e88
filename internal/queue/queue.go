package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/smallbiznis/smartinvoice/internal/config"
	submissiondomain "github.com/smallbiznis/smartinvoice/internal/submission/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

var (
	ErrClosed        = errors.New("queue_closed")
	ErrUnknownDriver = errors.New("unknown_queue_driver")
)

// Queue carries prepared commands from the submitter to the worker.
type Queue interface {
	submissiondomain.Dispatcher
	// Receive blocks until a command is available, ctx is done, or the queue is closed.
	Receive(ctx context.Context) (submissiondomain.Command, error)
	Close() error
}

// New selects a driver from QUEUE_DRIVER.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Queue, error) {
	log = log.Named("queue")

	var (
		q   Queue
		err error
	)
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Queue.Driver)); driver {
	case DriverMemory, "":
		q = NewMemoryQueue(cfg.Queue.Buffer)
	case DriverRedis:
		q, err = NewRedisQueue(cfg.Queue)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, err
	}

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return q.Close()
			},
		})
	}

	log.Info("queue initialized", zap.String("driver", cfg.Queue.Driver))
	return q, nil
}

func encode(cmd submissiondomain.Command) ([]byte, error) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	return json.Marshal(cmd)
}

// decode keeps JSON numbers intact so amounts survive the round trip unchanged.
func decode(raw []byte) (submissiondomain.Command, error) {
	var cmd submissiondomain.Command
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&cmd); err != nil {
		return submissiondomain.Command{}, fmt.Errorf("decode command: %w", err)
	}
	return cmd, nil
}
