package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"
	submissiondomain "github.com/smallbiznis/smartinvoice/internal/submission/domain"
)

const defaultBuffer = 256

// MemoryQueue is a buffered channel for single-process deployments. Pending
// commands are lost on restart.
type MemoryQueue struct {
	ch        chan submissiondomain.Command
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &MemoryQueue{
		ch:   make(chan submissiondomain.Command, buffer),
		done: make(chan struct{}),
	}
}

func (q *MemoryQueue) Dispatch(ctx context.Context, cmd submissiondomain.Command) error {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.ch <- cmd:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Receive(ctx context.Context) (submissiondomain.Command, error) {
	select {
	case cmd := <-q.ch:
		return cmd, nil
	case <-q.done:
		return submissiondomain.Command{}, ErrClosed
	case <-ctx.Done():
		return submissiondomain.Command{}, ctx.Err()
	}
}

// Len reports the number of pending commands.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
