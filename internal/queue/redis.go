package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/smartinvoice/internal/config"
	submissiondomain "github.com/smallbiznis/smartinvoice/internal/submission/domain"
)

const (
	defaultRedisKey = "smartinvoice:transactions"
	popTimeout      = 5 * time.Second
)

// RedisQueue is a list queue: LPUSH to enqueue, BRPOP to consume.
type RedisQueue struct {
	client *redis.Client
	key    string
	closed atomic.Bool
}

func NewRedisQueue(cfg config.QueueConfig) (*RedisQueue, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("queue redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	return NewRedisQueueWithClient(client, cfg.RedisKey), nil
}

func NewRedisQueueWithClient(client *redis.Client, key string) *RedisQueue {
	key = strings.TrimSpace(key)
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Dispatch(ctx context.Context, cmd submissiondomain.Command) error {
	if q.closed.Load() {
		return ErrClosed
	}
	raw, err := encode(cmd)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", q.key, err)
	}
	return nil
}

func (q *RedisQueue) Receive(ctx context.Context) (submissiondomain.Command, error) {
	for {
		if q.closed.Load() {
			return submissiondomain.Command{}, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return submissiondomain.Command{}, err
		}

		values, err := q.client.BRPop(ctx, popTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return submissiondomain.Command{}, ctxErr
			}
			if q.closed.Load() {
				return submissiondomain.Command{}, ErrClosed
			}
			return submissiondomain.Command{}, fmt.Errorf("brpop %s: %w", q.key, err)
		}
		// BRPOP returns [key, value].
		if len(values) != 2 {
			continue
		}
		return decode([]byte(values[1]))
	}
}

func (q *RedisQueue) Close() error {
	if q.closed.Swap(true) {
		return nil
	}
	return q.client.Close()
}
