package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/smartinvoice/internal/config"
	"go.uber.org/zap"
)

const (
	lockKeyPrefix = "smartinvoice:scheduler:lock:"

	lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`
)

// Locker keeps a job to one instance at a time across replicas.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type RedisLocker struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	if client == nil {
		return nil
	}
	return &RedisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// ProvideLocker shares the queue's redis when the redis driver is selected.
// Single-process deployments run without a lock.
func ProvideLocker(cfg config.Config, log *zap.Logger) Locker {
	if !strings.EqualFold(strings.TrimSpace(cfg.Queue.Driver), "redis") {
		return nil
	}
	addr := strings.TrimSpace(cfg.Queue.RedisAddr)
	if addr == "" {
		log.Warn("scheduler lock disabled, redis addr is empty")
		return nil
	}
	return NewRedisLocker(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.Queue.RedisPassword),
		DB:       cfg.Queue.RedisDB,
	}))
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

func (s *Scheduler) acquire(ctx context.Context, job string) (func(), bool, error) {
	if s.locker == nil {
		return func() {}, true, nil
	}
	key := lockKeyPrefix + job
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil || !ok {
		return func() {}, false, err
	}
	return func() {
		// The job context may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.log.Warn("failed to release job lock", zap.String("job", job), zap.Error(err))
		}
	}, true, nil
}
