package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/smartinvoice/internal/config"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyPrefix = "smartinvoice:ratelimit"

var ErrEmptyKey = errors.New("rate limiter key is empty")

// Result is the state of one client's window after a request was counted.
type Result struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// RetryAfter is how long a denied client should wait, rounded up to a second.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed {
		return 0
	}
	wait := r.ResetAt.Sub(now)
	if wait < time.Second {
		return time.Second
	}
	return wait.Round(time.Second)
}

type Limiter struct {
	limiter *limiter.Limiter
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

// NewLimiter shares counters through redis when the queue already runs on it,
// and keeps them in process otherwise. A disabled limiter is nil.
func NewLimiter(p Params) (*Limiter, error) {
	cfg := p.Config.RateLimit
	if !cfg.Enabled {
		return nil, nil
	}
	log := p.Log.Named("ratelimit")

	options := limiter.StoreOptions{Prefix: keyPrefix, CleanUpInterval: time.Minute}
	if p.Config.Queue.Driver != "redis" {
		log.Info("rate limiter using memory store", zap.String("rate", cfg.Rate))
		return New(cfg, memory.NewStoreWithOptions(options))
	}

	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(p.Config.Queue.RedisAddr),
		Password: strings.TrimSpace(p.Config.Queue.RedisPassword),
		DB:       p.Config.Queue.RedisDB,
	})
	store, err := sredis.NewStoreWithOptions(client, options)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("rate limit redis store: %w", err)
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	log.Info("rate limiter using redis store", zap.String("rate", cfg.Rate))
	return New(cfg, store)
}

func New(cfg config.RateLimitConfig, store limiter.Store) (*Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(strings.TrimSpace(cfg.Rate))
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", cfg.Rate, err)
	}
	return &Limiter{limiter: limiter.New(store, rate)}, nil
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.limiter != nil
}

// Allow counts one request against key.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Result{}, ErrEmptyKey
	}

	state, err := l.limiter.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Allowed:   !state.Reached,
		Limit:     state.Limit,
		Remaining: state.Remaining,
		ResetAt:   time.Unix(state.Reset, 0),
	}, nil
}
