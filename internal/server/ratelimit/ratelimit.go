// Package ratelimit throttles requests per client IP using ulule/limiter.
// Counters live in memory unless a Redis address is configured, in which
// case every server instance shares them.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const (
	DefaultPrefix   = "taskauth:ratelimit:"
	cleanupInterval = time.Minute
	redisMaxRetry   = 3
)

// Options configure a Limiter. Rate uses the ulule format, e.g. "5-M" for
// five requests per minute.
type Options struct {
	Rate      string
	RedisAddr string
	Prefix    string
}

// Limiter wraps a configured limiter instance and its store.
type Limiter struct {
	instance *limiter.Limiter
	client   *redis.Client
}

// New parses the rate and builds the store. With a Redis address the server
// must be reachable at construction time.
func New(ctx context.Context, opts Options) (*Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(opts.Rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", opts.Rate, err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	l := &Limiter{}
	var store limiter.Store

	if opts.RedisAddr == "" {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          prefix,
			CleanUpInterval: cleanupInterval,
		})
	} else {
		l.client = redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		if err := l.client.Ping(ctx).Err(); err != nil {
			_ = l.client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		store, err = sredis.NewStoreWithOptions(l.client, limiter.StoreOptions{
			Prefix:   prefix,
			MaxRetry: redisMaxRetry,
		})
		if err != nil {
			_ = l.client.Close()
			return nil, fmt.Errorf("redis store: %w", err)
		}
	}

	l.instance = limiter.New(store, rate)
	return l, nil
}

// Middleware returns an http middleware that calls onLimit instead of the
// wrapped handler once the client exceeded the rate. Store failures are
// passed to onError.
func (l *Limiter) Middleware(onLimit func(w http.ResponseWriter, r *http.Request), onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	mw := stdlib.NewMiddleware(l.instance,
		stdlib.WithLimitReachedHandler(onLimit),
		stdlib.WithErrorHandler(onError),
	)
	return mw.Handler
}

// Peek reports the current counter for key without incrementing it.
func (l *Limiter) Peek(ctx context.Context, key string) (limiter.Context, error) {
	return l.instance.Peek(ctx, key)
}

// Close releases the Redis client, if any.
func (l *Limiter) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}
