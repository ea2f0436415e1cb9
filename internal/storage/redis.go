package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key, e.g. "vm" stores "vm:completion:<key>".
	Prefix string
	// Timeout bounds each call including retries. Zero means 2s.
	Timeout time.Duration
	// MaxAttempts is the retry budget per call. Zero means 3.
	MaxAttempts int
}

// RedisStore keeps completion maps in Redis. Every call is bounded by a
// timeout and retried with exponential backoff.
type RedisStore struct {
	client      *redis.Client
	prefix      string
	timeout     time.Duration
	maxAttempts int
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	s := &RedisStore{
		client:      client,
		prefix:      opts.Prefix,
		timeout:     opts.Timeout,
		maxAttempts: opts.MaxAttempts,
	}
	if s.timeout <= 0 {
		s.timeout = 2 * time.Second
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = 3
	}

	if _, err := call(ctx, s, func(ctx context.Context) (string, error) {
		return client.Ping(ctx).Result()
	}); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	return s, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) completionKey(key string) string {
	if s.prefix == "" {
		return "completion:" + key
	}
	return s.prefix + ":completion:" + key
}

type blob struct {
	data []byte
	ok   bool
}

func (s *RedisStore) GetCompletion(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := call(ctx, s, func(ctx context.Context) (blob, error) {
		data, err := s.client.Get(ctx, s.completionKey(key)).Bytes()
		if errors.Is(err, redis.Nil) {
			return blob{}, nil
		}
		if err != nil {
			return blob{}, err
		}
		return blob{data: data, ok: true}, nil
	})
	if err != nil {
		return nil, false, err
	}
	return b.data, b.ok, nil
}

func (s *RedisStore) PutCompletion(ctx context.Context, key string, data []byte) error {
	_, err := call(ctx, s, func(ctx context.Context) (string, error) {
		return s.client.Set(ctx, s.completionKey(key), data, 0).Result()
	})
	return err
}

func (s *RedisStore) DeleteCompletion(ctx context.Context, key string) error {
	_, err := call(ctx, s, func(ctx context.Context) (int64, error) {
		return s.client.Del(ctx, s.completionKey(key)).Result()
	})
	return err
}

// call runs fn under the store's timeout with retries.
func call[T any](ctx context.Context, s *RedisStore, fn func(context.Context) (T, error)) (T, error) {
	r := retry.New[T](retry.Config{
		MaxAttempts:   s.maxAttempts,
		InitialDelay:  20 * time.Millisecond,
		BackoffPolicy: retry.BackoffExponential,
	})
	t := timeout.New[T](timeout.Config{
		DefaultTimeout: s.timeout,
	})
	return t.Execute(ctx, s.timeout, func(ctx context.Context) (T, error) {
		return r.Do(ctx, fn)
	})
}
