// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/atomic"

	"github.com/tochemey/sharedchain/backend"
	"github.com/tochemey/sharedchain/log"
)

// headScript returns the pointer of the head, creating it empty when missing.
var headScript = goredis.NewScript(`
local pointer = redis.call('GET', KEYS[1])
if pointer then
  return pointer
end
redis.call('SET', KEYS[1], '')
return ''
`)

// extendScript links a tail to a new node.
//
// KEYS: tail pointer, new data, new pointer, tail data.
// ARGV: new id, new data.
// It returns {0} when the tail is no longer the tail or the new id is taken,
// {1, tailData} once the three keys are written.
var extendScript = goredis.NewScript(`
local tail = redis.call('GET', KEYS[1])
if tail ~= '' then
  return {0}
end
if redis.call('EXISTS', KEYS[2]) == 1 or redis.call('EXISTS', KEYS[3]) == 1 then
  return {0}
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
redis.call('SET', KEYS[3], '')
return {1, redis.call('GET', KEYS[4])}
`)

// Backend is the script backend of a shared chain.
//
// Redis has no per-key revision, so the tail is guarded by its pointer still
// being empty and every record carries a zero revision. Data always lives
// under the data key space.
type Backend struct {
	config *Config
	keys   backend.KeySpace
	client *goredis.Client
	logger log.Logger
	closed *atomic.Bool
}

// enforce compilation error
var _ backend.Backend = (*Backend)(nil)

// Option configures the Backend
type Option func(*Backend)

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewClient creates a go-redis client from the configuration.
// The configuration is sanitized in place.
func NewClient(config *Config) *goredis.Client {
	config.Sanitize()
	return goredis.NewClient(&goredis.Options{
		Addr:         config.Addr,
		Username:     config.Username,
		Password:     config.Password,
		DB:           config.DB,
		TLSConfig:    config.TLS,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
		PoolSize:     config.PoolSize,
	})
}

// New connects to Redis and returns a Backend for the given key space.
func New(ctx context.Context, config *Config, keys backend.KeySpace, opts ...Option) (*Backend, error) {
	if config == nil {
		return nil, errors.New("chain/redis: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := NewClient(config)

	pingCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		if cerr := client.Close(); cerr != nil {
			return nil, errors.Join(err, fmt.Errorf("failed to close redis client: %w", cerr))
		}
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(client, config, keys, opts...), nil
}

// NewWithClient wraps an existing client. The backend takes ownership of the
// client and closes it on Close.
func NewWithClient(client *goredis.Client, config *Config, keys backend.KeySpace, opts ...Option) *Backend {
	if config == nil {
		config = new(Config)
	}
	config.Sanitize()

	b := &Backend{
		config: config,
		keys:   keys,
		client: client,
		logger: log.DiscardLogger,
		closed: atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Head makes sure the head key exists and returns it.
func (b *Backend) Head(ctx context.Context, id string) (*backend.Record, error) {
	opCtx, cancel := b.withTimeout(ctx)
	defer cancel()

	pointer, err := headScript.Run(opCtx, b.client, []string{b.keys.Chain(id)}).Text()
	if err != nil {
		return nil, fmt.Errorf("chain/redis: failed to start head %q: %w", id, err)
	}

	return &backend.Record{ID: id, NextID: pointer}, nil
}

// Load returns the node stored under id, or nil when there is none.
func (b *Backend) Load(ctx context.Context, id string) (*backend.Record, error) {
	opCtx, cancel := b.withTimeout(ctx)
	defer cancel()

	values, err := b.client.MGet(opCtx, b.keys.Chain(id), b.keys.Data(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("chain/redis: failed to load node %q: %w", id, err)
	}

	pointer, ok := values[0].(string)
	if !ok {
		return nil, nil
	}

	record := &backend.Record{ID: id, NextID: pointer}
	if data, ok := values[1].(string); ok {
		record.Data = []byte(data)
	}
	return record, nil
}

// Pointer reads the forward pointer of id.
func (b *Backend) Pointer(ctx context.Context, id string) (string, error) {
	opCtx, cancel := b.withTimeout(ctx)
	defer cancel()

	pointer, err := b.client.Get(opCtx, b.keys.Chain(id)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("chain/redis: failed to read pointer of %q: %w", id, err)
	}
	return pointer, nil
}

// Exists reports whether the pointer key of id has been written.
func (b *Backend) Exists(ctx context.Context, id string) (bool, error) {
	opCtx, cancel := b.withTimeout(ctx)
	defer cancel()

	count, err := b.client.Exists(opCtx, b.keys.Chain(id)).Result()
	if err != nil {
		return false, fmt.Errorf("chain/redis: failed to probe %q: %w", id, err)
	}
	return count > 0, nil
}

// Extend links tail to newID with a single script call.
func (b *Backend) Extend(ctx context.Context, tail *backend.Record, newID string, data []byte) (*backend.Record, bool, error) {
	if tail == nil {
		return nil, false, errors.New("chain/redis: tail is required")
	}

	opCtx, cancel := b.withTimeout(ctx)
	defer cancel()

	keys := []string{
		b.keys.Chain(tail.ID),
		b.keys.Data(newID),
		b.keys.Chain(newID),
		b.keys.Data(tail.ID),
	}

	reply, err := extendScript.Run(opCtx, b.client, keys, newID, data).Slice()
	if err != nil {
		return nil, false, fmt.Errorf("chain/redis: failed to append %q after %q: %w", newID, tail.ID, err)
	}

	if len(reply) == 0 {
		return nil, false, fmt.Errorf("chain/redis: empty reply appending %q", newID)
	}

	if status, _ := reply[0].(int64); status != 1 {
		b.logger.Debugf("chain/redis: append of %q after %q lost the race", newID, tail.ID)
		return nil, false, nil
	}

	committed := &backend.Record{ID: tail.ID, NextID: newID}
	if len(reply) > 1 {
		if tailData, ok := reply[1].(string); ok {
			committed.Data = []byte(tailData)
		}
	}
	return committed, true, nil
}

// SaveExtra writes an extra metadata entry.
func (b *Backend) SaveExtra(ctx context.Context, key string, data []byte) error {
	opCtx, cancel := b.withTimeout(ctx)
	defer cancel()

	if err := b.client.Set(opCtx, b.keys.Extra(key), data, 0).Err(); err != nil {
		return fmt.Errorf("chain/redis: failed to save extra data %q: %w", key, err)
	}
	return nil
}

// LoadExtra reads an extra metadata entry.
func (b *Backend) LoadExtra(ctx context.Context, key string) ([]byte, error) {
	opCtx, cancel := b.withTimeout(ctx)
	defer cancel()

	value, err := b.client.Get(opCtx, b.keys.Extra(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("chain/redis: failed to load extra data %q: %w", key, err)
	}
	return value, nil
}

// Close releases the Redis client. Close is idempotent.
func (b *Backend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.client.Close()
}

func (b *Backend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, b.config.Timeout)
}
