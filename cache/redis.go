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

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/atomic"

	"github.com/tochemey/sharedchain/backend"
	redisbackend "github.com/tochemey/sharedchain/backend/redis"
	"github.com/tochemey/sharedchain/internal/codec"
	"github.com/tochemey/sharedchain/log"
)

// Redis caches node snapshots in Redis under {chainPrefix}:{id} as
// cbor([revision, data, nextID]).
type Redis struct {
	client      *goredis.Client
	chainPrefix string
	ttl         time.Duration
	timeout     time.Duration
	logger      log.Logger
	closed      *atomic.Bool
}

var _ Cache = (*Redis)(nil)

// RedisOption configures the Redis cache
type RedisOption func(*Redis)

// WithTTL sets the expiry of cached entries. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) RedisOption {
	return func(r *Redis) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRedis connects to the cache server.
func NewRedis(ctx context.Context, config *redisbackend.Config, chainPrefix string, opts ...RedisOption) (*Redis, error) {
	if config == nil {
		return nil, errors.New("cache: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := redisbackend.NewClient(config)

	pingCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: failed to connect to redis: %w", err)
	}

	r := &Redis{
		client:      client,
		chainPrefix: chainPrefix,
		timeout:     config.Timeout,
		logger:      log.DiscardLogger,
		closed:      atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Get returns the cached snapshot of id.
func (r *Redis) Get(ctx context.Context, id string) (*backend.Record, bool) {
	opCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	key := r.key(id)
	value, err := r.client.Get(opCtx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			r.logger.Debugf("cache: failed to read %q: %v", key, err)
		}
		return nil, false
	}

	revision, data, nextID, err := codec.DecodeSnapshot(value)
	if err != nil {
		r.logger.Debugf("cache: malformed snapshot at %q: %v", key, err)
		return nil, false
	}

	return &backend.Record{
		ID:       id,
		Revision: revision,
		Data:     data,
		NextID:   nextID,
	}, true
}

// Put stores the snapshot of a node.
func (r *Redis) Put(ctx context.Context, record *backend.Record) error {
	if record == nil {
		return errors.New("cache: record is nil")
	}

	value, err := codec.EncodeSnapshot(record.Revision, record.Data, record.NextID)
	if err != nil {
		return fmt.Errorf("cache: failed to encode %q: %w", record.ID, err)
	}

	opCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(opCtx, r.key(record.ID), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: failed to write %q: %w", record.ID, err)
	}
	return nil
}

// Close releases the Redis client. Close is idempotent.
func (r *Redis) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) key(id string) string {
	return r.chainPrefix + ":" + id
}
