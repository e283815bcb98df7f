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

package notify

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/atomic"

	redisbackend "github.com/tochemey/sharedchain/backend/redis"
	"github.com/tochemey/sharedchain/log"
)

// Redis publishes events on a Redis channel
type Redis struct {
	client  *goredis.Client
	channel string
	logger  log.Logger
	closed  *atomic.Bool
	// stop is closed by Close and ends every subscription
	stop chan struct{}
}

var _ Notifier = (*Redis)(nil)

// NewRedis connects to Redis and publishes on channel
func NewRedis(ctx context.Context, config *redisbackend.Config, channel string, logger log.Logger) (*Redis, error) {
	if config == nil {
		return nil, errors.New("notify/redis: config is nil")
	}

	if channel == "" {
		return nil, errors.New("notify/redis: channel is required")
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
		return nil, fmt.Errorf("notify/redis: connect: %w", err)
	}

	if logger == nil {
		logger = log.DiscardLogger
	}

	return &Redis{
		client:  client,
		channel: channel,
		logger:  logger,
		closed:  atomic.NewBool(false),
		stop:    make(chan struct{}),
	}, nil
}

// Publish sends the event on the channel
func (r *Redis) Publish(ctx context.Context, event Event) error {
	payload, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("notify/redis: encode: %w", err)
	}

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("notify/redis: publish: %w", err)
	}
	return nil
}

// Subscribe returns the events published on the channel. The channel is
// closed once ctx is done or the notifier is closed.
func (r *Redis) Subscribe(ctx context.Context) (<-chan Event, error) {
	if r.closed.Load() {
		return nil, fmt.Errorf("notify/redis: subscribe: %w", goredis.ErrClosed)
	}

	pubSub := r.client.Subscribe(ctx, r.channel)

	// wait for the subscription confirmation so no event published after
	// Subscribe returns is missed
	if _, err := pubSub.Receive(ctx); err != nil {
		_ = pubSub.Close()
		return nil, fmt.Errorf("notify/redis: subscribe: %w", err)
	}

	messages := pubSub.Channel()
	events := make(chan Event)
	go func() {
		defer close(events)
		defer func() { _ = pubSub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case message, ok := <-messages:
				if !ok {
					return
				}

				event, err := UnmarshalEvent([]byte(message.Payload))
				if err != nil {
					r.logger.Warnf("notify/redis: dropping malformed event: %v", err)
					continue
				}

				select {
				case events <- event:
				case <-ctx.Done():
					return
				case <-r.stop:
					return
				}
			}
		}
	}()
	return events, nil
}

// Close releases the Redis client. Close is idempotent.
func (r *Redis) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.stop)
	return r.client.Close()
}
