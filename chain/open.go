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

package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/tochemey/sharedchain/backend"
	etcdbackend "github.com/tochemey/sharedchain/backend/etcd"
	"github.com/tochemey/sharedchain/backend/memory"
	redisbackend "github.com/tochemey/sharedchain/backend/redis"
	"github.com/tochemey/sharedchain/cache"
	gerrors "github.com/tochemey/sharedchain/errors"
	"github.com/tochemey/sharedchain/internal/errorschain"
	"github.com/tochemey/sharedchain/log"
	"github.com/tochemey/sharedchain/notify"
)

// Open connects to the configured backend, and to the cache and the
// notification transport when enabled, and returns a handle owning all of
// them.
func Open[T any](ctx context.Context, config *Config, opts ...Option) (*Chain[T], error) {
	if config == nil {
		return nil, errors.New("chain: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := &options{logger: log.DiscardLogger}
	for _, opt := range opts {
		opt.Apply(o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.DiscardLogger
	}

	var (
		store     backend.Backend
		dupCache  cache.Cache
		publisher notify.Notifier
		err       error
	)

	setup := errorschain.New(errorschain.ReturnFirst()).
		AddErrorFn(func() error {
			store, err = OpenBackend(ctx, config, logger)
			return err
		}).
		AddErrorFnIf(ctx, config.Cache.Enabled() && o.cache == nil, func(ctx context.Context) error {
			dupCache, err = OpenCache(ctx, config, logger)
			return err
		}).
		AddErrorFnIf(ctx, config.Notify.Driver != "" && o.publisher == nil, func(ctx context.Context) error {
			publisher, err = OpenNotifier(ctx, config, logger)
			return err
		})

	if err := setup.Error(); err != nil {
		cleanup := errorschain.New().AddError(err)
		if publisher != nil {
			cleanup.AddCloser(publisher)
		}
		if dupCache != nil {
			cleanup.AddCloser(dupCache)
		}
		if store != nil {
			cleanup.AddCloser(store)
		}
		return nil, cleanup.Error()
	}

	if dupCache != nil {
		opts = append(opts, WithCache(dupCache))
	}

	if publisher != nil {
		opts = append(opts, WithPublisher(publisher))
	}

	c, err := New[T](config, store, opts...)
	if err != nil {
		cleanup := errorschain.New().AddError(err).AddCloser(store)
		if publisher != nil {
			cleanup.AddCloser(publisher)
		}
		if dupCache != nil {
			cleanup.AddCloser(dupCache)
		}
		return nil, cleanup.Error()
	}
	return c, nil
}

// OpenBackend connects to the backend selected by the configuration
func OpenBackend(ctx context.Context, config *Config, logger log.Logger) (backend.Backend, error) {
	keys := config.KeySpace()
	switch config.Backend {
	case BackendEtcd:
		store, err := etcdbackend.New(config.Etcd, keys,
			etcdbackend.WithSeparateDataStorage(config.SeparateDataStorage),
			etcdbackend.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendRedis:
		store, err := redisbackend.New(ctx, config.Redis, keys, redisbackend.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", gerrors.ErrUnknownBackend, config.Backend)
	}
}

// OpenCache builds the duplication layer described by the configuration
func OpenCache(ctx context.Context, config *Config, logger log.Logger) (cache.Cache, error) {
	if config.Cache.InProcess {
		return cache.NewLocal(config.Cache.TTL), nil
	}

	redisCache, err := cache.NewRedis(ctx,
		&redisbackend.Config{Addr: config.Cache.Addr},
		config.ChainPrefix,
		cache.WithTTL(config.Cache.TTL),
		cache.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return redisCache, nil
}

// OpenNotifier connects to the notification transport of the configuration
func OpenNotifier(ctx context.Context, config *Config, logger log.Logger) (notify.Notifier, error) {
	var (
		notifier notify.Notifier
		err      error
	)

	switch config.Notify.Driver {
	case NotifyRedis:
		var redisNotifier *notify.Redis
		if redisNotifier, err = notify.NewRedis(ctx, &redisbackend.Config{Addr: config.Notify.Addr}, config.Notify.Channel, logger); err == nil {
			notifier = redisNotifier
		}
	case NotifyNATS:
		var natsNotifier *notify.NATS
		if natsNotifier, err = notify.NewNATS(&notify.NATSConfig{URL: config.Notify.Addr, Subject: config.Notify.Channel}, logger); err == nil {
			notifier = natsNotifier
		}
	default:
		err = fmt.Errorf("chain: unknown notification driver %q", config.Notify.Driver)
	}

	if err != nil {
		return nil, err
	}
	return notifier, nil
}
