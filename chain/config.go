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
	"fmt"
	"strings"
	"time"

	"github.com/tochemey/sharedchain/backend"
	etcdbackend "github.com/tochemey/sharedchain/backend/etcd"
	redisbackend "github.com/tochemey/sharedchain/backend/redis"
	gerrors "github.com/tochemey/sharedchain/errors"
	"github.com/tochemey/sharedchain/internal/validation"
)

// Backend kinds understood by Open
const (
	BackendEtcd   = "etcd"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Notification drivers understood by Open
const (
	NotifyRedis = "redis"
	NotifyNATS  = "nats"
)

const (
	dateLayout          = "2006_01_02"
	defaultEtcdEndpoint = "127.0.0.1:2379"
	defaultCacheAddr    = "127.0.0.1:6379"
	defaultNATSURL      = "nats://127.0.0.1:4222"
	defaultRetryDelay   = 10 * time.Millisecond
	defaultMaxDelay     = time.Second
)

// Config defines a shared chain
type Config struct {
	// Backend selects the store: etcd (default), redis or memory
	Backend string
	// HeadID is the id of the root node
	HeadID string
	// ChainPrefix is the key space of the forward pointers
	ChainPrefix string
	// DataPrefix is the key space of the node data in the separate layout
	DataPrefix string
	// ExtraDataPrefix is the key space of the extra metadata
	ExtraDataPrefix string
	// SeparateDataStorage stores the node data apart from the pointer.
	// The redis backend always does.
	SeparateDataStorage bool
	// Etcd holds the etcd connection settings
	Etcd *etcdbackend.Config
	// Redis holds the redis connection settings of the script backend
	Redis *redisbackend.Config
	// Cache configures the duplication layer
	Cache CacheConfig
	// Notify configures the append notifications
	Notify NotifyConfig
	// Retry bounds Append
	Retry RetryPolicy
}

// CacheConfig defines the duplication layer
type CacheConfig struct {
	// Addr is the host:port of the cache server
	Addr string
	// ReadThrough makes Start, TryLoadUntil and Next consult the cache first
	ReadThrough bool
	// WriteThrough writes a snapshot of the previous tail after every append
	WriteThrough bool
	// TTL is the expiry of the cached entries, zero means no expiry
	TTL time.Duration
	// InProcess keeps the snapshots in the process memory instead of Redis
	InProcess bool
}

// Enabled reports whether a cache is needed at all
func (c CacheConfig) Enabled() bool {
	return c.ReadThrough || c.WriteThrough
}

// NotifyConfig defines the append notifications
type NotifyConfig struct {
	// Driver is redis, nats or empty to disable notifications
	Driver string
	// Addr is the Redis host:port or the NATS URL
	Addr string
	// Channel is the Redis channel or the NATS subject. Defaults to the chain prefix
	Channel string
}

// DefaultConfig returns the configuration of a chain named after
// commonPrefix. With useDate the prefixes carry today's date so that every
// day starts a new chain.
func DefaultConfig(commonPrefix string, useDate bool) *Config {
	return defaultConfigAt(commonPrefix, useDate, time.Now())
}

func defaultConfigAt(commonPrefix string, useDate bool, now time.Time) *Config {
	date := ""
	if useDate {
		date = now.Format(dateLayout)
	}

	base := commonPrefix + "_" + date
	return &Config{
		Backend:         BackendEtcd,
		ChainPrefix:     base + "_chain",
		DataPrefix:      base + "_data",
		ExtraDataPrefix: base + "_extra_data",
		Cache: CacheConfig{
			Addr: defaultCacheAddr,
		},
	}
}

var _ validation.Validator = (*Config)(nil)

// Sanitize fills the zero values
func (c *Config) Sanitize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendEtcd
	}

	switch c.Backend {
	case BackendEtcd:
		if c.Etcd == nil {
			c.Etcd = &etcdbackend.Config{Endpoints: []string{defaultEtcdEndpoint}}
		}
		c.Etcd.Sanitize()
	case BackendRedis:
		if c.Redis == nil {
			c.Redis = new(redisbackend.Config)
		}
		c.Redis.Sanitize()
	}

	c.Cache.Addr = strings.TrimSpace(c.Cache.Addr)
	if c.Cache.Addr == "" {
		c.Cache.Addr = defaultCacheAddr
	}

	c.Notify.Driver = strings.ToLower(strings.TrimSpace(c.Notify.Driver))
	c.Notify.Addr = strings.TrimSpace(c.Notify.Addr)
	if c.Notify.Addr == "" {
		switch c.Notify.Driver {
		case NotifyRedis:
			c.Notify.Addr = defaultCacheAddr
		case NotifyNATS:
			c.Notify.Addr = defaultNATSURL
		}
	}

	if strings.TrimSpace(c.Notify.Channel) == "" {
		c.Notify.Channel = c.ChainPrefix
	}

	c.Retry.sanitize()
}

// Validate checks the configuration
func (c *Config) Validate() error {
	chain := validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("ChainPrefix", c.ChainPrefix)).
		AddValidator(validation.NewEmptyStringValidator("DataPrefix", c.DataPrefix)).
		AddValidator(validation.NewEmptyStringValidator("ExtraDataPrefix", c.ExtraDataPrefix)).
		AddValidator(validation.NewDistinctValidator().
			Add("ChainPrefix", c.ChainPrefix).
			Add("DataPrefix", c.DataPrefix).
			Add("ExtraDataPrefix", c.ExtraDataPrefix)).
		AddAssertion(c.Cache.TTL >= 0, "Cache.TTL must not be negative").
		AddAssertion(c.Retry.MaxAttempts >= 0, "Retry.MaxAttempts must not be negative").
		AddAssertion(c.Retry.InitialDelay >= 0, "Retry.InitialDelay must not be negative").
		AddAssertion(c.Retry.MaxDelay >= c.Retry.InitialDelay, "Retry.MaxDelay must not be lower than Retry.InitialDelay")

	switch c.Backend {
	case BackendEtcd:
		chain.AddAssertion(c.Etcd != nil, "Etcd is required")
		if c.Etcd != nil {
			chain.AddValidator(c.Etcd)
		}
	case BackendRedis:
		chain.AddAssertion(c.Redis != nil, "Redis is required")
		if c.Redis != nil {
			chain.AddValidator(c.Redis)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: %q", gerrors.ErrUnknownBackend, c.Backend)
	}

	if c.Cache.Enabled() && !c.Cache.InProcess {
		chain.AddValidator(validation.NewTCPAddressValidator(c.Cache.Addr))
	}

	switch c.Notify.Driver {
	case "":
	case NotifyRedis:
		chain.AddValidator(validation.NewTCPAddressValidator(c.Notify.Addr))
	case NotifyNATS:
		chain.AddValidator(validation.NewURLValidator(c.Notify.Addr, "nats", "tls", "ws", "wss"))
	default:
		chain.AddAssertion(false, fmt.Sprintf("unknown notification driver %q", c.Notify.Driver))
	}

	if err := chain.Validate(); err != nil {
		return err
	}

	// the script backend stores its pointers under {chainPrefix}:{id}, the
	// same keys a Redis cache would write its snapshots to
	if c.Backend == BackendRedis && c.Cache.Enabled() && !c.Cache.InProcess {
		return gerrors.ErrCacheNotSupported
	}
	return nil
}

// KeySpace returns the key prefixes of the chain
func (c *Config) KeySpace() backend.KeySpace {
	return backend.KeySpace{
		ChainPrefix:     c.ChainPrefix,
		DataPrefix:      c.DataPrefix,
		ExtraDataPrefix: c.ExtraDataPrefix,
	}
}
