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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	etcdbackend "github.com/tochemey/sharedchain/backend/etcd"
	gerrors "github.com/tochemey/sharedchain/errors"
)

func TestDefaultConfig(t *testing.T) {
	now := time.Date(2024, time.March, 9, 10, 0, 0, 0, time.UTC)

	t.Run("with date", func(t *testing.T) {
		config := defaultConfigAt("orders", true, now)
		assert.Equal(t, "orders_2024_03_09_chain", config.ChainPrefix)
		assert.Equal(t, "orders_2024_03_09_data", config.DataPrefix)
		assert.Equal(t, "orders_2024_03_09_extra_data", config.ExtraDataPrefix)
		assert.Equal(t, BackendEtcd, config.Backend)
		assert.Empty(t, config.HeadID)
		assert.False(t, config.SeparateDataStorage)
		assert.Equal(t, CacheConfig{Addr: "127.0.0.1:6379"}, config.Cache)
	})

	t.Run("without date", func(t *testing.T) {
		config := defaultConfigAt("orders", false, now)
		assert.Equal(t, "orders__chain", config.ChainPrefix)
		assert.Equal(t, "orders__data", config.DataPrefix)
		assert.Equal(t, "orders__extra_data", config.ExtraDataPrefix)
	})
}

func TestConfigSanitize(t *testing.T) {
	config := DefaultConfig("orders", false)
	config.Backend = " ETCD "
	config.Cache.Addr = ""
	config.Notify.Driver = "NATS"
	config.Retry.MaxAttempts = 5
	config.Sanitize()

	assert.Equal(t, BackendEtcd, config.Backend)
	require.NotNil(t, config.Etcd)
	assert.Equal(t, []string{"127.0.0.1:2379"}, config.Etcd.Endpoints)
	assert.Equal(t, "127.0.0.1:6379", config.Cache.Addr)
	assert.Equal(t, NotifyNATS, config.Notify.Driver)
	assert.Equal(t, "nats://127.0.0.1:4222", config.Notify.Addr)
	assert.Equal(t, config.ChainPrefix, config.Notify.Channel)
	assert.Equal(t, defaultRetryDelay, config.Retry.InitialDelay)
	assert.Equal(t, defaultMaxDelay, config.Retry.MaxDelay)
	require.NoError(t, config.Validate())

	t.Run("redis backend", func(t *testing.T) {
		config := DefaultConfig("orders", false)
		config.Backend = BackendRedis
		config.Sanitize()
		require.NotNil(t, config.Redis)
		assert.Equal(t, "127.0.0.1:6379", config.Redis.Addr)
		require.NoError(t, config.Validate())
	})
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{name: "empty chain prefix", mutate: func(c *Config) { c.ChainPrefix = " " }},
		{name: "identical prefixes", mutate: func(c *Config) { c.ExtraDataPrefix = c.DataPrefix }},
		{name: "negative ttl", mutate: func(c *Config) { c.Cache.TTL = -time.Second }},
		{name: "negative attempts", mutate: func(c *Config) { c.Retry.MaxAttempts = -1 }},
		{name: "bad cache address", mutate: func(c *Config) { c.Cache.ReadThrough = true; c.Cache.Addr = "nowhere" }},
		{name: "unknown notification driver", mutate: func(c *Config) { c.Notify.Driver = "kafka" }},
		{name: "invalid etcd config", mutate: func(c *Config) { c.Etcd = &etcdbackend.Config{} }},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "zookeeper" }, target: gerrors.ErrUnknownBackend},
		{
			name: "redis cache in front of the redis backend",
			mutate: func(c *Config) {
				c.Backend = BackendRedis
				c.Cache.WriteThrough = true
			},
			target: gerrors.ErrCacheNotSupported,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig("orders", false)
			tc.mutate(config)
			config.Sanitize()

			err := config.Validate()
			require.Error(t, err)
			if tc.target != nil {
				require.ErrorIs(t, err, tc.target)
			}
		})
	}

	t.Run("in-process cache in front of the redis backend", func(t *testing.T) {
		config := DefaultConfig("orders", false)
		config.Backend = BackendRedis
		config.Cache = CacheConfig{ReadThrough: true, InProcess: true}
		config.Sanitize()
		require.NoError(t, config.Validate())
	})
}
