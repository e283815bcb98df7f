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
	"crypto/tls"
	"strings"
	"time"

	"github.com/tochemey/sharedchain/internal/validation"
)

const (
	defaultAddr        = "127.0.0.1:6379"
	defaultDialTimeout = 5 * time.Second
	defaultTimeout     = 5 * time.Second
)

// Config defines the Redis connection settings of the script backend
type Config struct {
	// Addr is the host:port of the Redis server. Defaults to 127.0.0.1:6379
	Addr string
	// Username for Redis ACL authentication (optional)
	Username string
	// Password for Redis authentication (optional)
	Password string
	// DB selects the logical database
	DB int
	// TLS configuration (optional)
	TLS *tls.Config
	// DialTimeout for new connections
	DialTimeout time.Duration
	// Timeout bounds every single Redis call
	Timeout time.Duration
	// PoolSize is the maximum number of socket connections. Zero keeps the
	// go-redis default
	PoolSize int
}

var _ validation.Validator = (*Config)(nil)

// Sanitize fills the zero values
func (c *Config) Sanitize() {
	c.Addr = strings.TrimSpace(c.Addr)
	if c.Addr == "" {
		c.Addr = defaultAddr
	}

	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}

	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewTCPAddressValidator(c.Addr)).
		AddAssertion(c.DB >= 0, "DB must not be negative").
		AddAssertion(c.PoolSize >= 0, "PoolSize must not be negative").
		AddAssertion(c.DialTimeout > 0, "DialTimeout must be greater than 0").
		AddAssertion(c.Timeout > 0, "Timeout must be greater than 0").
		Validate()
}
