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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSanitize(t *testing.T) {
	config := &Config{Addr: "  "}
	config.Sanitize()

	assert.Equal(t, defaultAddr, config.Addr)
	assert.Equal(t, defaultDialTimeout, config.DialTimeout)
	assert.Equal(t, defaultTimeout, config.Timeout)
	require.NoError(t, config.Validate())
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		config Config
	}{
		{name: "missing port", config: Config{Addr: "localhost", DialTimeout: time.Second, Timeout: time.Second}},
		{name: "negative db", config: Config{Addr: "localhost:6379", DB: -1, DialTimeout: time.Second, Timeout: time.Second}},
		{name: "negative pool", config: Config{Addr: "localhost:6379", PoolSize: -1, DialTimeout: time.Second, Timeout: time.Second}},
		{name: "zero timeout", config: Config{Addr: "localhost:6379", DialTimeout: time.Second}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := tc.config
			require.Error(t, config.Validate())
		})
	}
}
