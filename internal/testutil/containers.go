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

package testutil

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcetcd "github.com/testcontainers/testcontainers-go/modules/etcd"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const (
	etcdImage  = "gcr.io/etcd-development/etcd:v3.5.14"
	redisImage = "redis:7.4-alpine"
)

// Etcd is a disposable etcd server
type Etcd struct {
	container *tcetcd.EtcdContainer
	endpoints []string
}

// StartEtcd starts an etcd container
func StartEtcd(ctx context.Context) (*Etcd, error) {
	container, err := tcetcd.Run(ctx, etcdImage)
	if err != nil {
		return nil, fmt.Errorf("failed to start etcd container: %w", err)
	}

	endpoints, err := container.ClientEndpoints(ctx)
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		return nil, fmt.Errorf("failed to read etcd endpoints: %w", err)
	}

	return &Etcd{container: container, endpoints: endpoints}, nil
}

// Endpoints returns the client endpoints
func (x *Etcd) Endpoints() []string {
	return x.endpoints
}

// Stop terminates the container
func (x *Etcd) Stop() error {
	return testcontainers.TerminateContainer(x.container)
}

// Redis is a disposable Redis server
type Redis struct {
	container *tcredis.RedisContainer
	addr      string
}

// StartRedis starts a Redis container
func StartRedis(ctx context.Context) (*Redis, error) {
	container, err := tcredis.Run(ctx, redisImage)
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		return nil, fmt.Errorf("failed to read redis address: %w", err)
	}

	opts, err := goredis.ParseURL(uri)
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		return nil, fmt.Errorf("failed to parse redis address: %w", err)
	}

	return &Redis{container: container, addr: opts.Addr}, nil
}

// Addr returns the host:port of the server
func (x *Redis) Addr() string {
	return x.addr
}

// Stop terminates the container
func (x *Redis) Stop() error {
	return testcontainers.TerminateContainer(x.container)
}
