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
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/atomic"

	"github.com/tochemey/sharedchain/backend"
)

// sweepEvery is the number of writes between two sweeps of expired entries
const sweepEvery = 1024

// Local keeps node snapshots in the process memory. It is useful when many
// handles of the same process read the same chain.
//
// Local runs no background goroutine: expired entries are never returned and
// are swept from Put every sweepEvery writes.
type Local struct {
	cache  *gocache.Cache
	expire bool
	writes *atomic.Uint64
}

var _ Cache = (*Local)(nil)

// NewLocal creates an in-process cache. A zero ttl keeps entries forever.
func NewLocal(ttl time.Duration) *Local {
	expiration := gocache.NoExpiration
	if ttl > 0 {
		expiration = ttl
	}
	return &Local{
		cache:  gocache.New(expiration, 0),
		expire: ttl > 0,
		writes: atomic.NewUint64(0),
	}
}

// Get returns the cached snapshot of id
func (l *Local) Get(_ context.Context, id string) (*backend.Record, bool) {
	obj, found := l.cache.Get(id)
	if !found {
		return nil, false
	}

	record, ok := obj.(*backend.Record)
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

// Put stores the snapshot of a node
func (l *Local) Put(_ context.Context, record *backend.Record) error {
	if record == nil {
		return errors.New("cache: record is nil")
	}
	l.cache.Set(record.ID, record.Clone(), gocache.DefaultExpiration)
	if l.expire && l.writes.Inc()%sweepEvery == 0 {
		l.cache.DeleteExpired()
	}
	return nil
}

// Close drops every entry
func (l *Local) Close() error {
	l.cache.Flush()
	return nil
}
