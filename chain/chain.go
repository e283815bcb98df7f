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

// Package chain implements the distributed shared chain: an append-only,
// singly linked list of nodes kept in a shared store and extended with
// optimistic compare-and-swap transactions.
//
// Many handles, in many processes, may read and extend the same chain. The
// order of the chain is the order in which the store accepted the appends:
// two writers racing for the same tail cannot both win, the loser re-walks
// to the new tail and tries again.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/tochemey/sharedchain/backend"
	"github.com/tochemey/sharedchain/cache"
	gerrors "github.com/tochemey/sharedchain/errors"
	"github.com/tochemey/sharedchain/internal/codec"
	"github.com/tochemey/sharedchain/internal/errorschain"
	"github.com/tochemey/sharedchain/internal/metric"
	"github.com/tochemey/sharedchain/log"
	"github.com/tochemey/sharedchain/notify"
)

// Chain is a handle on a shared chain with its own cursor.
//
// The cursor is guarded by a mutex, so a handle may be shared by goroutines.
// Correctness across handles only relies on the backend transactions.
type Chain[T any] struct {
	mu sync.Mutex

	config       *Config
	keys         backend.KeySpace
	backend      backend.Backend
	cache        cache.Cache
	readThrough  bool
	writeThrough bool
	publisher    notify.Publisher
	codec        Codec[T]
	logger       log.Logger
	metric       *metric.ChainMetric

	// current is the node under the cursor and record its raw stored form
	current Node[T]
	record  *backend.Record
	started bool

	closed *atomic.Bool
}

// enforce compilation error
var _ Shared[any] = (*Chain[any])(nil)

// New creates a chain handle on top of store. The handle owns store and
// closes it on Close.
func New[T any](config *Config, store backend.Backend, opts ...Option) (*Chain[T], error) {
	if config == nil {
		return nil, errors.New("chain: config is nil")
	}

	if store == nil {
		return nil, errors.New("chain: backend is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := &options{logger: log.DiscardLogger}
	for _, opt := range opts {
		opt.Apply(o)
	}

	if o.logger == nil {
		o.logger = log.DiscardLogger
	}

	var payloadCodec Codec[T] = CBOR[T]{}
	if o.codec != nil {
		c, ok := o.codec.(Codec[T])
		if !ok {
			return nil, fmt.Errorf("chain: codec %T does not encode %T", o.codec, *new(T))
		}
		payloadCodec = c
	}

	var providerOpts []metric.Option
	if o.meterProvider != nil {
		providerOpts = append(providerOpts, metric.WithMeterProvider(o.meterProvider))
	}

	chainMetric, err := metric.NewChainMetric(metric.New(providerOpts...).Meter(), config.ChainPrefix)
	if err != nil {
		return nil, err
	}

	return &Chain[T]{
		config:       config,
		keys:         config.KeySpace(),
		backend:      store,
		cache:        o.cache,
		readThrough:  o.cache != nil && config.Cache.ReadThrough,
		writeThrough: o.cache != nil && config.Cache.WriteThrough,
		publisher:    o.publisher,
		codec:        payloadCodec,
		logger:       o.logger,
		metric:       chainMetric,
		closed:       atomic.NewBool(false),
	}, nil
}

// Start makes sure the head exists and places the cursor on it.
//
// The head node always carries defaultData: only its forward pointer is
// read from the store.
func (c *Chain[T]) Start(ctx context.Context, defaultData T) error {
	if c.closed.Load() {
		return gerrors.ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	headID := c.config.HeadID
	record, ok := c.fromCache(ctx, headID)
	if !ok {
		var err error
		if record, err = c.backend.Head(ctx, headID); err != nil {
			return err
		}
	}

	c.moveTo(record, defaultData)
	c.logger.Debugf("chain: started %q at head %q (next=%q)", c.config.ChainPrefix, headID, record.NextID)
	return nil
}

// TryLoadUntil places the cursor on id. Unknown ids are not errors: it
// returns false and leaves the cursor where it was.
func (c *Chain[T]) TryLoadUntil(ctx context.Context, id string) (bool, error) {
	if c.closed.Load() {
		return false, gerrors.ErrClosed
	}

	if strings.TrimSpace(id) == "" {
		return false, gerrors.ErrEmptyID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	record, err := c.load(ctx, id)
	if err != nil || record == nil {
		return false, err
	}

	data, err := c.decode(record)
	if err != nil {
		return false, err
	}

	c.moveTo(record, data)
	return true, nil
}

// Next moves the cursor one node forward.
//
// When no successor was observed yet, the pointer of the current node is
// read once more to pick up an append made by another writer. At the tail
// Next returns false and leaves the cursor untouched.
func (c *Chain[T]) Next(ctx context.Context) (bool, error) {
	if c.closed.Load() {
		return false, gerrors.ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.next(ctx)
}

// IDIsAlreadyOnChain reports whether id is stored. It has no side effect.
func (c *Chain[T]) IDIsAlreadyOnChain(ctx context.Context, id string) (bool, error) {
	if c.closed.Load() {
		return false, gerrors.ErrClosed
	}

	if strings.TrimSpace(id) == "" {
		return false, gerrors.ErrEmptyID
	}
	return c.backend.Exists(ctx, id)
}

// TryAppend walks to the tail and issues a single append transaction.
//
// It returns false when the transaction lost the race for the tail or id is
// already used. On success the cursor is on the new node.
func (c *Chain[T]) TryAppend(ctx context.Context, id string, data T) (bool, error) {
	if c.closed.Load() {
		return false, gerrors.ErrClosed
	}

	if strings.TrimSpace(id) == "" {
		return false, gerrors.ErrEmptyID
	}

	encoded, err := c.codec.Encode(data)
	if err != nil {
		return false, fmt.Errorf("chain: failed to encode %q: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.tryAppend(ctx, id, data, encoded)
}

// Append retries TryAppend until it commits, following the configured
// RetryPolicy.
//
// After every lost race it checks whether id was written by somebody else,
// in which case no retry could succeed and ErrIDAlreadyOnChain is returned.
func (c *Chain[T]) Append(ctx context.Context, id string, data T) error {
	if c.closed.Load() {
		return gerrors.ErrClosed
	}

	if strings.TrimSpace(id) == "" {
		return gerrors.ErrEmptyID
	}

	encoded, err := c.codec.Encode(data)
	if err != nil {
		return fmt.Errorf("chain: failed to encode %q: %w", id, err)
	}

	start := time.Now()
	attempt := func(ctx context.Context) (bool, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.tryAppend(ctx, id, data, encoded)
	}

	probe := func(ctx context.Context) error {
		exists, err := c.backend.Exists(ctx, id)
		if err != nil {
			return err
		}

		if exists {
			return fmt.Errorf("%w: %q", gerrors.ErrIDAlreadyOnChain, id)
		}
		return nil
	}

	if err := runAppend(ctx, c.config.Retry, attempt, probe); err != nil {
		return err
	}

	c.metric.RecordAppendDuration(ctx, time.Since(start))
	return nil
}

// SaveExtraData stores value, encoded as CBOR, under key.
func (c *Chain[T]) SaveExtraData(ctx context.Context, key string, value any) error {
	if c.closed.Load() {
		return gerrors.ErrClosed
	}

	if strings.TrimSpace(key) == "" {
		return gerrors.ErrEmptyID
	}

	encoded, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("chain: failed to encode extra data %q: %w", key, err)
	}
	return c.backend.SaveExtra(ctx, key, encoded)
}

// LoadExtraData decodes the value stored under key into target, which must
// be a pointer. It returns false when key is unknown.
func (c *Chain[T]) LoadExtraData(ctx context.Context, key string, target any) (bool, error) {
	if c.closed.Load() {
		return false, gerrors.ErrClosed
	}

	if strings.TrimSpace(key) == "" {
		return false, gerrors.ErrEmptyID
	}

	encoded, err := c.backend.LoadExtra(ctx, key)
	if err != nil || encoded == nil {
		return false, err
	}

	if err := codec.Unmarshal(encoded, target); err != nil {
		return false, gerrors.NewDecodeError(c.keys.Extra(key), err)
	}
	return true, nil
}

// Current returns the node under the cursor. It is the zero node before
// Start or a successful TryLoadUntil.
func (c *Chain[T]) Current() Node[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Close releases the backend, the cache and the publisher. Close is
// idempotent.
func (c *Chain[T]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	errs := errorschain.New()
	if c.publisher != nil {
		errs.AddError(c.publisher.Close())
	}

	if c.cache != nil {
		errs.AddError(c.cache.Close())
	}

	errs.AddError(c.backend.Close())
	return errs.Error()
}

func (c *Chain[T]) next(ctx context.Context) (bool, error) {
	if !c.started {
		return false, gerrors.ErrNotStarted
	}

	nextID := c.current.NextID
	if nextID == "" {
		pointer, err := c.refreshPointer(ctx)
		if err != nil || pointer == "" {
			return false, err
		}
		nextID = pointer
	}

	record, err := c.load(ctx, nextID)
	if err != nil {
		return false, err
	}

	if record == nil {
		return false, fmt.Errorf("chain: node %q points to missing node %q", c.current.ID, nextID)
	}

	data, err := c.decode(record)
	if err != nil {
		return false, err
	}

	c.moveTo(record, data)
	return true, nil
}

// refreshPointer reads the pointer of the current node again
func (c *Chain[T]) refreshPointer(ctx context.Context) (string, error) {
	if cached, ok := c.fromCache(ctx, c.current.ID); ok && cached.NextID != "" {
		return cached.NextID, nil
	}
	return c.backend.Pointer(ctx, c.current.ID)
}

func (c *Chain[T]) tryAppend(ctx context.Context, id string, data T, encoded []byte) (bool, error) {
	if !c.started {
		return false, gerrors.ErrNotStarted
	}

	for {
		moved, err := c.next(ctx)
		if err != nil {
			return false, err
		}

		if !moved {
			break
		}
	}

	committed, ok, err := c.backend.Extend(ctx, c.record, id, encoded)
	if err != nil {
		return false, err
	}

	c.metric.RecordAttempt(ctx, ok)
	if !ok {
		c.logger.Debugf("chain: append of %q after %q lost the race", id, c.current.ID)
		return false, nil
	}

	if c.writeThrough {
		if err := c.cache.Put(ctx, committed); err != nil {
			c.logger.Warnf("chain: failed to duplicate %q to the cache: %v", committed.ID, err)
		}
	}

	c.moveTo(&backend.Record{
		ID:       id,
		Revision: committed.Revision,
		Data:     encoded,
	}, data)

	c.publish(ctx, committed, encoded)
	return true, nil
}

func (c *Chain[T]) publish(ctx context.Context, committed *backend.Record, encoded []byte) {
	if c.publisher == nil {
		return
	}

	event := notify.Event{
		Chain:      c.config.ChainPrefix,
		ID:         committed.NextID,
		PreviousID: committed.ID,
		Revision:   committed.Revision,
		Data:       encoded,
		Timestamp:  time.Now().UTC(),
	}

	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Warnf("chain: failed to announce %q: %v", event.ID, err)
	}
}

// load reads id from the cache when allowed, else from the backend
func (c *Chain[T]) load(ctx context.Context, id string) (*backend.Record, error) {
	if record, ok := c.fromCache(ctx, id); ok {
		return record, nil
	}
	return c.backend.Load(ctx, id)
}

func (c *Chain[T]) fromCache(ctx context.Context, id string) (*backend.Record, bool) {
	if !c.readThrough {
		return nil, false
	}

	record, ok := c.cache.Get(ctx, id)
	c.metric.RecordCacheLookup(ctx, ok)
	return record, ok
}

func (c *Chain[T]) decode(record *backend.Record) (T, error) {
	if record.Data == nil {
		var zero T
		return zero, nil
	}

	data, err := c.codec.Decode(record.Data)
	if err != nil {
		key := c.keys.Chain(record.ID)
		if c.config.SeparateDataStorage || c.config.Backend == BackendRedis {
			key = c.keys.Data(record.ID)
		}
		return data, gerrors.NewDecodeError(key, err)
	}
	return data, nil
}

func (c *Chain[T]) moveTo(record *backend.Record, data T) {
	c.record = record
	c.current = Node[T]{
		ID:       record.ID,
		Revision: record.Revision,
		Data:     data,
		NextID:   record.NextID,
	}
	c.started = true
}
