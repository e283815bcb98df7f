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

package etcd

import (
	"context"
	"errors"
	"fmt"

	"go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
	"go.uber.org/atomic"

	"github.com/tochemey/sharedchain/backend"
	gerrors "github.com/tochemey/sharedchain/errors"
	"github.com/tochemey/sharedchain/internal/codec"
	"github.com/tochemey/sharedchain/log"
)

// Backend is the strong, etcd-backed implementation of backend.Backend.
//
// Every conditional write is a single etcd transaction. The tail is guarded
// by the ModRevision of its pointer key, which etcd bumps on every write, and
// new ids are guarded by a zero Version on their keys.
//
// Two layouts are supported. In the combined layout the chain key holds
// cbor([data, nextID]). In the separate layout the chain key holds nextID
// as a plain string and the data lives, immutable, under the data key.
type Backend struct {
	config    *Config
	keys      backend.KeySpace
	separate  bool
	logger    log.Logger
	client    *clientv3.Client
	kv        clientv3.KV
	closeFunc func(*clientv3.Client) error
	closed    *atomic.Bool
}

// enforce compilation error
var _ backend.Backend = (*Backend)(nil)

// Option configures the Backend
type Option func(*Backend)

// WithSeparateDataStorage stores node data under the data key space instead
// of next to the forward pointer.
func WithSeparateDataStorage(separate bool) Option {
	return func(b *Backend) {
		b.separate = separate
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New connects to etcd and returns a Backend for the given key space.
//
// It validates the configuration and checks that the first endpoint answers
// before returning.
func New(config *Config, keys backend.KeySpace, opts ...Option) (*Backend, error) {
	return newBackend(config, keys, clientv3.New, func(client *clientv3.Client) error { return client.Close() }, opts...)
}

func newBackend(config *Config, keys backend.KeySpace, clientFunc func(clientv3.Config) (*clientv3.Client, error), closeFunc func(*clientv3.Client) error, opts ...Option) (*Backend, error) {
	if config == nil {
		return nil, errors.New("chain/etcd: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if clientFunc == nil {
		clientFunc = clientv3.New
	}

	if closeFunc == nil {
		closeFunc = func(client *clientv3.Client) error { return client.Close() }
	}

	b := &Backend{
		config:    config,
		keys:      keys,
		logger:    log.DiscardLogger,
		closeFunc: closeFunc,
		closed:    atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt(b)
	}

	client, err := clientFunc(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
		TLS:         config.TLS,
		Username:    config.Username,
		Password:    config.Password,
		Context:     config.Context,
		Logger:      log.ZapLogger(b.logger),
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(config.Context, config.DialTimeout)
	defer cancel()

	if _, err = client.Status(ctx, config.Endpoints[0]); err != nil {
		if cerr := closeFunc(client); cerr != nil {
			return nil, errors.Join(err, fmt.Errorf("failed to close etcd client: %w", cerr))
		}
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	b.client = client
	b.kv = client.KV
	if ns := normalizeNamespace(config.Namespace); ns != "" {
		b.kv = namespace.NewKV(client.KV, ns)
	}

	return b, nil
}

// Head makes sure the head key exists and returns it.
//
// The check and the creation run in one transaction: if the head has a
// non-zero version it is read, otherwise it is created empty and then read.
func (b *Backend) Head(ctx context.Context, id string) (*backend.Record, error) {
	opCtx, cancel := b.withTimeout(ctx)
	defer cancel()

	key := b.keys.Chain(id)
	resp, err := b.kv.Txn(opCtx).
		If(clientv3.Compare(clientv3.Version(key), ">", 0)).
		Then(clientv3.OpGet(key)).
		Else(clientv3.OpPut(key, ""), clientv3.OpGet(key)).
		Commit()
	if err != nil {
		return nil, fmt.Errorf("chain/etcd: failed to start head %q: %w", id, err)
	}

	index := 0
	if !resp.Succeeded {
		index = 1
		b.logger.Debugf("chain/etcd: created head %q", id)
	}

	kv := firstKV(resp.Responses[index])
	if kv == nil {
		return nil, fmt.Errorf("chain/etcd: head %q vanished while starting", id)
	}

	return b.pointerRecord(id, kv)
}

// Load returns the node stored under id, or nil when there is none.
func (b *Backend) Load(ctx context.Context, id string) (*backend.Record, error) {
	opCtx, cancel := b.withTimeout(ctx)
	defer cancel()

	chainKey := b.keys.Chain(id)
	ops := []clientv3.Op{clientv3.OpGet(chainKey)}
	if b.separate {
		ops = append(ops, clientv3.OpGet(b.keys.Data(id)))
	}

	resp, err := b.kv.Txn(opCtx).
		If(clientv3.Compare(clientv3.Version(chainKey), ">", 0)).
		Then(ops...).
		Commit()
	if err != nil {
		return nil, fmt.Errorf("chain/etcd: failed to load node %q: %w", id, err)
	}

	if !resp.Succeeded {
		return nil, nil
	}

	kv := firstKV(resp.Responses[0])
	if kv == nil {
		return nil, nil
	}

	record, err := b.pointerRecord(id, kv)
	if err != nil {
		return nil, err
	}

	if b.separate {
		if dataKV := firstKV(resp.Responses[1]); dataKV != nil {
			record.Data = dataKV.Value
		}
	}

	return record, nil
}

// Pointer reads the forward pointer of id.
func (b *Backend) Pointer(ctx context.Context, id string) (string, error) {
	opCtx, cancel := b.withTimeout(ctx)
	defer cancel()

	key := b.keys.Chain(id)
	resp, err := b.kv.Get(opCtx, key)
	if err != nil {
		return "", fmt.Errorf("chain/etcd: failed to read pointer of %q: %w", id, err)
	}

	if len(resp.Kvs) == 0 {
		return "", nil
	}

	record, err := b.pointerRecord(id, resp.Kvs[0])
	if err != nil {
		return "", err
	}
	return record.NextID, nil
}

// Exists reports whether the pointer key of id has ever been written.
func (b *Backend) Exists(ctx context.Context, id string) (bool, error) {
	opCtx, cancel := b.withTimeout(ctx)
	defer cancel()

	resp, err := b.kv.Txn(opCtx).
		If(clientv3.Compare(clientv3.Version(b.keys.Chain(id)), ">", 0)).
		Commit()
	if err != nil {
		return false, fmt.Errorf("chain/etcd: failed to probe %q: %w", id, err)
	}
	return resp.Succeeded, nil
}

// Extend links tail to newID in a single transaction.
//
// The transaction commits only if the tail pointer key still has the
// ModRevision recorded in tail and newID is absent from the pointer key space
// (and, in the separate layout, from the data key space).
func (b *Backend) Extend(ctx context.Context, tail *backend.Record, newID string, data []byte) (*backend.Record, bool, error) {
	if tail == nil {
		return nil, false, errors.New("chain/etcd: tail is required")
	}

	opCtx, cancel := b.withTimeout(ctx)
	defer cancel()

	tailKey := b.keys.Chain(tail.ID)
	newKey := b.keys.Chain(newID)

	var (
		cmps []clientv3.Cmp
		ops  []clientv3.Op
	)

	if b.separate {
		newDataKey := b.keys.Data(newID)
		cmps = []clientv3.Cmp{
			clientv3.Compare(clientv3.ModRevision(tailKey), "=", tail.Revision),
			clientv3.Compare(clientv3.Version(newDataKey), "=", 0),
			clientv3.Compare(clientv3.Version(newKey), "=", 0),
		}
		ops = []clientv3.Op{
			clientv3.OpPut(tailKey, newID),
			clientv3.OpPut(newDataKey, string(data)),
			clientv3.OpPut(newKey, ""),
			clientv3.OpGet(b.keys.Data(tail.ID)),
		}
	} else {
		tailValue, err := codec.EncodeCombined(tail.Data, newID)
		if err != nil {
			return nil, false, fmt.Errorf("chain/etcd: failed to encode tail %q: %w", tail.ID, err)
		}

		newValue, err := codec.EncodeCombined(data, "")
		if err != nil {
			return nil, false, fmt.Errorf("chain/etcd: failed to encode node %q: %w", newID, err)
		}

		cmps = []clientv3.Cmp{
			clientv3.Compare(clientv3.ModRevision(tailKey), "=", tail.Revision),
			clientv3.Compare(clientv3.Version(newKey), "=", 0),
		}
		ops = []clientv3.Op{
			clientv3.OpPut(tailKey, string(tailValue)),
			clientv3.OpPut(newKey, string(newValue)),
		}
	}

	resp, err := b.kv.Txn(opCtx).If(cmps...).Then(ops...).Commit()
	if err != nil {
		return nil, false, fmt.Errorf("chain/etcd: failed to append %q after %q: %w", newID, tail.ID, err)
	}

	if !resp.Succeeded {
		b.logger.Debugf("chain/etcd: append of %q after %q (revision=%d) lost the race", newID, tail.ID, tail.Revision)
		return nil, false, nil
	}

	committed := &backend.Record{
		ID:       tail.ID,
		Revision: resp.Header.Revision,
		Data:     tail.Data,
		NextID:   newID,
	}

	if b.separate {
		committed.Data = nil
		if kv := firstKV(resp.Responses[3]); kv != nil {
			committed.Data = kv.Value
		}
	}

	return committed, true, nil
}

// SaveExtra writes an extra metadata entry.
func (b *Backend) SaveExtra(ctx context.Context, key string, data []byte) error {
	opCtx, cancel := b.withTimeout(ctx)
	defer cancel()

	if _, err := b.kv.Put(opCtx, b.keys.Extra(key), string(data)); err != nil {
		return fmt.Errorf("chain/etcd: failed to save extra data %q: %w", key, err)
	}
	return nil
}

// LoadExtra reads an extra metadata entry.
func (b *Backend) LoadExtra(ctx context.Context, key string) ([]byte, error) {
	opCtx, cancel := b.withTimeout(ctx)
	defer cancel()

	resp, err := b.kv.Get(opCtx, b.keys.Extra(key))
	if err != nil {
		return nil, fmt.Errorf("chain/etcd: failed to load extra data %q: %w", key, err)
	}

	if len(resp.Kvs) == 0 {
		return nil, nil
	}
	return resp.Kvs[0].Value, nil
}

// Close releases the etcd client. Close is idempotent.
func (b *Backend) Close() error {
	if b.client == nil || b.closed == nil || !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.closeFunc(b.client)
}

// pointerRecord turns a chain key into a record according to the layout.
// Data is left nil in the separate layout.
func (b *Backend) pointerRecord(id string, kv *mvccpb.KeyValue) (*backend.Record, error) {
	record := &backend.Record{
		ID:       id,
		Revision: kv.ModRevision,
	}

	if b.separate {
		record.NextID = string(kv.Value)
		return record, nil
	}

	data, nextID, err := codec.DecodeCombined(kv.Value)
	if err != nil {
		return nil, gerrors.NewDecodeError(string(kv.Key), err)
	}

	record.Data = data
	record.NextID = nextID
	return record, nil
}

func (b *Backend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = b.config.Context
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, b.config.Timeout)
}

func firstKV(op *etcdserverpb.ResponseOp) *mvccpb.KeyValue {
	if op == nil {
		return nil
	}
	rng := op.GetResponseRange()
	if rng == nil || len(rng.Kvs) == 0 {
		return nil
	}
	return rng.Kvs[0]
}
