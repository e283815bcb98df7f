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

// Package memory provides a process-local backend with the same atomic
// semantics as the etcd backend. It is meant for tests and dry runs.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/tochemey/sharedchain/backend"
	gerrors "github.com/tochemey/sharedchain/errors"
)

type node struct {
	revision int64
	data     []byte
	nextID   string
}

// Backend keeps the chain in memory.
//
// Every write bumps a store-wide revision counter and stamps it on the
// written pointer, the way etcd does with ModRevision.
type Backend struct {
	mu       sync.Mutex
	revision int64
	nodes    map[string]*node
	extra    map[string][]byte
	closed   bool
}

// enforce compilation error
var _ backend.Backend = (*Backend)(nil)

// New creates an empty in-memory backend
func New() *Backend {
	return &Backend{
		nodes: make(map[string]*node),
		extra: make(map[string][]byte),
	}
}

// Head makes sure the head exists and returns it.
func (b *Backend) Head(ctx context.Context, id string) (*backend.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(ctx); err != nil {
		return nil, err
	}

	n, ok := b.nodes[id]
	if !ok {
		b.revision++
		n = &node{revision: b.revision}
		b.nodes[id] = n
	}
	return n.record(id), nil
}

// Load returns the node stored under id, or nil when there is none.
func (b *Backend) Load(ctx context.Context, id string) (*backend.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(ctx); err != nil {
		return nil, err
	}

	n, ok := b.nodes[id]
	if !ok {
		return nil, nil
	}
	return n.record(id), nil
}

// Pointer reads the forward pointer of id.
func (b *Backend) Pointer(ctx context.Context, id string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(ctx); err != nil {
		return "", err
	}

	if n, ok := b.nodes[id]; ok {
		return n.nextID, nil
	}
	return "", nil
}

// Exists reports whether id is stored.
func (b *Backend) Exists(ctx context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(ctx); err != nil {
		return false, err
	}

	_, ok := b.nodes[id]
	return ok, nil
}

// Extend links tail to newID when the tail revision is unchanged and newID
// is unused.
func (b *Backend) Extend(ctx context.Context, tail *backend.Record, newID string, data []byte) (*backend.Record, bool, error) {
	if tail == nil {
		return nil, false, errors.New("chain/memory: tail is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(ctx); err != nil {
		return nil, false, err
	}

	current, ok := b.nodes[tail.ID]
	if !ok || current.revision != tail.Revision {
		return nil, false, nil
	}

	if _, taken := b.nodes[newID]; taken {
		return nil, false, nil
	}

	b.revision++
	current.nextID = newID
	current.revision = b.revision
	b.nodes[newID] = &node{
		revision: b.revision,
		data:     clone(data),
	}

	return current.record(tail.ID), true, nil
}

// SaveExtra writes an extra metadata entry.
func (b *Backend) SaveExtra(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(ctx); err != nil {
		return err
	}

	b.extra[key] = clone(data)
	return nil
}

// LoadExtra reads an extra metadata entry.
func (b *Backend) LoadExtra(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(ctx); err != nil {
		return nil, err
	}

	return clone(b.extra[key]), nil
}

// Close marks the backend closed. Later calls fail with ErrClosed.
func (b *Backend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Len returns the number of nodes stored, head included
func (b *Backend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.nodes)
}

func (b *Backend) check(ctx context.Context) error {
	if b.closed {
		return gerrors.ErrClosed
	}
	if ctx != nil {
		return ctx.Err()
	}
	return nil
}

func (n *node) record(id string) *backend.Record {
	return &backend.Record{
		ID:       id,
		Revision: n.revision,
		Data:     clone(n.data),
		NextID:   n.nextID,
	}
}

func clone(data []byte) []byte {
	if data == nil {
		return nil
	}
	return append([]byte(nil), data...)
}
