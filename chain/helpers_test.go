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
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tochemey/sharedchain/backend"
	"github.com/tochemey/sharedchain/backend/memory"
	"github.com/tochemey/sharedchain/notify"
)

type payload struct {
	X int `cbor:"x" json:"x"`
}

// sharedStore lets several handles use one backend without closing it
type sharedStore struct {
	backend.Backend
}

func (sharedStore) Close() error { return nil }

// conflictStore loses every append race
type conflictStore struct {
	backend.Backend
	mu       sync.Mutex
	attempts int
}

func (s *conflictStore) Extend(context.Context, *backend.Record, string, []byte) (*backend.Record, bool, error) {
	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()
	return nil, false, nil
}

func (s *conflictStore) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// barrierStore holds every Extend until n of them arrived, so that all
// contenders race from the same observed tail
type barrierStore struct {
	backend.Backend
	arrived sync.WaitGroup
}

func newBarrierStore(store backend.Backend, n int) *barrierStore {
	s := &barrierStore{Backend: store}
	s.arrived.Add(n)
	return s
}

func (s *barrierStore) Extend(ctx context.Context, tail *backend.Record, newID string, data []byte) (*backend.Record, bool, error) {
	s.arrived.Done()
	s.arrived.Wait()
	return s.Backend.Extend(ctx, tail, newID, data)
}

func (*barrierStore) Close() error { return nil }

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, event notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingPublisher) Events() []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notify.Event(nil), p.events...)
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	config := DefaultConfig(t.Name(), false)
	config.Backend = BackendMemory
	config.HeadID = "H"
	return config
}

func newMemoryChain(t *testing.T, store backend.Backend, opts ...Option) *Chain[payload] {
	t.Helper()
	if store == nil {
		store = memory.New()
	}

	c, err := New[payload](testConfig(t), store, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// walk restarts c at the head and returns the ids visited
func walk(t *testing.T, c *Chain[payload]) []string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, payload{}))

	ids := []string{c.Current().ID}
	for {
		moved, err := c.Next(ctx)
		require.NoError(t, err)
		if !moved {
			return ids
		}
		ids = append(ids, c.Current().ID)
	}
}
