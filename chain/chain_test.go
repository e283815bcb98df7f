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
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"

	"github.com/tochemey/sharedchain/backend"
	"github.com/tochemey/sharedchain/backend/memory"
	"github.com/tochemey/sharedchain/cache"
	gerrors "github.com/tochemey/sharedchain/errors"
	"github.com/tochemey/sharedchain/internal/codec"
)

func TestScenario(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	writer := newMemoryChain(t, sharedStore{store})

	require.NoError(t, writer.Start(ctx, payload{}))
	assert.Equal(t, Node[payload]{ID: "H", Revision: 1, Data: payload{}}, writer.Current())

	require.NoError(t, writer.Append(ctx, "A", payload{X: 1}))
	current := writer.Current()
	assert.Equal(t, "A", current.ID)
	assert.Equal(t, payload{X: 1}, current.Data)
	assert.Empty(t, current.NextID)

	reader := newMemoryChain(t, sharedStore{store})
	require.NoError(t, reader.Start(ctx, payload{}))

	moved, err := reader.Next(ctx)
	require.NoError(t, err)
	require.True(t, moved)
	assert.Equal(t, "A", reader.Current().ID)
	assert.Equal(t, payload{X: 1}, reader.Current().Data)

	moved, err = reader.Next(ctx)
	require.NoError(t, err)
	require.False(t, moved)
}

func TestStart(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		ctx := context.Background()
		store := memory.New()
		c := newMemoryChain(t, sharedStore{store})

		require.NoError(t, c.Start(ctx, payload{}))
		first := c.Current()

		require.NoError(t, c.Start(ctx, payload{}))
		assert.Equal(t, first, c.Current())
		assert.Equal(t, 1, store.Len())
	})

	t.Run("head carries the default data", func(t *testing.T) {
		ctx := context.Background()
		store := memory.New()
		c := newMemoryChain(t, sharedStore{store})
		require.NoError(t, c.Start(ctx, payload{X: 1}))
		require.NoError(t, c.Append(ctx, "A", payload{X: 2}))

		other := newMemoryChain(t, sharedStore{store})
		require.NoError(t, other.Start(ctx, payload{X: 42}))
		assert.Equal(t, payload{X: 42}, other.Current().Data)
		assert.Equal(t, "A", other.Current().NextID)
	})
}

func TestTraversalTermination(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	writer := newMemoryChain(t, sharedStore{store})
	require.NoError(t, writer.Start(ctx, payload{}))

	const length = 6
	for i := 1; i < length; i++ {
		require.NoError(t, writer.Append(ctx, fmt.Sprintf("N%d", i), payload{X: i}))
	}

	reader := newMemoryChain(t, sharedStore{store})
	require.NoError(t, reader.Start(ctx, payload{}))

	hops := 0
	for {
		moved, err := reader.Next(ctx)
		require.NoError(t, err)
		if !moved {
			break
		}
		hops++
		assert.Equal(t, payload{X: hops}, reader.Current().Data)
	}
	assert.Equal(t, length-1, hops)

	tail := reader.Current()
	for range 3 {
		moved, err := reader.Next(ctx)
		require.NoError(t, err)
		require.False(t, moved)
		require.Equal(t, tail, reader.Current())
	}
}

func TestNextPicksUpConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	reader := newMemoryChain(t, sharedStore{store})
	require.NoError(t, reader.Start(ctx, payload{}))

	writer := newMemoryChain(t, sharedStore{store})
	require.NoError(t, writer.Start(ctx, payload{}))
	require.NoError(t, writer.Append(ctx, "A", payload{X: 1}))

	// the reader saw an empty pointer at start
	require.Empty(t, reader.Current().NextID)
	moved, err := reader.Next(ctx)
	require.NoError(t, err)
	require.True(t, moved)
	require.Equal(t, "A", reader.Current().ID)
}

func TestTryLoadUntil(t *testing.T) {
	ctx := context.Background()
	c := newMemoryChain(t, nil)
	require.NoError(t, c.Start(ctx, payload{}))
	require.NoError(t, c.Append(ctx, "A", payload{X: 1}))
	require.NoError(t, c.Append(ctx, "B", payload{X: 2}))

	found, err := c.TryLoadUntil(ctx, "A")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "A", c.Current().ID)
	assert.Equal(t, "B", c.Current().NextID)
	assert.Equal(t, payload{X: 1}, c.Current().Data)

	found, err = c.TryLoadUntil(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)
	assert.Equal(t, "A", c.Current().ID)

	_, err = c.TryLoadUntil(ctx, " ")
	require.ErrorIs(t, err, gerrors.ErrEmptyID)

	t.Run("before start", func(t *testing.T) {
		other := newMemoryChain(t, nil)
		found, err := other.TryLoadUntil(ctx, "H")
		require.NoError(t, err)
		require.False(t, found)

		_, err = other.Next(ctx)
		require.ErrorIs(t, err, gerrors.ErrNotStarted)
	})
}

func TestTryAppend(t *testing.T) {
	t.Run("not started", func(t *testing.T) {
		c := newMemoryChain(t, nil)
		_, err := c.TryAppend(context.Background(), "A", payload{})
		require.ErrorIs(t, err, gerrors.ErrNotStarted)
	})

	t.Run("empty id", func(t *testing.T) {
		c := newMemoryChain(t, nil)
		_, err := c.TryAppend(context.Background(), "", payload{})
		require.ErrorIs(t, err, gerrors.ErrEmptyID)
		require.ErrorIs(t, c.Append(context.Background(), "", payload{}), gerrors.ErrEmptyID)
	})

	t.Run("walks to the tail first", func(t *testing.T) {
		ctx := context.Background()
		store := memory.New()
		first := newMemoryChain(t, sharedStore{store})
		second := newMemoryChain(t, sharedStore{store})
		require.NoError(t, first.Start(ctx, payload{}))
		require.NoError(t, second.Start(ctx, payload{}))

		ok, err := first.TryAppend(ctx, "A", payload{X: 1})
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = second.TryAppend(ctx, "B", payload{X: 2})
		require.NoError(t, err)
		require.True(t, ok)

		assert.Equal(t, []string{"H", "A", "B"}, walk(t, newMemoryChain(t, sharedStore{store})))
	})

	t.Run("uniqueness", func(t *testing.T) {
		ctx := context.Background()
		c := newMemoryChain(t, nil)
		require.NoError(t, c.Start(ctx, payload{}))
		require.NoError(t, c.Append(ctx, "A", payload{X: 1}))

		for range 5 {
			ok, err := c.TryAppend(ctx, "A", payload{X: 2})
			require.NoError(t, err)
			require.False(t, ok)
		}

		err := c.Append(ctx, "A", payload{X: 2})
		require.ErrorIs(t, err, gerrors.ErrIDAlreadyOnChain)

		exists, err := c.IDIsAlreadyOnChain(ctx, "A")
		require.NoError(t, err)
		require.True(t, exists)
	})
}

func TestLinearizableAppend(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	seed := newMemoryChain(t, sharedStore{store})
	require.NoError(t, seed.Start(ctx, payload{}))
	require.NoError(t, seed.Append(ctx, "T", payload{}))

	const contenders = 16
	barrier := newBarrierStore(store, contenders)
	handles := make([]*Chain[payload], contenders)
	for i := range handles {
		handles[i] = newMemoryChain(t, barrier)
		found, err := handles[i].TryLoadUntil(ctx, "T")
		require.NoError(t, err)
		require.True(t, found)
	}

	wins := atomic.NewInt32(0)
	winner := atomic.NewString("")
	eg, egCtx := errgroup.WithContext(ctx)
	for i, handle := range handles {
		eg.Go(func() error {
			id := fmt.Sprintf("W%d", i)
			ok, err := handle.TryAppend(egCtx, id, payload{X: i})
			if ok {
				wins.Inc()
				winner.Store(id)
			}
			return err
		})
	}
	require.NoError(t, eg.Wait())
	require.EqualValues(t, 1, wins.Load())

	ids := walk(t, newMemoryChain(t, sharedStore{store}))
	require.Equal(t, []string{"H", "T", winner.Load()}, ids)
}

func TestConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	const writers = 8
	const perWriter = 10

	eg, egCtx := errgroup.WithContext(ctx)
	for w := range writers {
		handle := newMemoryChain(t, sharedStore{store})
		eg.Go(func() error {
			if err := handle.Start(egCtx, payload{}); err != nil {
				return err
			}
			for i := range perWriter {
				if err := handle.Append(egCtx, fmt.Sprintf("w%d-%d", w, i), payload{X: i}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	ids := walk(t, newMemoryChain(t, sharedStore{store}))
	require.Len(t, ids, writers*perWriter+1)

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		require.False(t, seen[id], "node %s visited twice", id)
		seen[id] = true
	}
}

func TestSharedHandle(t *testing.T) {
	ctx := context.Background()
	c := newMemoryChain(t, nil)
	require.NoError(t, c.Start(ctx, payload{}))

	eg, egCtx := errgroup.WithContext(ctx)
	for i := range 20 {
		eg.Go(func() error {
			return c.Append(egCtx, fmt.Sprintf("N%d", i), payload{X: i})
		})
	}
	require.NoError(t, eg.Wait())
	require.Len(t, walk(t, c), 21)
}

func TestAppendRetryPolicy(t *testing.T) {
	t.Run("bounded retries are exhausted", func(t *testing.T) {
		ctx := context.Background()
		store := &conflictStore{Backend: memory.New()}
		config := testConfig(t)
		config.Retry = RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

		c, err := New[payload](config, store)
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		require.NoError(t, c.Start(ctx, payload{}))

		err = c.Append(ctx, "A", payload{})
		require.ErrorIs(t, err, gerrors.ErrAppendRetriesExhausted)
		assert.GreaterOrEqual(t, store.Attempts(), 3)
		assert.LessOrEqual(t, store.Attempts(), 4)
	})

	t.Run("unbounded retries stop with the context", func(t *testing.T) {
		store := &conflictStore{Backend: memory.New()}
		c := newMemoryChain(t, store)
		require.NoError(t, c.Start(context.Background(), payload{}))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := c.Append(ctx, "A", payload{})
		require.Error(t, err)
		assert.Positive(t, store.Attempts())
	})

	t.Run("unbounded retries wait between attempts", func(t *testing.T) {
		store := &conflictStore{Backend: memory.New()}
		config := testConfig(t)
		config.Retry = RetryPolicy{InitialDelay: 20 * time.Millisecond}

		c, err := New[payload](config, store)
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		require.NoError(t, c.Start(context.Background(), payload{}))

		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Millisecond)
		defer cancel()

		require.ErrorIs(t, c.Append(ctx, "A", payload{}), context.DeadlineExceeded)
		assert.LessOrEqual(t, store.Attempts(), 6)
	})

	t.Run("faults stop the loop", func(t *testing.T) {
		store := memory.New()
		c := newMemoryChain(t, store)
		require.NoError(t, c.Start(context.Background(), payload{}))
		require.NoError(t, store.Close())

		err := c.Append(context.Background(), "A", payload{})
		require.ErrorIs(t, err, gerrors.ErrClosed)
	})
}

func TestDecodeFault(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	head, err := store.Head(ctx, "H")
	require.NoError(t, err)
	_, ok, err := store.Extend(ctx, head, "A", []byte("garbage"))
	require.NoError(t, err)
	require.True(t, ok)

	c := newMemoryChain(t, sharedStore{store})
	require.NoError(t, c.Start(ctx, payload{}))

	_, err = c.Next(ctx)
	require.ErrorIs(t, err, gerrors.ErrDecode)
	assert.Equal(t, "H", c.Current().ID)

	_, err = c.TryLoadUntil(ctx, "A")
	var decodeErr *gerrors.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, c.keys.Chain("A"), decodeErr.Key())
}

func TestExtraData(t *testing.T) {
	ctx := context.Background()
	c := newMemoryChain(t, nil)

	type checkpoint struct {
		Offset int               `cbor:"offset"`
		Labels map[string]string `cbor:"labels"`
	}

	expected := checkpoint{Offset: 12, Labels: map[string]string{"a": "b"}}
	require.NoError(t, c.SaveExtraData(ctx, "checkpoint", expected))

	var actual checkpoint
	found, err := c.LoadExtraData(ctx, "checkpoint", &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected, actual)

	found, err = c.LoadExtraData(ctx, "unknown", &actual)
	require.NoError(t, err)
	require.False(t, found)

	require.ErrorIs(t, c.SaveExtraData(ctx, "", 1), gerrors.ErrEmptyID)
	_, err = c.LoadExtraData(ctx, "", &actual)
	require.ErrorIs(t, err, gerrors.ErrEmptyID)

	t.Run("malformed value", func(t *testing.T) {
		store := memory.New()
		c := newMemoryChain(t, sharedStore{store})
		require.NoError(t, store.SaveExtra(ctx, "bad", []byte("garbage")))

		var target checkpoint
		_, err := c.LoadExtraData(ctx, "bad", &target)
		require.ErrorIs(t, err, gerrors.ErrDecode)
	})
}

func TestCodecs(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		ctx := context.Background()
		store := memory.New()
		c := newMemoryChain(t, sharedStore{store}, WithCodec[payload](JSON[payload]{}))
		require.NoError(t, c.Start(ctx, payload{}))
		require.NoError(t, c.Append(ctx, "A", payload{X: 7}))

		record, err := store.Load(ctx, "A")
		require.NoError(t, err)
		assert.JSONEq(t, `{"x":7}`, string(record.Data))
	})

	t.Run("zstd", func(t *testing.T) {
		ctx := context.Background()
		store := memory.New()
		codecOpt := WithCodec[payload](Zstd[payload]{Codec: JSON[payload]{}})
		writer := newMemoryChain(t, sharedStore{store}, codecOpt)
		require.NoError(t, writer.Start(ctx, payload{}))
		require.NoError(t, writer.Append(ctx, "A", payload{X: 7}))

		record, err := store.Load(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, record.Data[:4])

		reader := newMemoryChain(t, sharedStore{store}, codecOpt)
		found, err := reader.TryLoadUntil(ctx, "A")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, payload{X: 7}, reader.Current().Data)

		plain := newMemoryChain(t, sharedStore{store})
		_, err = plain.TryLoadUntil(ctx, "A")
		require.ErrorIs(t, err, gerrors.ErrDecode)
	})

	t.Run("zstd shrinks repetitive payloads", func(t *testing.T) {
		large := strings.Repeat("node payload ", 1024)
		encoded, err := Zstd[string]{}.Encode(large)
		require.NoError(t, err)
		assert.Less(t, len(encoded), len(large)/4)

		decoded, err := Zstd[string]{}.Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, large, decoded)

		_, err = Zstd[string]{}.Decode(nil)
		require.Error(t, err)
		_, err = Zstd[string]{}.Decode([]byte("not zstd"))
		require.Error(t, err)
	})

	t.Run("codec of another type", func(t *testing.T) {
		_, err := New[payload](testConfig(t), memory.New(), WithCodec[string](CBOR[string]{}))
		require.Error(t, err)
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	publisher := &recordingPublisher{}
	c, err := New[payload](testConfig(t), memory.New(), WithPublisher(publisher), WithCache(cache.NewLocal(0)))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, publisher.closed)

	require.ErrorIs(t, c.Start(ctx, payload{}), gerrors.ErrClosed)
	_, err = c.Next(ctx)
	require.ErrorIs(t, err, gerrors.ErrClosed)
	_, err = c.TryAppend(ctx, "A", payload{})
	require.ErrorIs(t, err, gerrors.ErrClosed)
	require.ErrorIs(t, c.Append(ctx, "A", payload{}), gerrors.ErrClosed)
	_, err = c.IDIsAlreadyOnChain(ctx, "A")
	require.ErrorIs(t, err, gerrors.ErrClosed)
	require.ErrorIs(t, c.SaveExtraData(ctx, "k", 1), gerrors.ErrClosed)
	_, err = c.LoadExtraData(ctx, "k", new(int))
	require.ErrorIs(t, err, gerrors.ErrClosed)
}

func TestNew(t *testing.T) {
	_, err := New[payload](nil, memory.New())
	require.Error(t, err)

	_, err = New[payload](testConfig(t), nil)
	require.Error(t, err)

	config := testConfig(t)
	config.DataPrefix = config.ChainPrefix
	_, err = New[payload](config, memory.New())
	require.Error(t, err)
}

func TestCache(t *testing.T) {
	t.Run("write-through stores the committed previous tail", func(t *testing.T) {
		ctx := context.Background()
		store := memory.New()
		local := cache.NewLocal(0)

		config := testConfig(t)
		config.Cache = CacheConfig{WriteThrough: true, InProcess: true}
		c, err := New[payload](config, sharedStore{store}, WithCache(local))
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })

		require.NoError(t, c.Start(ctx, payload{}))
		require.NoError(t, c.Append(ctx, "A", payload{X: 1}))
		require.NoError(t, c.Append(ctx, "B", payload{X: 2}))

		for _, id := range []string{"H", "A"} {
			cached, ok := local.Get(ctx, id)
			require.True(t, ok)

			stored, err := store.Load(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, stored, cached)
		}

		_, ok := local.Get(ctx, "B")
		assert.False(t, ok)
	})

	t.Run("read-through serves traversal and counts hits", func(t *testing.T) {
		ctx := context.Background()
		store := memory.New()
		local := cache.NewLocal(0)
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

		config := testConfig(t)
		config.Cache = CacheConfig{ReadThrough: true, WriteThrough: true, InProcess: true}
		writer, err := New[payload](config, sharedStore{store}, WithCache(local))
		require.NoError(t, err)
		t.Cleanup(func() { _ = writer.Close() })
		require.NoError(t, writer.Start(ctx, payload{}))
		require.NoError(t, writer.Append(ctx, "A", payload{X: 1}))
		require.NoError(t, writer.Append(ctx, "B", payload{X: 2}))

		readerConfig := testConfig(t)
		readerConfig.Cache = CacheConfig{ReadThrough: true, InProcess: true}
		handle, err := New[payload](readerConfig, sharedStore{store}, WithCache(local), WithMeterProvider(provider))
		require.NoError(t, err)
		t.Cleanup(func() { _ = handle.Close() })

		require.NoError(t, handle.Start(ctx, payload{}))
		require.Equal(t, "A", handle.Current().NextID)

		var ids []string
		for {
			moved, err := handle.Next(ctx)
			require.NoError(t, err)
			if !moved {
				break
			}
			ids = append(ids, handle.Current().ID)
		}
		require.Equal(t, []string{"A", "B"}, ids)

		var data metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(ctx, &data))
		counts := make(map[string]int64)
		for _, scope := range data.ScopeMetrics {
			for _, m := range scope.Metrics {
				if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
					for _, point := range sum.DataPoints {
						counts[m.Name] += point.Value
					}
				}
			}
		}
		// H and A come from the cache; B and the final pointer check do not
		assert.EqualValues(t, 2, counts["sharedchain_cache_hits"])
		assert.Positive(t, counts["sharedchain_cache_misses"])
	})

	t.Run("cache is ignored when not enabled", func(t *testing.T) {
		ctx := context.Background()
		local := cache.NewLocal(0)
		require.NoError(t, local.Put(ctx, &backend.Record{ID: "H", NextID: "ghost"}))

		c := newMemoryChain(t, nil, WithCache(local))
		require.NoError(t, c.Start(ctx, payload{}))
		require.Empty(t, c.Current().NextID)
	})
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	publisher := &recordingPublisher{}
	c := newMemoryChain(t, nil, WithPublisher(publisher))
	require.NoError(t, c.Start(ctx, payload{}))
	require.NoError(t, c.Append(ctx, "A", payload{X: 1}))

	publisher.err = errors.New("broker down")
	require.NoError(t, c.Append(ctx, "B", payload{X: 2}))

	events := publisher.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "A", events[0].ID)
	assert.Equal(t, "H", events[0].PreviousID)
	assert.Equal(t, c.config.ChainPrefix, events[0].Chain)
	assert.Equal(t, c.Current().Revision, events[1].Revision)

	var data payload
	require.NoError(t, codec.Unmarshal(events[1].Data, &data))
	assert.Equal(t, payload{X: 2}, data)
}
